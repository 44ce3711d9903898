package estimator

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsflykite/h2o-dev/frame"
	"github.com/letsflykite/h2o-dev/job"
	"github.com/letsflykite/h2o-dev/model"
	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/rest"
)

// fakeH2O emulates the handful of endpoints a fit/predict round trip touches
// and records everything the client sends.
type fakeH2O struct {
	t *testing.T

	mu         sync.Mutex
	requests   int
	submitted  []url.Values
	rapids     []string
	removed    []string
	jobPolls   int
	modelKey   string
	category   string
	jobStatus  job.Status // status in the submission response
	exception  string
	failSchema bool
	schema     map[string]interface{}
	predKey    string
}

func newFakeH2O(t *testing.T) *fakeH2O {
	return &fakeH2O{
		t:         t,
		modelKey:  "model1",
		category:  "Binomial",
		jobStatus: job.StatusDone,
		predKey:   "pred1",
		schema: map[string]interface{}{
			"ntrees":           float64(50),
			"max_depth":        float64(5),
			"distribution":     nil,
			"max_runtime_secs": nil,
			"training_frame":   nil,
			"validation_frame": nil,
			"response_column":  nil,
			"ignored_columns":  nil,
		},
	}
}

func (f *fakeH2O) conn() *rest.Connection {
	srv := httptest.NewServer(http.HandlerFunc(f.handle))
	f.t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(f.t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(f.t, err)
	return rest.New(u.Hostname(), port)
}

func (f *fakeH2O) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	reply := func(v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(f.t, json.NewEncoder(w).Encode(v))
	}
	jobRecord := func(status job.Status) map[string]interface{} {
		return map[string]interface{}{
			"key":       map[string]interface{}{"name": "$job1"},
			"dest":      map[string]interface{}{"name": f.modelKey},
			"status":    string(status),
			"progress":  1.0,
			"exception": f.exception,
		}
	}

	path := r.URL.Path
	switch {
	case path == "/Rapids" && r.Method == http.MethodPost:
		require.NoError(f.t, r.ParseForm())
		f.rapids = append(f.rapids, r.PostFormValue("ast"))
		reply(map[string]interface{}{})

	case path == "/Remove" && r.Method == http.MethodDelete:
		f.removed = append(f.removed, r.URL.Query().Get("key"))
		reply(map[string]interface{}{})

	case strings.HasPrefix(path, "/ModelBuilders/") && r.Method == http.MethodGet:
		if f.failSchema {
			http.Error(w, "schema unavailable", http.StatusInternalServerError)
			return
		}
		algo := strings.TrimPrefix(path, "/ModelBuilders/")
		params := make([]map[string]interface{}, 0, len(f.schema))
		for name, dv := range f.schema {
			params = append(params, map[string]interface{}{"name": name, "default_value": dv})
		}
		reply(map[string]interface{}{
			"model_builders": map[string]interface{}{
				algo: map[string]interface{}{"parameters": params},
			},
		})

	case strings.HasPrefix(path, "/ModelBuilders/") && r.Method == http.MethodPost:
		require.NoError(f.t, r.ParseForm())
		f.submitted = append(f.submitted, r.PostForm)
		reply(map[string]interface{}{"jobs": []interface{}{jobRecord(f.jobStatus)}})

	case strings.HasPrefix(path, "/Jobs/") && r.Method == http.MethodGet:
		f.jobPolls++
		reply(map[string]interface{}{"jobs": []interface{}{jobRecord(job.StatusDone)}})

	case strings.HasPrefix(path, "/Models/") && r.Method == http.MethodGet:
		reply(map[string]interface{}{
			"models": []interface{}{
				map[string]interface{}{
					"output": map[string]interface{}{
						"model_category": f.category,
						"names":          []string{"a", "b", "c", "d"},
						"mse":            0.1,
						"auc":            0.9,
					},
				},
			},
		})

	case strings.HasPrefix(path, "/Predictions/models/") && r.Method == http.MethodPost:
		reply(map[string]interface{}{
			"model_metrics": []interface{}{
				map[string]interface{}{
					"mse":         0.05,
					"predictions": map[string]interface{}{"key": map[string]interface{}{"name": f.predKey}},
				},
			},
		})

	case strings.HasPrefix(path, "/Frames/") && r.Method == http.MethodGet:
		reply(map[string]interface{}{
			"frames": []interface{}{
				map[string]interface{}{
					"rows":    3,
					"veckeys": []interface{}{map[string]interface{}{"name": "$pv1"}},
					"columns": []interface{}{map[string]interface{}{"label": "predict"}},
				},
			},
		})

	default:
		f.t.Errorf("unexpected request: %s %s", r.Method, path)
		http.NotFound(w, r)
	}
}

func (f *fakeH2O) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeH2O) submissions() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.submitted...)
}

func (f *fakeH2O) removedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeH2O) rapidsCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rapids...)
}

var tmpKeyPattern = regexp.MustCompile(`\(= !(go[0-9a-f]{32}) `)

func tmpKeyFromAst(t *testing.T, ast string) string {
	t.Helper()
	m := tmpKeyPattern.FindStringSubmatch(ast)
	require.NotNil(t, m, "no temporary key in expression: %s", ast)
	return m[1]
}

func trainingFrame() *frame.Frame {
	return frame.New([]frame.Vec{
		{Name: "a", Key: "$v1"},
		{Name: "b", Key: "$v2"},
		{Name: "c", Key: "$v3"},
		{Name: "d", Key: "$v4"},
	}, 100)
}

func TestFitHappyPath(t *testing.T) {
	f := newFakeH2O(t)
	f.jobStatus = job.StatusRunning // exercise the poll refresh too

	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithParam("ntrees", 100).
		WithParam("bogus_setting", 1).
		WithJobOptions(job.WithPollInterval(0, 0))

	before := b.Params().Map()

	err := b.Fit(context.Background(), Cols("a", "c"), ByName("d"))
	require.NoError(t, err)

	// Folded submission body: user overlay, defaults, dropped keys.
	subs := f.submissions()
	require.Len(t, subs, 1)
	form := subs[0]
	assert.Equal(t, "100", form.Get("ntrees"))
	assert.Equal(t, "5", form.Get("max_depth"))
	assert.Equal(t, "d", form.Get("response_column"))
	assert.Equal(t, "[b]", form.Get("ignored_columns"))
	assert.False(t, form.Has("bogus_setting"), "undeclared keys must be dropped")
	assert.False(t, form.Has("distribution"), "null-valued keys must be omitted")
	assert.Regexp(t, `^go[0-9a-f]{32}$`, form.Get("training_frame"))
	assert.False(t, form.Has("validation_frame"))

	// The job was polled to completion and the model dispatched by category.
	m, err := b.Model()
	require.NoError(t, err)
	assert.IsType(t, &model.BinomialModel{}, m)
	assert.Equal(t, "model1", m.Key())
	assert.Equal(t, "model1", b.ModelKey())

	summary, err := b.Summary()
	require.NoError(t, err)
	assert.Contains(t, summary, "gbm binomial model")

	// The temporary training frame was removed after the fit.
	rapids := f.rapidsCalls()
	require.Len(t, rapids, 1)
	trainKey := tmpKeyFromAst(t, rapids[0])
	assert.Equal(t, []string{trainKey}, f.removedKeys())
	assert.Equal(t, trainKey, form.Get("training_frame"))

	// The parameter bag is back to its pre-fit state.
	assert.Equal(t, before, b.Params().Map())
}

func TestFitValidationFramePrecedence(t *testing.T) {
	f := newFakeH2O(t)

	builderValidation := frame.New([]frame.Vec{{Name: "a", Key: "$bv1"}}, 10)
	fitValidation := frame.New([]frame.Vec{{Name: "a", Key: "$fv1"}}, 20)

	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithValidationFrame(builderValidation)

	err := b.Fit(context.Background(), Cols("a", "c"), ByName("d"), WithValidation(fitValidation))
	require.NoError(t, err)

	// Two temp frames: training plus the fit-call validation frame. The
	// builder-level validation frame lost the precedence fight and was never
	// sent.
	rapids := f.rapidsCalls()
	require.Len(t, rapids, 2)
	assert.Contains(t, rapids[1], "%$fv1")
	for _, ast := range rapids {
		assert.NotContains(t, ast, "%$bv1")
	}

	validKey := tmpKeyFromAst(t, rapids[1])
	form := f.submissions()[0]
	assert.Equal(t, validKey, form.Get("validation_frame"))

	// Both temporaries are removed after a successful fit.
	trainKey := tmpKeyFromAst(t, rapids[0])
	assert.ElementsMatch(t, []string{trainKey, validKey}, f.removedKeys())
}

func TestFitBuilderValidationFrame(t *testing.T) {
	f := newFakeH2O(t)

	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithValidationFrame(frame.New([]frame.Vec{{Name: "a", Key: "$bv1"}}, 10))

	require.NoError(t, b.Fit(context.Background(), Cols("a"), ByName("d")))

	rapids := f.rapidsCalls()
	require.Len(t, rapids, 2)
	assert.Contains(t, rapids[1], "%$bv1")
	assert.Len(t, f.removedKeys(), 2)
}

func TestFitMissingFeatures(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())

	err := b.Fit(context.Background(), nil, ByName("d"))
	require.Error(t, err)

	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "missing feature variables")
	assert.Equal(t, 0, f.requestCount(), "no network call before argument validation")
}

func TestFitStoredColumnFallback(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithX(Cols("a", "c")...).
		WithY(ByName("d"))

	require.NoError(t, b.Fit(context.Background(), nil, Column{}))

	form := f.submissions()[0]
	assert.Equal(t, "d", form.Get("response_column"))
	assert.Equal(t, "[b]", form.Get("ignored_columns"))
}

func TestFitMissingTrainingFrame(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm")

	err := b.Fit(context.Background(), Cols("a"), ByName("d"))
	require.Error(t, err)

	var mfe *errors.MissingFrameError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, 0, f.requestCount())
}

func TestFitDegenerateTrainingFrame(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(frame.New(nil, 0))

	err := b.Fit(context.Background(), Cols("a"), ByName("d"))
	require.Error(t, err)

	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 0, f.requestCount(), "no submission for a degenerate frame")
}

func TestFitIndexColumns(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())

	require.NoError(t, b.Fit(context.Background(), ColIndexes(0, 2), ByIndex(3)))

	form := f.submissions()[0]
	assert.Equal(t, "d", form.Get("response_column"))
	assert.Equal(t, "[b]", form.Get("ignored_columns"))
}

func TestFitInfinitySentinel(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithParam("max_runtime_secs", math.Inf(1))

	require.NoError(t, b.Fit(context.Background(), Cols("a", "c"), ByName("d")))

	form := f.submissions()[0]
	assert.Equal(t, "9223372036854775807", form.Get("max_runtime_secs"))

	// The builder's own bag still holds the caller's infinity.
	v, _ := b.Params().Get("max_runtime_secs")
	assert.Equal(t, math.Inf(1), v)
}

func TestFitUnsupervised(t *testing.T) {
	f := newFakeH2O(t)
	f.category = "Clustering"
	f.schema["k"] = nil

	b := NewBuilder(f.conn(), "kmeans").
		WithTrainingFrame(trainingFrame()).
		WithParam("k", 3)

	require.NoError(t, b.Fit(context.Background(), Cols("a", "c"), Column{}))

	form := f.submissions()[0]
	assert.False(t, form.Has("response_column"), "unsupervised fits carry no target")
	assert.Equal(t, "[b,d]", form.Get("ignored_columns"))
	assert.Equal(t, "3", form.Get("k"))

	m, err := b.Model()
	require.NoError(t, err)
	assert.IsType(t, &model.ClusteringModel{}, m)
}

func TestFitUnknownModelCategory(t *testing.T) {
	f := newFakeH2O(t)
	f.category = "AutoEncoder"

	b := NewBuilder(f.conn(), "deeplearning").WithTrainingFrame(trainingFrame())
	before := b.Params().Map()

	err := b.Fit(context.Background(), Cols("a"), ByName("d"))
	require.Error(t, err)

	var ume *errors.UnknownModelError
	require.True(t, errors.As(err, &ume))
	assert.Equal(t, "AutoEncoder", ume.Category)

	// Cleanup and restoration still happen on the failure path.
	assert.Len(t, f.removedKeys(), 1)
	assert.Equal(t, before, b.Params().Map())

	_, err = b.Model()
	assert.Error(t, err)
}

func TestFitJobFailure(t *testing.T) {
	f := newFakeH2O(t)
	f.jobStatus = job.StatusFailed
	f.exception = "water.DException: NPE in scoring"

	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())

	err := b.Fit(context.Background(), Cols("a"), ByName("d"))
	require.Error(t, err)

	var jfe *errors.JobFailureError
	require.True(t, errors.As(err, &jfe))
	assert.Contains(t, jfe.Exception, "NPE")

	// The temp training frame is removed even though the job failed.
	assert.Len(t, f.removedKeys(), 1)
}

func TestFitParamsRestoredOnMidFlightError(t *testing.T) {
	f := newFakeH2O(t)
	f.failSchema = true

	b := NewBuilder(f.conn(), "gbm").
		WithTrainingFrame(trainingFrame()).
		WithParam("ntrees", 25)
	before := b.Params().Map()

	err := b.Fit(context.Background(), Cols("a"), ByName("d"))
	require.Error(t, err)

	var re *errors.RESTError
	require.True(t, errors.As(err, &re))

	// The frame had already been materialized when the schema fetch blew up:
	// its removal and the parameter restore must both still happen.
	assert.Len(t, f.removedKeys(), 1)
	assert.Equal(t, before, b.Params().Map())

	_, leaked := b.Params().Get("training_frame")
	assert.False(t, leaked, "working-copy keys must not leak into the builder's bag")
}

func TestPredict(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())
	require.NoError(t, b.Fit(context.Background(), Cols("a", "c"), ByName("d")))

	removedAfterFit := len(f.removedKeys())

	testData := frame.New([]frame.Vec{{Name: "a", Key: "$t1"}, {Name: "c", Key: "$t2"}}, 3)
	pred, err := b.Predict(context.Background(), testData)
	require.NoError(t, err)

	assert.Equal(t, []string{"predict"}, pred.Names())
	assert.Equal(t, int64(3), pred.NumRows())
	assert.Equal(t, "$pv1", pred.Vecs()[0].Key)

	// The temp frame built from testData is gone; the prediction frame the
	// caller now owns is not.
	removed := f.removedKeys()
	assert.Len(t, removed, removedAfterFit+1)
	assert.NotContains(t, removed, "pred1")
}

func TestPredictNotFitted(t *testing.T) {
	b := NewBuilder(nil, "gbm")

	_, err := b.Predict(context.Background(), trainingFrame())
	require.Error(t, err)

	var nfe *errors.NotFittedError
	require.True(t, errors.As(err, &nfe))
	assert.Equal(t, "Predict", nfe.Method)
}

func TestPredictMissingTestData(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())
	require.NoError(t, b.Fit(context.Background(), Cols("a"), ByName("d")))

	_, err := b.Predict(context.Background(), nil)
	require.Error(t, err)

	var ve *errors.ValueError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "test data")
}

func TestPerformance(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())
	require.NoError(t, b.Fit(context.Background(), Cols("a", "c"), ByName("d")))

	testData := frame.New([]frame.Vec{{Name: "a", Key: "$t1"}}, 3)
	metrics, err := b.Performance(context.Background(), testData)
	require.NoError(t, err)

	assert.Equal(t, 0.05, metrics.MSE)
	assert.Equal(t, "pred1", metrics.PredictionsKey)
}

func TestNotFittedSurfaces(t *testing.T) {
	b := NewBuilder(nil, "gbm")

	_, err := b.Model()
	assert.Error(t, err)

	_, err = b.Summary()
	assert.Error(t, err)

	_, err = b.Performance(context.Background(), trainingFrame())
	var nfe *errors.NotFittedError
	require.True(t, errors.As(err, &nfe))

	assert.Empty(t, b.ModelKey())
}

func TestFitRefit(t *testing.T) {
	f := newFakeH2O(t)
	b := NewBuilder(f.conn(), "gbm").WithTrainingFrame(trainingFrame())

	require.NoError(t, b.Fit(context.Background(), Cols("a"), ByName("d")))
	firstKey := b.ModelKey()

	f.mu.Lock()
	f.modelKey = "model2"
	f.mu.Unlock()

	require.NoError(t, b.Fit(context.Background(), Cols("a", "c"), ByName("d")))
	assert.NotEqual(t, firstKey, b.ModelKey())
	assert.Equal(t, "model2", b.ModelKey())
}
