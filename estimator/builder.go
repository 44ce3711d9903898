// Package estimator drives remote model training: it reconciles parameters,
// resolves feature and target columns, materializes frames on the server,
// submits the training job and wraps the fitted result.
//
// All heavy lifting happens server-side; this package is orchestration glue
// over the REST endpoints. A Builder is configured with chainable setters,
// fitted with Fit, and then queried through Model, Predict, Performance and
// Summary.
package estimator

import (
	"context"
	"encoding/json"

	"github.com/letsflykite/h2o-dev/frame"
	"github.com/letsflykite/h2o-dev/job"
	"github.com/letsflykite/h2o-dev/model"
	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/pkg/log"
	"github.com/letsflykite/h2o-dev/rest"
)

// Builder accumulates the configuration for one remote training method and
// performs the fit. Builders are mutated during a single Fit call and may be
// reused afterward; they are not safe for concurrent use.
type Builder struct {
	conn   *rest.Connection
	algo   string
	logger log.Logger

	params          *Params
	trainingFrame   *frame.Frame
	validationFrame *frame.Frame
	x               []Column
	y               Column
	jobOpts         []job.Option

	// Filled after a successful call to Fit.
	fitted   model.Model
	modelKey string
}

// NewBuilder creates a builder for the remote training method named by algo,
// e.g. "gbm", "glm", "kmeans", "deeplearning".
func NewBuilder(conn *rest.Connection, algo string) *Builder {
	return &Builder{
		conn:   conn,
		algo:   algo,
		logger: log.GetLoggerWithName("estimator"),
		params: NewParams(),
	}
}

// WithTrainingFrame sets the dataset to train on.
func (b *Builder) WithTrainingFrame(f *frame.Frame) *Builder {
	b.trainingFrame = f
	return b
}

// WithValidationFrame sets a holdout dataset scored during training. A frame
// passed directly to Fit takes precedence over this one.
func (b *Builder) WithValidationFrame(f *frame.Frame) *Builder {
	b.validationFrame = f
	return b
}

// WithX sets the default feature columns used when Fit is called without
// explicit features.
func (b *Builder) WithX(cols ...Column) *Builder {
	b.x = cols
	return b
}

// WithY sets the default target column used when Fit is called without an
// explicit target. Leaving the target unset everywhere means unsupervised
// training.
func (b *Builder) WithY(col Column) *Builder {
	b.y = col
	return b
}

// WithParam stores one training parameter.
func (b *Builder) WithParam(name string, value interface{}) *Builder {
	b.params.Set(name, value)
	return b
}

// WithJobOptions configures how the training job is polled.
func (b *Builder) WithJobOptions(opts ...job.Option) *Builder {
	b.jobOpts = opts
	return b
}

// Algo returns the short name of the remote training method.
func (b *Builder) Algo() string { return b.algo }

// Params returns the builder's parameter bag for direct manipulation.
func (b *Builder) Params() *Params { return b.params }

// ModelKey returns the destination key of the fitted model, or "" before a
// successful Fit.
func (b *Builder) ModelKey() string { return b.modelKey }

// Model returns the fitted result.
func (b *Builder) Model() (model.Model, error) {
	if b.fitted == nil {
		return nil, errors.NewNotFittedError("Builder", "Model")
	}
	return b.fitted, nil
}

// Summary returns a short description of the fitted model.
func (b *Builder) Summary() (string, error) {
	if b.fitted == nil {
		return "", errors.NewNotFittedError("Builder", "Summary")
	}
	return b.fitted.Summary(), nil
}

// fitConfig collects per-call Fit options.
type fitConfig struct {
	validation *frame.Frame
}

// FitOption adjusts a single Fit call.
type FitOption func(*fitConfig)

// WithValidation supplies a validation frame for this fit only, overriding
// one configured on the builder.
func WithValidation(f *frame.Frame) FitOption {
	return func(cfg *fitConfig) {
		cfg.validation = f
	}
}

// Fit trains a model on the configured training frame using features x and
// target y. Explicit arguments win over the builder's stored columns; x must
// be supplied one way or the other. An unset y is legal only for
// unsupervised methods.
//
// The call blocks until the server finishes the job. Temporary server-side
// frames created along the way are removed on every exit path, and the
// parameter bag is restored to its pre-Fit snapshot whether the fit succeeds
// or fails.
func (b *Builder) Fit(ctx context.Context, x []Column, y Column, opts ...FitOption) (err error) {
	defer errors.Recover(&err, "Builder.Fit")

	var cfg fitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	// Work on a sanitized copy; the caller's bag is restored on all paths.
	saved := b.params
	b.params = b.params.sanitized()
	defer func() { b.params = saved }()

	x, y, err = b.resolveXY(x, y)
	if err != nil {
		return err
	}

	dataset := b.trainingFrame
	if dataset == nil {
		return errors.NewMissingFrameError("fit")
	}
	if dataset.NumCols() == 0 {
		return errors.NewValueError("fit", "training frame has no columns")
	}

	names := dataset.Names()
	xNames, err := resolveFeatureNames(x, names)
	if err != nil {
		return err
	}
	yName := ""
	if y.IsSet() {
		if yName, err = y.resolveName(names); err != nil {
			return err
		}
	}

	b.params.Set("ignored_columns", ignoredColumns(names, xNames, yName))
	if yName != "" {
		b.params.Set("response_column", yName)
	}

	b.logger.Info("fitting model",
		log.AlgoKey, b.algo,
		log.ColumnsKey, len(xNames),
		log.IgnoredColumnsKey, len(names)-len(xNames),
	)

	// The cleanup context survives cancellation so a failed or cancelled fit
	// still removes its server-side temporaries.
	cleanupCtx := context.WithoutCancel(ctx)

	trainKey, err := frame.SendTemp(ctx, b.conn, dataset)
	if err != nil {
		return err
	}
	defer trainKey.Remove(cleanupCtx)
	b.params.Set("training_frame", trainKey.Key())

	validation := b.validationFrame
	if cfg.validation != nil {
		// The frame passed to the fit call is king.
		validation = cfg.validation
	}
	if validation != nil {
		if validation.NumCols() == 0 {
			return errors.NewValueError("fit", "validation frame has no columns")
		}
		validKey, err := frame.SendTemp(ctx, b.conn, validation)
		if err != nil {
			return err
		}
		defer validKey.Remove(cleanupCtx)
		b.params.Set("validation_frame", validKey.Key())
	}

	defaults, err := fetchSchema(ctx, b.conn, b.algo)
	if err != nil {
		return err
	}
	folded := foldParams(defaults, b.params)

	var resp job.Response
	if err := b.conn.PostForm(ctx, rest.ModelBuilders(b.algo), renderForm(folded), &resp); err != nil {
		return err
	}
	j, err := job.New(b.conn, &resp, b.algo+" Model Build", b.jobOpts...)
	if err != nil {
		return err
	}
	if err := j.Poll(ctx); err != nil {
		return err
	}

	fitted, err := b.fetchModel(ctx, j.DestinationKey())
	if err != nil {
		return err
	}

	b.fitted = fitted
	b.modelKey = j.DestinationKey()

	b.logger.Info("model fitted",
		log.AlgoKey, b.algo,
		log.ModelKeyKey, b.modelKey,
		log.ModelCategoryKey, string(fitted.Category()),
	)
	return nil
}

// resolveXY applies the stored-configuration fallback: explicit fit arguments
// win, otherwise the builder's configured columns. Features still missing
// after the fallback fail before any network call is attempted.
func (b *Builder) resolveXY(x []Column, y Column) ([]Column, Column, error) {
	if len(x) == 0 {
		x = b.x
	}
	if !y.IsSet() {
		y = b.y
	}
	if len(x) == 0 {
		return nil, Column{}, errors.NewValueError("fit", "no fit can be made, missing feature variables")
	}
	return x, y, nil
}

// modelsResponse is the wire shape of the model fetch.
type modelsResponse struct {
	Models []struct {
		Output json.RawMessage `json:"output"`
	} `json:"models"`
}

// fetchModel retrieves the completed model record and dispatches on its
// category to build the matching result variant.
func (b *Builder) fetchModel(ctx context.Context, destKey string) (model.Model, error) {
	var resp modelsResponse
	if err := b.conn.Get(ctx, rest.Models(destKey), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Models) == 0 {
		return nil, errors.Newf("h2o: no model record returned for key %s", destKey)
	}

	out, err := model.ParseOutput(resp.Models[0].Output)
	if err != nil {
		return nil, err
	}
	return model.FromOutput(destKey, b.algo, out)
}

// Predict scores testData with the fitted model and returns a handle to the
// frame of per-row predictions. The temporary frame built from testData is
// removed on every exit path; the returned prediction frame belongs to the
// caller.
func (b *Builder) Predict(ctx context.Context, testData *frame.Frame) (_ *frame.Frame, err error) {
	defer errors.Recover(&err, "Builder.Predict")

	if b.fitted == nil {
		return nil, errors.NewNotFittedError("Builder", "Predict")
	}

	metrics, err := b.score(ctx, "predict", testData)
	if err != nil {
		return nil, err
	}
	if metrics.PredictionsKey == "" {
		return nil, errors.New("h2o: scoring run reported no prediction frame")
	}
	return frame.Lookup(ctx, b.conn, metrics.PredictionsKey)
}

// Performance scores testData with the fitted model and returns the metrics
// record of the run.
func (b *Builder) Performance(ctx context.Context, testData *frame.Frame) (_ *model.Metrics, err error) {
	defer errors.Recover(&err, "Builder.Performance")

	if b.fitted == nil {
		return nil, errors.NewNotFittedError("Builder", "Performance")
	}
	return b.score(ctx, "performance", testData)
}

// score materializes testData, runs the blocking scoring call against the
// fitted model and parses the resulting metrics record.
func (b *Builder) score(ctx context.Context, op string, testData *frame.Frame) (*model.Metrics, error) {
	if testData == nil || testData.NumCols() == 0 {
		return nil, errors.NewValueError(op, "must specify test data")
	}

	tmp, err := frame.SendTemp(ctx, b.conn, testData)
	if err != nil {
		return nil, err
	}
	defer tmp.Remove(context.WithoutCancel(ctx))

	var resp model.ScoreResponse
	if err := b.conn.Post(ctx, rest.Predictions(b.modelKey, tmp.Key()), nil, &resp); err != nil {
		return nil, err
	}
	return resp.FirstMetrics()
}
