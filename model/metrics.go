package model

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"

	"github.com/letsflykite/h2o-dev/pkg/errors"
)

// AUC is the area-under-curve block of a binomial scoring run. Alongside the
// scalar AUC and Gini the server reports per-threshold arrays; recall and
// specificity together trace the ROC curve.
type AUC struct {
	Value       float64   `json:"AUC"`
	Gini        float64   `json:"Gini"`
	Thresholds  []float64 `json:"thresholds"`
	Recall      []float64 `json:"recall"`
	Specificity []float64 `json:"specificity"`
}

// ROC returns the operating points of the scoring run as parallel
// false-positive-rate and true-positive-rate slices, one point per threshold.
// It returns false when the server omitted the per-threshold arrays or their
// lengths disagree.
func (a *AUC) ROC() (fpr, tpr []float64, ok bool) {
	if a == nil || len(a.Recall) == 0 || len(a.Recall) != len(a.Specificity) {
		return nil, nil, false
	}
	fpr = make([]float64, len(a.Specificity))
	tpr = make([]float64, len(a.Recall))
	for i := range a.Recall {
		fpr[i] = 1 - a.Specificity[i]
		tpr[i] = a.Recall[i]
	}
	return fpr, tpr, true
}

// ConfusionMatrix is the error table of a classification scoring run.
type ConfusionMatrix struct {
	Domain []string    `json:"domain"`
	Arr    [][]float64 `json:"arr"`
}

// Dense converts the table into a gonum matrix, or nil when empty.
func (c *ConfusionMatrix) Dense() *mat.Dense {
	if c == nil || len(c.Arr) == 0 || len(c.Arr[0]) == 0 {
		return nil
	}
	rows, cols := len(c.Arr), len(c.Arr[0])
	data := make([]float64, 0, rows*cols)
	for _, row := range c.Arr {
		if len(row) != cols {
			return nil
		}
		data = append(data, row...)
	}
	return mat.NewDense(rows, cols, data)
}

// Metrics is one scoring record as reported by the metrics endpoints: the
// mean squared error every category carries, the optional binomial AUC block,
// the optional classification confusion matrix, and a reference to the frame
// of per-row predictions the run produced.
type Metrics struct {
	MSE             float64
	AUC             *AUC
	ConfusionMatrix *ConfusionMatrix
	PredictionsKey  string
	Raw             map[string]interface{}
}

// metricsRecord is the wire shape of one model_metrics entry.
type metricsRecord struct {
	MSE         float64          `json:"mse"`
	AUC         *AUC             `json:"auc"`
	CM          *ConfusionMatrix `json:"cm"`
	Predictions struct {
		Key struct {
			Name string `json:"name"`
		} `json:"key"`
	} `json:"predictions"`
}

// ScoreResponse is the payload of the blocking scoring call against a fitted
// model, carrying one metrics record per run.
type ScoreResponse struct {
	ModelMetrics []json.RawMessage `json:"model_metrics"`
}

// FirstMetrics parses the first metrics record of the response.
func (r *ScoreResponse) FirstMetrics() (*Metrics, error) {
	if len(r.ModelMetrics) == 0 {
		return nil, errors.New("h2o: scoring response carried no metrics record")
	}

	var rec metricsRecord
	if err := json.Unmarshal(r.ModelMetrics[0], &rec); err != nil {
		return nil, errors.Wrap(err, "decoding metrics record")
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(r.ModelMetrics[0], &raw); err != nil {
		return nil, errors.Wrap(err, "decoding metrics record")
	}

	return &Metrics{
		MSE:             rec.MSE,
		AUC:             rec.AUC,
		ConfusionMatrix: rec.CM,
		PredictionsKey:  rec.Predictions.Key.Name,
		Raw:             raw,
	}, nil
}
