// Package model holds the result variants produced by a completed training
// job.
//
// A fitted model is one of four mutually exclusive kinds, chosen by the
// model_category string the server stamps on the job output. Each variant is
// an opaque container over the server's raw output block; typed accessors
// surface the handful of fields callers routinely need and report whether
// the server included them.
package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/letsflykite/h2o-dev/pkg/errors"
)

// Category classifies a completed model's output shape.
type Category string

// The four categories the server reports. Anything else is rejected with an
// UnknownModelError at dispatch time.
const (
	Binomial    Category = "Binomial"
	Multinomial Category = "Multinomial"
	Clustering  Category = "Clustering"
	Regression  Category = "Regression"
)

// Output is the server-reported output block of a fitted model: the common
// fields every category carries, plus the raw JSON object for
// algorithm-specific ones.
type Output struct {
	Category Category
	Names    []string
	Domains  [][]string
	Raw      map[string]interface{}
}

// ParseOutput decodes a models[0].output JSON block.
func ParseOutput(data []byte) (Output, error) {
	var head struct {
		ModelCategory string     `json:"model_category"`
		Names         []string   `json:"names"`
		Domains       [][]string `json:"domains"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Output{}, errors.Wrap(err, "decoding model output")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Output{}, errors.Wrap(err, "decoding model output")
	}

	return Output{
		Category: Category(head.ModelCategory),
		Names:    head.Names,
		Domains:  head.Domains,
		Raw:      raw,
	}, nil
}

// metricFloat probes the training metrics block, then the top level, for a
// numeric field.
func (o Output) metricFloat(name string) (float64, bool) {
	if tm, ok := o.Raw["training_metrics"].(map[string]interface{}); ok {
		if v, ok := toFloat(tm[name]); ok {
			return v, true
		}
	}
	if v, ok := toFloat(o.Raw[name]); ok {
		return v, true
	}
	return 0, false
}

// metricValue probes the training metrics block, then the top level, for an
// arbitrary field.
func (o Output) metricValue(name string) (interface{}, bool) {
	if tm, ok := o.Raw["training_metrics"].(map[string]interface{}); ok {
		if v, ok := tm[name]; ok && v != nil {
			return v, true
		}
	}
	v, ok := o.Raw[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func toFloat(v interface{}) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// Model is a fitted result: created only after a successful job, immutable
// thereafter except for the stamped identifying key. The interface is sealed
// so the set of variants is exactly the four categories.
type Model interface {
	// Key returns the destination key the model is stored under.
	Key() string
	// Algo returns the short name of the remote training method.
	Algo() string
	// Category returns the server-reported model category.
	Category() Category
	// Output returns the full output block.
	Output() Output
	// Summary returns a short human-readable description.
	Summary() string

	isModel()
}

// base carries the state shared by all variants.
type base struct {
	key  string
	algo string
	out  Output
}

func (b *base) Key() string        { return b.key }
func (b *base) Algo() string       { return b.algo }
func (b *base) Category() Category { return b.out.Category }
func (b *base) Output() Output     { return b.out }
func (b *base) isModel()           {}

func (b *base) describe() string {
	return fmt.Sprintf("%s %s model (key: %s)", b.algo, strings.ToLower(string(b.out.Category)), b.key)
}

// FromOutput dispatches strictly on the output's category string and builds
// the matching variant, stamped with the destination key.
func FromOutput(key, algo string, out Output) (Model, error) {
	b := base{key: key, algo: algo, out: out}
	switch out.Category {
	case Binomial:
		return &BinomialModel{base: b}, nil
	case Multinomial:
		return &MultinomialModel{base: b}, nil
	case Clustering:
		return &ClusteringModel{base: b}, nil
	case Regression:
		return &RegressionModel{base: b}, nil
	default:
		return nil, errors.NewUnknownModelError(string(out.Category), algo)
	}
}

// BinomialModel is a fitted two-class classifier.
type BinomialModel struct {
	base
}

// MSE reports the training mean squared error when the server included it.
func (m *BinomialModel) MSE() (float64, bool) {
	return m.out.metricFloat("mse")
}

// AUC reports the training area under the ROC curve when the server included
// it. Depending on the server build the field is either a bare number or an
// object carrying an "AUC" member.
func (m *BinomialModel) AUC() (float64, bool) {
	v, ok := m.out.metricValue("auc")
	if !ok {
		return 0, false
	}
	switch auc := v.(type) {
	case float64:
		return auc, true
	case map[string]interface{}:
		return toFloat(auc["AUC"])
	default:
		return 0, false
	}
}

// ConfusionMatrix returns the training confusion matrix as a dense gonum
// matrix, with the class domain as labels.
func (m *BinomialModel) ConfusionMatrix() (*mat.Dense, []string, bool) {
	return confusionMatrix(m.out)
}

func (m *BinomialModel) Summary() string {
	s := m.describe()
	if auc, ok := m.AUC(); ok {
		s += fmt.Sprintf(", auc: %.6g", auc)
	}
	if mse, ok := m.MSE(); ok {
		s += fmt.Sprintf(", mse: %.6g", mse)
	}
	return s
}

// MultinomialModel is a fitted multi-class classifier.
type MultinomialModel struct {
	base
}

// MSE reports the training mean squared error when the server included it.
func (m *MultinomialModel) MSE() (float64, bool) {
	return m.out.metricFloat("mse")
}

// HitRatios reports the top-k hit ratio sequence when the server included it.
func (m *MultinomialModel) HitRatios() ([]float64, bool) {
	v, ok := m.out.metricValue("hit_ratios")
	if !ok {
		return nil, false
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(arr))
	for _, e := range arr {
		f, ok := toFloat(e)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// ConfusionMatrix returns the training confusion matrix as a dense gonum
// matrix, with the class domain as labels.
func (m *MultinomialModel) ConfusionMatrix() (*mat.Dense, []string, bool) {
	return confusionMatrix(m.out)
}

func (m *MultinomialModel) Summary() string {
	s := m.describe()
	if mse, ok := m.MSE(); ok {
		s += fmt.Sprintf(", mse: %.6g", mse)
	}
	return s
}

// ClusteringModel is a fitted unsupervised clustering model.
type ClusteringModel struct {
	base
}

// WithinMSE reports the within-cluster mean squared error when the server
// included it.
func (m *ClusteringModel) WithinMSE() (float64, bool) {
	if v, ok := m.out.metricFloat("within_mse"); ok {
		return v, true
	}
	return m.out.metricFloat("avg_within_ss")
}

// Centers returns the cluster centers as a dense gonum matrix, one row per
// cluster. The server reports them either as a bare number table or wrapped
// in a {"data": ...} table object.
func (m *ClusteringModel) Centers() (*mat.Dense, bool) {
	v, ok := m.out.metricValue("centers")
	if !ok {
		return nil, false
	}
	if wrapped, ok := v.(map[string]interface{}); ok {
		v = wrapped["data"]
	}
	return toDense(v)
}

func (m *ClusteringModel) Summary() string {
	s := m.describe()
	if wmse, ok := m.WithinMSE(); ok {
		s += fmt.Sprintf(", within mse: %.6g", wmse)
	}
	if centers, ok := m.Centers(); ok {
		k, _ := centers.Dims()
		s += fmt.Sprintf(", clusters: %d", k)
	}
	return s
}

// RegressionModel is a fitted numeric-response model.
type RegressionModel struct {
	base
}

// MSE reports the training mean squared error when the server included it.
func (m *RegressionModel) MSE() (float64, bool) {
	return m.out.metricFloat("mse")
}

func (m *RegressionModel) Summary() string {
	s := m.describe()
	if mse, ok := m.MSE(); ok {
		s += fmt.Sprintf(", mse: %.6g", mse)
	}
	return s
}

// confusionMatrix extracts a {"cm": {"arr": [[...]], "domain": [...]}} block.
func confusionMatrix(out Output) (*mat.Dense, []string, bool) {
	v, ok := out.metricValue("cm")
	if !ok {
		return nil, nil, false
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil, false
	}

	dense, ok := toDense(cm["arr"])
	if !ok {
		return nil, nil, false
	}

	var domain []string
	if arr, ok := cm["domain"].([]interface{}); ok {
		for _, e := range arr {
			if s, ok := e.(string); ok {
				domain = append(domain, s)
			}
		}
	}
	return dense, domain, true
}

// toDense converts a decoded JSON [][]number into a gonum matrix. Rows must
// be non-empty and of equal length.
func toDense(v interface{}) (*mat.Dense, bool) {
	rows, ok := v.([]interface{})
	if !ok || len(rows) == 0 {
		return nil, false
	}

	var data []float64
	cols := -1
	for _, r := range rows {
		row, ok := r.([]interface{})
		if !ok {
			return nil, false
		}
		if cols == -1 {
			cols = len(row)
			if cols == 0 {
				return nil, false
			}
			data = make([]float64, 0, len(rows)*cols)
		} else if len(row) != cols {
			return nil, false
		}
		for _, e := range row {
			f, ok := toFloat(e)
			if !ok {
				return nil, false
			}
			data = append(data, f)
		}
	}
	return mat.NewDense(len(rows), cols, data), true
}
