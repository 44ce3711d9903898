package estimator

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/letsflykite/h2o-dev/pkg/errors"
	"github.com/letsflykite/h2o-dev/rest"
)

// infSentinel stands in for ±Inf in outgoing parameters: the server's JSON
// parser cannot read infinity, so the largest representable integer is sent
// instead.
const infSentinel = int64(math.MaxInt64)

// Params is an explicit, insertion-ordered bag of request parameters: string
// keys mapping to scalar or list values. It replaces attribute introspection
// with an enumerated configuration surface.
type Params struct {
	keys   []string
	values map[string]interface{}
}

// NewParams creates an empty parameter bag.
func NewParams() *Params {
	return &Params{values: make(map[string]interface{})}
}

// Set stores a value under name, keeping first-set ordering.
func (p *Params) Set(name string, value interface{}) *Params {
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = value
	return p
}

// SetInt stores an integer parameter.
func (p *Params) SetInt(name string, value int) *Params {
	return p.Set(name, value)
}

// SetFloat stores a float parameter.
func (p *Params) SetFloat(name string, value float64) *Params {
	return p.Set(name, value)
}

// SetBool stores a boolean parameter.
func (p *Params) SetBool(name string, value bool) *Params {
	return p.Set(name, value)
}

// SetString stores a string parameter.
func (p *Params) SetString(name, value string) *Params {
	return p.Set(name, value)
}

// SetStrings stores a list-of-strings parameter.
func (p *Params) SetStrings(name string, values []string) *Params {
	return p.Set(name, values)
}

// SetFloats stores a list-of-floats parameter.
func (p *Params) SetFloats(name string, values []float64) *Params {
	return p.Set(name, values)
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (interface{}, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Del removes name from the bag.
func (p *Params) Del(name string) {
	if _, ok := p.values[name]; !ok {
		return
	}
	delete(p.values, name)
	for i, k := range p.keys {
		if k == name {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of stored parameters.
func (p *Params) Len() int { return len(p.values) }

// Keys returns the parameter names in insertion order.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Map returns a copy of the bag as a plain map.
func (p *Params) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Snapshot deep-copies the bag so a later restore cannot observe mutations
// made in between. List values are copied, not aliased.
func (p *Params) Snapshot() *Params {
	out := &Params{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]interface{}, len(p.values)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	case []float64:
		out := make([]float64, len(x))
		copy(out, x)
		return out
	case []int:
		out := make([]int, len(x))
		copy(out, x)
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	default:
		return x
	}
}

// sanitized returns a deep copy of the bag with every ±Inf float, scalar or
// list element, replaced by the integer sentinel. Runs before any request is
// built.
func (p *Params) sanitized() *Params {
	out := p.Snapshot()
	for k, v := range out.values {
		out.values[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case float64:
		if math.IsInf(x, 0) {
			return infSentinel
		}
	case float32:
		if math.IsInf(float64(x), 0) {
			return infSentinel
		}
	case []float64:
		for _, e := range x {
			if math.IsInf(e, 0) {
				out := make([]interface{}, len(x))
				for i, f := range x {
					out[i] = sanitizeValue(f)
				}
				return out
			}
		}
	case []interface{}:
		for i, e := range x {
			x[i] = sanitizeValue(e)
		}
	}
	return v
}

// schemaResponse is the wire shape of the parameter-schema fetch: per-algo
// parameter descriptors carrying names and default values.
type schemaResponse struct {
	ModelBuilders map[string]struct {
		Parameters []struct {
			Name         string      `json:"name"`
			DefaultValue interface{} `json:"default_value"`
		} `json:"parameters"`
	} `json:"model_builders"`
}

// fetchSchema asks the server which parameters algo declares and what their
// defaults are. The returned map is the exact key set the training endpoint
// accepts.
func fetchSchema(ctx context.Context, conn *rest.Connection, algo string) (map[string]interface{}, error) {
	var resp schemaResponse
	if err := conn.Get(ctx, rest.ModelBuilders(algo), nil, &resp); err != nil {
		return nil, err
	}
	builder, ok := resp.ModelBuilders[algo]
	if !ok {
		return nil, errors.Newf("h2o: server declared no builder for algo %q", algo)
	}

	defaults := make(map[string]interface{}, len(builder.Parameters))
	for _, param := range builder.Parameters {
		defaults[param.Name] = param.DefaultValue
	}
	return defaults, nil
}

// foldParams overlays user-supplied values onto the server's default schema.
// User keys the server does not declare are dropped; any folded key whose
// value is nil is omitted entirely. The result is the exact request body the
// training endpoint expects.
func foldParams(defaults map[string]interface{}, user *Params) map[string]interface{} {
	folded := make(map[string]interface{}, len(defaults))
	for name, value := range defaults {
		folded[name] = value
	}
	for _, name := range user.Keys() {
		if _, declared := folded[name]; declared {
			folded[name], _ = user.Get(name)
		}
	}
	for name, value := range folded {
		if value == nil {
			delete(folded, name)
		}
	}
	return folded
}

// renderForm encodes a folded parameter set as the submission form body.
func renderForm(folded map[string]interface{}) url.Values {
	form := url.Values{}
	for name, value := range folded {
		form.Set(name, renderValue(value))
	}
	return form
}

// renderValue stringifies one parameter value. Lists use the server's
// bracket literal, e.g. [a,b,c].
func renderValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []string:
		return "[" + strings.Join(x, ",") + "]"
	case []int:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.Itoa(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []float64:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.FormatFloat(e, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = renderValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}
