package estimator

import (
	"fmt"
	"strings"

	"github.com/letsflykite/h2o-dev/pkg/errors"
)

type columnKind int

const (
	columnUnset columnKind = iota
	columnByName
	columnByIndex
)

// Column references a frame column either by name or by zero-based index.
// The zero value is unset, which for a target means unsupervised training.
type Column struct {
	kind  columnKind
	name  string
	index int
}

// ByName references a column by its label.
func ByName(name string) Column {
	return Column{kind: columnByName, name: name}
}

// ByIndex references a column by zero-based position.
func ByIndex(i int) Column {
	return Column{kind: columnByIndex, index: i}
}

// Cols builds a feature list from column names.
func Cols(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = ByName(n)
	}
	return out
}

// ColIndexes builds a feature list from zero-based positions.
func ColIndexes(indexes ...int) []Column {
	out := make([]Column, len(indexes))
	for i, idx := range indexes {
		out[i] = ByIndex(idx)
	}
	return out
}

// IsSet reports whether the reference points at anything.
func (c Column) IsSet() bool { return c.kind != columnUnset }

func (c Column) String() string {
	switch c.kind {
	case columnByName:
		return c.name
	case columnByIndex:
		return fmt.Sprintf("#%d", c.index)
	default:
		return "<unset>"
	}
}

// resolveName converts the reference to a concrete column name against the
// dataset's name sequence. Index references out of range are argument errors.
func (c Column) resolveName(names []string) (string, error) {
	switch c.kind {
	case columnByName:
		return c.name, nil
	case columnByIndex:
		if c.index < 0 || c.index >= len(names) {
			return "", errors.NewValueError("resolve column",
				fmt.Sprintf("index %d out of range for %d columns", c.index, len(names)))
		}
		return names[c.index], nil
	default:
		return "", errors.NewValueError("resolve column", "column reference is unset")
	}
}

// resolveFeatureNames converts feature references to names and checks that
// every one is actually a column of the dataset.
func resolveFeatureNames(x []Column, names []string) ([]string, error) {
	resolved := make([]string, len(x))
	for i, col := range x {
		name, err := col.resolveName(names)
		if err != nil {
			return nil, err
		}
		resolved[i] = name
	}

	for _, name := range resolved {
		if !containsName(names, name) {
			return nil, errors.NewValueError("fit",
				fmt.Sprintf("%q must be a column in the training frame (columns: %s)",
					name, strings.Join(names, ", ")))
		}
	}
	return resolved, nil
}

// ignoredColumns derives the columns excluded from training: every dataset
// column that is neither a feature nor the target, in dataset order. The
// list is sent to the server so training is restricted to the intended
// columns.
func ignoredColumns(names, x []string, y string) []string {
	ignored := make([]string, 0, len(names))
	for _, name := range names {
		if name == y || containsName(x, name) {
			continue
		}
		ignored = append(ignored, name)
	}
	return ignored
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
