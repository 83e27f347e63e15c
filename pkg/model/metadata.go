package model

import "fmt"

// LabelColumn is the name under which train and validation targets are
// concatenated in an assembled dataset.
const LabelColumn = "__label__"

// MissingCategory is the sentinel category appended to every categorical
// feature to represent missing values.
const MissingCategory = "__missing__"

// NameMap implements a bidirectional mapping between a name and an index
type NameMap struct {
	NameToIndex map[string]int
	IndexToName map[int]string
}

func NewNameMap() NameMap {
	return NameMap{
		NameToIndex: map[string]int{},
		IndexToName: map[int]string{},
	}
}

func (f NameMap) Set(name string, index int) {
	f.NameToIndex[name] = index
	f.IndexToName[index] = name
}

func (f NameMap) Size() int {
	return len(f.IndexToName)
}

func (f NameMap) ContainsName(name string) (int, bool) {
	index, ok := f.NameToIndex[name]
	return index, ok
}

// Add inserts name at the next free index if absent and returns its index.
func (f NameMap) Add(name string) int {
	if index, ok := f.NameToIndex[name]; ok {
		return index
	}
	index := f.Size()
	f.Set(name, index)
	return index
}

// ProblemType enumerates the prediction problems the model distinguishes.
// Anything that is not binary classification or regression is treated as
// multiclass classification.
type ProblemType int

const (
	Binary ProblemType = iota
	Multiclass
	Regression
)

func (p ProblemType) String() string {
	switch p {
	case Binary:
		return "binary"
	case Multiclass:
		return "multiclass"
	case Regression:
		return "regression"
	}
	return "unknown"
}

func ParseProblemType(name string) (ProblemType, error) {
	switch name {
	case "binary":
		return Binary, nil
	case "multiclass":
		return Multiclass, nil
	case "regression":
		return Regression, nil
	}
	return Multiclass, fmt.Errorf("unknown problem type %q", name)
}

func (p ProblemType) IsClassification() bool {
	return p != Regression
}

// Schema is the fitted feature schema: which columns are retained, how they
// are typed, and the fill values computed on the training set. It is built
// once at fit time and never mutated afterwards.
type Schema struct {
	// CategoricalFeatures and ContinuousFeatures list the retained columns.
	// Their concatenation, categorical first, is the inner feature order used
	// everywhere downstream.
	CategoricalFeatures []string
	ContinuousFeatures  []string

	// CategoryValues holds, per categorical feature, the mapping from raw
	// category value to its local index. The sentinel MissingCategory is
	// always present.
	CategoryValues map[string]NameMap

	// EmbeddingOffsets maps a categorical feature to the offset of its first
	// row in the flat embedding table; NumEmbeddings is the table size.
	EmbeddingOffsets map[string]int
	NumEmbeddings    int

	// ContinuousFills maps a continuous feature to its training-set mean.
	ContinuousFills map[string]float64

	// TargetColumn is the name of the label column in the raw data.
	// TargetMap maps class names to class indexes for classification.
	TargetColumn string
	TargetMap    NameMap
}

// Features returns the retained columns in inner feature order.
func (s *Schema) Features() []string {
	features := make([]string, 0, len(s.CategoricalFeatures)+len(s.ContinuousFeatures))
	features = append(features, s.CategoricalFeatures...)
	features = append(features, s.ContinuousFeatures...)
	return features
}

// EmbeddingIndex resolves a raw category value of the given feature to its
// row in the flat embedding table. Values never seen at fit time resolve to
// the sentinel category.
func (s *Schema) EmbeddingIndex(feature, value string) int {
	values := s.CategoryValues[feature]
	index, ok := values.ContainsName(value)
	if !ok {
		index, _ = values.ContainsName(MissingCategory)
	}
	return s.EmbeddingOffsets[feature] + index
}

// Validate checks the schema invariants: every retained categorical feature
// has a category set containing the sentinel, and every retained continuous
// feature has exactly one fill value.
func (s *Schema) Validate() error {
	for _, feature := range s.CategoricalFeatures {
		values, ok := s.CategoryValues[feature]
		if !ok {
			return fmt.Errorf("categorical feature %s has no category set", feature)
		}
		if _, ok := values.ContainsName(MissingCategory); !ok {
			return fmt.Errorf("categorical feature %s has no missing-value sentinel", feature)
		}
		if _, ok := s.EmbeddingOffsets[feature]; !ok {
			return fmt.Errorf("categorical feature %s has no embedding offset", feature)
		}
	}
	for _, feature := range s.ContinuousFeatures {
		if _, ok := s.ContinuousFills[feature]; !ok {
			return fmt.Errorf("continuous feature %s has no fill value", feature)
		}
	}
	return nil
}
