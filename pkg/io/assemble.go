package io

import (
	"fmt"
	"math/rand"

	"github.com/nlpodyssey/spago/pkg/mat"

	"loom/pkg/model"
)

// Assembled is a single concatenated dataset holding train and validation
// rows with explicit, disjoint index partitions over its frame.
type Assembled struct {
	Frame  *Frame
	Labels *Column

	TrainIndices []int
	ValIndices   []int

	// RefitFull marks a dataset whose validation partition is an alias of
	// the training data, present only to satisfy the trainer's split
	// requirement. Such a partition must never drive early stopping.
	RefitFull bool
}

// Assemble concatenates train and validation data into one frame. Train rows
// occupy indices [0, nTrain), validation rows [nTrain, nTrain+nVal), and the
// label columns are concatenated under a single label column name.
func Assemble(x *Frame, y *Column, xVal *Frame, yVal *Column) (*Assembled, error) {
	if err := checkLabels(x, y); err != nil {
		return nil, err
	}
	if err := checkLabels(xVal, yVal); err != nil {
		return nil, err
	}
	frame, err := Concat(x, xVal)
	if err != nil {
		return nil, fmt.Errorf("error assembling dataset: %w", err)
	}
	labels := y.Clone()
	labels.Name = model.LabelColumn
	if err := labels.append(yVal); err != nil {
		return nil, fmt.Errorf("error assembling labels: %w", err)
	}
	return &Assembled{
		Frame:        frame,
		Labels:       labels,
		TrainIndices: indexRange(0, x.NumRows()),
		ValIndices:   indexRange(x.NumRows(), x.NumRows()+xVal.NumRows()),
	}, nil
}

// AssembleForRefit builds the dataset for refitting on all available data:
// the frame holds two identical copies of the training rows, the train
// indices cover the first copy and the validation indices the second.
func AssembleForRefit(x *Frame, y *Column) (*Assembled, error) {
	assembled, err := Assemble(x, y, x, y)
	if err != nil {
		return nil, err
	}
	assembled.RefitFull = true
	return assembled, nil
}

func checkLabels(x *Frame, y *Column) error {
	if x.NumRows() != y.Len() {
		return fmt.Errorf("feature frame has %d rows, labels have %d", x.NumRows(), y.Len())
	}
	return nil
}

func indexRange(start, end int) []int {
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return indices
}

// Example is one encoded training or validation row: the continuous feature
// vector, the embedding-table rows of the categorical features, and the
// encoded target.
type Example struct {
	Continuous  mat.Matrix
	Categorical []int
	Target      float64
}

type Batch []*Example

// Examples encodes the rows selected by indices against the fitted schema.
// Classification targets become class indexes; regression targets go through
// the scaler when one is present.
func (a *Assembled) Examples(s *model.Schema, problem model.ProblemType, scaler *model.TargetScaler, indices []int) ([]*Example, error) {
	examples := make([]*Example, 0, len(indices))
	for _, row := range indices {
		example, err := encodeRow(a.Frame, s, row)
		if err != nil {
			return nil, err
		}
		target, err := encodeTarget(a.Labels, s, problem, scaler, row)
		if err != nil {
			return nil, err
		}
		example.Target = target
		examples = append(examples, example)
	}
	return examples, nil
}

// InferenceExamples encodes every row of a preprocessed frame, without
// targets.
func InferenceExamples(f *Frame, s *model.Schema) ([]*Example, error) {
	examples := make([]*Example, 0, f.NumRows())
	for row := 0; row < f.NumRows(); row++ {
		example, err := encodeRow(f, s, row)
		if err != nil {
			return nil, err
		}
		examples = append(examples, example)
	}
	return examples, nil
}

func encodeRow(f *Frame, s *model.Schema, row int) (*Example, error) {
	continuous := mat.NewEmptyVecDense(len(s.ContinuousFeatures))
	for i, name := range s.ContinuousFeatures {
		col, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		continuous.Set(i, 0, col.Floats[row])
	}
	categorical := make([]int, 0, len(s.CategoricalFeatures))
	for _, name := range s.CategoricalFeatures {
		col, ok := f.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		categorical = append(categorical, s.EmbeddingIndex(name, col.Strings[row]))
	}
	return &Example{Continuous: continuous, Categorical: categorical}, nil
}

func encodeTarget(labels *Column, s *model.Schema, problem model.ProblemType, scaler *model.TargetScaler, row int) (float64, error) {
	if problem.IsClassification() {
		value := labels.Strings[row]
		index, ok := s.TargetMap.ContainsName(value)
		if !ok {
			return 0, fmt.Errorf("unknown target value %q", value)
		}
		return float64(index), nil
	}
	value := labels.Floats[row]
	if scaler != nil {
		value = scaler.Transform(value)
	}
	return value, nil
}

// Batches splits examples into batches of at most batchSize rows. A non-nil
// random source shuffles the example order first.
func Batches(examples []*Example, batchSize int, rnd *rand.Rand) []Batch {
	order := make([]int, len(examples))
	for i := range order {
		order[i] = i
	}
	if rnd != nil {
		rnd.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	var batches []Batch
	current := make(Batch, 0, batchSize)
	for _, i := range order {
		current = append(current, examples[i])
		if len(current) == batchSize {
			batches = append(batches, current)
			current = make(Batch, 0, batchSize)
		}
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
