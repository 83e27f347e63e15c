package pkg

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"loom/pkg/model"
)

// Hyperparameters are the tunable training settings. Defaults come from
// DefaultHyperparameters; a TOML file and CLI flags may override them.
type Hyperparameters struct {
	// Layers overrides the heuristic hidden layer sizes when non-empty.
	Layers []int `toml:"layers"`

	BatchSize    int     `toml:"batch_size"`
	LearningRate float64 `toml:"learning_rate"`
	Epochs       int     `toml:"epochs"`

	Patience int     `toml:"patience"`
	MinDelta float64 `toml:"min_delta"`

	Dropout          float64 `toml:"dropout"`
	EmbeddingDropout float64 `toml:"embedding_dropout"`
	EmbeddingSize    int     `toml:"embedding_size"`

	MaxUniqueCategoricalValues int `toml:"max_unique_categorical_values"`

	// ScaleTarget standardizes regression targets during training. The
	// training-time metric is then computed on the scaled targets; reported
	// predictions are always inverse-transformed.
	ScaleTarget bool `toml:"scale_target"`
}

func DefaultHyperparameters(problem model.ProblemType) Hyperparameters {
	return Hyperparameters{
		BatchSize:                  256,
		LearningRate:               0.01,
		Epochs:                     30,
		Patience:                   10,
		MinDelta:                   0.0001,
		Dropout:                    0.1,
		EmbeddingDropout:           0.1,
		EmbeddingSize:              8,
		MaxUniqueCategoricalValues: 10000,
		ScaleTarget:                problem == model.Regression,
	}
}

// LoadFile overlays settings from a TOML file onto the receiver; settings
// absent from the file keep their current value.
func (h *Hyperparameters) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading hyperparameter file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, h); err != nil {
		return fmt.Errorf("error parsing hyperparameter file %s: %w", path, err)
	}
	return nil
}

// effectiveBatchSize shrinks the batch size for datasets smaller than one
// batch.
func (h Hyperparameters) effectiveBatchSize(numRows int) int {
	if numRows > h.BatchSize {
		return h.BatchSize
	}
	return 32
}
