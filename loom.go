package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"loom/pkg"
	"loom/pkg/model"
)

func TrainCommand() *cobra.Command {

	var trainFile string
	var validationFile string
	var outputDir string
	var paramsFile string
	var trainingParams pkg.TrainingParameters
	var timeLimit time.Duration
	var hp hyperparameterFlags

	var cmd = &cobra.Command{
		Use:   "train -i trainData -o outputDir -t targetColumn",
		Short: "Trains a new model on the provided training data and saves the trained model",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			problem, err := model.ParseProblemType(trainingParams.ProblemType)
			if err != nil {
				return err
			}
			hyperparameters := pkg.DefaultHyperparameters(problem)
			if paramsFile != "" {
				if err := hyperparameters.LoadFile(paramsFile); err != nil {
					return err
				}
			}
			hp.apply(cmd, &hyperparameters)
			trainingParams.TimeLimit = timeLimit
			return pkg.Train(trainFile, validationFile, outputDir, trainingParams, hyperparameters)
		},
	}

	cmd.Flags().StringVarP(&trainFile, "train-file", "i", "", "name of train file")
	cmd.Flags().StringVarP(&validationFile, "validation-file", "", "", "name of validation file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory to save the model to")
	cmd.Flags().StringVarP(&paramsFile, "params-file", "p", "", "TOML file with hyperparameter overrides")

	cmd.Flags().StringVarP(&trainingParams.TargetColumn, "target-column", "t", "", "target column")
	cmd.Flags().StringVarP(&trainingParams.ProblemType, "problem-type", "y", "multiclass", "problem type: binary, multiclass or regression")
	cmd.Flags().StringVarP(&trainingParams.ModelName, "model-name", "m", "model", "name used to scope checkpoint files")
	cmd.Flags().StringSliceVarP(&trainingParams.CategoricalColumns, "categorical-columns", "", nil, "list of columns holding categorical data")
	cmd.Flags().StringSliceVarP(&trainingParams.DatetimeColumns, "datetime-columns", "", nil, "list of columns holding datetime data")
	cmd.Flags().StringVarP(&trainingParams.StoppingMetric, "stopping-metric", "", "", "metric monitored for early stopping")
	cmd.Flags().DurationVarP(&timeLimit, "time-limit", "", 0, "wall-clock training budget, e.g. 10m (0 disables)")
	cmd.Flags().IntVarP(&trainingParams.BestEpochStop, "best-epoch", "", -1, "halt exactly at this epoch, for refit-full replication (-1 disables)")
	cmd.Flags().BoolVarP(&trainingParams.RefitFull, "refit-full", "", false, "train on all data, aliasing the validation split")
	cmd.Flags().Uint64VarP(&trainingParams.RndSeed, "random-seed", "x", 42, "random seed")
	cmd.Flags().IntVarP(&trainingParams.ReportInterval, "report-interval", "r", 10, "loss report interval")

	hp.register(cmd)

	_ = cmd.MarkFlagRequired("train-file")
	_ = cmd.MarkFlagRequired("output-dir")
	_ = cmd.MarkFlagRequired("target-column")

	return cmd
}

// hyperparameterFlags overlays CLI values on top of the problem-type
// defaults and any TOML overrides, but only for flags the user actually set.
type hyperparameterFlags struct {
	layers       []int
	batchSize    int
	learningRate float64
	epochs       int
	patience     int
	minDelta     float64
	dropout      float64
	embDropout   float64
	embSize      int
	maxUnique    int
	scaleTarget  bool
}

func (h *hyperparameterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVarP(&h.layers, "layers", "", nil, "hidden layer sizes (default: sized by heuristics)")
	cmd.Flags().IntVarP(&h.batchSize, "batch-size", "b", 256, "batch size")
	cmd.Flags().Float64VarP(&h.learningRate, "learning-rate", "l", 0.01, "learning rate")
	cmd.Flags().IntVarP(&h.epochs, "num-epochs", "n", 30, "maximum number of epochs to train")
	cmd.Flags().IntVarP(&h.patience, "patience", "", 10, "epochs without improvement before early stopping")
	cmd.Flags().Float64VarP(&h.minDelta, "min-delta", "", 0.0001, "minimum metric change counting as improvement")
	cmd.Flags().Float64VarP(&h.dropout, "dropout", "", 0.1, "dropout probability of the hidden layers")
	cmd.Flags().Float64VarP(&h.embDropout, "embedding-dropout", "", 0.1, "dropout probability of the categorical embeddings")
	cmd.Flags().IntVarP(&h.embSize, "embedding-size", "c", 8, "size of categorical embeddings")
	cmd.Flags().IntVarP(&h.maxUnique, "max-unique-categorical-values", "", 10000, "cardinality above which a categorical column is dropped")
	cmd.Flags().BoolVarP(&h.scaleTarget, "scale-target", "", false, "standardize regression targets during training")
}

func (h *hyperparameterFlags) apply(cmd *cobra.Command, hp *pkg.Hyperparameters) {
	if cmd.Flags().Changed("layers") {
		hp.Layers = h.layers
	}
	if cmd.Flags().Changed("batch-size") {
		hp.BatchSize = h.batchSize
	}
	if cmd.Flags().Changed("learning-rate") {
		hp.LearningRate = h.learningRate
	}
	if cmd.Flags().Changed("num-epochs") {
		hp.Epochs = h.epochs
	}
	if cmd.Flags().Changed("patience") {
		hp.Patience = h.patience
	}
	if cmd.Flags().Changed("min-delta") {
		hp.MinDelta = h.minDelta
	}
	if cmd.Flags().Changed("dropout") {
		hp.Dropout = h.dropout
	}
	if cmd.Flags().Changed("embedding-dropout") {
		hp.EmbeddingDropout = h.embDropout
	}
	if cmd.Flags().Changed("embedding-size") {
		hp.EmbeddingSize = h.embSize
	}
	if cmd.Flags().Changed("max-unique-categorical-values") {
		hp.MaxUniqueCategoricalValues = h.maxUnique
	}
	if cmd.Flags().Changed("scale-target") {
		hp.ScaleTarget = h.scaleTarget
	}
}

func PredictCommand() *cobra.Command {
	var modelDir string
	var inputFile string
	var outputFile string

	var cmd = &cobra.Command{
		Use:   "predict -m modelDir -i inputFile [-o outputFile]",
		Short: "Runs the provided model on the specified data input and optionally writes the predictions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pkg.PredictFile(modelDir, inputFile, outputFile)
		},
	}

	cmd.Flags().StringVarP(&modelDir, "model", "m", "", "directory of the model to run")
	cmd.Flags().StringVarP(&inputFile, "input", "i", "", "name of data input file")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "name of output file (optional)")

	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

var logLevel string
var logFormat string

func main() {

	Main := &cobra.Command{Use: "loom", PersistentPreRun: setupLogging}

	Main.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	Main.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")

	Main.AddCommand(TrainCommand())
	Main.AddCommand(PredictCommand())

	if err := Main.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) {

	switch logLevel {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		panic("Invalid logging level specified")
	}

	switch logFormat {
	case "pretty":
		setupPrettyLogging()
	case "json":
	default:
		panic("Invalid log format specified")
	}
}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}
	}
	log.Logger = log.Output(writer)
}
