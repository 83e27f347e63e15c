package model

// Model is a fitted tabular model: the immutable feature schema, the network
// configuration and weights frozen at the best observed epoch, and the
// optional target scaler for regression problems.
type Model struct {
	Schema       *Schema
	Problem      ProblemType
	Config       FeedForwardConfig
	Net          *FeedForward
	TargetScaler *TargetScaler
	BestEpoch    int
}
