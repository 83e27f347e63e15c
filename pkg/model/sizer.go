package model

// LayerSizes resolves the hidden layer sizes of the network. An explicitly
// configured list is used verbatim. Binary classification and regression use
// a fixed two-layer shape; multiclass derives the hidden width from the
// number of classes.
func LayerSizes(explicit []int, problem ProblemType, numClasses int) []int {
	if len(explicit) > 0 {
		return explicit
	}
	if problem == Binary || problem == Regression {
		return []int{200, 100}
	}
	base := 2 * numClasses
	if base < 100 {
		base = 100
	}
	return []int{2 * base, base}
}
