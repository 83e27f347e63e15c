package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayerSizesExplicit(t *testing.T) {
	require.Equal(t, []int{50, 25, 10}, LayerSizes([]int{50, 25, 10}, Multiclass, 17))
}

func TestLayerSizesBinaryAndRegression(t *testing.T) {
	require.Equal(t, []int{200, 100}, LayerSizes(nil, Binary, 2))
	require.Equal(t, []int{200, 100}, LayerSizes(nil, Regression, 0))
}

func TestLayerSizesMulticlass(t *testing.T) {
	// Few classes: the width floor dominates.
	require.Equal(t, []int{200, 100}, LayerSizes(nil, Multiclass, 5))
	// Many classes: the width scales with the class count.
	require.Equal(t, []int{480, 240}, LayerSizes(nil, Multiclass, 120))
}
