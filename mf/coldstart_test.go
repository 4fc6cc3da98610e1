// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mf

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/gorse-io/latent/base"
)

func TestPredictNewUser_RecoversFactor(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	itemFactor := rng.NormalMatrix(20, 3, 0, 1)
	userFactor := rng.NormalVector(3, 0, 1)
	// eight consistent ratings determine a rank-3 factor exactly
	ratings := make(map[int]float64)
	for itemIndex := 0; itemIndex < 8; itemIndex++ {
		ratings[itemIndex] = floats.Dot(userFactor, itemFactor[itemIndex])
	}
	scores, err := PredictNewUser(itemFactor, ratings, 0)
	require.NoError(t, err)
	require.Len(t, scores, len(itemFactor))
	for itemIndex, factor := range itemFactor {
		assert.InDelta(t, floats.Dot(userFactor, factor), scores[itemIndex], 1e-8)
	}
}

func TestPredictNewUser_RegularizationShrinks(t *testing.T) {
	rng := base.NewRandomGenerator(1)
	itemFactor := rng.NormalMatrix(10, 3, 0, 1)
	userFactor := rng.NormalVector(3, 0, 1)
	ratings := make(map[int]float64)
	for itemIndex := 0; itemIndex < 5; itemIndex++ {
		ratings[itemIndex] = floats.Dot(userFactor, itemFactor[itemIndex])
	}
	residual := func(reg float64) float64 {
		scores, err := PredictNewUser(itemFactor, ratings, reg)
		require.NoError(t, err)
		sum := 0.0
		for itemIndex, rating := range ratings {
			diff := scores[itemIndex] - rating
			sum += diff * diff
		}
		return sum
	}
	assert.Less(t, residual(0.01), residual(10.0))
}

// With fewer ratings than factors and no regularization the normal
// equations are singular. The minimum-norm solution still interpolates
// the supplied ratings.
func TestPredictNewUser_Underdetermined(t *testing.T) {
	rng := base.NewRandomGenerator(2)
	itemFactor := rng.NormalMatrix(15, 5, 0, 1)
	ratings := map[int]float64{3: 4.5, 9: 1.0}
	scores, err := PredictNewUser(itemFactor, ratings, 0)
	require.NoError(t, err)
	require.Len(t, scores, len(itemFactor))
	for itemIndex, rating := range ratings {
		assert.InDelta(t, rating, scores[itemIndex], 1e-8)
	}
}

func TestPredictNewUser_NoRatings(t *testing.T) {
	rng := base.NewRandomGenerator(3)
	itemFactor := rng.NormalMatrix(5, 2, 0, 1)
	_, err := PredictNewUser(itemFactor, nil, 0.1)
	assert.Equal(t, ErrIllPosedRegression, errors.Cause(err))
	_, err = PredictNewUser(itemFactor, map[int]float64{}, 0.1)
	assert.Equal(t, ErrIllPosedRegression, errors.Cause(err))
}

func TestPredictNewUser_EmptyItemFactor(t *testing.T) {
	_, err := PredictNewUser(nil, map[int]float64{0: 1}, 0.1)
	assert.Equal(t, ErrEmptyDataset, errors.Cause(err))
}

func TestPredictNewUser_InvalidIndex(t *testing.T) {
	rng := base.NewRandomGenerator(4)
	itemFactor := rng.NormalMatrix(5, 2, 0, 1)
	_, err := PredictNewUser(itemFactor, map[int]float64{5: 1}, 0.1)
	assert.Equal(t, ErrInvalidDimension, errors.Cause(err))
	_, err = PredictNewUser(itemFactor, map[int]float64{-1: 1}, 0.1)
	assert.Equal(t, ErrInvalidDimension, errors.Cause(err))
}

// Map iteration order must not leak into the result.
func TestPredictNewUser_Deterministic(t *testing.T) {
	rng := base.NewRandomGenerator(5)
	itemFactor := rng.NormalMatrix(30, 4, 0, 1)
	ratings := make(map[int]float64)
	for itemIndex := 0; itemIndex < 12; itemIndex++ {
		ratings[itemIndex*2] = 1 + 4*rng.Float64()
	}
	first, err := PredictNewUser(itemFactor, ratings, 0.05)
	require.NoError(t, err)
	second, err := PredictNewUser(itemFactor, ratings, 0.05)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
