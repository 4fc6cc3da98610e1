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

package base

import (
	"math"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalVector(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalVector(10000, 1, 2)
	assert.InDelta(t, 1, mean(vec), randomEpsilon)
	assert.InDelta(t, 2, stdDev(vec), randomEpsilon)
}

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	mat := rng.NormalMatrix(100, 100, 1, 2)
	flatten := make([]float64, 0, 10000)
	for _, row := range mat {
		assert.Len(t, row, 100)
		flatten = append(flatten, row...)
	}
	assert.InDelta(t, 1, mean(flatten), randomEpsilon)
	assert.InDelta(t, 2, stdDev(flatten), randomEpsilon)
}

func TestRandomGenerator_Sample(t *testing.T) {
	rng := NewRandomGenerator(0)
	// distinct values in range
	sampled := rng.Sample(10, 100, 30)
	assert.Len(t, sampled, 30)
	seen := mapset.NewSet[int]()
	for _, v := range sampled {
		assert.GreaterOrEqual(t, v, 10)
		assert.Less(t, v, 100)
		assert.False(t, seen.Contains(v))
		seen.Add(v)
	}
	// exclusion
	exclude := mapset.NewSet[int](10, 11, 12)
	sampled = rng.Sample(10, 20, 7, exclude)
	assert.Len(t, sampled, 7)
	for _, v := range sampled {
		assert.False(t, exclude.Contains(v))
	}
	// exhausted interval returns the whole remainder
	sampled = rng.Sample(0, 5, 100)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, sampled)
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).NormalVector(100, 0, 1)
	b := NewRandomGenerator(42).NormalVector(100, 0, 1)
	assert.Equal(t, a, b)
}

func mean(vec []float64) float64 {
	sum := 0.0
	for _, v := range vec {
		sum += v
	}
	return sum / float64(len(vec))
}

func stdDev(vec []float64) float64 {
	m := mean(vec)
	sum := 0.0
	for _, v := range vec {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vec)-1))
}
