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
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/gorse-io/latent/base"
	"github.com/gorse-io/latent/dataset"
)

// randomProblem builds random factors and a random subset of observed
// entries with ratings on the usual 1-5 scale.
func randomProblem(seed int64, rows, cols, nFactors int, density float64) (*dataset.Matrix, [][]float64, [][]float64) {
	rng := base.NewRandomGenerator(seed)
	p := rng.NormalMatrix(rows, nFactors, 0, 1)
	q := rng.NormalMatrix(cols, nFactors, 0, 1)
	x := dataset.NewMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if rng.Float64() < density {
				x.Set(i, j, 1+4*rng.Float64())
			}
		}
	}
	if x.Count() == 0 {
		x.Set(0, 0, 3)
	}
	return x, p, q
}

func TestLoss_NonNegative(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		for _, reg := range []float64{0, 0.1, 1} {
			x, p, q := randomProblem(seed, 10, 10, 3, 0.3)
			cost, err := Loss(x, p, q, reg)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, cost, 0.0)
		}
	}
}

func TestLoss_ZeroReconstruction(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	p := rng.NormalMatrix(10, 3, 0, 1)
	q := rng.NormalMatrix(10, 3, 0, 1)
	x := dataset.NewMatrix(10, 10)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			x.Set(i, j, floats.Dot(p[i], q[j]))
		}
	}
	cost, err := Loss(x, p, q, 0)
	require.NoError(t, err)
	assert.Less(t, cost, 1e-20)
}

func TestLoss_RegularizationScaling(t *testing.T) {
	const (
		reg = 0.1
		c   = 2.5
	)
	x, p, q := randomProblem(42, 10, 10, 3, 0.3)
	scaled := make([][]float64, len(p))
	for i, factor := range p {
		scaled[i] = make([]float64, len(factor))
		floats.AddScaled(scaled[i], c, factor)
	}
	normP := 0.0
	for _, factor := range p {
		normP += floats.Dot(factor, factor)
	}
	// isolate the penalty term by differencing against the reg = 0 loss
	regularized, err := Loss(x, p, q, reg)
	require.NoError(t, err)
	unregularized, err := Loss(x, p, q, 0)
	require.NoError(t, err)
	scaledRegularized, err := Loss(x, scaled, q, reg)
	require.NoError(t, err)
	scaledUnregularized, err := Loss(x, scaled, q, 0)
	require.NoError(t, err)
	penalty := regularized - unregularized
	scaledPenalty := scaledRegularized - scaledUnregularized
	assert.InDelta(t, reg*(c*c-1)*normP, scaledPenalty-penalty, 1e-9)
}

func TestLoss_EmptyDataset(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	p := rng.NormalMatrix(5, 2, 0, 1)
	q := rng.NormalMatrix(5, 2, 0, 1)
	_, err := Loss(dataset.NewMatrix(5, 5), p, q, 0.1)
	assert.Equal(t, ErrEmptyDataset, errors.Cause(err))
	_, _, err = Gradient(dataset.NewMatrix(5, 5), p, q, 0.1)
	assert.Equal(t, ErrEmptyDataset, errors.Cause(err))
}

func TestLoss_OutOfRange(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	p := rng.NormalMatrix(5, 2, 0, 1)
	q := rng.NormalMatrix(5, 2, 0, 1)
	x := dataset.NewMatrix(0, 0)
	x.Set(7, 1, 3)
	_, err := Loss(x, p, q, 0)
	assert.Equal(t, ErrInvalidDimension, errors.Cause(err))
	_, _, err = Gradient(x, p, q, 0)
	assert.Equal(t, ErrInvalidDimension, errors.Cause(err))
}

// numericalGradient approximates the gradient by central differences of
// the loss with respect to every scalar entry.
func numericalGradient(t *testing.T, x *dataset.Matrix, p, q [][]float64, reg, eps float64) (dp, dq [][]float64) {
	t.Helper()
	perturb := func(target []float64, index int, delta float64) float64 {
		target[index] += delta
		cost, err := Loss(x, p, q, reg)
		require.NoError(t, err)
		target[index] -= delta
		return cost
	}
	dp = make([][]float64, len(p))
	for i := range p {
		dp[i] = make([]float64, len(p[i]))
		for d := range p[i] {
			dp[i][d] = (perturb(p[i], d, eps) - perturb(p[i], d, -eps)) / (2 * eps)
		}
	}
	dq = make([][]float64, len(q))
	for j := range q {
		dq[j] = make([]float64, len(q[j]))
		for d := range q[j] {
			dq[j][d] = (perturb(q[j], d, eps) - perturb(q[j], d, -eps)) / (2 * eps)
		}
	}
	return
}

func TestGradient_MatchesNumerical(t *testing.T) {
	const eps = 1e-5
	for seed := int64(0); seed < 3; seed++ {
		for _, reg := range []float64{0, 0.1, 1} {
			t.Run(fmt.Sprintf("seed=%d,reg=%v", seed, reg), func(t *testing.T) {
				x, p, q := randomProblem(seed, 10, 10, 3, 0.3)
				dp, dq, err := Gradient(x, p, q, reg)
				require.NoError(t, err)
				numericDP, numericDQ := numericalGradient(t, x, p, q, reg, eps)
				sse := 0.0
				for i := range dp {
					for d := range dp[i] {
						diff := dp[i][d] - numericDP[i][d]
						sse += diff * diff
					}
				}
				for j := range dq {
					for d := range dq[j] {
						diff := dq[j][d] - numericDQ[j][d]
						sse += diff * diff
					}
				}
				assert.Less(t, sse, 1e-6)
			})
		}
	}
}

func TestGradient_UntouchedRows(t *testing.T) {
	const reg = 0.5
	rng := base.NewRandomGenerator(0)
	p := rng.NormalMatrix(4, 2, 0, 1)
	q := rng.NormalMatrix(4, 2, 0, 1)
	x := dataset.NewMatrix(4, 4)
	x.Set(0, 0, 3)
	dp, dq, err := Gradient(x, p, q, reg)
	require.NoError(t, err)
	// rows absent from x get the pure regularization gradient
	for i := 1; i < 4; i++ {
		for d := range p[i] {
			assert.InDelta(t, 2*reg*p[i][d], dp[i][d], 1e-12)
		}
	}
	for j := 1; j < 4; j++ {
		for d := range q[j] {
			assert.InDelta(t, 2*reg*q[j][d], dq[j][d], 1e-12)
		}
	}
}

func TestGradient_DoesNotMutate(t *testing.T) {
	x, p, q := randomProblem(0, 5, 5, 2, 0.5)
	pCopy := make([][]float64, len(p))
	for i := range p {
		pCopy[i] = append([]float64(nil), p[i]...)
	}
	qCopy := make([][]float64, len(q))
	for j := range q {
		qCopy[j] = append([]float64(nil), q[j]...)
	}
	_, _, err := Gradient(x, p, q, 0.1)
	require.NoError(t, err)
	assert.Equal(t, pCopy, p)
	assert.Equal(t, qCopy, q)
}
