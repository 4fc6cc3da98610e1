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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/gorse-io/latent/dataset"
)

// Loss computes the regularized squared error of the factorization over
// the observed entries of x:
//
//	sum_{(i,j) in x} (x[i,j] - p_i . q_j)^2 + reg * (sum_i |p_i|^2 + sum_j |q_j|^2)
//
// The regularization term runs over all rows of p and q, not only the
// rows touched by x. Inputs are not modified.
func Loss(x *dataset.Matrix, p, q [][]float64, reg float64) (float64, error) {
	if x == nil || x.Count() == 0 {
		return 0, errors.Trace(ErrEmptyDataset)
	}
	if err := checkBounds(x, p, q); err != nil {
		return 0, errors.Trace(err)
	}
	cost := 0.0
	for i := 0; i < x.Count(); i++ {
		row, col, value := x.Index(i)
		diff := value - floats.Dot(p[row], q[col])
		cost += diff * diff
	}
	penalty := 0.0
	for _, factor := range p {
		penalty += floats.Dot(factor, factor)
	}
	for _, factor := range q {
		penalty += floats.Dot(factor, factor)
	}
	return cost + reg*penalty, nil
}

// Gradient computes the analytic partial derivatives of Loss with
// respect to every row of p and q:
//
//	dp_i = 2*reg*p_i - 2 * sum_{j: (i,j) in x} q_j * (x[i,j] - p_i . q_j)
//	dq_j = 2*reg*q_j - 2 * sum_{i: (i,j) in x} p_i * (x[i,j] - p_i . q_j)
//
// Rows untouched by x receive the pure regularization gradient. Fresh
// gradient matrices are returned; p and q are not modified.
func Gradient(x *dataset.Matrix, p, q [][]float64, reg float64) (dp, dq [][]float64, err error) {
	if x == nil || x.Count() == 0 {
		return nil, nil, errors.Trace(ErrEmptyDataset)
	}
	if err = checkBounds(x, p, q); err != nil {
		return nil, nil, errors.Trace(err)
	}
	dp = make([][]float64, len(p))
	for i, factor := range p {
		dp[i] = make([]float64, len(factor))
		floats.AddScaled(dp[i], 2*reg, factor)
	}
	dq = make([][]float64, len(q))
	for j, factor := range q {
		dq[j] = make([]float64, len(factor))
		floats.AddScaled(dq[j], 2*reg, factor)
	}
	for i := 0; i < x.Count(); i++ {
		row, col, value := x.Index(i)
		diff := value - floats.Dot(p[row], q[col])
		floats.AddScaled(dp[row], -2*diff, q[col])
		floats.AddScaled(dq[col], -2*diff, p[row])
	}
	return dp, dq, nil
}

func checkBounds(x *dataset.Matrix, p, q [][]float64) error {
	for _, key := range x.Keys() {
		if key.Row >= len(p) || key.Col >= len(q) {
			return errors.Annotatef(ErrInvalidDimension,
				"observation (%d,%d) exceeds factor shapes (%d,%d)",
				key.Row, key.Col, len(p), len(q))
		}
	}
	return nil
}
