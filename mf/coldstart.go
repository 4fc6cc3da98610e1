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
	"sort"

	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/gorse-io/latent/base/log"
)

// PredictNewUser scores every item for a user absent from training.
// Given the frozen item factor matrix and a handful of ratings keyed by
// item index, it fits the user's latent vector p by ridge regression
// without an intercept,
//
//	minimize |Q_sub p - x|^2 + reg |p|^2
//
// and returns the dense score vector p . q_j over all items, in the row
// order of itemFactor. No ranking is performed here.
//
// With reg = 0 and fewer ratings than factors the system is
// underdetermined; the minimum-norm solution is returned and a warning is
// logged. Callers wanting a well-conditioned fit should pass reg > 0.
//
// Scores lean towards globally popular items: rows of Q grow longer for
// items with many high-variance ratings, and the ridge fit inherits that
// scale. This is a property of the model, not of the solver.
func PredictNewUser(itemFactor [][]float64, ratings map[int]float64, reg float64) ([]float64, error) {
	if len(ratings) == 0 {
		return nil, errors.Trace(ErrIllPosedRegression)
	}
	if len(itemFactor) == 0 {
		return nil, errors.Trace(ErrEmptyDataset)
	}
	k := len(itemFactor[0])
	itemIndices := lo.Keys(ratings)
	sort.Ints(itemIndices)
	for _, itemIndex := range itemIndices {
		if itemIndex < 0 || itemIndex >= len(itemFactor) {
			return nil, errors.Annotatef(ErrInvalidDimension,
				"rated item %d exceeds %d rows", itemIndex, len(itemFactor))
		}
	}
	// Normal equations: (Q_sub^T Q_sub + reg I) p = Q_sub^T x.
	gram := mat.NewSymDense(k, nil)
	moment := mat.NewVecDense(k, nil)
	for _, itemIndex := range itemIndices {
		factor := itemFactor[itemIndex]
		for u := 0; u < k; u++ {
			for v := u; v < k; v++ {
				gram.SetSym(u, v, gram.At(u, v)+factor[u]*factor[v])
			}
			moment.SetVec(u, moment.AtVec(u)+ratings[itemIndex]*factor[u])
		}
	}
	for u := 0; u < k; u++ {
		gram.SetSym(u, u, gram.At(u, u)+reg)
	}
	userFactor := mat.NewVecDense(k, nil)
	var chol mat.Cholesky
	if chol.Factorize(gram) {
		if err := chol.SolveVecTo(userFactor, moment); err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		// The gram matrix is singular, which happens with reg = 0 and
		// fewer ratings than factors. Return the minimum-norm least
		// squares solution of the original system instead.
		log.Logger().Warn("degenerate ridge fit",
			zap.Int("ratings", len(ratings)),
			zap.Int("factors", k),
			zap.Float64("reg", reg))
		if err := solveMinimumNorm(itemFactor, itemIndices, ratings, userFactor); err != nil {
			return nil, errors.Trace(err)
		}
	}
	scores := make([]float64, len(itemFactor))
	for itemIndex, factor := range itemFactor {
		scores[itemIndex] = floats.Dot(userFactor.RawVector().Data, factor)
	}
	return scores, nil
}

func solveMinimumNorm(itemFactor [][]float64, itemIndices []int, ratings map[int]float64, userFactor *mat.VecDense) error {
	k := len(itemFactor[0])
	design := mat.NewDense(len(itemIndices), k, nil)
	target := mat.NewVecDense(len(itemIndices), nil)
	for i, itemIndex := range itemIndices {
		design.SetRow(i, itemFactor[itemIndex])
		target.SetVec(i, ratings[itemIndex])
	}
	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		return errors.New("singular value decomposition failed")
	}
	values := svd.Values(nil)
	rank := 0
	for _, value := range values {
		if value > 1e-12*values[0] {
			rank++
		}
	}
	svd.SolveVecTo(userFactor, target, rank)
	return nil
}
