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
	"context"
	"fmt"
	"math"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/gorse-io/latent/base"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model"
)

// ParamsSearchResult contains the return of hyper-parameter search.
type ParamsSearchResult struct {
	BestScore  Score
	BestParams model.Params
	BestIndex  int
	Scores     []Score
	Params     []model.Params
}

// AddScore adds a trial, tracking the best one so far. Trials are ranked
// by validation loss, falling back to training loss when no validation
// set was supplied.
func (r *ParamsSearchResult) AddScore(params model.Params, score Score) {
	r.Scores = append(r.Scores, score)
	r.Params = append(r.Params, params.Copy())
	if len(r.Scores) == 1 || searchObjective(score) < searchObjective(r.BestScore) {
		r.BestScore = score
		r.BestParams = params.Copy()
		r.BestIndex = len(r.Params) - 1
	}
}

func searchObjective(score Score) float64 {
	if math.IsNaN(score.Validation) {
		return score.Train
	}
	return score.Validation
}

// GridSearchCV finds the best parameters for a trainer by fitting every
// combination of paramGrid. The trainer is cleared before each trial so
// factors are drawn fresh; its seed is reset by SetParams, making trials
// independent of their order.
func GridSearchCV(ctx context.Context, estimator *SGD, trainSet, validateSet *dataset.Matrix,
	paramGrid model.ParamsGrid, config *FitConfig) (ParamsSearchResult, error) {
	// Retrieve parameter names and length
	paramNames := make([]model.ParamName, 0, len(paramGrid))
	for paramName := range paramGrid {
		paramNames = append(paramNames, paramName)
	}
	count := paramGrid.NumCombinations()
	// Construct DFS procedure
	results := ParamsSearchResult{
		Scores: make([]Score, 0, count),
		Params: make([]model.Params, 0, count),
	}
	progress := 0
	var dfs func(deep int, params model.Params) error
	dfs = func(deep int, params model.Params) error {
		if deep == len(paramNames) {
			progress++
			log.Logger().Info(fmt.Sprintf("grid search %v/%v", progress, count),
				zap.Any("params", params))
			estimator.Clear()
			estimator.SetParams(estimator.GetParams().Overwrite(params))
			history, err := estimator.Fit(ctx, trainSet, validateSet, config)
			if err != nil {
				return errors.Trace(err)
			}
			results.AddScore(params, history[len(history)-1])
			return nil
		}
		paramName := paramNames[deep]
		for _, val := range paramGrid[paramName] {
			params[paramName] = val
			if err := dfs(deep+1, params); err != nil {
				return err
			}
		}
		return nil
	}
	if err := dfs(0, model.Params{}); err != nil {
		return results, err
	}
	return results, nil
}

// RandomSearchCV searches hyper-parameters by random trials. When the
// grid holds fewer combinations than numTrials, an exhaustive grid
// search is run instead.
func RandomSearchCV(ctx context.Context, estimator *SGD, trainSet, validateSet *dataset.Matrix,
	paramGrid model.ParamsGrid, numTrials int, seed int64, config *FitConfig) (ParamsSearchResult, error) {
	if paramGrid.NumCombinations() < numTrials {
		return GridSearchCV(ctx, estimator, trainSet, validateSet, paramGrid, config)
	}
	rng := base.NewRandomGenerator(seed)
	results := ParamsSearchResult{
		Scores: make([]Score, 0, numTrials),
		Params: make([]model.Params, 0, numTrials),
	}
	for i := 1; i <= numTrials; i++ {
		params := model.Params{}
		for paramName, values := range paramGrid {
			params[paramName] = values[rng.Intn(len(values))]
		}
		log.Logger().Info(fmt.Sprintf("random search %v/%v", i, numTrials),
			zap.Any("params", params))
		estimator.Clear()
		estimator.SetParams(estimator.GetParams().Overwrite(params))
		history, err := estimator.Fit(ctx, trainSet, validateSet, config)
		if err != nil {
			return results, errors.Trace(err)
		}
		results.AddScore(params, history[len(history)-1])
	}
	return results, nil
}
