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
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gonum.org/v1/gonum/floats"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/base/progress"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model"
)

// Score is the per-epoch report of the trainer: the training loss with
// regularization, normalized by the number of training observations, and
// the validation loss with regularization forced to zero, normalized by
// the number of validation observations. Epoch -1 is the baseline before
// any update. Validation is NaN when no validation set is supplied.
type Score struct {
	Epoch      int
	Train      float64
	Validation float64
}

type FitConfig struct {
	Verbose int
	// OnEpoch, when set, receives every epoch score including the
	// baseline. Intended for progress display.
	OnEpoch func(score Score)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetOnEpoch(onEpoch func(score Score)) *FitConfig {
	config.OnEpoch = onEpoch
	return config
}

// MarshalLogObject implements zapcore.ObjectMarshaler. The OnEpoch func
// cannot be serialized, only its presence is reported.
func (config *FitConfig) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("verbose", config.Verbose)
	encoder.AddBool("on_epoch", config.OnEpoch != nil)
	return nil
}

// SGD factorizes an explicitly rated sparse matrix by minibatch gradient
// descent on the regularized squared error. Every step draws a fresh
// uniform sample of distinct observations, so one observation may appear
// in several minibatches of an epoch, or in none.
//
// Hyper-parameters:
//
//	Reg        - The regularization strength of the cost function that is
//	             optimized. Default is 0.02.
//	Lr         - The learning rate of SGD. Default is 0.01.
//	NFactors   - The number of latent factors. Default is 10.
//	NEpochs    - The number of epochs of the SGD procedure. Default is 20.
//	BatchSize  - The size of a minibatch. Default is 128.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors.
//	             Default is 1.
type SGD struct {
	FactorModel
	// Hyper parameters
	nFactors   int
	nEpochs    int
	batchSize  int
	lr         float64
	reg        float64
	initMean   float64
	initStdDev float64
}

// NewSGD creates an SGD trainer.
func NewSGD(params model.Params) *SGD {
	sgd := new(SGD)
	sgd.SetParams(params)
	return sgd
}

// SetParams sets hyper-parameters of the SGD trainer.
func (sgd *SGD) SetParams(params model.Params) {
	sgd.FactorModel.SetParams(params)
	// Setup hyper-parameters
	sgd.nFactors = sgd.Params.GetInt(model.NFactors, 10)
	sgd.nEpochs = sgd.Params.GetInt(model.NEpochs, 20)
	sgd.batchSize = sgd.Params.GetInt(model.BatchSize, 128)
	sgd.lr = sgd.Params.GetFloat64(model.Lr, 0.01)
	sgd.reg = sgd.Params.GetFloat64(model.Reg, 0.02)
	sgd.initMean = sgd.Params.GetFloat64(model.InitMean, 0)
	sgd.initStdDev = sgd.Params.GetFloat64(model.InitStdDev, 1)
}

func (sgd *SGD) GetParamsGrid() model.ParamsGrid {
	return model.ParamsGrid{
		model.NFactors:  {8, 16, 32, 64},
		model.Lr:        {0.001, 0.005, 0.01, 0.05},
		model.Reg:       {0.001, 0.01, 0.1, 1.0},
		model.BatchSize: {32, 128, 512},
	}
}

// Fit the factorization to trainSet. P and Q are mutated in place, one
// gradient step at a time: each step's gradient is computed against the
// state left by the previous step. An epoch is count/batchSize+1 steps.
// If factors are already present (warm start or a reloaded model) they
// are trained further; otherwise they are drawn from a normal
// distribution. The returned history contains the baseline score
// (epoch -1) followed by one score per epoch.
func (sgd *SGD) Fit(ctx context.Context, trainSet, validateSet *dataset.Matrix, config *FitConfig) ([]Score, error) {
	if config == nil {
		config = NewFitConfig()
	}
	if trainSet == nil || trainSet.Count() == 0 {
		return nil, errors.Trace(ErrEmptyDataset)
	}
	if sgd.batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", sgd.batchSize)
	}
	if sgd.batchSize > trainSet.Count() {
		return nil, errors.Annotatef(ErrInsufficientSampleSize,
			"batch size %d exceeds %d observations", sgd.batchSize, trainSet.Count())
	}
	if err := sgd.initFactors(trainSet); err != nil {
		return nil, errors.Trace(err)
	}
	sgd.FactorModel.Init(trainSet)
	log.Logger().Info("fit sgd",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Any("params", sgd.GetParams()),
		zap.Object("config", config))
	// Baseline losses before any update.
	scores := make([]Score, 0, sgd.nEpochs+1)
	score, err := sgd.evaluate(-1, trainSet, validateSet)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores = append(scores, score)
	if config.OnEpoch != nil {
		config.OnEpoch(score)
	}
	log.Logger().Debug(fmt.Sprintf("fit sgd %v/%v", 0, sgd.nEpochs),
		zap.Float64("train_loss", score.Train),
		zap.Float64("validation_loss", score.Validation))
	// Stochastic gradient descent
	steps := trainSet.Count()/sgd.batchSize + 1
	rng := sgd.GetRandomGenerator()
	_, span := progress.Start(ctx, "SGD.Fit", sgd.nEpochs)
	for epoch := 0; epoch < sgd.nEpochs; epoch++ {
		fitStart := time.Now()
		for step := 0; step < steps; step++ {
			batch := trainSet.Batch(rng.Sample(0, trainSet.Count(), sgd.batchSize))
			dp, dq, err := Gradient(batch, sgd.UserFactor, sgd.ItemFactor, sgd.reg)
			if err != nil {
				span.Error(err)
				return scores, errors.Trace(err)
			}
			for i := range sgd.UserFactor {
				floats.AddScaled(sgd.UserFactor[i], -sgd.lr, dp[i])
			}
			for j := range sgd.ItemFactor {
				floats.AddScaled(sgd.ItemFactor[j], -sgd.lr, dq[j])
			}
		}
		fitTime := time.Since(fitStart)
		if score, err = sgd.evaluate(epoch, trainSet, validateSet); err != nil {
			span.Error(err)
			return scores, errors.Trace(err)
		}
		scores = append(scores, score)
		if config.OnEpoch != nil {
			config.OnEpoch(score)
		}
		if (epoch+1)%config.Verbose == 0 || epoch+1 == sgd.nEpochs {
			log.Logger().Info(fmt.Sprintf("fit sgd %v/%v", epoch+1, sgd.nEpochs),
				zap.String("fit_time", fitTime.String()),
				zap.Float64("train_loss", score.Train),
				zap.Float64("validation_loss", score.Validation))
		}
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit sgd complete",
		zap.Float64("train_loss", score.Train),
		zap.Float64("validation_loss", score.Validation))
	return scores, nil
}

// initFactors draws fresh normal factors, or validates the shapes of
// factors supplied for warm starting.
func (sgd *SGD) initFactors(trainSet *dataset.Matrix) error {
	if sgd.UserFactor == nil && sgd.ItemFactor == nil {
		sgd.UserFactor = sgd.GetRandomGenerator().NormalMatrix(
			trainSet.Rows(), sgd.nFactors, sgd.initMean, sgd.initStdDev)
		sgd.ItemFactor = sgd.GetRandomGenerator().NormalMatrix(
			trainSet.Cols(), sgd.nFactors, sgd.initMean, sgd.initStdDev)
		return nil
	}
	if len(sgd.UserFactor) != trainSet.Rows() || len(sgd.ItemFactor) != trainSet.Cols() {
		return errors.Annotatef(ErrShapeMismatch,
			"supplied factors are (%d,%d), dataset is (%d,%d)",
			len(sgd.UserFactor), len(sgd.ItemFactor), trainSet.Rows(), trainSet.Cols())
	}
	for _, factor := range sgd.UserFactor {
		if len(factor) != sgd.nFactors {
			return errors.Annotatef(ErrShapeMismatch,
				"supplied user factors have rank %d, expected %d", len(factor), sgd.nFactors)
		}
	}
	for _, factor := range sgd.ItemFactor {
		if len(factor) != sgd.nFactors {
			return errors.Annotatef(ErrShapeMismatch,
				"supplied item factors have rank %d, expected %d", len(factor), sgd.nFactors)
		}
	}
	return nil
}

// evaluate computes normalized losses. Validation scoring never pays the
// regularization penalty.
func (sgd *SGD) evaluate(epoch int, trainSet, validateSet *dataset.Matrix) (Score, error) {
	trainLoss, err := Loss(trainSet, sgd.UserFactor, sgd.ItemFactor, sgd.reg)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	validation := math.NaN()
	if validateSet != nil && validateSet.Count() > 0 {
		validateLoss, err := Loss(validateSet, sgd.UserFactor, sgd.ItemFactor, 0)
		if err != nil {
			return Score{}, errors.Trace(err)
		}
		validation = validateLoss / float64(validateSet.Count())
	}
	return Score{
		Epoch:      epoch,
		Train:      trainLoss / float64(trainSet.Count()),
		Validation: validation,
	}, nil
}
