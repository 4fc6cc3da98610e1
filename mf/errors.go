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

import "github.com/juju/errors"

var (
	// ErrEmptyDataset is returned when loss, gradient or fitting is
	// invoked with no observations. Normalization by a zero count is
	// never performed silently.
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrInvalidDimension is returned when an observation addresses a
	// row or column outside the factor matrices. Entries are never
	// clamped.
	ErrInvalidDimension = errors.New("observation index out of range")
	// ErrInsufficientSampleSize is returned when the batch size exceeds
	// the number of observations. Batches never shrink silently.
	ErrInsufficientSampleSize = errors.New("batch size exceeds observation count")
	// ErrIllPosedRegression is returned when a cold-start fit is
	// requested without any ratings.
	ErrIllPosedRegression = errors.New("no ratings supplied for regression")
	// ErrShapeMismatch is returned when supplied factor matrices are
	// inconsistent with the dataset dimensions or with each other.
	ErrShapeMismatch = errors.New("factor matrix shape mismatch")
)
