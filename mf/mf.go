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
	"encoding/binary"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/gorse-io/latent/base/encoding"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model"
)

// FactorModel holds the learned state of a matrix factorization: the
// user factor matrix P, the item factor matrix Q, the dictionaries that
// map external identifiers to dense indices, and flags recording which
// rows were actually touched by training. During fitting the trainer is
// the sole owner of P and Q; after fitting they are free for concurrent
// read-only use.
type FactorModel struct {
	model.BaseModel
	UserIndex   *dataset.FreqDict
	ItemIndex   *dataset.FreqDict
	UserTrained *bitset.BitSet
	ItemTrained *bitset.BitSet
	// Model parameters
	UserFactor [][]float64 // p_u
	ItemFactor [][]float64 // q_i
}

// Init sets the trained flags from the observations of a training set.
func (m *FactorModel) Init(trainSet *dataset.Matrix) {
	m.UserTrained = bitset.New(uint(trainSet.Rows()))
	m.ItemTrained = bitset.New(uint(trainSet.Cols()))
	for _, key := range trainSet.Keys() {
		m.UserTrained.Set(uint(key.Row))
		m.ItemTrained.Set(uint(key.Col))
	}
}

// SetIndex attaches the identifier dictionaries produced by the data
// loader so that Predict can resolve external IDs.
func (m *FactorModel) SetIndex(userIndex, itemIndex *dataset.FreqDict) {
	m.UserIndex = userIndex
	m.ItemIndex = itemIndex
}

// IsUserTrained returns false if the user's factor row was never touched
// by an observation during training.
func (m *FactorModel) IsUserTrained(userIndex int) bool {
	if m.UserTrained == nil || userIndex < 0 {
		return false
	}
	return m.UserTrained.Test(uint(userIndex))
}

// IsItemTrained returns false if the item's factor row was never touched
// by an observation during training.
func (m *FactorModel) IsItemTrained(itemIndex int) bool {
	if m.ItemTrained == nil || itemIndex < 0 {
		return false
	}
	return m.ItemTrained.Test(uint(itemIndex))
}

// GetUserFactor returns the latent factor of a user.
func (m *FactorModel) GetUserFactor(userIndex int) []float64 {
	return m.UserFactor[userIndex]
}

// GetItemFactor returns the latent factor of an item.
func (m *FactorModel) GetItemFactor(itemIndex int) []float64 {
	return m.ItemFactor[itemIndex]
}

// Predict the rating given by a user (userId) to an item (itemId).
func (m *FactorModel) Predict(userId, itemId string) float64 {
	userIndex, itemIndex := -1, -1
	if m.UserIndex != nil {
		if index, ok := m.UserIndex.Lookup(userId); ok {
			userIndex = index
		}
	}
	if m.ItemIndex != nil {
		if index, ok := m.ItemIndex.Lookup(itemId); ok {
			itemIndex = index
		}
	}
	if userIndex < 0 {
		log.Logger().Warn("unknown user", zap.String("user_id", userId))
	}
	if itemIndex < 0 {
		log.Logger().Warn("unknown item", zap.String("item_id", itemId))
	}
	return m.internalPredict(userIndex, itemIndex)
}

func (m *FactorModel) internalPredict(userIndex, itemIndex int) float64 {
	if userIndex >= 0 && userIndex < len(m.UserFactor) &&
		itemIndex >= 0 && itemIndex < len(m.ItemFactor) {
		return floats.Dot(m.UserFactor[userIndex], m.ItemFactor[itemIndex])
	}
	return 0
}

// ScoreItems returns the predicted score of every item for a known user,
// in the row order of the item factor matrix.
func (m *FactorModel) ScoreItems(userIndex int) ([]float64, error) {
	if userIndex < 0 || userIndex >= len(m.UserFactor) {
		return nil, errors.Annotatef(ErrInvalidDimension,
			"user %d exceeds %d rows", userIndex, len(m.UserFactor))
	}
	scores := make([]float64, len(m.ItemFactor))
	for itemIndex := range m.ItemFactor {
		scores[itemIndex] = floats.Dot(m.UserFactor[userIndex], m.ItemFactor[itemIndex])
	}
	return scores, nil
}

// Marshal model into byte stream. The factor matrices round-trip
// bit-for-bit so a reloaded model reproduces identical predictions.
func (m *FactorModel) Marshal(w io.Writer) error {
	// write params
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	// write dictionaries
	userIndex := m.UserIndex
	if userIndex == nil {
		userIndex = dataset.NewFreqDict()
	}
	itemIndex := m.ItemIndex
	if itemIndex == nil {
		itemIndex = dataset.NewFreqDict()
	}
	if err := encoding.WriteGob(w, userIndex); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteGob(w, itemIndex); err != nil {
		return errors.Trace(err)
	}
	// write factors
	if err := writeFactors(w, m.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := writeFactors(w, m.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	// write trained flags
	if err := writeBitSet(w, m.UserTrained); err != nil {
		return errors.Trace(err)
	}
	return writeBitSet(w, m.ItemTrained)
}

// Unmarshal model from byte stream.
func (m *FactorModel) Unmarshal(r io.Reader) error {
	// read params
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	// read dictionaries
	m.UserIndex = dataset.NewFreqDict()
	if err := encoding.ReadGob(r, m.UserIndex); err != nil {
		return errors.Trace(err)
	}
	m.ItemIndex = dataset.NewFreqDict()
	if err := encoding.ReadGob(r, m.ItemIndex); err != nil {
		return errors.Trace(err)
	}
	// read factors
	var err error
	if m.UserFactor, err = readFactors(r); err != nil {
		return errors.Trace(err)
	}
	if m.ItemFactor, err = readFactors(r); err != nil {
		return errors.Trace(err)
	}
	// read trained flags
	if m.UserTrained, err = readBitSet(r); err != nil {
		return errors.Trace(err)
	}
	m.ItemTrained, err = readBitSet(r)
	return errors.Trace(err)
}

func writeFactors(w io.Writer, factors [][]float64) error {
	rows, cols := int64(len(factors)), int64(0)
	if rows > 0 {
		cols = int64(len(factors[0]))
	}
	if err := binary.Write(w, binary.LittleEndian, rows); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, cols); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteMatrix(w, factors)
}

func readFactors(r io.Reader) ([][]float64, error) {
	var rows, cols int64
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, errors.Trace(err)
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, errors.Trace(err)
	}
	factors := make([][]float64, rows)
	for i := range factors {
		factors[i] = make([]float64, cols)
	}
	if err := encoding.ReadMatrix(r, factors); err != nil {
		return nil, errors.Trace(err)
	}
	return factors, nil
}

func writeBitSet(w io.Writer, set *bitset.BitSet) error {
	if set == nil {
		set = bitset.New(0)
	}
	data, err := set.MarshalBinary()
	if err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteBytes(w, data)
}

func readBitSet(r io.Reader) (*bitset.BitSet, error) {
	data, err := encoding.ReadBytes(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	set := bitset.New(0)
	if err := set.UnmarshalBinary(data); err != nil {
		return nil, errors.Trace(err)
	}
	return set, nil
}

func (m *FactorModel) Clear() {
	m.UserIndex = nil
	m.ItemIndex = nil
	m.UserTrained = nil
	m.ItemTrained = nil
	m.UserFactor = nil
	m.ItemFactor = nil
}

func (m *FactorModel) Invalid() bool {
	return m == nil ||
		m.UserFactor == nil ||
		m.ItemFactor == nil
}
