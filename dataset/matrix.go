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

package dataset

import (
	"github.com/gorse-io/latent/base"
)

// Key locates an observed entry of a sparse matrix.
type Key struct {
	Row int
	Col int
}

// Matrix is a partially observed rating matrix: a mapping from (row, col)
// keys to observed values. A missing key means the entry is unobserved,
// never that it is zero. Keys are kept in insertion order so that seeded
// sampling over entries is reproducible.
type Matrix struct {
	data map[Key]float64
	keys []Key
	rows int
	cols int
}

// NewMatrix creates a sparse matrix. Pass zero dimensions to infer them
// from observations: inferred dimensions are (max row + 1, max col + 1),
// so rows or columns that never appear in any observation cannot be
// represented unless the dimensions are declared up front. That is a
// caller obligation, not a guarantee of this type.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		data: make(map[Key]float64),
		rows: rows,
		cols: cols,
	}
}

// Set adds or overwrites an observation. Negative indices panic since
// they can never address a valid entry.
func (m *Matrix) Set(row, col int, value float64) {
	if row < 0 || col < 0 {
		panic("dataset: negative index")
	}
	key := Key{Row: row, Col: col}
	if _, exist := m.data[key]; !exist {
		m.keys = append(m.keys, key)
	}
	m.data[key] = value
	if row >= m.rows {
		m.rows = row + 1
	}
	if col >= m.cols {
		m.cols = col + 1
	}
}

// Get returns an observation and whether it exists.
func (m *Matrix) Get(row, col int) (float64, bool) {
	value, exist := m.data[Key{Row: row, Col: col}]
	return value, exist
}

// Count returns the number of observed entries.
func (m *Matrix) Count() int {
	return len(m.keys)
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return m.rows
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	return m.cols
}

// Index returns the i-th observation in insertion order.
func (m *Matrix) Index(i int) (row, col int, value float64) {
	key := m.keys[i]
	return key.Row, key.Col, m.data[key]
}

// Keys returns all observed keys in insertion order. The returned slice
// is shared and must not be modified.
func (m *Matrix) Keys() []Key {
	return m.keys
}

// Mean returns the mean of observed values. The mean of an empty matrix
// is zero.
func (m *Matrix) Mean() float64 {
	if len(m.keys) == 0 {
		return 0
	}
	sum := 0.0
	for _, value := range m.data {
		sum += value
	}
	return sum / float64(len(m.data))
}

// Batch builds a read-only view containing the observations selected by
// indices into the insertion order. The view shares the parent's
// dimensions.
func (m *Matrix) Batch(indices []int) *Matrix {
	batch := NewMatrix(m.rows, m.cols)
	for _, i := range indices {
		key := m.keys[i]
		batch.Set(key.Row, key.Col, m.data[key])
	}
	return batch
}

// Split shuffles observations with the given seed and splits them into a
// training matrix and a test matrix. Both keep the parent's dimensions so
// factor shapes stay consistent across the split.
func (m *Matrix) Split(testRatio float64, seed int64) (train, test *Matrix) {
	train = NewMatrix(m.rows, m.cols)
	test = NewMatrix(m.rows, m.cols)
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(len(m.keys))
	testCount := int(float64(len(m.keys)) * testRatio)
	for i, p := range perm {
		key := m.keys[p]
		if i < testCount {
			test.Set(key.Row, key.Col, m.data[key])
		} else {
			train.Set(key.Row, key.Col, m.data[key])
		}
	}
	return
}
