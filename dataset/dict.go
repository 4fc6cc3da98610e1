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
	"bytes"
	"encoding/gob"
)

// FreqDict maps external string identifiers to dense zero-based indices
// and back, counting occurrences along the way. Indices are assigned in
// first-seen order.
type FreqDict struct {
	si  map[string]int
	is  []string
	cnt []int
}

func NewFreqDict() (d *FreqDict) {
	d = &FreqDict{map[string]int{}, []string{}, []int{}}
	return
}

func (d *FreqDict) Count() int {
	return len(d.is)
}

// Id returns the dense index of s, assigning a new one if unseen, and
// increments its occurrence count.
func (d *FreqDict) Id(s string) (y int) {
	if y, ok := d.si[s]; ok {
		d.cnt[y]++
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 1)
	return
}

// NotCount returns the dense index of s, assigning a new one if unseen,
// without touching the occurrence count.
func (d *FreqDict) NotCount(s string) (y int) {
	if y, ok := d.si[s]; ok {
		return y
	}

	y = len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return
}

// Lookup returns the dense index of s without assigning one. The second
// return reports whether s is known.
func (d *FreqDict) Lookup(s string) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

func (d *FreqDict) String(id int) (s string, ok bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

type freqDictState struct {
	Is  []string
	Cnt []int
}

// MarshalBinary implements encoding.BinaryMarshaler so dictionaries can
// travel inside gob streams despite unexported fields.
func (d *FreqDict) MarshalBinary() ([]byte, error) {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	if err := encoder.Encode(freqDictState{Is: d.is, Cnt: d.cnt}); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *FreqDict) UnmarshalBinary(data []byte) error {
	var state freqDictState
	decoder := gob.NewDecoder(bytes.NewBuffer(data))
	if err := decoder.Decode(&state); err != nil {
		return err
	}
	d.is = state.Is
	d.cnt = state.Cnt
	d.si = make(map[string]int, len(state.Is))
	for i, s := range state.Is {
		d.si[s] = i
	}
	return nil
}
