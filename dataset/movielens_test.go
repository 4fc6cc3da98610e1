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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRatings(t *testing.T) {
	path := writeTempFile(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n"+
			"1,10,4.0,964982703\n"+
			"1,20,3.5,964981247\n"+
			"2,10,5.0,964982224\n")
	matrix, userDict, itemDict, err := LoadRatings(path, ",")
	require.NoError(t, err)
	assert.Equal(t, 3, matrix.Count())
	assert.Equal(t, 2, userDict.Count())
	assert.Equal(t, 2, itemDict.Count())
	assert.Equal(t, 2, matrix.Rows())
	assert.Equal(t, 2, matrix.Cols())
	// user "2" rated movie "10" with 5.0
	userIndex, ok := userDict.Lookup("2")
	require.True(t, ok)
	itemIndex, ok := itemDict.Lookup("10")
	require.True(t, ok)
	value, exist := matrix.Get(userIndex, itemIndex)
	assert.True(t, exist)
	assert.Equal(t, 5.0, value)
}

func TestLoadRatings_NoHeader(t *testing.T) {
	path := writeTempFile(t, "ratings.dat", "1::10::4.0\n2::10::3.0\n")
	matrix, _, _, err := LoadRatings(path, "::")
	require.NoError(t, err)
	assert.Equal(t, 2, matrix.Count())
}

func TestLoadRatings_Malformed(t *testing.T) {
	path := writeTempFile(t, "ratings.csv", "1,10\n")
	_, _, _, err := LoadRatings(path, ",")
	assert.Error(t, err)

	path = writeTempFile(t, "bad_rating.csv", "1,10,4.0\n2,20,bad\n")
	_, _, _, err = LoadRatings(path, ",")
	assert.Error(t, err)
}

func TestLoadItems(t *testing.T) {
	path := writeTempFile(t, "movies.csv",
		"movieId,title,genres\n"+
			"1,Toy Story (1995),Adventure|Animation|Children\n"+
			"2,Heat (1995),Action|Crime|Thriller\n")
	items, err := LoadItems(path, ",")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Toy Story (1995)", items[0].Title)
	assert.True(t, items[0].Genres.Contains("Animation"))
	assert.Equal(t, 3, items[1].Genres.Cardinality())
}

func TestFilterByGenre(t *testing.T) {
	path := writeTempFile(t, "movies.csv",
		"1,Toy Story (1995),Adventure|Animation|Children\n"+
			"2,Heat (1995),Action|Crime|Thriller\n"+
			"3,GoldenEye (1995),Action|Adventure|Thriller\n")
	items, err := LoadItems(path, ",")
	require.NoError(t, err)
	action := FilterByGenre(items, "action")
	assert.Len(t, action, 2)
	anim := FilterByGenre(items, "anim")
	assert.Len(t, anim, 1)
	assert.Equal(t, "1", anim[0].ItemId)
	assert.Empty(t, FilterByGenre(items, "romance"))
}
