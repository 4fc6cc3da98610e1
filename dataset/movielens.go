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
	"bufio"
	"os"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/gorse-io/latent/base/log"
)

// Item is one row of a MovieLens-style movie metadata table.
type Item struct {
	ItemId string
	Title  string
	Genres mapset.Set[string]
}

// LoadRatings loads a delimited ratings table (userId, itemId, rating)
// into a sparse matrix, reindexing raw identifiers to dense zero-based
// indices through the returned dictionaries. A header line is skipped
// when its rating field does not parse as a number. Extra fields such as
// timestamps are ignored.
func LoadRatings(path, sep string) (*Matrix, *FreqDict, *FreqDict, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	defer file.Close()
	matrix := NewMatrix(0, 0)
	userDict := NewFreqDict()
	itemDict := NewFreqDict()
	lineCount := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, nil, nil, errors.Errorf("expect at least 3 fields, but get %d: %q", len(fields), line)
		}
		rating, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			if lineCount == 0 {
				// header
				continue
			}
			return nil, nil, nil, errors.Annotatef(err, "parse rating %q", fields[2])
		}
		userIndex := userDict.Id(fields[0])
		itemIndex := itemDict.Id(fields[1])
		matrix.Set(userIndex, itemIndex, rating)
		lineCount++
	}
	if err = scanner.Err(); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings",
		zap.String("path", path),
		zap.Int("ratings", matrix.Count()),
		zap.Int("users", userDict.Count()),
		zap.Int("items", itemDict.Count()))
	return matrix, userDict, itemDict, nil
}

// LoadItems loads a delimited movie metadata table (itemId, title,
// genre|genre|...). A header line is detected by the literal "title"
// field.
func LoadItems(path, sep string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var items []Item
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) < 3 {
			return nil, errors.Errorf("expect at least 3 fields, but get %d: %q", len(fields), line)
		}
		if len(items) == 0 && strings.EqualFold(fields[1], "title") {
			continue
		}
		genres := lo.Filter(strings.Split(fields[2], "|"), func(genre string, _ int) bool {
			return genre != ""
		})
		items = append(items, Item{
			ItemId: fields[0],
			Title:  fields[1],
			Genres: mapset.NewSet[string](genres...),
		})
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// FilterByGenre returns items whose genre set contains a genre matching
// the query as a case-insensitive substring.
func FilterByGenre(items []Item, query string) []Item {
	query = strings.ToLower(query)
	return lo.Filter(items, func(item Item, _ int) bool {
		return lo.SomeBy(item.Genres.ToSlice(), func(genre string) bool {
			return strings.Contains(strings.ToLower(genre), query)
		})
	})
}
