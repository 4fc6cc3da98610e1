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

package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/mf"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend items from a saved model.",
	Long: `Recommend items from a saved model.

For a user seen during training, pass --user. For a new user, pass the
user's ratings with repeated --rate item=score flags; the user's latent
factor is fitted by ridge regression against the frozen item factors.`,
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
		conf := loadConfig(cmd)

		modelPath, _ := cmd.Flags().GetString("model")
		model, err := loadModel(modelPath)
		if err != nil {
			log.Logger().Fatal("failed to load model",
				zap.String("path", modelPath), zap.Error(err))
		}

		userId, _ := cmd.Flags().GetString("user")
		rates, _ := cmd.Flags().GetStringSlice("rate")
		var scores []float64
		var rated map[int]float64
		switch {
		case userId != "" && len(rates) > 0:
			log.Logger().Fatal("--user and --rate are mutually exclusive")
		case userId != "":
			userIndex, ok := model.UserIndex.Lookup(userId)
			if !ok {
				log.Logger().Fatal("unknown user", zap.String("user_id", userId))
			}
			if scores, err = model.ScoreItems(userIndex); err != nil {
				log.Logger().Fatal("failed to score items", zap.Error(err))
			}
		case len(rates) > 0:
			if rated, err = parseRatings(model, rates); err != nil {
				log.Logger().Fatal("failed to parse ratings", zap.Error(err))
			}
			scores, err = mf.PredictNewUser(model.ItemFactor, rated, conf.Recommend.ColdStartReg)
			if err != nil {
				log.Logger().Fatal("failed to fit new user", zap.Error(err))
			}
		default:
			log.Logger().Fatal("pass --user for a known user or --rate for a new user")
		}

		// resolve item metadata, optionally narrowed by genre
		items, titles, genres := loadMetadata(conf.Data.ItemsPath, conf.Data.Separator)
		genre, _ := cmd.Flags().GetString("genre")
		allowed := allowedItems(model, items, genre)

		type rec struct {
			itemIndex int
			score     float64
		}
		recs := make([]rec, 0, len(scores))
		for itemIndex, score := range scores {
			if _, ok := rated[itemIndex]; ok {
				continue
			}
			if allowed != nil {
				if _, ok := allowed[itemIndex]; !ok {
					continue
				}
			}
			recs = append(recs, rec{itemIndex, score})
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].score > recs[j].score })
		topN, _ := cmd.Flags().GetInt("top-n")
		if topN <= 0 {
			topN = conf.Recommend.TopN
		}
		if len(recs) > topN {
			recs = recs[:topN]
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Rank", "Item", "Title", "Genres", "Score")
		for rank, r := range recs {
			itemId, _ := model.ItemIndex.String(r.itemIndex)
			_ = table.Append([]string{
				strconv.Itoa(rank + 1),
				itemId,
				titles[itemId],
				genres[itemId],
				fmt.Sprintf("%.4f", r.score),
			})
		}
		if err := table.Render(); err != nil {
			log.Logger().Fatal("failed to render table", zap.Error(err))
		}
	},
}

func init() {
	recommendCommand.Flags().StringP("model", "m", "latent.model", "path of the saved model")
	recommendCommand.Flags().String("user", "", "recommend for a user seen during training")
	recommendCommand.Flags().StringSlice("rate", nil, "rating of a new user, item=score")
	recommendCommand.Flags().String("genre", "", "only recommend items matching a genre")
	recommendCommand.Flags().IntP("top-n", "n", 0, "number of recommended items")
}

func loadModel(path string) (*mf.FactorModel, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	model := new(mf.FactorModel)
	if err := model.Unmarshal(file); err != nil {
		return nil, err
	}
	return model, nil
}

// parseRatings converts repeated item=score flags to dense item indices.
func parseRatings(model *mf.FactorModel, rates []string) (map[int]float64, error) {
	ratings := make(map[int]float64, len(rates))
	for _, rate := range rates {
		itemId, value, found := strings.Cut(rate, "=")
		if !found {
			return nil, fmt.Errorf("malformed rating %q, expected item=score", rate)
		}
		score, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed score in %q: %w", rate, err)
		}
		itemIndex, ok := model.ItemIndex.Lookup(itemId)
		if !ok {
			return nil, fmt.Errorf("unknown item %q", itemId)
		}
		ratings[itemIndex] = score
	}
	return ratings, nil
}

// loadMetadata reads the optional item file. Missing metadata only
// degrades the output, so failures are logged and ignored.
func loadMetadata(path, sep string) (items []dataset.Item, titles, genres map[string]string) {
	titles = make(map[string]string)
	genres = make(map[string]string)
	if path == "" {
		return
	}
	var err error
	if items, err = dataset.LoadItems(path, sep); err != nil {
		log.Logger().Warn("failed to load items", zap.String("path", path), zap.Error(err))
		return
	}
	for _, item := range items {
		titles[item.ItemId] = item.Title
		itemGenres := item.Genres.ToSlice()
		sort.Strings(itemGenres)
		genres[item.ItemId] = strings.Join(itemGenres, "|")
	}
	return
}

// allowedItems returns the dense indices matching the genre query, or
// nil when no filtering applies.
func allowedItems(model *mf.FactorModel, items []dataset.Item, genre string) map[int]struct{} {
	if genre == "" {
		return nil
	}
	if len(items) == 0 {
		log.Logger().Fatal("--genre requires data.items_path in the config")
	}
	allowed := make(map[int]struct{})
	for _, item := range dataset.FilterByGenre(items, genre) {
		if itemIndex, ok := model.ItemIndex.Lookup(item.ItemId); ok {
			allowed[itemIndex] = struct{}{}
		}
	}
	return allowed
}
