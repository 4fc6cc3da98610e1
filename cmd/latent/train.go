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

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/mf"
)

var trainCommand = &cobra.Command{
	Use:   "train RATINGS_FILE",
	Short: "Fit a factorization to a ratings file and save the model.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
		log.SetLogger(cmd.Root().PersistentFlags(), debug)
		conf := loadConfig(cmd)
		ratingsPath := conf.Data.RatingsPath
		if len(args) > 0 {
			ratingsPath = args[0]
		}
		if ratingsPath == "" {
			log.Logger().Fatal("no ratings file: pass a path or set data.ratings_path")
		}

		// load and split ratings
		ratings, userIndex, itemIndex, err := dataset.LoadRatings(ratingsPath, conf.Data.Separator)
		if err != nil {
			log.Logger().Fatal("failed to load ratings", zap.Error(err))
		}
		log.Logger().Info("loaded ratings",
			zap.String("path", ratingsPath),
			zap.Int("ratings", ratings.Count()),
			zap.Int("users", ratings.Rows()),
			zap.Int("items", ratings.Cols()))
		seed, _ := cmd.Flags().GetInt64("seed")
		trainSet, validateSet := ratings.Split(conf.Data.TestRatio, seed)

		// fit
		sgd := mf.NewSGD(conf.ModelParams())
		sgd.SetIndex(userIndex, itemIndex)
		bar := progressbar.NewOptions(conf.Model.NEpochs,
			progressbar.OptionSetDescription("fit"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish())
		fitConfig := mf.NewFitConfig().
			SetVerbose(conf.Model.Verbose).
			SetOnEpoch(func(score mf.Score) {
				if score.Epoch >= 0 {
					_ = bar.Add(1)
				}
			})
		scores, err := sgd.Fit(cmd.Context(), trainSet, validateSet, fitConfig)
		if err != nil {
			log.Logger().Fatal("failed to fit", zap.Error(err))
		}
		_ = bar.Finish()
		final := scores[len(scores)-1]
		fmt.Printf("train loss = %.6f, validation loss = %.6f\n", final.Train, final.Validation)

		// save
		outputPath, _ := cmd.Flags().GetString("output")
		if err = saveModel(sgd, outputPath); err != nil {
			log.Logger().Fatal("failed to save model", zap.Error(err))
		}
		log.Logger().Info("model saved", zap.String("path", outputPath))
	},
}

func init() {
	trainCommand.Flags().StringP("output", "o", "latent.model", "path of the saved model")
	trainCommand.Flags().Int64("seed", 0, "seed of the train/validation split")
}

func saveModel(model *mf.SGD, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return model.Marshal(file)
}
