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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"

	"github.com/gorse-io/latent/model"
)

// Config is the configuration of the latent command line tools.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Model     ModelConfig     `mapstructure:"model"`
	Recommend RecommendConfig `mapstructure:"recommend"`
}

// DataConfig describes where ratings live and how to split them.
type DataConfig struct {
	RatingsPath string  `mapstructure:"ratings_path"`
	ItemsPath   string  `mapstructure:"items_path"`
	Separator   string  `mapstructure:"separator" validate:"required"`
	TestRatio   float64 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
}

// ModelConfig carries the hyper-parameters of the factorization.
type ModelConfig struct {
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	BatchSize   int     `mapstructure:"batch_size" validate:"gt=0"`
	Lr          float64 `mapstructure:"lr" validate:"gt=0"`
	Reg         float64 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float64 `mapstructure:"init_mean"`
	InitStdDev  float64 `mapstructure:"init_std" validate:"gt=0"`
	RandomState int     `mapstructure:"random_state"`
	Verbose     int     `mapstructure:"verbose" validate:"gt=0"`
}

// RecommendConfig controls the recommendation output.
type RecommendConfig struct {
	TopN         int     `mapstructure:"top_n" validate:"gt=0"`
	ColdStartReg float64 `mapstructure:"cold_start_reg" validate:"gte=0"`
}

// GetDefaultConfig returns a default config, matching the trainer's
// built-in hyper-parameter defaults.
func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Separator: "::",
			TestRatio: 0.2,
		},
		Model: ModelConfig{
			NFactors:   10,
			NEpochs:    20,
			BatchSize:  128,
			Lr:         0.01,
			Reg:        0.02,
			InitMean:   0,
			InitStdDev: 1,
			Verbose:    10,
		},
		Recommend: RecommendConfig{
			TopN:         10,
			ColdStartReg: 0.1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [data]
	viper.SetDefault("data.separator", defaultConfig.Data.Separator)
	viper.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	// [model]
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	viper.SetDefault("model.batch_size", defaultConfig.Model.BatchSize)
	viper.SetDefault("model.lr", defaultConfig.Model.Lr)
	viper.SetDefault("model.reg", defaultConfig.Model.Reg)
	viper.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	viper.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	viper.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [recommend]
	viper.SetDefault("recommend.top_n", defaultConfig.Recommend.TopN)
	viper.SetDefault("recommend.cold_start_reg", defaultConfig.Recommend.ColdStartReg)
}

// LoadConfig loads and validates a TOML configuration file. Every field
// may be overridden by a LATENT_ environment variable, for example
// LATENT_MODEL_N_FACTORS=32.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	viper.SetConfigType("toml")
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("latent")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Trace(err)
	}
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := validator.New().Struct(&config); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// ModelParams converts the [model] section to trainer hyper-parameters.
func (config *Config) ModelParams() model.Params {
	return model.Params{
		model.NFactors:    config.Model.NFactors,
		model.NEpochs:     config.Model.NEpochs,
		model.BatchSize:   config.Model.BatchSize,
		model.Lr:          config.Model.Lr,
		model.Reg:         config.Model.Reg,
		model.InitMean:    config.Model.InitMean,
		model.InitStdDev:  config.Model.InitStdDev,
		model.RandomState: int64(config.Model.RandomState),
	}
}
