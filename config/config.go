// Copyright 2020 gorse Project Authors
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
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/suggest/model"
	"github.com/gorse-io/suggest/model/fm"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for the recommender.
type Config struct {
	Source    SourceConfig    `mapstructure:"source"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Model     ModelConfig     `mapstructure:"model"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// SourceConfig locates the rating and item tables.
type SourceConfig struct {
	URI          string `mapstructure:"uri" validate:"required"`
	RatingsTable string `mapstructure:"ratings_table" validate:"required"`
	ItemsTable   string `mapstructure:"items_table"`
	TablePrefix  string `mapstructure:"table_prefix"`
}

// SchemaConfig names the reserved columns and declares categorical columns.
type SchemaConfig struct {
	UserColumn          string   `mapstructure:"user_column" validate:"required"`
	ItemColumn          string   `mapstructure:"item_column" validate:"required"`
	RatingColumn        string   `mapstructure:"rating_column" validate:"required"`
	TimestampColumn     string   `mapstructure:"timestamp_column"`
	TitleColumn         string   `mapstructure:"title_column"`
	ReleaseDateColumn   string   `mapstructure:"release_date_column"`
	CategoricalColumns  []string `mapstructure:"categorical_columns"`
	CategoricalPrefixes []string `mapstructure:"categorical_prefixes"`
	MinRating           float64  `mapstructure:"min_rating" validate:"ltfield=MaxRating"`
	MaxRating           float64  `mapstructure:"max_rating"`
}

// Columns returns the reserved column names seen by the feature model.
func (config *SchemaConfig) Columns() fm.Columns {
	return fm.Columns{
		User:        config.UserColumn,
		Item:        config.ItemColumn,
		Timestamp:   config.TimestampColumn,
		Title:       config.TitleColumn,
		ReleaseDate: config.ReleaseDateColumn,
	}
}

// RecommendConfig controls ranking.
type RecommendConfig struct {
	Strategy              string `mapstructure:"strategy" validate:"oneof=neighborhood model"`
	K                     int    `mapstructure:"k" validate:"gt=0"`
	N                     int    `mapstructure:"n" validate:"gt=0"`
	ModelN                int    `mapstructure:"model_n" validate:"gt=0"`
	Jobs                  int    `mapstructure:"jobs" validate:"gt=0"`
	EnableSimilarityCache bool   `mapstructure:"enable_similarity_cache"`
	ItemFilter            string `mapstructure:"item_filter"`
}

// DefaultN returns the list length used when a request does not set one.
func (config *RecommendConfig) DefaultN(strategy string) int {
	if strategy == "model" {
		return config.ModelN
	}
	return config.N
}

// ModelConfig controls training of the factorization machine.
type ModelConfig struct {
	Enable          bool    `mapstructure:"enable"`
	NFactors        int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs         int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr              float64 `mapstructure:"lr" validate:"gt=0"`
	Reg             float64 `mapstructure:"reg" validate:"gte=0"`
	InitStd         float64 `mapstructure:"init_std" validate:"gte=0"`
	Patience        int     `mapstructure:"patience" validate:"gte=0"`
	ValidationRatio float64 `mapstructure:"validation_ratio" validate:"gt=0,lt=1"`
	RandomState     int64   `mapstructure:"random_state"`
	Jobs            int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose         int     `mapstructure:"verbose" validate:"gte=0"`
}

func (config *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitStdDev:  config.InitStd,
		model.RandomState: config.RandomState,
	}
}

func (config *ModelConfig) GetFitConfig() *fm.FitConfig {
	return fm.NewFitConfig().
		SetJobs(config.Jobs).
		SetVerbose(config.Verbose).
		SetPatience(config.Patience)
}

// ServerConfig is the configuration for the REST server.
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	APIKey            string        `mapstructure:"api_key"`
	CacheURI          string        `mapstructure:"cache_uri"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	RequestsPerSecond int           `mapstructure:"requests_per_second" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URI:          "csv://data",
			RatingsTable: "merged_dataset",
			ItemsTable:   "movies_clean",
		},
		Schema: SchemaConfig{
			UserColumn:          "user_id",
			ItemColumn:          "movie_id",
			RatingColumn:        "rating",
			TimestampColumn:     "rating_date",
			TitleColumn:         "title",
			ReleaseDateColumn:   "release_date",
			CategoricalColumns:  []string{},
			CategoricalPrefixes: []string{"sex_", "age_group_"},
			MinRating:           1,
			MaxRating:           5,
		},
		Recommend: RecommendConfig{
			Strategy:              "neighborhood",
			K:                     5,
			N:                     10,
			ModelN:                20,
			Jobs:                  4,
			EnableSimilarityCache: true,
		},
		Model: ModelConfig{
			Enable:          true,
			NFactors:        16,
			NEpochs:         100,
			Lr:              0.01,
			Reg:             0.0001,
			InitStd:         0.01,
			Patience:        10,
			ValidationRatio: 0.2,
			RandomState:     42,
			Jobs:            4,
			Verbose:         10,
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8087,
			CacheTTL: 10 * time.Minute,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [source]
	viper.SetDefault("source.uri", defaultConfig.Source.URI)
	viper.SetDefault("source.ratings_table", defaultConfig.Source.RatingsTable)
	viper.SetDefault("source.items_table", defaultConfig.Source.ItemsTable)
	viper.SetDefault("source.table_prefix", defaultConfig.Source.TablePrefix)
	// [schema]
	viper.SetDefault("schema.user_column", defaultConfig.Schema.UserColumn)
	viper.SetDefault("schema.item_column", defaultConfig.Schema.ItemColumn)
	viper.SetDefault("schema.rating_column", defaultConfig.Schema.RatingColumn)
	viper.SetDefault("schema.timestamp_column", defaultConfig.Schema.TimestampColumn)
	viper.SetDefault("schema.title_column", defaultConfig.Schema.TitleColumn)
	viper.SetDefault("schema.release_date_column", defaultConfig.Schema.ReleaseDateColumn)
	viper.SetDefault("schema.categorical_columns", defaultConfig.Schema.CategoricalColumns)
	viper.SetDefault("schema.categorical_prefixes", defaultConfig.Schema.CategoricalPrefixes)
	viper.SetDefault("schema.min_rating", defaultConfig.Schema.MinRating)
	viper.SetDefault("schema.max_rating", defaultConfig.Schema.MaxRating)
	// [recommend]
	viper.SetDefault("recommend.strategy", defaultConfig.Recommend.Strategy)
	viper.SetDefault("recommend.k", defaultConfig.Recommend.K)
	viper.SetDefault("recommend.n", defaultConfig.Recommend.N)
	viper.SetDefault("recommend.model_n", defaultConfig.Recommend.ModelN)
	viper.SetDefault("recommend.jobs", defaultConfig.Recommend.Jobs)
	viper.SetDefault("recommend.enable_similarity_cache", defaultConfig.Recommend.EnableSimilarityCache)
	viper.SetDefault("recommend.item_filter", defaultConfig.Recommend.ItemFilter)
	// [model]
	viper.SetDefault("model.enable", defaultConfig.Model.Enable)
	viper.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	viper.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	viper.SetDefault("model.lr", defaultConfig.Model.Lr)
	viper.SetDefault("model.reg", defaultConfig.Model.Reg)
	viper.SetDefault("model.init_std", defaultConfig.Model.InitStd)
	viper.SetDefault("model.patience", defaultConfig.Model.Patience)
	viper.SetDefault("model.validation_ratio", defaultConfig.Model.ValidationRatio)
	viper.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	viper.SetDefault("model.jobs", defaultConfig.Model.Jobs)
	viper.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
	viper.SetDefault("server.api_key", defaultConfig.Server.APIKey)
	viper.SetDefault("server.cache_uri", defaultConfig.Server.CacheURI)
	viper.SetDefault("server.cache_ttl", defaultConfig.Server.CacheTTL)
	viper.SetDefault("server.requests_per_second", defaultConfig.Server.RequestsPerSecond)
	// [tracing]
	viper.SetDefault("tracing.enable_tracing", defaultConfig.Tracing.EnableTracing)
	viper.SetDefault("tracing.exporter", defaultConfig.Tracing.Exporter)
	viper.SetDefault("tracing.collector_endpoint", defaultConfig.Tracing.CollectorEndpoint)
	viper.SetDefault("tracing.sampler", defaultConfig.Tracing.Sampler)
	viper.SetDefault("tracing.ratio", defaultConfig.Tracing.Ratio)
}

type configBinding struct {
	key string
	env string
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// LoadConfig loads configuration from a TOML file. Environment variables
// override values from the file. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	// set default config
	setDefault()

	// bind environment bindings
	bindings := []configBinding{
		{"source.uri", "SUGGEST_SOURCE_URI"},
		{"source.ratings_table", "SUGGEST_RATINGS_TABLE"},
		{"source.items_table", "SUGGEST_ITEMS_TABLE"},
		{"source.table_prefix", "SUGGEST_TABLE_PREFIX"},
		{"recommend.strategy", "SUGGEST_STRATEGY"},
		{"recommend.jobs", "SUGGEST_RECOMMEND_JOBS"},
		{"model.jobs", "SUGGEST_MODEL_JOBS"},
		{"server.host", "SUGGEST_SERVER_HOST"},
		{"server.port", "SUGGEST_SERVER_PORT"},
		{"server.api_key", "SUGGEST_SERVER_API_KEY"},
		{"server.cache_uri", "SUGGEST_SERVER_CACHE_URI"},
		{"server.cache_ttl", "SUGGEST_SERVER_CACHE_TTL"},
	}
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// load config file
	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	// unmarshal config file
	var conf Config
	if err := viper.Unmarshal(&conf, decodeHook()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
