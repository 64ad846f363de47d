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

package engine

import (
	"context"
	"time"

	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/dataset"
	"github.com/gorse-io/suggest/logics"
	"github.com/gorse-io/suggest/model"
	"github.com/gorse-io/suggest/model/fm"
	"github.com/gorse-io/suggest/model/knn"
	"github.com/gorse-io/suggest/storage"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Context holds everything needed to answer queries. It is built once and
// never modified, so it may be shared by concurrent requests.
type Context struct {
	Config  *config.Config
	Records []dataset.Record
	Matrix  *dataset.RatingMatrix
	Catalog *dataset.Catalog
	Model   *fm.FM
	Score   fm.Score

	// Snapshot identifies the loaded data and the settings that shape results.
	Snapshot string

	model  *fm.Predictor
	ranker *logics.Ranker
}

// Prediction is a single rating estimate.
type Prediction struct {
	UserId  string  `json:"user_id"`
	ItemId  string  `json:"item_id"`
	Rating  float64 `json:"rating"`
	Defined bool    `json:"defined"`
	Source  string  `json:"source"`
}

// ModelInfo describes the trained feature model.
type ModelInfo struct {
	Enabled   bool     `json:"enabled"`
	RMSE      float32  `json:"rmse"`
	NFeatures int      `json:"n_features"`
	Columns   []string `json:"columns"`
	Params    model.Params `json:"params"`
}

// Init loads the dataset described by the configuration and builds a context.
func Init(ctx context.Context, cfg *config.Config, tracker model.Tracker) (*Context, error) {
	source, err := storage.Open(ctx, cfg.Source.URI, cfg.Source.TablePrefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Logger().Warn("failed to close source", zap.Error(err))
		}
	}()
	data, err := storage.NewLoader(cfg.Schema).Load(ctx, source, cfg.Source.RatingsTable, cfg.Source.ItemsTable)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return New(ctx, cfg, data, tracker)
}

// New builds a context from loaded data. The feature model is trained when
// enabled by the configuration.
func New(ctx context.Context, cfg *config.Config, data *storage.Data, tracker model.Tracker) (*Context, error) {
	matrix, err := dataset.NewRatingMatrix(data.Records)
	if err != nil {
		return nil, errors.Trace(err)
	}
	catalog, err := dataset.NewCatalog(data.Items)
	if err != nil {
		return nil, errors.Trace(err)
	}
	filter, err := logics.NewItemFilter(cfg.Recommend.ItemFilter)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c := &Context{
		Config:   cfg,
		Records:  data.Records,
		Matrix:   matrix,
		Catalog:  catalog,
		Snapshot: snapshotOf(cfg, data),
		ranker:   logics.NewRanker(matrix, catalog, filter, cfg.Recommend.Jobs),
	}
	log.Logger().Info("build rating matrix",
		zap.Int("n_users", matrix.CountUsers()),
		zap.Int("n_items", matrix.CountItems()),
		zap.Int("n_catalog", catalog.Len()))
	if cfg.Model.Enable {
		if err = c.train(ctx, tracker); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return c, nil
}

func (c *Context) train(ctx context.Context, tracker model.Tracker) error {
	if err := checkItemFeatures(c.Records); err != nil {
		return errors.Trace(err)
	}
	start := time.Now()
	columns := c.Config.Schema.Columns()
	trainSet, validSet := fm.NewDataset(c.Records, columns).
		Split(c.Config.Model.ValidationRatio, c.Config.Model.RandomState)
	m := fm.NewFM(c.Config.Model.GetParams())
	score, err := m.Fit(ctx, trainSet, validSet, c.Config.Model.GetFitConfig().SetTracker(tracker))
	if err != nil {
		return errors.Trace(err)
	}
	c.Model = m
	c.Score = score
	c.model = fm.NewPredictor(m, c.Records, c.Catalog, columns)
	log.Logger().Info("train feature model",
		append(score.ZapFields(), zap.Duration("used_time", time.Since(start)))...)
	return nil
}

// checkItemFeatures rejects records whose features all belong to the user.
// Candidate rows replace only item features, so every candidate would be
// scored with the features of the item the user rated first.
func checkItemFeatures(records []dataset.Record) error {
	var userFeatures bool
	for _, record := range records {
		if len(record.ItemFields) > 0 {
			return nil
		}
		userFeatures = userFeatures || len(record.UserFields) > 0
	}
	if userFeatures {
		return dataset.NewMissingDataError("item feature columns (is the items table configured?)")
	}
	return nil
}

// Predictor returns the predictor of a strategy. An empty strategy selects the
// configured one and k <= 0 selects the configured number of neighbors.
func (c *Context) Predictor(strategy string, k int) (logics.Predictor, error) {
	strategy, err := c.strategy(strategy)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch strategy {
	case logics.ModelStrategy:
		if c.model == nil {
			return nil, errors.NotSupportedf("model strategy without a trained model")
		}
		return logics.NewModel(c.model), nil
	default:
		if k == 0 {
			k = c.Config.Recommend.K
		}
		p, err := knn.NewPredictor(c.Matrix, k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return logics.NewNeighborhood(p, c.Config.Recommend.EnableSimilarityCache), nil
	}
}

func (c *Context) strategy(name string) (string, error) {
	if name == "" {
		name = c.Config.Recommend.Strategy
	}
	return logics.ParseStrategy(name)
}

// Resolve replaces an empty strategy and zero k or n with the configured
// defaults. k is zero for the model strategy, which has no neighbors.
func (c *Context) Resolve(strategy string, k, n int) (string, int, int, error) {
	strategy, err := c.strategy(strategy)
	if err != nil {
		return "", 0, 0, errors.Trace(err)
	}
	if strategy == logics.ModelStrategy {
		k = 0
	} else if k == 0 {
		k = c.Config.Recommend.K
	}
	if n == 0 {
		n = c.Config.Recommend.DefaultN(strategy)
	}
	return strategy, k, n, nil
}

// Recommend ranks unrated items for a user. Zero k or n selects the
// configured defaults of the strategy.
func (c *Context) Recommend(ctx context.Context, userId, strategy string, k, n int) ([]logics.Recommendation, error) {
	strategy, k, n, err := c.Resolve(strategy, k, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	predictor, err := c.Predictor(strategy, k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return c.ranker.Recommend(ctx, userId, predictor, n)
}

// Predict estimates the rating of a user for an item.
func (c *Context) Predict(ctx context.Context, userId, itemId, strategy string, k int) (Prediction, error) {
	strategy, err := c.strategy(strategy)
	if err != nil {
		return Prediction{}, errors.Trace(err)
	}
	predictor, err := c.Predictor(strategy, k)
	if err != nil {
		return Prediction{}, errors.Trace(err)
	}
	rating, ok, err := predictor.Predict(ctx, userId, itemId)
	if err != nil {
		return Prediction{}, errors.Trace(err)
	}
	return Prediction{
		UserId:  userId,
		ItemId:  itemId,
		Rating:  rating,
		Defined: ok,
		Source:  strategy,
	}, nil
}

// Similarity returns the similarity between two known users.
func (c *Context) Similarity(userA, userB string) (float64, bool, error) {
	a, ok := c.Matrix.Vector(userA)
	if !ok {
		return 0, false, errors.NotFoundf("user %s", userA)
	}
	b, ok := c.Matrix.Vector(userB)
	if !ok {
		return 0, false, errors.NotFoundf("user %s", userB)
	}
	score, defined := knn.Similarity(a, b)
	return score, defined, nil
}

// Neighbors lists the raters of an item used to predict a rating, most
// similar first.
func (c *Context) Neighbors(userId, itemId string, k int) ([]knn.Neighbor, error) {
	if k == 0 {
		k = c.Config.Recommend.K
	}
	p, err := knn.NewPredictor(c.Matrix, k)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return p.Neighbors(userId, itemId), nil
}

func (c *Context) ModelInfo() ModelInfo {
	if c.Model == nil {
		return ModelInfo{}
	}
	return ModelInfo{
		Enabled:   true,
		RMSE:      c.Score.RMSE,
		NFeatures: c.Model.Encoder.Count(),
		Columns:   c.Model.Schema().Names(),
		Params:    c.Model.GetParams(),
	}
}
