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

package fm

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/gorse-io/suggest/dataset"
	"github.com/gorse-io/suggest/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockTracker struct {
	mock.Mock
}

func (t *mockTracker) Start(total int) {
	t.Called(total)
}

func (t *mockTracker) Update(done int) {
	t.Called(done)
}

func (t *mockTracker) Finish() {
	t.Called()
}

func newFitConfigWithTestTracker(numEpoch int) (*FitConfig, *mockTracker) {
	tracker := new(mockTracker)
	tracker.On("Start", numEpoch)
	tracker.On("Update", mock.Anything)
	tracker.On("Finish")
	return NewFitConfig().SetVerbose(1).SetTracker(tracker), tracker
}

func testColumns() Columns {
	columns := DefaultColumns()
	columns.Item = "movie_id"
	return columns
}

// syntheticRecords rates item i by user u as 1 + u%3 + i%3.
func syntheticRecords(nUsers, nItems int) []dataset.Record {
	var records []dataset.Record
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			records = append(records, dataset.Record{
				UserId:      fmt.Sprintf("u%d", u),
				ItemId:      fmt.Sprintf("m%d", i),
				Rating:      float64(1 + u%3 + i%3),
				Timestamp:   time.Date(2000, 1, 1+u, 0, 0, 0, 0, time.UTC),
				Title:       fmt.Sprintf("Movie %d", i),
				ReleaseDate: time.Date(1990+i, time.Month(1+i%12), 1+i, 0, 0, 0, 0, time.UTC),
				UserFields: []dataset.Field{
					dataset.NumericalField("age", float64(20+u)),
					dataset.CategoricalField("sex_F", fmt.Sprint(u%2 == 0)),
				},
				ItemFields: []dataset.Field{
					dataset.NumericalField("Comedy", float64(i%2)),
				},
			})
		}
	}
	return records
}

func meanBaseline(train, valid *Dataset) float32 {
	var mean float64
	for _, target := range train.Targets {
		mean += float64(target)
	}
	mean /= float64(train.Count())
	var sum float64
	for _, target := range valid.Targets {
		sum += (float64(target) - mean) * (float64(target) - mean)
	}
	return float32(math.Sqrt(sum / float64(valid.Count())))
}

type FMTestSuite struct {
	suite.Suite
	records []dataset.Record
	train   *Dataset
	valid   *Dataset
	fm      *FM
	score   Score
}

func (suite *FMTestSuite) SetupSuite() {
	suite.records = syntheticRecords(20, 10)
	data := NewDataset(suite.records, testColumns())
	suite.train, suite.valid = data.Split(0.2, 42)
	suite.fm = NewFM(model.Params{
		model.NFactors:    4,
		model.NEpochs:     100,
		model.Lr:          0.05,
		model.Reg:         0.0001,
		model.InitStdDev:  0.01,
		model.RandomState: 42,
	})
	config, tracker := newFitConfigWithTestTracker(100)
	var err error
	suite.score, err = suite.fm.Fit(context.Background(), suite.train, suite.valid, config.SetJobs(2))
	suite.NoError(err)
	tracker.AssertCalled(suite.T(), "Start", 100)
	tracker.AssertCalled(suite.T(), "Finish")
}

func (suite *FMTestSuite) TestSplit() {
	suite.Equal(160, suite.train.Count())
	suite.Equal(40, suite.valid.Count())
}

func (suite *FMTestSuite) TestBeatsMeanBaseline() {
	suite.Less(suite.score.RMSE, meanBaseline(suite.train, suite.valid))
	suite.Equal(float32(1), suite.fm.MinTarget)
	suite.Equal(float32(5), suite.fm.MaxTarget)
}

func (suite *FMTestSuite) TestScoreBatch() {
	rows := make([]FeatureRow, len(suite.records))
	for i, record := range suite.records {
		rows[i] = HistoryRow(record, testColumns())
	}
	scores, err := suite.fm.ScoreBatch(context.Background(), rows)
	suite.NoError(err)
	suite.Len(scores, len(rows))
	for _, score := range scores {
		suite.GreaterOrEqual(score, 1.0)
		suite.LessOrEqual(score, 5.0)
	}
	// same input, same output
	again, err := suite.fm.ScoreBatch(context.Background(), rows)
	suite.NoError(err)
	suite.Equal(scores, again)
}

func (suite *FMTestSuite) TestScoreBatchMismatch() {
	row := HistoryRow(suite.records[0], testColumns())

	extra := append(FeatureRow{}, row...)
	extra = append(extra, dataset.NumericalField("box_office", 1))
	_, err := suite.fm.ScoreBatch(context.Background(), []FeatureRow{extra})
	var mismatch *FeatureMismatchError
	suite.True(errors.As(err, &mismatch))
	suite.Equal([]string{"box_office"}, mismatch.Unexpected)

	var missing FeatureRow
	for _, field := range row {
		if field.Name != "age" {
			missing = append(missing, field)
		}
	}
	_, err = suite.fm.ScoreBatch(context.Background(), []FeatureRow{missing})
	suite.True(errors.As(err, &mismatch))
	suite.Equal([]string{"age"}, mismatch.Missing)

	kind := append(FeatureRow{}, row...).Set(dataset.CategoricalField("age", "20"))
	_, err = suite.fm.ScoreBatch(context.Background(), []FeatureRow{kind})
	suite.True(errors.As(err, &mismatch))
	suite.Equal([]string{"age"}, mismatch.KindMismatch)

	// date and text columns are not model inputs
	text := append(FeatureRow{}, row...).Set(dataset.TextField("overview", "a film"))
	_, err = suite.fm.ScoreBatch(context.Background(), []FeatureRow{text})
	suite.NoError(err)
}

func (suite *FMTestSuite) TestPredictor() {
	catalog, err := dataset.NewCatalog([]dataset.ItemProfile{{
		ItemId:      "new",
		Title:       "New Movie",
		ReleaseDate: time.Date(2020, 5, 4, 0, 0, 0, 0, time.UTC),
		Fields:      []dataset.Field{dataset.NumericalField("Comedy", 1)},
	}})
	suite.NoError(err)
	predictor := NewPredictor(suite.fm, suite.records, catalog, testColumns())
	ctx := context.Background()

	score, ok, err := predictor.Predict(ctx, "u0", "m1")
	suite.NoError(err)
	suite.True(ok)
	suite.GreaterOrEqual(score, 1.0)
	suite.LessOrEqual(score, 5.0)

	// catalog-only item
	_, ok, err = predictor.Predict(ctx, "u0", "new")
	suite.NoError(err)
	suite.True(ok)

	// user without history
	_, ok, err = predictor.Predict(ctx, "stranger", "m1")
	suite.NoError(err)
	suite.False(ok)

	// item without profile
	scores, defined, err := predictor.PredictBatch(ctx, "u1", []string{"m2", "ghost", "m3"})
	suite.NoError(err)
	suite.Equal([]bool{true, false, true}, defined)
	suite.Zero(scores[1])
}

func TestFM(t *testing.T) {
	suite.Run(t, new(FMTestSuite))
}

func TestFMEarlyStopping(t *testing.T) {
	records := syntheticRecords(6, 5)
	data := NewDataset(records, testColumns())
	train, valid := data.Split(0.2, 42)
	fm := NewFM(model.Params{
		model.NFactors: 2,
		model.NEpochs:  500,
		// too large to improve
		model.Lr:          10,
		model.RandomState: 0,
	})
	config, tracker := newFitConfigWithTestTracker(500)
	score, err := fm.Fit(context.Background(), train, valid, config.SetPatience(3))
	assert.NoError(t, err)
	assert.False(t, math.IsNaN(float64(score.RMSE)))
	assert.Less(t, len(tracker.Calls), 500)
	tracker.AssertCalled(t, "Finish")
}

func TestFMCancel(t *testing.T) {
	data := NewDataset(syntheticRecords(4, 4), testColumns())
	train, valid := data.Split(0.2, 42)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFM(model.Params{}).Fit(ctx, train, valid, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFMEmpty(t *testing.T) {
	_, err := NewFM(model.Params{}).Fit(context.Background(), &Dataset{}, &Dataset{}, nil)
	var missing *dataset.MissingDataError
	assert.True(t, errors.As(err, &missing))

	_, err = NewFM(model.Params{}).ScoreBatch(context.Background(), nil)
	assert.Error(t, err)
}

func TestEarlyStopper(t *testing.T) {
	stopper := earlyStopper{patience: 2}
	assert.False(t, stopper.Update(false))
	assert.False(t, stopper.Update(true))
	assert.False(t, stopper.Update(false))
	assert.True(t, stopper.Update(false))

	disabled := earlyStopper{}
	for i := 0; i < 10; i++ {
		assert.False(t, disabled.Update(false))
	}
}

func TestSnapshotManger(t *testing.T) {
	var sm SnapshotManger
	v := [][]float32{{1, 2}}
	w := []float32{3}
	assert.True(t, sm.AddSnapshot(Score{RMSE: 2}, v, w, 1))
	v[0][0], w[0] = 10, 30
	assert.False(t, sm.AddSnapshot(Score{RMSE: 3}, v, w, 2))
	assert.Equal(t, [][]float32{{1, 2}}, sm.best.V)
	assert.Equal(t, []float32{3}, sm.best.W)
	assert.True(t, sm.AddSnapshot(Score{RMSE: 1}, v, w, 2))
	assert.Equal(t, float32(2), sm.best.B)
	assert.Equal(t, float32(1), sm.BestScore.RMSE)
}
