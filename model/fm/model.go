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
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/common/floats"
	"github.com/gorse-io/suggest/common/parallel"
	"github.com/gorse-io/suggest/dataset"
	"github.com/gorse-io/suggest/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

type FitConfig struct {
	Jobs     int
	Verbose  int
	Patience int
	Tracker  model.Tracker
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:     1,
		Verbose:  10,
		Patience: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}

func (config *FitConfig) SetPatience(patience int) *FitConfig {
	config.Patience = patience
	return config
}

func (config *FitConfig) SetTracker(tracker model.Tracker) *FitConfig {
	config.Tracker = tracker
	return config
}

func (config *FitConfig) LoadDefaultIfNil() *FitConfig {
	if config == nil {
		return NewFitConfig()
	}
	return config
}

// FM is a factorization machine trained for rating regression.
type FM struct {
	model.BaseModel
	Encoder *Encoder
	// Model parameters
	V         [][]float32
	W         []float32
	B         float32
	MinTarget float32
	MaxTarget float32
	// Hyper parameters
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	initMean   float32
	initStdDev float32
	jobs       int
}

func NewFM(params model.Params) *FM {
	fm := new(FM)
	fm.SetParams(params)
	return fm
}

func (fm *FM) SetParams(params model.Params) {
	fm.BaseModel.SetParams(params)
	fm.nFactors = fm.Params.GetInt(model.NFactors, 16)
	fm.nEpochs = fm.Params.GetInt(model.NEpochs, 100)
	fm.lr = fm.Params.GetFloat32(model.Lr, 0.01)
	fm.reg = fm.Params.GetFloat32(model.Reg, 0.0001)
	fm.initMean = fm.Params.GetFloat32(model.InitMean, 0)
	fm.initStdDev = fm.Params.GetFloat32(model.InitStdDev, 0.01)
	fm.jobs = 1
}

// Invalid returns true if the model has not been fitted.
func (fm *FM) Invalid() bool {
	return fm == nil ||
		fm.V == nil ||
		fm.W == nil ||
		fm.Encoder == nil
}

// Schema returns the columns the model was trained on.
func (fm *FM) Schema() Schema {
	if fm.Encoder == nil {
		return nil
	}
	return fm.Encoder.Schema
}

func (fm *FM) internalPredictImpl(features []int32, values []float32) float32 {
	// w_0
	pred := fm.B
	// \sum^n_{i=1} w_i x_i
	for it, i := range features {
		pred += fm.W[i] * values[it]
	}
	// \sum^n_{i=1}\sum^n_{j=i+1} <v_i,v_j> x_i x_j
	sum := float32(0)
	for f := 0; f < fm.nFactors; f++ {
		a, b := float32(0), float32(0)
		for it, i := range features {
			a += fm.V[i][f] * values[it]
			b += fm.V[i][f] * fm.V[i][f] * values[it] * values[it]
		}
		sum += a*a - b
	}
	pred += sum / 2
	return pred
}

// InternalPredict scores an encoded row, clamped to the range of training
// targets.
func (fm *FM) InternalPredict(features []int32, values []float32) float32 {
	pred := fm.internalPredictImpl(features, values)
	if pred < fm.MinTarget {
		pred = fm.MinTarget
	} else if pred > fm.MaxTarget {
		pred = fm.MaxTarget
	}
	return pred
}

// ScoreBatch predicts a rating for every row. Every row must carry exactly the
// numeric and categorical columns seen in training, otherwise a
// *FeatureMismatchError is returned.
func (fm *FM) ScoreBatch(ctx context.Context, rows []FeatureRow) ([]float64, error) {
	if fm.Invalid() {
		return nil, errors.New("factorization machine is not fitted")
	}
	features := make([][]int32, len(rows))
	values := make([][]float32, len(rows))
	for i, row := range rows {
		var err error
		if features[i], values[i], err = fm.Encoder.Encode(row); err != nil {
			return nil, errors.Annotatef(err, "row %d", i)
		}
	}
	scores := make([]float64, len(rows))
	err := parallel.For(ctx, len(rows), fm.jobs, func(i int) {
		scores[i] = float64(fm.InternalPredict(features[i], values[i]))
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scores, nil
}

// Fit trains the model by stochastic gradient descent. The validation set is
// evaluated after each epoch; training stops once the validation RMSE has not
// improved for Patience epochs, and the best weights are restored.
func (fm *FM) Fit(ctx context.Context, trainSet, validSet *Dataset, config *FitConfig) (Score, error) {
	config = config.LoadDefaultIfNil()
	log.Logger().Info("fit FM",
		zap.Int("train_size", trainSet.Count()),
		zap.Int("valid_size", validSet.Count()),
		zap.Any("params", fm.GetParams()),
		zap.Int("patience", config.Patience))
	if err := fm.Init(trainSet); err != nil {
		return Score{}, errors.Trace(err)
	}
	if config.Jobs > 0 {
		fm.jobs = config.Jobs
	}
	train, err := encode(fm.Encoder, trainSet)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	valid, err := encode(fm.Encoder, validSet)
	if err != nil {
		return Score{}, errors.Trace(err)
	}
	if valid.Count() == 0 {
		log.Logger().Warn("empty validation set, evaluating on training set")
		valid = train
	}
	for i := 0; i < train.Count(); i++ {
		fm.MinTarget = math32.Min(fm.MinTarget, train.targets[i])
		fm.MaxTarget = math32.Max(fm.MaxTarget, train.targets[i])
	}

	if config.Tracker != nil {
		config.Tracker.Start(fm.nEpochs)
	}
	rng := fm.GetRandomGenerator()
	temp := make([]float32, fm.nFactors)
	vGrad := make([]float32, fm.nFactors)
	snapshots := SnapshotManger{}
	stopper := earlyStopper{patience: config.Patience}
	evalStart := time.Now()
	score := EvaluateRegression(fm, valid)
	fields := append([]zap.Field{zap.String("eval_time", time.Since(evalStart).String())}, score.ZapFields()...)
	log.Logger().Debug(fmt.Sprintf("fit fm %v/%v", 0, fm.nEpochs), fields...)
	snapshots.AddSnapshot(score, fm.V, fm.W, fm.B)

	for epoch := 1; epoch <= fm.nEpochs; epoch++ {
		if err = ctx.Err(); err != nil {
			return Score{}, errors.Trace(err)
		}
		fitStart := time.Now()
		cost := float32(0)
		for _, i := range rng.Perm(train.Count()) {
			features, values, target := train.Get(i)
			prediction := fm.internalPredictImpl(features, values)
			grad := prediction - target
			cost += grad * grad / 2
			// \sum^n_{j=1}v_j,fx_j
			floats.Zero(temp)
			for it, j := range features {
				floats.MulConstAddTo(fm.V[j], values[it], temp)
			}
			// Update w_0
			fm.B -= fm.lr * grad
			for it, i := range features {
				// Update w_i
				fm.W[i] -= fm.lr * (grad*values[it] + fm.reg*fm.W[i])
				// Update v_{i,f}
				floats.MulConstTo(temp, values[it], vGrad)
				floats.MulConstAddTo(fm.V[i], -values[it]*values[it], vGrad)
				floats.MulConst(vGrad, grad)
				floats.MulConstAddTo(fm.V[i], fm.reg, vGrad)
				floats.MulConstAddTo(vGrad, -fm.lr, fm.V[i])
			}
		}
		fitTime := time.Since(fitStart)
		evalStart = time.Now()
		score = EvaluateRegression(fm, valid)
		if config.Verbose > 0 && (epoch%config.Verbose == 0 || epoch == fm.nEpochs) {
			fields = append([]zap.Field{
				zap.String("fit_time", fitTime.String()),
				zap.String("eval_time", time.Since(evalStart).String()),
				zap.Float32("loss", cost),
			}, score.ZapFields()...)
			log.Logger().Debug(fmt.Sprintf("fit fm %v/%v", epoch, fm.nEpochs), fields...)
		}
		if config.Tracker != nil {
			config.Tracker.Update(epoch)
		}
		if math32.IsNaN(cost) || math32.IsNaN(score.RMSE) {
			log.Logger().Warn("model diverged", zap.Float32("lr", fm.lr), zap.Int("epoch", epoch))
			break
		}
		improved := snapshots.AddSnapshot(score, fm.V, fm.W, fm.B)
		if stopper.Update(improved) {
			log.Logger().Info("early stopping", zap.Int("epoch", epoch), zap.Int("patience", config.Patience))
			break
		}
	}
	// restore best snapshot
	fm.V = snapshots.best.V
	fm.W = snapshots.best.W
	fm.B = snapshots.best.B
	log.Logger().Info("fit fm complete", snapshots.BestScore.ZapFields()...)
	if config.Tracker != nil {
		config.Tracker.Finish()
	}
	return snapshots.BestScore, nil
}

// Init fits the encoder to the training rows and draws fresh weights. The
// global bias starts at the mean training target.
func (fm *FM) Init(trainSet *Dataset) error {
	if trainSet.Count() == 0 {
		return dataset.NewMissingDataError("training set")
	}
	encoder, err := NewEncoder(trainSet.Rows)
	if err != nil {
		return errors.Trace(err)
	}
	fm.Encoder = encoder
	fm.V = fm.GetRandomGenerator().NormalMatrix(encoder.Count(), fm.nFactors, fm.initMean, fm.initStdDev)
	fm.W = make([]float32, encoder.Count())
	sum := float32(0)
	for _, target := range trainSet.Targets {
		sum += target
	}
	fm.B = sum / float32(trainSet.Count())
	fm.MinTarget = math32.Inf(1)
	fm.MaxTarget = math32.Inf(-1)
	return nil
}
