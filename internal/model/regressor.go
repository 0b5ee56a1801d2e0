package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"agroforecast/internal/timeseries"
)

// Regressor is the capability the forecast engine depends on: map a batch
// of scaled windows to one predicted next-step vector each.
type Regressor interface {
	Predict(windows [][][]float64) ([][]float64, error)
}

// TrainConfig controls the SGD training loop.
type TrainConfig struct {
	Epochs       int
	LearningRate float64
	Seed         uint64
}

// DefaultTrainConfig matches the reference training setup: 20 epochs of
// SGD with a modest learning rate.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{Epochs: 20, LearningRate: 0.02, Seed: 1}
}

// EpochRecord captures the loss trajectory of one training epoch. Losses
// are in scaled space, matching the training objective.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	ValLoss   float64 `json:"val_loss"`
	ValMAE    float64 `json:"val_mae"`
}

// Evaluation is the result of scoring the regressor on a held-out set.
// RMSE and MAE are computed in scaled space; callers inverse-transform
// explicitly when they want physical units.
type Evaluation struct {
	Predictions [][]float64
	RMSE        float64
	MAE         float64
}

// WindowRegressor adapts the feed-forward network to the (steps, features)
// window shape by flattening each window row-major into one input vector.
type WindowRegressor struct {
	steps    int
	features int
	net      *Network
}

// ErrNotTrained is returned when prediction is requested before Fit (or
// before loading a persisted network).
var ErrNotTrained = errors.New("regressor not trained")

// NewWindowRegressor creates an untrained regressor for the given window
// shape. Hidden layer sizes follow the input dimension down to the output.
func NewWindowRegressor(steps, features int) (*WindowRegressor, error) {
	if steps < 1 || features < 1 {
		return nil, fmt.Errorf("invalid window shape (%d, %d)", steps, features)
	}
	return &WindowRegressor{steps: steps, features: features}, nil
}

// restore attaches a previously trained network, checking shape
// compatibility.
func (r *WindowRegressor) restore(net *Network) error {
	if net.InputSize() != r.steps*r.features || net.OutputSize() != r.features {
		return fmt.Errorf("network shape %d->%d incompatible with window (%d, %d)",
			net.InputSize(), net.OutputSize(), r.steps, r.features)
	}
	r.net = net
	return nil
}

// Network exposes the trained network for persistence; nil before Fit.
func (r *WindowRegressor) Network() *Network { return r.net }

// Steps returns the window length the regressor expects.
func (r *WindowRegressor) Steps() int { return r.steps }

// Features returns the per-row feature count.
func (r *WindowRegressor) Features() int { return r.features }

// Fit trains a fresh network on the training sequences, scoring the
// validation sequences after every epoch. The validation set must come
// from a time range strictly after the training range; SplitChronological
// produces such a split.
func (r *WindowRegressor) Fit(train, val *timeseries.TrainingSet, cfg TrainConfig) ([]EpochRecord, error) {
	if train.Len() == 0 {
		return nil, fmt.Errorf("fit: %w", timeseries.ErrInsufficientData)
	}
	if cfg.Epochs < 1 {
		return nil, fmt.Errorf("fit: epochs must be >= 1, got %d", cfg.Epochs)
	}
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("fit: learning rate must be positive, got %v", cfg.LearningRate)
	}

	trainX, trainY, err := r.flattenSet(train)
	if err != nil {
		return nil, err
	}
	valX, valY, err := r.flattenSet(val)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	net, err := NewNetwork([]int{r.steps * r.features, 32, 16, r.features}, rng)
	if err != nil {
		return nil, err
	}

	history := make([]EpochRecord, 0, cfg.Epochs)
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		// Shuffling the visit order within an epoch is fine; the
		// chronological train/val boundary is what must not move.
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		for _, idx := range order {
			epochLoss += net.step(trainX[idx], trainY[idx], cfg.LearningRate)
		}
		history = append(history, EpochRecord{
			Epoch:     epoch,
			TrainLoss: epochLoss / float64(len(trainX)),
			ValLoss:   net.meanSquaredError(valX, valY),
			ValMAE:    net.meanAbsoluteError(valX, valY),
		})
	}

	r.net = net
	return history, nil
}

// Predict maps each scaled window to a predicted next-step vector.
func (r *WindowRegressor) Predict(windows [][][]float64) ([][]float64, error) {
	if r.net == nil {
		return nil, ErrNotTrained
	}
	out := make([][]float64, len(windows))
	for i, w := range windows {
		x, err := r.flatten(w)
		if err != nil {
			return nil, err
		}
		out[i] = r.net.Forward(x)
	}
	return out, nil
}

// Evaluate scores the regressor on a held-out set, reporting RMSE and MAE
// in scaled space.
func (r *WindowRegressor) Evaluate(set *timeseries.TrainingSet) (*Evaluation, error) {
	preds, err := r.Predict(set.Windows)
	if err != nil {
		return nil, err
	}

	var sqSum, absSum float64
	var count int
	for i, p := range preds {
		for j := range p {
			d := p[j] - set.Targets[i][j]
			sqSum += d * d
			absSum += math.Abs(d)
			count++
		}
	}
	if count == 0 {
		return nil, fmt.Errorf("evaluate: %w", timeseries.ErrInsufficientData)
	}
	return &Evaluation{
		Predictions: preds,
		RMSE:        math.Sqrt(sqSum / float64(count)),
		MAE:         absSum / float64(count),
	}, nil
}

func (r *WindowRegressor) flatten(window [][]float64) ([]float64, error) {
	if len(window) != r.steps {
		return nil, fmt.Errorf("window has %d rows, expected %d", len(window), r.steps)
	}
	x := make([]float64, 0, r.steps*r.features)
	for _, row := range window {
		if len(row) != r.features {
			return nil, fmt.Errorf("window row has %d features, expected %d", len(row), r.features)
		}
		x = append(x, row...)
	}
	return x, nil
}

func (r *WindowRegressor) flattenSet(set *timeseries.TrainingSet) (xs, ys [][]float64, err error) {
	xs = make([][]float64, set.Len())
	for i, w := range set.Windows {
		xs[i], err = r.flatten(w)
		if err != nil {
			return nil, nil, err
		}
	}
	return xs, set.Targets, nil
}
