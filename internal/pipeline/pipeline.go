// Package pipeline sequences one forecast cycle: refresh data, load the
// table, load or train a model, forecast, enrich with irrigation, publish.
// It is the only layer that catches component errors broadly; every step
// failure aborts the run and leaves previously persisted state untouched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"agroforecast/internal/config"
	"agroforecast/internal/forecast"
	"agroforecast/internal/irrigation"
	"agroforecast/internal/model"
	"agroforecast/internal/store"
	"agroforecast/internal/timeseries"
)

// Fetcher is the upstream data collaborator.
type Fetcher interface {
	FetchDaily(ctx context.Context, start, end time.Time) ([]timeseries.Observation, error)
}

// Dataset is the local dataset collaborator.
type Dataset interface {
	Load() (*timeseries.Table, error)
	LastDate() (time.Time, error)
	Merge([]timeseries.Observation) error
}

// stalenessWarnDays is the data lag beyond which a warning is logged.
const stalenessWarnDays = 2

// Pipeline owns one station's end-to-end forecast cycle. Each run owns
// its model and scaler instances from load to publish; nothing is shared
// across concurrent stations.
type Pipeline struct {
	cfg       *config.AppConfig
	fetcher   Fetcher
	dataset   Dataset
	publisher *store.Publisher
	calc      *irrigation.Calculator

	// now is swappable for tests.
	now func() time.Time
}

// New wires a pipeline from its collaborators.
func New(cfg *config.AppConfig, fetcher Fetcher, dataset Dataset, publisher *store.Publisher) (*Pipeline, error) {
	calc, err := irrigation.NewCalculator(irrigation.Config{
		AvailableWaterMM: cfg.AvailableWaterMM,
		AllowedDepletion: cfg.AllowedDepletion,
		Efficiency:       cfg.Efficiency,
		WetnessFeature:   cfg.WetnessFeature,
	})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		dataset:   dataset,
		publisher: publisher,
		calc:      calc,
		now:       time.Now,
	}, nil
}

// RunOnce executes the daily pipeline and returns the published run.
func (p *Pipeline) RunOnce(ctx context.Context) (store.Run, error) {
	log.Println("pipeline: starting forecast run")

	log.Println("pipeline: step 1: refreshing dataset")
	if err := p.refreshData(ctx); err != nil {
		return store.Run{}, fmt.Errorf("refresh data: %w", err)
	}

	log.Println("pipeline: step 2: loading dataset")
	table, err := p.dataset.Load()
	if err != nil {
		return store.Run{}, fmt.Errorf("load data: %w", err)
	}
	p.logFreshness(table)

	log.Println("pipeline: step 3: loading or training model")
	reg, scaler, eval, err := p.loadOrTrain(table)
	if err != nil {
		return store.Run{}, fmt.Errorf("prepare model: %w", err)
	}

	log.Println("pipeline: step 4: forecasting")
	records, baseDate, err := p.forecast(table, reg, scaler)
	if err != nil {
		return store.Run{}, fmt.Errorf("forecast: %w", err)
	}

	log.Println("pipeline: step 5: computing irrigation requirement")
	records, err = p.calc.Enrich(records)
	if err != nil {
		return store.Run{}, fmt.Errorf("irrigation: %w", err)
	}

	run := store.Run{
		PublishedAt: p.now().UTC(),
		BaseDate:    baseDate,
		Records:     records,
		Retrained:   eval != nil,
	}
	if eval != nil {
		run.RMSE = eval.RMSE
		run.MAE = eval.MAE
	}
	p.publisher.Publish(run)

	for _, rec := range records {
		if w, ok := rec.Value(p.cfg.WetnessFeature); ok && rec.Water != nil {
			log.Printf("pipeline: %s wetness=%.4f depletion=%.3f net=%.2fmm gross=%.2fmm",
				rec.Date.Format("2006-01-02"), w, rec.Water.DepletionFrac, rec.Water.NetMM, rec.Water.GrossMM)
		}
	}
	log.Println("pipeline: forecast run completed")
	return run, nil
}

// Retrain refreshes the dataset and trains a fresh model unconditionally,
// replacing the persisted artifact.
func (p *Pipeline) Retrain(ctx context.Context) error {
	log.Println("pipeline: starting retraining")

	if err := p.refreshData(ctx); err != nil {
		return fmt.Errorf("refresh data: %w", err)
	}
	table, err := p.dataset.Load()
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	if _, _, _, err := p.train(table); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	log.Println("pipeline: retraining completed")
	return nil
}

// refreshData fetches a trailing slice of days ending today and merges it
// into the dataset. The fetch window starts a few days before the last
// stored date so upstream corrections to recent days are picked up.
func (p *Pipeline) refreshData(ctx context.Context) error {
	last, err := p.dataset.LastDate()
	if err != nil {
		return err
	}

	start := last.AddDate(0, 0, -p.cfg.FetchDaysBack)
	end := p.now()
	log.Printf("pipeline: fetching %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))

	rows, err := p.fetcher.FetchDaily(ctx, start, end)
	if err != nil {
		return err
	}
	log.Printf("pipeline: received %d rows", len(rows))
	return p.dataset.Merge(rows)
}

func (p *Pipeline) logFreshness(table *timeseries.Table) {
	last, err := table.LastDate()
	if err != nil {
		return
	}
	behind := int(p.now().Sub(last).Hours() / 24)
	log.Printf("pipeline: %d rows, latest %s (%d days behind)", table.Len(), last.Format("2006-01-02"), behind)
	if behind > stalenessWarnDays {
		log.Printf("WARN: dataset is %d days behind; upstream may be lagging", behind)
	}
}

// loadOrTrain loads the persisted (model, scaler) pair, falling back to
// training when no artifact exists. The returned evaluation is non-nil
// only when training happened.
func (p *Pipeline) loadOrTrain(table *timeseries.Table) (*model.WindowRegressor, *timeseries.MinMaxScaler, *model.Evaluation, error) {
	reg, scaler, err := model.Load(p.cfg.ModelPath, p.cfg.Steps, p.cfg.Features)
	if err == nil {
		log.Println("pipeline: using existing model")
		return reg, scaler, nil, nil
	}
	if !errors.Is(err, model.ErrNoArtifact) {
		return nil, nil, nil, err
	}

	log.Println("pipeline: no existing model, training")
	return p.train(table)
}

// train fits a scaler and model on the table, evaluates on the held-out
// chronological test slice, and persists the matched pair atomically.
func (p *Pipeline) train(table *timeseries.Table) (*model.WindowRegressor, *timeseries.MinMaxScaler, *model.Evaluation, error) {
	scaler := timeseries.NewMinMaxScaler()
	if err := scaler.Fit(table.Values()); err != nil {
		return nil, nil, nil, err
	}

	engine, err := timeseries.NewWindowEngine(p.cfg.Steps, scaler)
	if err != nil {
		return nil, nil, nil, err
	}
	set, err := engine.TrainingSequences(table)
	if err != nil {
		return nil, nil, nil, err
	}
	split, err := timeseries.SplitChronological(set, 0.1, 0.1)
	if err != nil {
		return nil, nil, nil, err
	}

	reg, err := model.NewWindowRegressor(p.cfg.Steps, len(p.cfg.Features))
	if err != nil {
		return nil, nil, nil, err
	}
	trainCfg := model.TrainConfig{
		Epochs:       p.cfg.Epochs,
		LearningRate: p.cfg.LearningRate,
		Seed:         uint64(p.now().UnixNano()),
	}
	history, err := reg.Fit(split.Train, split.Val, trainCfg)
	if err != nil {
		return nil, nil, nil, err
	}

	eval, err := reg.Evaluate(split.Test)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Printf("pipeline: model performance RMSE=%.4f MAE=%.4f (scaled)", eval.RMSE, eval.MAE)

	artifact := &model.Artifact{
		Steps:     p.cfg.Steps,
		Features:  p.cfg.Features,
		Network:   reg.Network(),
		Scaler:    scaler,
		TrainedAt: p.now().UTC(),
		History:   history,
	}
	if err := model.Save(p.cfg.ModelPath, artifact); err != nil {
		return nil, nil, nil, err
	}
	log.Printf("pipeline: model and scaler saved to %s", p.cfg.ModelPath)

	return reg, scaler, eval, nil
}

// forecast builds the last window from the table and rolls it forward for
// the configured horizon. Forecast dates are anchored on the last
// observed day, so day 1 is the day after the newest data.
func (p *Pipeline) forecast(table *timeseries.Table, reg *model.WindowRegressor, scaler *timeseries.MinMaxScaler) ([]forecast.Record, time.Time, error) {
	engine, err := timeseries.NewWindowEngine(p.cfg.Steps, scaler)
	if err != nil {
		return nil, time.Time{}, err
	}
	window, err := engine.LastWindow(table)
	if err != nil {
		return nil, time.Time{}, err
	}

	fc, err := forecast.NewEngine(reg, scaler, p.cfg.Features)
	if err != nil {
		return nil, time.Time{}, err
	}

	base, err := table.LastDate()
	if err != nil {
		return nil, time.Time{}, err
	}
	records, err := fc.MultiStep(window, base, p.cfg.ForecastDays)
	if err != nil {
		return nil, time.Time{}, err
	}
	return records, base, nil
}
