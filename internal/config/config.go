package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"agroforecast/internal/timeseries"
)

var validate = validator.New()

// AppConfig is the full runtime configuration, read once at startup and
// treated as read-only afterwards.
type AppConfig struct {
	// Station coordinates for the NASA POWER point query.
	StationLat float64 `validate:"gte=-90,lte=90"`
	StationLon float64 `validate:"gte=-180,lte=180"`

	// Tracked feature columns, in order. WetnessFeature must be one of
	// them; it drives the irrigation calculation.
	Features       timeseries.FeatureSet `validate:"min=1"`
	WetnessFeature string                `validate:"required"`

	// Dataset and model artifact locations.
	CSVPath   string `validate:"required"`
	ModelPath string `validate:"required"`

	// Window length the model consumes, and training settings.
	Steps        int     `validate:"gte=1"`
	Epochs       int     `validate:"gte=1"`
	LearningRate float64 `validate:"gt=0"`

	// Forecast horizon in days, and how many trailing days to re-fetch
	// on each refresh so late-arriving upstream corrections are caught.
	ForecastDays  int `validate:"gte=1"`
	FetchDaysBack int `validate:"gte=0"`

	// Irrigation constants.
	AvailableWaterMM float64 `validate:"gt=0"`
	AllowedDepletion float64 `validate:"gte=0,lte=1"`
	Efficiency       float64 `validate:"gt=0,lte=1"`

	// HTTPTimeout bounds outbound POWER API calls.
	HTTPTimeout time.Duration

	// Daily pipeline and weekly retrain schedule (HH:MM, scheduler TZ).
	ForecastAt string `validate:"required"`
	RetrainAt  string `validate:"required"`

	// Published-run retention for the dashboard.
	PublishHistory int

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	lat, err := getenvFloat("STATION_LAT", 21.01)
	if err != nil {
		return nil, err
	}
	lon, err := getenvFloat("STATION_LON", 105.83)
	if err != nil {
		return nil, err
	}
	cfg.StationLat = lat
	cfg.StationLon = lon

	for _, f := range strings.Split(getenvDefault("FEATURES", "QV2M,GWETROOT"), ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			cfg.Features = append(cfg.Features, f)
		}
	}
	cfg.WetnessFeature = getenvDefault("WETNESS_FEATURE", "GWETROOT")
	if _, ok := cfg.Features.Index(cfg.WetnessFeature); !ok {
		return nil, fmt.Errorf("WETNESS_FEATURE %q is not among FEATURES %v", cfg.WetnessFeature, cfg.Features)
	}

	cfg.CSVPath = getenvDefault("CSV_PATH", "data/power_daily.csv")
	cfg.ModelPath = getenvDefault("MODEL_PATH", "model.json")

	cfg.Steps = getenvInt("N_STEPS", 20)
	cfg.Epochs = getenvInt("TRAIN_EPOCHS", 20)
	lr, err := getenvFloat("LEARNING_RATE", 0.02)
	if err != nil {
		return nil, err
	}
	cfg.LearningRate = lr

	cfg.ForecastDays = getenvInt("FORECAST_DAYS", 1)
	cfg.FetchDaysBack = getenvInt("FETCH_DAYS_BACK", 7)

	awc, err := getenvFloat("AWC_MM", 100)
	if err != nil {
		return nil, err
	}
	mad, err := getenvFloat("ALLOWED_DEPLETION", 0.5)
	if err != nil {
		return nil, err
	}
	eff, err := getenvFloat("EFFICIENCY", 0.9)
	if err != nil {
		return nil, err
	}
	cfg.AvailableWaterMM = awc
	cfg.AllowedDepletion = mad
	cfg.Efficiency = eff

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.ForecastAt = getenvDefault("FORECAST_AT", "06:00")
	cfg.RetrainAt = getenvDefault("RETRAIN_AT", "02:00")
	cfg.PublishHistory = getenvInt("PUBLISH_HISTORY", 30)
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
