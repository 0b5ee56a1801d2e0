package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"agroforecast/internal/store"
	"agroforecast/internal/timeseries"
)

var validate = validator.New()

// DatasetReader is the slice of the dataset store the API needs.
type DatasetReader interface {
	Load() (*timeseries.Table, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, publisher *store.Publisher, dataset DatasetReader) {
	app.Get("/", func(c *fiber.Ctx) error {
		run, err := publisher.Latest()
		hasRun := err == nil

		page, err := renderDashboard(run, hasRun)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render dashboard")
		}
		c.Type("html", "utf-8")
		return c.SendString(page)
	})

	v1 := app.Group("/api/v1")

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		run, err := publisher.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNoForecast) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast published yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read forecast")
		}
		return c.JSON(run)
	})

	v1.Get("/forecast/history", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"runs": publisher.History(),
		})
	})

	v1.Get("/observations", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		table, err := dataset.Load()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load observations")
		}

		var rows []timeseries.Observation
		for _, r := range table.Rows {
			if !r.Date.Before(req.From) && !r.Date.After(req.To) {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no observations in requested range")
		}

		return c.JSON(fiber.Map{
			"features":     table.Features,
			"from":         req.From,
			"to":           req.To,
			"observations": rows,
		})
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		_, err := publisher.Latest()
		return c.JSON(fiber.Map{
			"status":       "running",
			"last_checked": time.Now().UTC(),
			"has_forecast": err == nil,
		})
	})
}

// rangeQuery holds query parameters for the observations endpoint.
type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

// parseTime tries RFC3339, a plain date, or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts.UTC(), nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD, or unix seconds")
}
