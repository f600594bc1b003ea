package httpapi

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-regime/internal/anomaly"
	"github.com/i474232898/weather-regime/internal/common"
	"github.com/i474232898/weather-regime/internal/features"
	"github.com/i474232898/weather-regime/internal/ml"
	"github.com/i474232898/weather-regime/internal/modelset"
	"github.com/i474232898/weather-regime/internal/weather"
)

var validate = validator.New()

// Options tunes the routes that work on fetched history.
type Options struct {
	// HistoryDays is the default window for history and analysis requests.
	HistoryDays int
	// Anomaly configures detectors fit per request.
	Anomaly anomaly.Config
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. models may have
// any of its fields nil; routes needing a missing model fail with 500.
func RegisterRoutes(app *fiber.App, models *modelset.Set, service *weather.Service, opts Options) {
	if models == nil {
		models = &modelset.Set{}
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = features.DefaultClusterWindow
	}
	if opts.Anomaly.Contamination == 0 {
		opts.Anomaly = anomaly.DefaultConfig()
	}

	app.Post("/predict", func(c *fiber.Ctx) error {
		// The model check comes first so an unloaded service answers the
		// same way whatever the body holds.
		if models.Climate == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Model not loaded"})
		}

		var req predictRequest
		if err := c.BodyParser(&req); err != nil {
			return predictError(c, "invalid JSON body: "+err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return predictError(c, err.Error())
		}

		res, err := models.Climate.Predict([]float64{*req.TMax, *req.TMin, *req.WindSpeed, *req.Rain})
		if err != nil {
			return predictError(c, err.Error())
		}
		return c.JSON(fiber.Map{
			"status":     "success",
			"cluster_id": res.ClusterID,
			"condition":  res.Label.Name,
			"color":      res.Label.Color,
			"icon":       res.Label.Icon,
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/models", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"models": models.Status()})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		days, err := parseDays(c, opts.HistoryDays)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		obs, err := service.History(c.UserContext(), loc, days)
		if err != nil {
			return historyError(err)
		}
		return c.JSON(fiber.Map{
			"location":     loc,
			"days":         days,
			"observations": obs,
		})
	})

	v1.Get("/analysis", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		obs, err := service.History(c.UserContext(), loc, opts.HistoryDays)
		if err != nil {
			return historyError(err)
		}
		report, err := analyze(models, obs, opts)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		report.Location = loc
		return c.JSON(report)
	})

	v1.Post("/rain/predict", func(c *fiber.Ctx) error {
		if models.Rain == nil {
			return modelNotLoaded()
		}
		var req rainRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		level, err := models.Rain.Predict(*req.TempMean, *req.WindMax, *req.Rain)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"status": "success", "level": level.String()})
	})

	v1.Post("/temperature/predict", func(c *fiber.Ctx) error {
		if models.Temperature == nil {
			return modelNotLoaded()
		}
		var req temperatureRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		next, err := models.Temperature.PredictNext(req.Temps)
		if err != nil {
			if errors.Is(err, ml.ErrInvalidWindowSize) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{"status": "success", "next_tmean": common.Round(next, 2)})
	})

	v1.Post("/anomalies/score", func(c *fiber.Ctx) error {
		if models.Anomaly == nil {
			return modelNotLoaded()
		}
		batch, err := bindObservations(c)
		if err != nil {
			return err
		}
		results, err := models.Anomaly.Score(batch)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"status": "success", "results": results})
	})

	v1.Post("/anomalies/detect", func(c *fiber.Ctx) error {
		batch, err := bindObservations(c)
		if err != nil {
			return err
		}
		results, err := anomaly.FitPredict(batch, opts.Anomaly)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"status": "success", "results": results})
	})
}

// predictRequest is the /predict body. Pointers distinguish a missing field
// from an explicit zero.
type predictRequest struct {
	TMax      *float64 `json:"t_max" validate:"required"`
	TMin      *float64 `json:"t_min" validate:"required"`
	WindSpeed *float64 `json:"wind_speed" validate:"required"`
	Rain      *float64 `json:"rain" validate:"required"`
}

type rainRequest struct {
	TempMean *float64 `json:"tmean" validate:"required"`
	WindMax  *float64 `json:"wind_max" validate:"required"`
	Rain     *float64 `json:"rain" validate:"required,gte=0"`
}

type temperatureRequest struct {
	Temps []float64 `json:"temps" validate:"required"`
}

type anomalyRequest struct {
	Observations []observationRow `json:"observations" validate:"required,min=1"`
}

// observationRow is an inbound day. A missing temp_mean is derived from the
// max and min the same way aggregated history does it.
type observationRow struct {
	Date       string   `json:"date"`
	TempMax    float64  `json:"temp_max"`
	TempMin    float64  `json:"temp_min"`
	TempMean   *float64 `json:"temp_mean"`
	RainMM     float64  `json:"rain_mm"`
	SnowMM     float64  `json:"snow_mm"`
	WindMaxKmh float64  `json:"wind_max_kmh"`
}

func (r observationRow) observation() (weather.Observation, error) {
	date, err := weather.ParseDay(r.Date)
	if err != nil {
		return weather.Observation{}, err
	}
	return weather.Observation{
		Date:       date,
		TempMax:    r.TempMax,
		TempMin:    r.TempMin,
		TempMean:   weather.MeanOrMidpoint(r.TempMax, r.TempMin, r.TempMean),
		RainMM:     r.RainMM,
		SnowMM:     r.SnowMM,
		WindMaxKmh: r.WindMaxKmh,
	}, nil
}

// bindObservations parses an anomaly request body into observations.
func bindObservations(c *fiber.Ctx) ([]weather.Observation, error) {
	var req anomalyRequest
	if err := bindJSON(c, &req); err != nil {
		return nil, err
	}
	out := make([]weather.Observation, len(req.Observations))
	for i, row := range req.Observations {
		o, err := row.observation()
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("observation %d: %v", i, err))
		}
		out[i] = o
	}
	return out, nil
}

func predictError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": msg})
}

func modelNotLoaded() error {
	return fiber.NewError(fiber.StatusInternalServerError, "Model not loaded")
}

func historyError(err error) error {
	if errors.Is(err, weather.ErrUpstreamData) {
		return fiber.NewError(fiber.StatusBadGateway, weather.ErrUpstreamData.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
}

// bindJSON parses and validates a request body, returning a 400 fiber error
// on failure.
func bindJSON(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body: "+err.Error())
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Name string
	Lat  *float64 `validate:"required,gte=-90,lte=90"`
	Lon  *float64 `validate:"required,gte=-180,lte=180"`
}

func parseLocationQuery(c *fiber.Ctx) (weather.Location, error) {
	var q locationQuery
	q.Name = c.Query("name")

	var err error
	if q.Lat, err = parseFloatQuery(c, "lat"); err != nil {
		return weather.Location{}, err
	}
	if q.Lon, err = parseFloatQuery(c, "lon"); err != nil {
		return weather.Location{}, err
	}
	if err := validate.Struct(q); err != nil {
		return weather.Location{}, err
	}
	return weather.Location{Name: q.Name, Lat: *q.Lat, Lon: *q.Lon}, nil
}

func parseFloatQuery(c *fiber.Ctx, key string) (*float64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.New("invalid " + key + ": must be a number")
	}
	return &v, nil
}

func parseDays(c *fiber.Ctx, def int) (int, error) {
	s := c.Query("days")
	if s == "" {
		return def, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil || days < 1 || days > 366 {
		return 0, errors.New("days must be an integer between 1 and 366")
	}
	return days, nil
}
