package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-tracker/internal/locations"
	"github.com/i474232898/weather-tracker/internal/weather"
)

// StatusClientClosedRequest reports a request the client abandoned.
const StatusClientClosedRequest = 499

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, registry *locations.Registry) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := registry.List(c.UserContext())
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(locs)
	})

	v1.Post("/locations", func(c *fiber.Ctx) error {
		var req addLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := req.check(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := registry.Add(c.UserContext(), locations.NewLocation{
			Name:    req.Name,
			Coord:   req.coord(),
			Default: req.Default,
		})
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	v1.Put("/locations/gps", func(c *fiber.Ctx) error {
		var req gpsRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := registry.ResolveGPS(c.UserContext(), weather.Coordinate{Lat: *req.Lat, Lon: *req.Lon})
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(loc)
	})

	v1.Patch("/locations/:id", func(c *fiber.Ctx) error {
		var req patchLocationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.Name == nil && req.Default == nil {
			return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
		}

		ctx, id := c.UserContext(), c.Params("id")
		loc, err := registry.Get(ctx, id)
		if req.Name != nil && err == nil {
			loc, err = registry.Rename(ctx, id, *req.Name)
		}
		if req.Default != nil && err == nil {
			loc, err = registry.SetDefault(ctx, id, *req.Default)
		}
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(loc)
	})

	v1.Delete("/locations/:id", func(c *fiber.Ctx) error {
		if err := registry.Delete(c.UserContext(), c.Params("id")); err != nil {
			return toHTTPError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/locations/:id/weather/:kind", func(c *fiber.Ctx) error {
		kind, err := weather.ParseDataKind(c.Params("kind"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		force := c.QueryBool("force", false)

		id := c.Params("id")
		res, err := service.RequestOrCached(c.UserContext(), id, kind, force)
		if errors.Is(err, weather.ErrInProgress) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"location": id,
				"kind":     kind.String(),
				"status":   "download in progress",
			})
		}
		if err != nil {
			return toHTTPError(err)
		}

		return c.JSON(fiber.Map{
			"location":     id,
			"kind":         kind.String(),
			"units":        service.Units(),
			"data":         res.Record,
			"downloadedAt": res.DownloadedAt,
			"stale":        res.Stale,
		})
	})

	v1.Get("/locations/:id/forecast/daily", func(c *fiber.Ctx) error {
		ref, err := parseReference(c.Query("ref"), c.Query("tz"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		id := c.Params("id")
		days, err := service.FiveDayForecast(c.UserContext(), id, ref)
		if errors.Is(err, weather.ErrInProgress) {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"location": id,
				"status":   "download in progress",
			})
		}
		if err != nil {
			return toHTTPError(err)
		}

		return c.JSON(fiber.Map{
			"location":  id,
			"reference": ref,
			"units":     service.Units(),
			"days":      days,
		})
	})

	v1.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(service.Stats())
	})
}

// addLocationRequest is the body of POST /locations.
type addLocationRequest struct {
	Name    string   `json:"name" validate:"max=200"`
	Lat     *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon     *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Default bool     `json:"default"`
}

func (r addLocationRequest) check() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if (r.Lat == nil) != (r.Lon == nil) {
		return errors.New("lat and lon must be given together")
	}
	if r.Name == "" && r.Lat == nil {
		return errors.New("name or coordinates are required")
	}
	return nil
}

func (r addLocationRequest) coord() *weather.Coordinate {
	if r.Lat == nil || r.Lon == nil {
		return nil
	}
	return &weather.Coordinate{Lat: *r.Lat, Lon: *r.Lon}
}

type gpsRequest struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
}

type patchLocationRequest struct {
	Name    *string `json:"name"`
	Default *bool   `json:"default"`
}

// parseReference resolves the reference instant of the daily forecast. It
// defaults to now; tz, an IANA zone name, sets the calendar used for days.
func parseReference(ref, tz string) (time.Time, error) {
	t := time.Now()
	if ref != "" {
		var err error
		if t, err = parseTime(ref); err != nil {
			return time.Time{}, err
		}
	}
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, errors.New("invalid tz; use an IANA zone name")
		}
		t = t.In(loc)
	}
	return t, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

// toHTTPError maps service and registry errors to status codes.
func toHTTPError(err error) error {
	var cte *weather.ContentTypeError
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, weather.ErrGPSLocationNotDeletable):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, locations.ErrEmptyLocation), errors.Is(err, locations.ErrInvalidCoordinate):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, weather.ErrMissingCoordinates):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, weather.ErrInvalidConfiguration), errors.Is(err, weather.ErrThrottled):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, weather.ErrCancelled):
		return fiber.NewError(StatusClientClosedRequest, err.Error())
	case errors.Is(err, weather.ErrTransport), errors.Is(err, weather.ErrDecode), errors.As(err, &cte):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}
