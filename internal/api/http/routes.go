package httpapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-gdd/internal/weather"
)

const (
	lastUpdateLayout = "2006-01-02 15:04:05"
	lastMinuteOfDay  = " 23:59"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// obskey accepts either key resolution: a day or a day plus minute.
	_ = v.RegisterValidation("obskey", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, layout := range []string{weather.MinuteKeyLayout, weather.DayKeyLayout} {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	})
	return v
}

// Options tunes the HTTP handlers.
type Options struct {
	// RecentWindow is the default look-back for realtime reads.
	RecentWindow time.Duration
	// MaxUploadBytes caps each uploaded CSV file; 0 means no cap.
	MaxUploadBytes int
	Clock          clockwork.Clock
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, opts Options) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 10 * 24 * time.Hour
	}

	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"stationId":  service.StationID(),
			"lastUpdate": lastUpdate(service),
		})
	})

	v1.Get("/realtime", func(c *fiber.Ctx) error {
		var q rangeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if q.From == "" {
			q.From = opts.Clock.Now().In(weather.StationZone).Add(-opts.RecentWindow).Format(weather.MinuteKeyLayout)
		}

		to := q.minuteTo()
		records, err := service.Realtime(c.UserContext(), q.From, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read realtime observations")
		}

		return c.JSON(fiber.Map{
			"stationId":  service.StationID(),
			"from":       q.From,
			"to":         to,
			"lastUpdate": lastUpdate(service),
			"records":    nonNil(records),
		})
	})

	v1.Post("/realtime/fetch", func(c *fiber.Ctx) error {
		res := service.RunIngestion(c.UserContext())

		status := fiber.StatusOK
		if res.Err != nil {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"ok":         res.Err == nil,
			"runId":      res.RunID,
			"inserted":   res.Inserted,
			"skipped":    res.Skipped,
			"ignored":    res.Ignored,
			"error":      res.ErrorMessage(),
			"lastUpdate": lastUpdate(service),
		})
	})

	v1.Get("/climate", func(c *fiber.Ctx) error {
		var q rangeQuery
		if err := q.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := service.Climate(c.UserContext(), q.From, q.to())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read climate records")
		}
		return c.JSON(fiber.Map{
			"from":    q.From,
			"to":      q.to(),
			"records": nonNil(records),
		})
	})

	v1.Delete("/climate", func(c *fiber.Ctx) error {
		n, err := service.ClearClimate(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to clear climate records")
		}
		return c.JSON(fiber.Map{"removed": n})
	})

	v1.Post("/climate/upload", func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "expected multipart form with field \"files\"")
		}
		files := form.File["files"]
		if len(files) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "no files uploaded")
		}

		results := make([]importResponse, 0, len(files))
		for _, fh := range files {
			results = append(results, importFile(c, service, fh, opts.MaxUploadBytes))
		}
		return c.JSON(fiber.Map{"results": results})
	})

	v1.Post("/gdd/compare", func(c *fiber.Ctx) error {
		var req gddCompareRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sweep, err := service.CompareGDD(c.UserContext(), req.ranges())
		if err != nil {
			if errors.Is(err, weather.ErrInvalidRange) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to compute GDD sweep")
		}
		return c.JSON(sweep)
	})
}

// rangeQuery holds the optional from/to bounds of a read.
type rangeQuery struct {
	From string `validate:"omitempty,obskey"`
	To   string `validate:"omitempty,obskey"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	q.From = strings.TrimSpace(c.Query("from"))
	q.To = strings.TrimSpace(c.Query("to"))
	return validate.Struct(q)
}

func (q rangeQuery) to() *string {
	if q.To == "" {
		return nil
	}
	to := q.To
	return &to
}

// minuteTo is to() for minute-keyed reads: a day bound covers that whole day.
func (q rangeQuery) minuteTo() *string {
	to := q.to()
	if to != nil && len(*to) == len(weather.DayKeyLayout) {
		widened := *to + lastMinuteOfDay
		return &widened
	}
	return to
}

// gddCompareRequest is {"range1": [start, end], "range2": [...], "range3": [...]}.
type gddCompareRequest struct {
	Range1 []string `json:"range1" validate:"required,len=2,dive,datetime=2006-01-02"`
	Range2 []string `json:"range2" validate:"required,len=2,dive,datetime=2006-01-02"`
	Range3 []string `json:"range3" validate:"required,len=2,dive,datetime=2006-01-02"`
}

func (r gddCompareRequest) ranges() [3]weather.DateRange {
	return [3]weather.DateRange{
		{Start: r.Range1[0], End: r.Range1[1]},
		{Start: r.Range2[0], End: r.Range2[1]},
		{Start: r.Range3[0], End: r.Range3[1]},
	}
}

type importResponse struct {
	weather.ImportResult
	Error string `json:"error,omitempty"`
}

func importFile(c *fiber.Ctx, service *weather.Service, fh *multipart.FileHeader, maxBytes int) importResponse {
	name := filepath.Base(fh.Filename)
	fail := func(err error) importResponse {
		return importResponse{ImportResult: weather.ImportResult{Filename: name}, Error: err.Error()}
	}

	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fail(errors.New("only .csv files are accepted"))
	}
	if maxBytes > 0 && fh.Size > int64(maxBytes) {
		return fail(fmt.Errorf("file exceeds %d bytes", maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return fail(fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fail(fmt.Errorf("read upload: %w", err))
	}

	res := service.ImportClimateCSV(c.UserContext(), name, data)
	out := importResponse{ImportResult: res}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func lastUpdate(service *weather.Service) *string {
	t, ok := service.Status().LastUpdate()
	if !ok {
		return nil
	}
	s := t.In(weather.StationZone).Format(lastUpdateLayout)
	return &s
}

func nonNil(records []weather.ObservationRecord) []weather.ObservationRecord {
	if records == nil {
		return []weather.ObservationRecord{}
	}
	return records
}
