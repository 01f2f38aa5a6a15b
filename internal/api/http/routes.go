package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/geo"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/locate"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/metrics"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/notify"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

var validate = validator.New()

// MarkerService is the engine surface the HTTP layer needs.
type MarkerService interface {
	Current() readings.Publication
	Submit(ctx context.Context, r readings.Reading) (readings.MarkerSet, error)
	ForceRefresh(ctx context.Context) readings.MarkerSet
}

// Deps groups the collaborators of the HTTP handlers. Locator and Hub are
// optional.
type Deps struct {
	Engine  MarkerService
	Locator locate.Locator
	Hub     *notify.Hub
	Now     func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locator == nil {
		deps.Locator = locate.Coordinates{}
	}
	h := &handlers{deps: deps, filter: readings.NewFilter(deps.Now)}

	v1 := app.Group("/api/v1")
	v1.Get("/markers", h.markers)
	v1.Get("/markers/filter", h.filterMarkers)
	v1.Post("/readings", h.submitReading)
	v1.Post("/refresh", h.refresh)
	v1.Get("/groups/:id/history", h.history)

	app.Get("/metrics", metrics.Handler())

	if deps.Hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(deps.Hub.Handler()))
	}
}

// ErrorHandler renders every error as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

type handlers struct {
	deps   Deps
	filter *readings.Filter
}

func publicationBody(pub readings.Publication, markers readings.MarkerSet) fiber.Map {
	if markers == nil {
		markers = readings.MarkerSet{}
	}
	return fiber.Map{
		"status":      pub.Status,
		"state":       pub.State,
		"capturedAt":  pub.CapturedAt,
		"publishedAt": pub.PublishedAt,
		"count":       len(markers),
		"markers":     markers,
	}
}

func (h *handlers) markers(c *fiber.Ctx) error {
	pub := h.deps.Engine.Current()
	return c.JSON(publicationBody(pub, pub.Markers))
}

func (h *handlers) filterMarkers(c *fiber.Ctx) error {
	var q filterQuery
	if err := q.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if q.MinTemp != nil && q.MaxTemp != nil && *q.MinTemp > *q.MaxTemp {
		return fiber.NewError(fiber.StatusBadRequest, "minTemp must not exceed maxTemp")
	}

	criteria := readings.FilterCriteria{
		MinTempC:      q.MinTemp,
		MaxTempC:      q.MaxTemp,
		MaxDistanceKm: q.MaxDistanceKm,
		MaxAgeDays:    q.MaxAgeDays,
	}
	criteria.ReferenceLocation = h.referenceLocation(c, q)

	pub := h.deps.Engine.Current()
	filtered := h.filter.Apply(pub.Markers, criteria)
	sorted := readings.Sort(filtered, readings.SortKey(q.Sort), criteria.ReferenceLocation)

	body := publicationBody(pub, sorted)
	body["total"] = len(pub.Markers)
	body["locationRequired"] = criteria.Check() != nil
	return c.JSON(body)
}

// referenceLocation prefers explicit coordinates over a place query.
// An unresolvable place yields no location.
func (h *handlers) referenceLocation(c *fiber.Ctx, q filterQuery) *geo.Position {
	if q.Lat != nil && q.Lon != nil {
		return &geo.Position{Lat: *q.Lat, Lon: *q.Lon}
	}
	if q.Near == "" {
		return nil
	}
	p, err := h.deps.Locator.Resolve(c.UserContext(), q.Near)
	if err != nil {
		logging.Debug().Str("near", q.Near).Err(err).Msg("reference location not resolved")
		return nil
	}
	return &p
}

func (h *handlers) submitReading(c *fiber.Ctx) error {
	var req submissionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	r, err := readings.Normalize(req.record(), readings.OriginUser, h.deps.Now())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ms, err := h.deps.Engine.Submit(c.UserContext(), r)
	if err != nil {
		var malformed *readings.MalformedReadingError
		if errors.As(err, &malformed) || errors.Is(err, readings.ErrNotUserSubmitted) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to submit reading")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reading": r,
		"marker":  markerContaining(ms, r.ID),
		"count":   len(ms),
	})
}

func markerContaining(ms readings.MarkerSet, readingID string) *readings.Marker {
	for i := range ms {
		for _, r := range ms[i].Readings() {
			if r.ID == readingID {
				return &ms[i]
			}
		}
	}
	return nil
}

func (h *handlers) refresh(c *fiber.Ctx) error {
	h.deps.Engine.ForceRefresh(c.UserContext())
	pub := h.deps.Engine.Current()
	return c.JSON(publicationBody(pub, pub.Markers))
}

func (h *handlers) history(c *fiber.Ctx) error {
	id := c.Params("id")
	m, ok := h.deps.Engine.Current().Markers.Find(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no marker with id "+strconv.Quote(id))
	}
	return c.JSON(fiber.Map{
		"id":          m.ID(),
		"kind":        m.Kind,
		"memberCount": m.MemberCount(),
		"history":     m.History(),
	})
}
