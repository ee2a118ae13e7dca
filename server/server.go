package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regwatch/models"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const TriggerTokenHeader = "X-Trigger-Token"

// FeedReader serves interactive reads
type FeedReader interface {
	Search(ctx context.Context, freeText, sector string) ([]models.ContentItem, error)
	PersonalFeed(ctx context.Context, email string) ([]models.ContentItem, error)
}

// DigestRunner runs one digest
type DigestRunner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// SubscriberWriter applies onboarding updates
type SubscriberWriter interface {
	UpsertSubscriber(ctx context.Context, email string, patch models.SubscriberPatch) (*models.Subscriber, error)
}

// Pinger checks store connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerConfig struct {
	Feeds       FeedReader
	Runner      DigestRunner
	Subscribers SubscriberWriter
	Health      Pinger

	// Shared secret for the digest trigger. Empty disables the trigger.
	TriggerToken string

	// Comma separated CORS origins
	AllowOrigins string

	// How long GET /feed responses are cached. Zero disables caching.
	FeedCacheTTL time.Duration
}

// Returns a fiber.App instance to be used as the HTTP server for regwatch
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			// Render now so the logged status is the one sent
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				return herr
			}
			err = nil
		}

		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	if config.AllowOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: config.AllowOrigins,
			AllowHeaders: "Origin, Content-Type, " + TriggerTokenHeader,
		}))
	}

	if config.FeedCacheTTL > 0 {
		app.Use(cache.New(cache.Config{
			Next: func(c *fiber.Ctx) bool {
				// Only the public search feed is cacheable
				return c.Method() != fiber.MethodGet || c.Path() != "/feed"
			},
			Expiration: config.FeedCacheTTL,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.Request().URI().String()
			},
		}))
	}

	h := &handlers{config: config}

	app.Get("/health", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/feed", h.searchFeed)
	app.Get("/feed/personal", h.personalFeed)
	app.Post("/subscribers", h.upsertSubscriber)
	app.Post("/digest/run", h.runDigest)
	app.Get("/digest/run", h.runDigest)

	return app
}

type handlers struct {
	config *ServerConfig
}

// apiError is a JSON error response rendered by errorHandler. The cache
// middleware never stores a response whose handler returned an error.
type apiError struct {
	Status int
	Body   fiber.Map
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %v", e.Status, e.Body)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return c.Status(ae.Status).JSON(ae.Body)
	}
	return fiber.DefaultErrorHandler(c, err)
}

func (h *handlers) health(c *fiber.Ctx) error {
	if h.config.Health != nil {
		if err := h.config.Health.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"database": "connected",
	})
}

func (h *handlers) searchFeed(c *fiber.Ctx) error {
	items, err := h.config.Feeds.Search(c.UserContext(), c.Query("q"), c.Query("sector"))
	if err != nil {
		log.WithError(err).Error("DB error (/feed)")
		return &apiError{Status: fiber.StatusInternalServerError, Body: fiber.Map{"error": "db_error"}}
	}
	return c.JSON(items)
}

func (h *handlers) personalFeed(c *fiber.Ctx) error {
	email := c.Query("email")
	if strings.TrimSpace(email) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email_required"})
	}

	items, err := h.config.Feeds.PersonalFeed(c.UserContext(), email)
	switch {
	case errors.Is(err, models.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email_required"})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user_not_found"})
	case err != nil:
		log.WithError(err).Error("DB error (/feed/personal)")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "db_error"})
	}
	return c.JSON(items)
}

type upsertSubscriberRequest struct {
	Email            string           `json:"email"`
	Sector           *string          `json:"sector"`
	Keywords         *models.Keywords `json:"keywords"`
	NotifyPreference *string          `json:"notifyPreference"`
}

func (h *handlers) upsertSubscriber(c *fiber.Ctx) error {
	var req upsertSubscriberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email_required"})
	}

	patch := models.SubscriberPatch{Keywords: req.Keywords}
	if req.Sector != nil {
		sector := strings.TrimSpace(*req.Sector)
		patch.Sector = &sector
	}
	if req.NotifyPreference != nil {
		pref, err := models.ParseNotifyPreference(*req.NotifyPreference)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_notify_preference"})
		}
		patch.NotifyPreference = &pref
	}

	sub, err := h.config.Subscribers.UpsertSubscriber(c.UserContext(), email, patch)
	if err != nil {
		log.WithError(err).Error("DB error (/subscribers)")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "db_error"})
	}
	return c.JSON(sub)
}

// runResponse is the trigger's JSON summary
type runResponse struct {
	OK                    bool   `json:"ok"`
	SubscribersConsidered int    `json:"subscribersConsidered"`
	Sent                  int    `json:"sent"`
	Backend               string `json:"backend"`
}

func (h *handlers) authorized(c *fiber.Ctx) bool {
	if h.config.TriggerToken == "" {
		return false
	}
	token := c.Get(TriggerTokenHeader)
	if token == "" {
		token = c.Query("token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.config.TriggerToken)) == 1
}

func (h *handlers) runDigest(c *fiber.Ctx) error {
	if !h.authorized(c) {
		log.WithFields(log.Fields{
			"ip": c.IP(),
		}).Warn("Rejected digest trigger")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": models.ErrUnauthorized.Error()})
	}

	summary, err := h.config.Runner.Run(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "db_error"})
	}

	return c.JSON(runResponse{
		OK:                    true,
		SubscribersConsidered: summary.SubscribersConsidered,
		Sent:                  summary.Sent,
		Backend:               summary.Backend,
	})
}
