package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/config"
	"github.com/helpdeck/helpdeck/internal/controllers"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/middlewares"
	"github.com/helpdeck/helpdeck/internal/version"
)

type HTTPServerDependencies struct {
	Config              *config.Config
	TokenIssuer         *auth.TokenIssuer
	WidgetController    *controllers.WidgetController
	IngestionController *controllers.IngestionController
	ChatController      *controllers.ChatController
	AnalyticsController *controllers.AnalyticsController
}

func NewHTTPServer(ctx context.Context, deps HTTPServerDependencies) *fiber.App {
	router := fiber.New(fiber.Config{
		AppName:      deps.Config.ServiceName,
		ErrorHandler: errorHandler,
	})

	// Add basic middleware
	router.Use(cors.New())
	router.Use(logger.New())

	// Health check endpoint (no authentication required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   deps.Config.ServiceName,
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Public widget surface. Token issuance authenticates inside the handler
	// (site secret or owner bearer); the embed loader is world-readable.
	router.Get("/widget.js", deps.WidgetController.EmbedScript)
	router.Post("/widget/token", deps.WidgetController.IssueToken)

	requireWidget := middlewares.RequireToken(deps.TokenIssuer, auth.TokenKindWidget)
	requireOwner := middlewares.RequireToken(deps.TokenIssuer, auth.TokenKindOwner)
	requireAny := middlewares.RequireToken(deps.TokenIssuer, auth.TokenKindWidget, auth.TokenKindOwner)

	// Widget-token surface: what the embedded chat client calls.
	router.Post("/widget/chat", deps.ChatController.Chat, requireWidget)
	router.Post("/analytics/feedback", deps.AnalyticsController.RecordFeedback, requireWidget)

	// Ingestion: URL submission accepts both token kinds so a site's backend
	// can push content with its widget token; the sweep and the ledger are
	// owner operations.
	router.Post("/process-url", deps.IngestionController.ProcessURL, requireAny)
	router.Post("/process-new-only", deps.IngestionController.ProcessNewOnly, requireOwner)
	router.Get("/list-documents", deps.IngestionController.ListDocuments, requireOwner)
	router.Get("/url-activities", deps.IngestionController.ListActivities, requireOwner)

	// Owner dashboard surface.
	widgets := router.Group("/widgets", requireOwner)
	widgets.Post("/", deps.WidgetController.CreateWidget)
	widgets.Get("/", deps.WidgetController.ListWidgets)
	widgets.Get("/:siteID", deps.WidgetController.GetWidget)
	widgets.Patch("/:siteID", deps.WidgetController.UpdateWidget)
	widgets.Delete("/:siteID", deps.WidgetController.DeleteWidget)

	analytics := router.Group("/analytics", requireOwner)
	analytics.Get("/overview", deps.AnalyticsController.Overview)
	analytics.Get("/knowledge-gaps", deps.AnalyticsController.ListKnowledgeGaps)
	analytics.Post("/knowledge-gaps/recompute", deps.AnalyticsController.RecomputeKnowledgeGaps)
	analytics.Post("/knowledge-gaps/actions", deps.AnalyticsController.ApplyGapAction)

	return router
}

// errorHandler shapes every failure as {"error": {"kind", "detail"}}. Domain
// errors choose the status by kind; fiber errors keep their status and derive
// a kind from it. Internal causes are logged, never serialized.
func errorHandler(c fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiber.Map{
				"kind":   kindForStatus(fiberErr.Code),
				"detail": fiberErr.Message,
			},
		})
	}

	if kind, ok := domain.KindOf(err); ok {
		return c.Status(statusForKind(kind)).JSON(fiber.Map{
			"error": fiber.Map{
				"kind":   string(kind),
				"detail": errorDetail(err),
			},
		})
	}

	log.Error().Err(err).Str("path", c.Path()).Str("method", c.Method()).Msg("Unhandled error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":   "internal",
			"detail": "internal server error",
		},
	})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorKindAuth:
		return fiber.StatusUnauthorized
	case domain.ErrorKindValidation:
		return fiber.StatusBadRequest
	case domain.ErrorKindNotFound:
		return fiber.StatusNotFound
	case domain.ErrorKindIngestion:
		return fiber.StatusUnprocessableEntity
	case domain.ErrorKindUpstream:
		return fiber.StatusBadGateway
	case domain.ErrorKindStorage:
		return fiber.StatusServiceUnavailable
	}

	return fiber.StatusInternalServerError
}

func kindForStatus(status int) string {
	switch {
	case status == fiber.StatusUnauthorized || status == fiber.StatusForbidden:
		return string(domain.ErrorKindAuth)
	case status == fiber.StatusNotFound:
		return string(domain.ErrorKindNotFound)
	case status == fiber.StatusUnprocessableEntity:
		return string(domain.ErrorKindIngestion)
	case status >= 400 && status < 500:
		return string(domain.ErrorKindValidation)
	case status == fiber.StatusBadGateway:
		return string(domain.ErrorKindUpstream)
	}

	return "internal"
}

// errorDetail returns the client-safe message for a domain error. Wrapped
// causes stay server-side.
func errorDetail(err error) string {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return domainErr.Detail
	}

	return err.Error()
}
