package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// IngestionController exposes the ingestion pipeline: URL submission, the
// new-files sweep over the site's blob folder, and the activity ledger.
type IngestionController struct {
	ingestionManager domain.IngestionManager
	analyticsManager domain.AnalyticsManager
	siteManager      domain.SiteManager
}

type IngestionControllerDependencies struct {
	IngestionManager domain.IngestionManager
	AnalyticsManager domain.AnalyticsManager
	SiteManager      domain.SiteManager
}

func NewIngestionController(deps IngestionControllerDependencies) *IngestionController {
	return &IngestionController{
		ingestionManager: deps.IngestionManager,
		analyticsManager: deps.AnalyticsManager,
		siteManager:      deps.SiteManager,
	}
}

type processURLRequest struct {
	URL       string `json:"url"`
	RequestID string `json:"request_id"`
	WidgetID  string `json:"widget_id"`
	SiteID    string `json:"site_id"`
}

// ProcessURL submits a URL for ingestion. Retries with the same request id
// attach to the original activity instead of running the pipeline again.
func (ctrl *IngestionController) ProcessURL(c fiber.Ctx) error {
	var req processURLRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.WidgetID, req.SiteID))
	if err != nil {
		return err
	}

	log.Info().
		Str("site_id", siteID).
		Str("request_id", req.RequestID).
		Str("url", req.URL).
		Msg("Processing URL")

	result, err := ctrl.ingestionManager.IngestURL(c.RequestCtx(), siteID, req.URL, req.RequestID)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

type processNewOnlyRequest struct {
	SiteID string `json:"site_id"`
}

// ProcessNewOnly sweeps the site's stored files and ingests the ones that
// have not produced a document yet.
func (ctrl *IngestionController) ProcessNewOnly(c fiber.Ctx) error {
	var req processNewOnlyRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.SiteID, c.Query("site_id")))
	if err != nil {
		return err
	}

	result, err := ctrl.ingestionManager.ProcessNewOnly(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":      "completed",
		"total_files": result.TotalFiles,
		"successful":  result.Successful,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
	})
}

// ListDocuments returns the site's ingested documents, newest first.
func (ctrl *IngestionController) ListDocuments(c fiber.Ctx) error {
	siteID, err := requireSiteAccess(c, ctrl.siteManager, c.Query("site_id"))
	if err != nil {
		return err
	}

	documents, err := ctrl.ingestionManager.ListDocuments(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}

	if documents == nil {
		documents = []domain.Document{}
	}

	return c.JSON(fiber.Map{"documents": documents})
}

// ListActivities returns the site's URL ingestion ledger, newest first.
func (ctrl *IngestionController) ListActivities(c fiber.Ctx) error {
	siteID, err := requireSiteAccess(c, ctrl.siteManager, c.Query("site_id"))
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	activities, err := ctrl.analyticsManager.ListActivities(c.RequestCtx(), siteID, limit)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"activities": activities})
}
