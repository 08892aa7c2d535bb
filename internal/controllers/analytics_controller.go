package controllers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// AnalyticsController serves visitor feedback intake and the owner dashboard
// reads: overview metrics and the knowledge gap list with its actions.
type AnalyticsController struct {
	analyticsManager domain.AnalyticsManager
	gapAnalyzer      domain.GapAnalyzer
	siteManager      domain.SiteManager
}

type AnalyticsControllerDependencies struct {
	AnalyticsManager domain.AnalyticsManager
	GapAnalyzer      domain.GapAnalyzer
	SiteManager      domain.SiteManager
}

func NewAnalyticsController(deps AnalyticsControllerDependencies) *AnalyticsController {
	return &AnalyticsController{
		analyticsManager: deps.AnalyticsManager,
		gapAnalyzer:      deps.GapAnalyzer,
		siteManager:      deps.SiteManager,
	}
}

type feedbackRequest struct {
	WidgetID       string         `json:"widget_id"`
	SiteID         string         `json:"site_id"`
	ConversationID string         `json:"conversation_id"`
	TurnID         string         `json:"turn_id"`
	Sentiment      string         `json:"sentiment"`
	Notes          string         `json:"notes"`
	Metadata       map[string]any `json:"metadata"`
}

// RecordFeedback attaches a sentiment to a chat turn. Submitting twice for
// the same turn overwrites; a visitor changing their mind is not a new vote.
func (ctrl *AnalyticsController) RecordFeedback(c fiber.Ctx) error {
	var req feedbackRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.WidgetID, req.SiteID))
	if err != nil {
		return err
	}

	err = ctrl.analyticsManager.RecordFeedback(c.RequestCtx(), siteID, domain.FeedbackParams{
		TurnID:    req.TurnID,
		Sentiment: domain.Sentiment(req.Sentiment),
		Notes:     req.Notes,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"status": "accepted"})
}

// Overview returns the dashboard aggregate for the last seven days.
func (ctrl *AnalyticsController) Overview(c fiber.Ctx) error {
	siteID, err := requireSiteAccess(c, ctrl.siteManager, c.Query("site_id"))
	if err != nil {
		return err
	}

	overview, err := ctrl.analyticsManager.Overview(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}

	return c.JSON(overview)
}

// ListKnowledgeGaps returns the site's gaps ordered by gap rate.
func (ctrl *AnalyticsController) ListKnowledgeGaps(c fiber.Ctx) error {
	siteID, err := requireSiteAccess(c, ctrl.siteManager, c.Query("site_id"))
	if err != nil {
		return err
	}

	gaps, err := ctrl.gapAnalyzer.ListGaps(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"gaps": gaps})
}

type recomputeGapsRequest struct {
	SiteID string `json:"site_id"`
}

// RecomputeKnowledgeGaps runs the gap analysis immediately instead of waiting
// for the scheduled pass, and returns the refreshed list.
func (ctrl *AnalyticsController) RecomputeKnowledgeGaps(c fiber.Ctx) error {
	var req recomputeGapsRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.SiteID, c.Query("site_id")))
	if err != nil {
		return err
	}

	gaps, err := ctrl.gapAnalyzer.Recompute(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"gaps": gaps})
}

type gapActionRequest struct {
	SiteID   string         `json:"site_id"`
	GapTopic string         `json:"gap_topic"`
	Action   string         `json:"action"`
	Metadata map[string]any `json:"metadata"`
}

// ApplyGapAction links sources to a gap or marks it resolved.
func (ctrl *AnalyticsController) ApplyGapAction(c fiber.Ctx) error {
	var req gapActionRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.SiteID, c.Query("site_id")))
	if err != nil {
		return err
	}

	gap, err := ctrl.gapAnalyzer.ApplyAction(c.RequestCtx(), siteID, domain.GapActionParams{
		Topic:    req.GapTopic,
		Action:   domain.GapAction(req.Action),
		Metadata: req.Metadata,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("site_id", siteID).
		Str("topic", req.GapTopic).
		Str("action", req.Action).
		Msg("Knowledge gap action applied")

	return c.JSON(fiber.Map{"status": "accepted", "gap": gap})
}
