package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// ChatController is the widget's question endpoint.
type ChatController struct {
	chatManager domain.ChatManager
	siteManager domain.SiteManager
}

type ChatControllerDependencies struct {
	ChatManager domain.ChatManager
	SiteManager domain.SiteManager
}

func NewChatController(deps ChatControllerDependencies) *ChatController {
	return &ChatController{
		chatManager: deps.ChatManager,
		siteManager: deps.SiteManager,
	}
}

type chatRequest struct {
	WidgetID       string               `json:"widget_id"`
	SiteID         string               `json:"site_id"`
	Query          string               `json:"query"`
	History        []domain.ChatMessage `json:"history"`
	TopK           int                  `json:"top_k"`
	Temperature    *float64             `json:"temperature"`
	ConversationID string               `json:"conversation_id"`
}

// Chat answers one visitor question from the site's knowledge base. The
// browser's Origin header must clear the site's allow-list; requests without
// one are server-to-server and pass.
func (ctrl *ChatController) Chat(c fiber.Ctx) error {
	var req chatRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	siteID, err := requireSiteAccess(c, ctrl.siteManager, firstNonEmpty(req.WidgetID, req.SiteID))
	if err != nil {
		return err
	}

	if err := ctrl.siteManager.VerifyOrigin(c.RequestCtx(), siteID, c.Get("Origin")); err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) && domainErr.Kind == domain.ErrorKindAuth {
			return fiber.NewError(fiber.StatusForbidden, domainErr.Detail)
		}
		return err
	}

	result, err := ctrl.chatManager.Answer(c.RequestCtx(), siteID, domain.ChatParams{
		Query:          req.Query,
		History:        req.History,
		TopK:           req.TopK,
		Temperature:    req.Temperature,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return err
	}

	return c.JSON(result)
}
