package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/middlewares"
)

// WidgetController manages the site lifecycle and the widget trust boundary:
// site CRUD for owners, widget token issuance, and the public embed loader.
type WidgetController struct {
	siteManager domain.SiteManager
	tokens      *auth.TokenIssuer
	publicURL   string
}

type WidgetControllerDependencies struct {
	SiteManager domain.SiteManager
	TokenIssuer *auth.TokenIssuer

	// PublicURL is the externally reachable base URL baked into the embed
	// script so the widget knows where to call back.
	PublicURL string
}

func NewWidgetController(deps WidgetControllerDependencies) *WidgetController {
	return &WidgetController{
		siteManager: deps.SiteManager,
		tokens:      deps.TokenIssuer,
		publicURL:   deps.PublicURL,
	}
}

type createWidgetRequest struct {
	Name           string   `json:"name"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// CreateWidget registers a new site and returns its secret. The secret is
// shown in this response and never again; only its hash is persisted.
func (ctrl *WidgetController) CreateWidget(c fiber.Ctx) error {
	ownerID, err := ownerFromContext(c)
	if err != nil {
		return err
	}

	var req createWidgetRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	site, secret, err := ctrl.siteManager.Create(c.RequestCtx(), ownerID, req.Name, req.AllowedOrigins)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"widget":           site,
		"secret":           secret,
		"secret_persisted": false,
	})
}

func (ctrl *WidgetController) ListWidgets(c fiber.Ctx) error {
	ownerID, err := ownerFromContext(c)
	if err != nil {
		return err
	}

	sites, err := ctrl.siteManager.ListForOwner(c.RequestCtx(), ownerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"widgets": sites})
}

func (ctrl *WidgetController) GetWidget(c fiber.Ctx) error {
	ownerID, err := ownerFromContext(c)
	if err != nil {
		return err
	}

	site, err := ctrl.siteManager.GetForOwner(c.RequestCtx(), c.Params("siteID"), ownerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"widget": site})
}

type updateWidgetRequest struct {
	Name           *string                `json:"name"`
	AllowedOrigins *[]string              `json:"allowed_origins"`
	Enabled        *bool                  `json:"enabled"`
	Settings       *domain.WidgetSettings `json:"settings"`
}

func (ctrl *WidgetController) UpdateWidget(c fiber.Ctx) error {
	ownerID, err := ownerFromContext(c)
	if err != nil {
		return err
	}

	var req updateWidgetRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	site, err := ctrl.siteManager.Update(c.RequestCtx(), c.Params("siteID"), ownerID, domain.SiteUpdate{
		Name:           req.Name,
		AllowedOrigins: req.AllowedOrigins,
		Enabled:        req.Enabled,
		Settings:       req.Settings,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"widget": site})
}

func (ctrl *WidgetController) DeleteWidget(c fiber.Ctx) error {
	ownerID, err := ownerFromContext(c)
	if err != nil {
		return err
	}

	if err := ctrl.siteManager.Delete(c.RequestCtx(), c.Params("siteID"), ownerID); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

type widgetTokenRequest struct {
	WidgetID string `json:"widget_id"`
	SiteID   string `json:"site_id"`
	Secret   string `json:"secret"`
}

// IssueToken mints a short-lived widget token. Two trust paths lead here: the
// site secret, or an owner bearer token for a site the caller owns. The route
// is unauthenticated so the secret path works without a prior token.
func (ctrl *WidgetController) IssueToken(c fiber.Ctx) error {
	var req widgetTokenRequest
	if err := c.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	siteID := firstNonEmpty(req.WidgetID, req.SiteID)
	if siteID == "" {
		return domain.ValidationError("widget_id or site_id is required")
	}

	issuedBy := auth.IssuedBySecret
	if req.Secret != "" {
		if _, err := ctrl.siteManager.AuthenticateSecret(c.RequestCtx(), siteID, req.Secret); err != nil {
			return err
		}
	} else {
		bearer := middlewares.BearerToken(c)
		if bearer == "" {
			return domain.AuthError("secret or owner token required")
		}

		claims, err := ctrl.tokens.Verify(bearer)
		if err != nil {
			return err
		}
		if claims.Kind != auth.TokenKindOwner || claims.Subject == "" {
			return domain.AuthError("secret or owner token required")
		}
		if _, err := ctrl.siteManager.GetForOwner(c.RequestCtx(), siteID, claims.Subject); err != nil {
			return err
		}

		issuedBy = auth.IssuedByOwner
	}

	token, expiresAt, err := ctrl.tokens.IssueWidgetToken(siteID, issuedBy)
	if err != nil {
		return err
	}

	log.Debug().Str("site_id", siteID).Str("issued_by", issuedBy).Msg("Widget token issued")

	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// EmbedScript serves the public loader that sites drop into their pages. The
// script carries the site's widget settings as typed JSON; everything else it
// needs is fetched through the token and chat endpoints.
func (ctrl *WidgetController) EmbedScript(c fiber.Ctx) error {
	siteID := c.Query("site_id")
	if siteID == "" {
		return domain.ValidationError("site_id query parameter is required")
	}

	site, err := ctrl.siteManager.Get(c.RequestCtx(), siteID)
	if err != nil {
		return err
	}
	if !site.Enabled {
		return domain.NotFoundError("site not found")
	}

	config, err := json.Marshal(embedConfig{
		SiteID:   site.ID,
		APIBase:  ctrl.publicURL,
		Settings: site.Settings,
	})
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")

	return c.SendString(fmt.Sprintf(embedScript, config))
}

type embedConfig struct {
	SiteID   string                `json:"site_id"`
	APIBase  string                `json:"api_base"`
	Settings domain.WidgetSettings `json:"settings"`
}

// embedScript is the loader template. The single %s is the JSON config; the
// remaining script is plain JavaScript, so all other percent signs stay out.
//
// Widget tokens are only minted through the site secret or an owner session,
// so the loader never talks to /widget/token directly. The host page points
// it at its own backend via data-token-url, and that backend exchanges the
// secret server-side.
const embedScript = `(function () {
  "use strict";
  var HELPDECK = %s;
  if (window.__helpdeckLoaded) { return; }
  window.__helpdeckLoaded = true;

  var script = document.currentScript;
  var tokenURL = script && script.getAttribute("data-token-url");

  var state = { token: null, expiresAt: 0, conversationId: null };

  function fetchToken() {
    if (!tokenURL) {
      return Promise.reject(new Error("helpdeck: data-token-url is not set on the embed script"));
    }
    return fetch(tokenURL, {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ site_id: HELPDECK.site_id })
    }).then(function (res) {
      if (!res.ok) { throw new Error("helpdeck: token request failed"); }
      return res.json();
    }).then(function (body) {
      state.token = body.token;
      state.expiresAt = Date.parse(body.expires_at);
      return body.token;
    });
  }

  function withToken() {
    if (state.token && Date.now() < state.expiresAt - 30000) {
      return Promise.resolve(state.token);
    }
    return fetchToken();
  }

  function ask(query, history) {
    return withToken().then(function (token) {
      return fetch(HELPDECK.api_base + "/widget/chat", {
        method: "POST",
        headers: {
          "Content-Type": "application/json",
          "Authorization": "Bearer " + token
        },
        body: JSON.stringify({
          query: query,
          history: history || [],
          conversation_id: state.conversationId
        })
      });
    }).then(function (res) {
      if (!res.ok) { throw new Error("helpdeck: chat request failed"); }
      return res.json();
    }).then(function (body) {
      state.conversationId = body.conversation_id;
      return body;
    });
  }

  function sendFeedback(turnId, sentiment, notes) {
    return withToken().then(function (token) {
      return fetch(HELPDECK.api_base + "/analytics/feedback", {
        method: "POST",
        headers: {
          "Content-Type": "application/json",
          "Authorization": "Bearer " + token
        },
        body: JSON.stringify({
          site_id: HELPDECK.site_id,
          conversation_id: state.conversationId,
          turn_id: turnId,
          sentiment: sentiment,
          notes: notes || ""
        })
      });
    });
  }

  window.helpdeck = {
    config: HELPDECK,
    ask: ask,
    feedback: sendFeedback
  };

  document.dispatchEvent(new CustomEvent("helpdeck:ready", { detail: HELPDECK.settings }));
})();
`
