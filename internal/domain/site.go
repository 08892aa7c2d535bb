package domain

import (
	"context"
	"time"
)

const (
	DefaultTopK        = 5
	MaxTopK            = 20
	DefaultTemperature = 0.2
)

// WidgetSettings is the per-site widget configuration surfaced to the embed
// script and used as defaults for chat requests.
type WidgetSettings struct {
	TopK           int     `json:"top_k" bson:"top_k"`
	Temperature    float64 `json:"temperature" bson:"temperature"`
	WelcomeMessage string  `json:"welcome_message" bson:"welcome_message"`
	Placeholder    string  `json:"placeholder" bson:"placeholder"`
	PrimaryColor   string  `json:"primary_color" bson:"primary_color"`
	Position       string  `json:"position" bson:"position"`
	ShowBranding   bool    `json:"show_branding" bson:"show_branding"`
}

func DefaultWidgetSettings() WidgetSettings {
	return WidgetSettings{
		TopK:           DefaultTopK,
		Temperature:    DefaultTemperature,
		WelcomeMessage: "Hi! How can I help you today?",
		Placeholder:    "Ask a question...",
		PrimaryColor:   "#2563eb",
		Position:       "bottom-right",
		ShowBranding:   true,
	}
}

// Site is a tenant. Every document, chunk, conversation and gap belongs to
// exactly one site, and every read path is filtered by the site id.
type Site struct {
	ID             string         `json:"id" bson:"id"`
	OwnerUserID    string         `json:"owner_user_id" bson:"owner_user_id"`
	Name           string         `json:"name" bson:"name"`
	AllowedOrigins []string       `json:"allowed_origins" bson:"allowed_origins"`
	SecretHash     string         `json:"-" bson:"secret_hash"`
	Enabled        bool           `json:"enabled" bson:"enabled"`
	Settings       WidgetSettings `json:"settings" bson:"settings"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// SiteUpdate carries a partial update. Nil fields are left untouched.
type SiteUpdate struct {
	Name           *string
	AllowedOrigins *[]string
	Enabled        *bool
	Settings       *WidgetSettings
}

type SiteStore interface {
	Create(ctx context.Context, site Site) error
	GetByID(ctx context.Context, id string) (Site, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Site, error)
	ListEnabled(ctx context.Context) ([]Site, error)
	Update(ctx context.Context, site Site) error
	Delete(ctx context.Context, id string) error
}
