package app

import (
	"fmt"
	"time"

	"myride/pkg/ai"
	"myride/pkg/mail"
	"myride/pkg/storage"
	"myride/pkg/store"
)

// assumedAnnualMiles converts year-based maintenance frequencies ("2Y")
// into a mileage-comparable form.
const assumedAnnualMiles = 12000

// Config holds runtime configuration for the core application.
type Config struct {
	Store          store.Store
	Sessions       store.SessionStore
	Objects        storage.ObjectStore
	Text           ai.TextGenerator
	Images         ai.ImageGenerator
	Mailer         mail.Mailer
	FromEmail      string
	AICallTimeout  time.Duration
	PresignExpiry  time.Duration
	MaxAttachments int
}

// App is the core application service wiring together the document store,
// blob storage, AI collaborators, and outbound mail.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	objects        storage.ObjectStore
	text           ai.TextGenerator
	images         ai.ImageGenerator
	mailer         mail.Mailer
	fromEmail      string
	aiTimeout      time.Duration
	presignExpiry  time.Duration
	maxAttachments int
}

// New constructs the application. Store, Sessions, Objects, and Text are
// required; Images and Mailer degrade to no-ops when absent.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("document store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Text == nil {
		return nil, fmt.Errorf("text generator required")
	}
	mailer := cfg.Mailer
	if mailer == nil {
		mailer = mail.NopMailer{}
	}
	aiTimeout := cfg.AICallTimeout
	if aiTimeout <= 0 {
		aiTimeout = 60 * time.Second
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	maxAttachments := cfg.MaxAttachments
	if maxAttachments <= 0 {
		maxAttachments = 10
	}
	return &App{
		store:          cfg.Store,
		sessions:       cfg.Sessions,
		objects:        cfg.Objects,
		text:           cfg.Text,
		images:         cfg.Images,
		mailer:         mailer,
		fromEmail:      cfg.FromEmail,
		aiTimeout:      aiTimeout,
		presignExpiry:  presignExpiry,
		maxAttachments: maxAttachments,
	}, nil
}

// Sessions exposes the session store for the HTTP auth middleware.
func (a *App) Sessions() store.SessionStore {
	return a.sessions
}
