package app

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/freelancebill/freelancebill/internal/app/services/auth"
	clientsvc "github.com/freelancebill/freelancebill/internal/app/services/clients"
	invoicesvc "github.com/freelancebill/freelancebill/internal/app/services/invoices"
	"github.com/freelancebill/freelancebill/internal/app/storage"
	"github.com/freelancebill/freelancebill/internal/app/storage/memory"
	"github.com/freelancebill/freelancebill/internal/mail"
	"github.com/freelancebill/freelancebill/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Clients  storage.ClientStore
	Invoices storage.InvoiceStore
}

// Options configures the application. Zero values get sensible defaults:
// memory stores, a log-only mail dispatcher, bcrypt hashing and a random
// session secret.
type Options struct {
	Stores   Stores
	Logger   *logger.Logger
	Mailer   mail.Dispatcher
	Verifier auth.IdentityVerifier
	Hasher   auth.PasswordHasher

	TokenSecret []byte
	TokenTTL    time.Duration
	Links       auth.Links
}

// Application ties the domain services together.
type Application struct {
	log    *logger.Logger
	secret []byte

	Auth     *auth.Service
	Clients  *clientsvc.Service
	Invoices *invoicesvc.Service
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	stores := opts.Stores
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Clients == nil {
		stores.Clients = mem
	}
	if stores.Invoices == nil {
		stores.Invoices = mem
	}

	secret := opts.TokenSecret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		log.Warn("no session secret configured; generated an ephemeral one, sessions will not survive restarts")
	}

	hasher := opts.Hasher
	if hasher == nil {
		hasher = auth.NewBcryptHasher()
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = mail.NewLogDispatcher(log)
	}

	tokens := auth.NewTokenIssuer(secret, opts.TokenTTL)

	return &Application{
		log:      log,
		secret:   secret,
		Auth:     auth.New(stores.Users, hasher, tokens, mailer, opts.Verifier, opts.Links, log),
		Clients:  clientsvc.New(stores.Users, stores.Clients, log),
		Invoices: invoicesvc.New(stores.Users, stores.Clients, stores.Invoices, log),
	}, nil
}

// TokenSecret exposes the session signing secret for the HTTP middleware.
func (a *Application) TokenSecret() []byte {
	return a.secret
}
