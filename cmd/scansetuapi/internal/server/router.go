package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/auth"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/events"
	scmw "github.com/scansetu/scansetu/cmd/scansetuapi/internal/middleware"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/identity"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/inventory"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/services/profile"
	"github.com/scansetu/scansetu/cmd/scansetuapi/internal/telemetry"
)

// RouterOptions controls the construction of the ScanSetu HTTP router.
type RouterOptions struct {
	Identity  *identity.Service
	Profiles  *profile.Service
	Inventory *inventory.Service
	Broker    events.Broker

	Authn *scmw.Authn
	Authz func(http.Handler) http.Handler

	// RelyingParty is nil when Google sign-in is disabled.
	RelyingParty *auth.RelyingParty
	SiteURL      string

	CORSOptions   *cors.Options
	Metrics       *telemetry.ServerMetrics
	HealthHandler http.HandlerFunc
	Logger        *zap.Logger
}

// DefaultCORSOptions returns the CORS policy used when none is configured.
func DefaultCORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type handlers struct {
	identity     *identity.Service
	profiles     *profile.Service
	inventory    *inventory.Service
	broker       events.Broker
	relyingParty *auth.RelyingParty
	authURL      http.Handler
	siteURL      string
	validator    *requestValidator
	onRoleChange func(userID string)
	logger       *zap.Logger
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy and
// every ScanSetu endpoint mounted.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	if opts.Identity == nil || opts.Profiles == nil || opts.Inventory == nil {
		return nil, errors.New("router requires identity, profile and inventory services")
	}
	if opts.Broker == nil {
		return nil, errors.New("router requires an event broker")
	}
	if opts.Authn == nil || opts.Authz == nil {
		return nil, errors.New("router requires authn and authz middleware")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handlers{
		identity:     opts.Identity,
		profiles:     opts.Profiles,
		inventory:    opts.Inventory,
		broker:       opts.Broker,
		relyingParty: opts.RelyingParty,
		siteURL:      opts.SiteURL,
		validator:    newRequestValidator(),
		onRoleChange: opts.Authn.InvalidateRole,
		logger:       logger,
	}
	if opts.RelyingParty != nil {
		h.authURL = opts.RelyingParty.AuthURLHandler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions(nil)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))
	r.Use(scmw.Metrics(opts.Metrics))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Get("/settings", h.HandleSettings)
		r.Post("/token", h.HandleToken)
		r.Post("/signup", h.HandleSignUp)
		r.Post("/otp", h.HandleOTP)
		r.Post("/verify", h.HandleVerify)
		r.Get("/verify", h.HandleVerifyLink)
		r.Get("/authorize", h.HandleAuthorize)
		if opts.RelyingParty != nil {
			r.Get("/callback", opts.RelyingParty.CallbackHandler(h.onGoogleTokens))
		}

		r.Group(func(r chi.Router) {
			r.Use(opts.Authn.Middleware)
			r.Get("/user", h.HandleUser)
			r.Post("/logout", h.HandleLogout)
			r.Get("/events", h.HandleEvents)
		})
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(opts.Authn.Middleware, opts.Authz)
		r.Put("/profiles", h.HandleUpsertProfile)
		r.Get("/profiles/{id}", h.HandleGetProfile)
		r.Get("/inventory/stats", h.HandleInventoryStats)
		r.Get("/inventory/recent-activity", h.HandleRecentActivity)
		r.Get("/me/assignments", h.HandleMyAssignments)
	})

	return r, nil
}
