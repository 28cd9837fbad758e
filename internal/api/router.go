package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/netfield/fleetacl/internal/api/handler"
	"github.com/netfield/fleetacl/internal/api/middleware"
	"github.com/netfield/fleetacl/internal/engine"
	"github.com/netfield/fleetacl/internal/service"
	"github.com/netfield/fleetacl/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	aclService *service.ACLService,
	synthesizer *engine.Synthesizer,
	bootstrapKey string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Rule sets and the decision operations over them
		ruleSetHandler := handler.NewRuleSetHandler(store)
		checkHandler := handler.NewCheckHandler(store, synthesizer)
		r.Post("/rulesets", ruleSetHandler.Create)
		r.Get("/rulesets", ruleSetHandler.List)
		r.Route("/rulesets/{name}", func(r chi.Router) {
			r.Get("/", ruleSetHandler.Get)
			r.Put("/", ruleSetHandler.Update)
			r.Delete("/", ruleSetHandler.Delete)
			r.Post("/check", checkHandler.Check)
			r.Post("/synthesize", checkHandler.Synthesize)
		})

		// Inventory and assignments
		deviceHandler := handler.NewDeviceHandler(store, aclService)
		r.Post("/devices", deviceHandler.Create)
		r.Get("/devices", deviceHandler.List)
		r.Route("/devices/{name}", func(r chi.Router) {
			r.Get("/", deviceHandler.Get)
			r.Put("/", deviceHandler.Update)
			r.Delete("/", deviceHandler.Delete)
			r.Get("/acls", deviceHandler.ACLSets)
			r.Put("/acls/{acl}", deviceHandler.AddACL)
			r.Delete("/acls/{acl}", deviceHandler.RemoveACL)
		})

		// Fleet census and rollout admission
		rolloutHandler := handler.NewRolloutHandler(aclService)
		r.Get("/acls/census", rolloutHandler.Census)
		r.Get("/acls/bulk", rolloutHandler.Bulk)
		r.Get("/acls/matching", rolloutHandler.Matching)
		r.Post("/rollout/throttle", rolloutHandler.Throttle)

		// Worklog
		changeLogHandler := handler.NewChangeLogHandler(store, aclService)
		r.Post("/changelog", changeLogHandler.Create)
		r.Get("/changelog", changeLogHandler.List)
	})

	return r
}
