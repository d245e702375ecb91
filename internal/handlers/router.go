package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/db"
	"github.com/cnsr/cta-inspection/internal/metrics"
	"github.com/cnsr/cta-inspection/internal/middleware"
	"github.com/cnsr/cta-inspection/internal/models"
	"github.com/cnsr/cta-inspection/internal/notify"
)

// RouterConfig holds the dependencies of the API router.
type RouterConfig struct {
	AuthService *auth.Service
	Users       db.UserCollection
	Inspections db.InspectionCollection
	Publisher   notify.Publisher
	Centers     []string
	RateLimit   *middleware.RateLimitMiddleware
}

// NewRouter wires every API route.
func NewRouter(cfg RouterConfig) *mux.Router {
	authMW := middleware.NewAuthMiddleware(cfg.AuthService)
	authHandler := NewAuthHandler(cfg.AuthService, cfg.Users)
	inspectionHandler := NewInspectionHandler(cfg.Inspections, cfg.Centers)
	reviewHandler := NewReviewHandler(cfg.Inspections, cfg.Publisher)
	userHandler := NewUserHandler(cfg.AuthService, cfg.Users, cfg.Centers)

	r := mux.NewRouter()
	r.Use(middleware.Instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route introuvable")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Méthode non autorisée")
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if cfg.RateLimit != nil {
		api.Use(cfg.RateLimit.RateLimit)
	}
	api.Use(authMW.Authenticate)

	can := func(action string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(h)
	}

	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify", authHandler.Verify).Methods(http.MethodGet)
	api.HandleFunc("/auth/profile", authHandler.GetProfile).Methods(http.MethodGet)
	api.HandleFunc("/auth/change-password", authHandler.ChangePassword).Methods(http.MethodPost)

	api.Handle("/cta/photos", can(models.ActionViewInspections, inspectionHandler.List)).Methods(http.MethodGet)
	api.Handle("/cta/photos/{id}", can(models.ActionViewInspections, inspectionHandler.Get)).Methods(http.MethodGet)
	api.Handle("/cta/photo", can(models.ActionSubmitInspection, inspectionHandler.Create)).Methods(http.MethodPost)
	api.Handle("/cta/search/{immatriculation}", can(models.ActionViewInspections, inspectionHandler.Search)).Methods(http.MethodGet)

	supervisor := api.PathPrefix("/supervisor").Subrouter()
	supervisor.Use(authMW.RequireRole(models.RoleSupervisor))
	supervisor.HandleFunc("/fiches-en-attente", reviewHandler.Pending).Methods(http.MethodGet)
	supervisor.HandleFunc("/fiches/{id}/valider", reviewHandler.Validate).Methods(http.MethodPost)
	supervisor.HandleFunc("/fiches/{id}/rejeter", reviewHandler.Reject).Methods(http.MethodPost)

	api.Handle("/users", can(models.ActionManageUsers, userHandler.List)).Methods(http.MethodGet)
	api.Handle("/users", can(models.ActionManageUsers, userHandler.Create)).Methods(http.MethodPost)
	api.Handle("/users/{id}", can(models.ActionManageUsers, userHandler.Delete)).Methods(http.MethodDelete)

	return r
}
