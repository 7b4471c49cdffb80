package app

import (
	"net/http"

	"github.com/mkrupp/filevault/internal/infra/database"
	"github.com/mkrupp/filevault/internal/infra/logging"
	http_ "github.com/mkrupp/filevault/internal/infra/transport/http"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthTransport reports whether the database answers.
type HealthTransport struct {
	db  *database.DB
	log logging.Logger
}

// NewHealthTransport creates a new HealthTransport.
func NewHealthTransport(db *database.DB) *HealthTransport {
	return &HealthTransport{db: db, log: logging.GetLogger("app.health")}
}

// RegisterRoutes registers GET /healthz.
func (ht *HealthTransport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", ht.HandleHealth)
}

// HandleHealth answers 200 when the database responds to a ping and 503 otherwise.
func (ht *HealthTransport) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := ht.db.Ping(r.Context()); err != nil {
		ht.log.WarnContext(r.Context(), "health check failed", "error", err)
		_ = http_.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})

		return
	}

	_ = http_.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
