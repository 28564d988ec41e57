package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Checker verifies that a component is able to serve.
type Checker interface {
	Check(ctx context.Context) error
}

type Handler struct {
	checks  map[string]Checker
	logger  *slog.Logger
	timeout time.Duration
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger, timeout: 3 * time.Second}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]result, len(h.checks))
		status  = http.StatusOK
	)

	// Checks run concurrently and share one deadline.
	var g errgroup.Group
	for name, c := range h.checks {
		g.Go(func() error {
			res := result{Status: "ok"}
			if err := c.Check(ctx); err != nil {
				h.logger.Error("health check failed", "name", name, "error", err)
				res = result{Status: "error", Error: err.Error()}
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			if res.Status != "ok" {
				status = http.StatusServiceUnavailable
			}
			return nil
		})
	}
	_ = g.Wait()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
