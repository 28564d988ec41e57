package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/stadtaev/beatstatus/internal/publisher"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EnvelopeDoc documents the frame served by /status.json and pushed on
// /socket.
type EnvelopeDoc struct {
	Event   string             `json:"event" example:"noteCut"`
	Time    int64              `json:"time" description:"Unix milliseconds"`
	Changed []string           `json:"changed" description:"Categories this event changed"`
	Status  publisher.Document `json:"status"`
}

type HealthCheck struct {
	Status string `json:"status" enum:"ok,error"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse map[string]HealthCheck

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "beatstatus API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Live game status for overlays and stream tools.")

	// GET /status.json
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/status.json")
	getStatus.SetSummary("Status snapshot")
	getStatus.SetDescription("Returns the full status as of the last emitted event, with event \"hello\".")
	getStatus.AddRespStructure(EnvelopeDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getStatus)

	// GET /socket
	getSocket, _ := r.NewOperationContext(http.MethodGet, "/socket")
	getSocket.SetSummary("Status stream")
	getSocket.SetDescription("Upgrades to a WebSocket. The first frame is a snapshot, then one frame per event in emission order.")
	getSocket.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getSocket)

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of the hub and the optional redis mirror.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /metrics
	getMetrics, _ := r.NewOperationContext(http.MethodGet, "/metrics")
	getMetrics.SetSummary("Prometheus metrics")
	getMetrics.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getMetrics)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
