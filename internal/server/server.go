package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/ratebridge/internal/graphql"
	"github.com/tournevent/ratebridge/internal/telemetry"
	"github.com/tournevent/ratebridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies on the JSON endpoints.
const maxBodyBytes = 1 << 20

// Server is the HTTP server for the rate shopping service.
type Server struct {
	port       int
	registry   *shipper.Registry
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
	resolver   *graphql.Resolver
	gqlHandler http.Handler
	gatherer   prometheus.Gatherer
}

// Config holds server configuration.
type Config struct {
	Port int

	// Gatherer backs /metrics. Defaults to the global prometheus registry.
	Gatherer prometheus.Gatherer
}

// New creates a new server instance. metrics may be nil.
func New(cfg Config, registry *shipper.Registry, logger *otelzap.Logger, metrics *telemetry.Metrics) *Server {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	resolver := graphql.NewResolver(registry, logger, metrics)
	return &Server{
		port:       cfg.Port,
		registry:   registry,
		logger:     logger,
		metrics:    metrics,
		resolver:   resolver,
		gqlHandler: resolver.NewHandler(),
		gatherer:   gatherer,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/rates", s.handleRates)

	// GraphQL endpoint and playground
	mux.HandleFunc("/graphql", s.handleGraphQL)
	mux.Handle("/playground", playground.Handler("ratebridge", "/graphql"))

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health, _ := s.resolver.Query().Health(r.Context())
	writeJSON(w, http.StatusOK, health)
}

type errorBody struct {
	Error *graphql.Error `json:"error"`
}

// handleRates rates a JSON RateRequest with the carrier named by the
// "carrier" query parameter, or with every registered carrier when absent.
func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{&graphql.Error{Code: "METHOD_NOT_ALLOWED", Message: "use POST"}})
		return
	}

	var req shipper.RateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{&graphql.Error{Code: "INVALID_JSON", Message: err.Error()}})
		return
	}
	if err := shipper.ValidateRateRequest(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if carrier := r.URL.Query().Get("carrier"); carrier != "" {
		result, err := s.resolver.RateCarrier(ctx, carrier, &req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, graphql.ResultToGraphQL(result))
		return
	}

	results, errs := s.resolver.RateAll(ctx, &req, nil)
	writeJSON(w, http.StatusOK, graphql.NewRatePayload(results, errs))
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, graphql.Response{
			Errors: gqlerror.List{gqlerror.Errorf("method not allowed, use POST")},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	s.gqlHandler.ServeHTTP(w, r)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	body := graphql.ErrorToGraphQL(err)
	if body.RetryAfterSeconds != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*body.RetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{body})
}

// StatusFor maps a carrier failure onto the HTTP status returned to API
// clients.
func StatusFor(err error) int {
	if errors.Is(err, shipper.ErrCarrierNotFound) {
		return http.StatusNotFound
	}
	var shipperErr *shipper.ShipperError
	if !errors.As(err, &shipperErr) {
		return http.StatusInternalServerError
	}
	switch shipperErr.Kind {
	case shipper.KindValidation:
		return http.StatusBadRequest
	case shipper.KindRateLimit:
		return http.StatusTooManyRequests
	case shipper.KindNotImplemented:
		return http.StatusNotImplemented
	case shipper.KindAuthentication, shipper.KindCarrierAPI:
		return http.StatusBadGateway
	case shipper.KindNetwork:
		if shipperErr.IsTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
