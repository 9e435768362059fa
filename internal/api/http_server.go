package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"guestms/internal/config"
	"guestms/internal/domain"
	"guestms/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ReservationExporter builds the xlsx workbook for a date range.
type ReservationExporter interface {
	Build(ctx context.Context, from, to time.Time) (*excelize.File, error)
}

// Services are the collaborators behind the HTTP routes.
type Services struct {
	Rooms        domain.RoomService
	Customers    domain.CustomerService
	Reservations domain.ReservationService
	Exporter     ReservationExporter
	Pinger       Pinger
}

// HTTPServer exposes the JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	auth   *httpAuth
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{cfg: cfg, svc: svc, auth: newHTTPAuth(cfg), log: zerolog.Nop()}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	a := srv.auth

	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /readyz", srv.handleReady)

	mux.Handle("GET /api/v1/rooms", a.require(PermReadRooms, srv.handleListRooms))
	mux.Handle("POST /api/v1/rooms", a.require(PermWriteRooms, srv.handleCreateRoom))
	mux.Handle("GET /api/v1/rooms/search", a.require(PermReadRooms, srv.handleSearchRooms))
	mux.Handle("GET /api/v1/rooms/{id}", a.require(PermReadRooms, srv.handleGetRoom))
	mux.Handle("PUT /api/v1/rooms/{id}", a.require(PermWriteRooms, srv.handleUpdateRoom))
	mux.Handle("DELETE /api/v1/rooms/{id}", a.require(PermWriteRooms, srv.handleDeleteRoom))

	mux.Handle("POST /api/v1/customers", a.require(PermWriteCustomers, srv.handleRegisterCustomer))
	mux.Handle("GET /api/v1/customers/{id}", a.require(PermReadReservations, srv.handleGetCustomer))

	mux.Handle("GET /api/v1/reservations", a.require(PermReadReservations, srv.handleListReservations))
	mux.Handle("POST /api/v1/reservations", a.require(PermWriteReservations, srv.handleCreateReservation))
	mux.Handle("GET /api/v1/reservations/{id}", a.require(PermReadReservations, srv.handleGetReservation))
	mux.Handle("DELETE /api/v1/reservations/{id}", a.require(PermWriteReservations, srv.handleCancelReservation))
	mux.Handle("PATCH /api/v1/reservations/{id}/status", a.require(PermWriteReservations, srv.handleUpdateStatus))

	mux.Handle("POST /api/v1/admin/reconcile", a.require(PermAdmin, srv.handleReconcile))
	mux.Handle("GET /api/v1/exports/reservations", a.require(PermReadReservations, srv.handleExport))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Pinger != nil {
		if err := s.svc.Pinger.Ping(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// httpAuth applies API-key auth, per-route permissions and per-key rate limits.
type httpAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func newHTTPAuth(cfg config.APIConfig) *httpAuth {
	return &httpAuth{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *httpAuth) require(permission string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.Auth.Enabled {
			_, err := a.keys.authenticate(
				r.Header.Get(a.keys.apiKeyHeader),
				r.Header.Get(a.keys.extraHeader),
				permission,
			)
			if err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}

		next(w, r)
	})
}

func (a *httpAuth) clientKey(r *http.Request) string {
	if apiKey := r.Header.Get(a.keys.apiKeyHeader); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
