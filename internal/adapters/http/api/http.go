// Package api exposes the analytics service over REST and streams epoch
// changes to websocket clients.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/cors"

	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/fault"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

// Service is the operation surface the handlers call.
type Service interface {
	PlayerInfo(ctx context.Context, p analytics.PlayerLookup) types.Outcome
	SearchPlayers(ctx context.Context, p analytics.SearchPlayersParams) types.Outcome
	SearchTeams(ctx context.Context, p analytics.SearchTeamsParams) types.Outcome
	PlayerForm(ctx context.Context, p analytics.PlayerFormParams) types.Outcome
	PlayersInForm(ctx context.Context, p analytics.PlayersInFormParams) types.Outcome
	TeamForm(ctx context.Context, p analytics.TeamFormParams) types.Outcome
	FixtureDifficulty(ctx context.Context, p analytics.FixtureDifficultyParams) types.Outcome
	EasiestSchedules(ctx context.Context, p analytics.EasiestSchedulesParams) types.Outcome
	TransferSuggestions(ctx context.Context, p analytics.TransferParams) types.Outcome
	Differentials(ctx context.Context, p analytics.DifferentialParams) types.Outcome
	BogeyTeams(ctx context.Context, p analytics.BogeyParams) types.Outcome
	AnalyzeSquad(ctx context.Context, req service.SquadRequest) types.Outcome
	CaptaincyPicks(ctx context.Context, req service.CaptaincyRequest) types.Outcome
	SyncStatus(ctx context.Context) types.Outcome
	TriggerSync(ctx context.Context, source string) types.Outcome
}

// Server wires HTTP routes for the analytics API.
type Server struct {
	svc     Service
	hub     *Hub
	mounts  map[string]http.Handler
	origins []string
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHub serves epoch notifications at /ws/epochs.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithMount attaches an extra handler under a path prefix, such as the MCP endpoint.
func WithMount(prefix string, h http.Handler) Option {
	return func(s *Server) {
		if h != nil && prefix != "" {
			s.mounts[prefix] = h
		}
	}
}

// WithCORSOrigins sets the allowed origins. Empty allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an API server backed by svc.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		mounts: map[string]http.Handler{},
		logger: logger.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the routes without CORS handling.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metricsHandler()).Methods(http.MethodGet)
	if s.hub != nil {
		r.Handle("/ws/epochs", s.hub).Methods(http.MethodGet)
	}
	for prefix, h := range s.mounts {
		r.PathPrefix(prefix).Handler(h)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/sync", s.handleSync).Methods(http.MethodPost)

	v1.HandleFunc("/players", s.handlePlayers).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}", s.handlePlayer).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/form", s.handlePlayerForm).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/fixtures", s.handlePlayerFixtures).Methods(http.MethodGet)
	v1.HandleFunc("/players/{id}/bogey", s.handlePlayerBogey).Methods(http.MethodGet)
	v1.HandleFunc("/form/players", s.handlePlayersInForm).Methods(http.MethodGet)

	v1.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	v1.HandleFunc("/teams/{team}/form", s.handleTeamForm).Methods(http.MethodGet)
	v1.HandleFunc("/teams/{id}/fixtures", s.handleTeamFixtures).Methods(http.MethodGet)
	v1.HandleFunc("/teams/{id}/bogey", s.handleTeamBogey).Methods(http.MethodGet)
	v1.HandleFunc("/fixtures/easiest", s.handleEasiest).Methods(http.MethodGet)

	v1.HandleFunc("/transfers", s.handleTransfers).Methods(http.MethodPost)
	v1.HandleFunc("/squad/analysis", s.handleSquadAnalysis).Methods(http.MethodPost)
	v1.HandleFunc("/captaincy", s.handleCaptaincy).Methods(http.MethodPost)
	v1.HandleFunc("/differentials", s.handleDifferentials).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeOutcome(w, types.Failure(fault.New(fault.KindNoData, "route", "no route for %s %s", r.Method, r.URL.Path)))
	})
	return r
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	})
	return c.Handler(s.Router())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOutcome writes o with a status derived from its error kind.
func writeOutcome(w http.ResponseWriter, o types.Outcome) {
	writeJSON(w, statusOf(o), o)
}

func statusOf(o types.Outcome) int {
	if o.OK || o.Error == nil {
		return http.StatusOK
	}
	switch o.Error.Kind {
	case fault.KindInvalidParameters, fault.KindValidation:
		return http.StatusBadRequest
	case fault.KindNoData:
		return http.StatusNotFound
	case fault.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case fault.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case fault.KindCacheUnavailable, fault.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
