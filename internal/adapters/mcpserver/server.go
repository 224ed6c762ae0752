// Package mcpserver publishes the analytics operations as MCP tools.
package mcpserver

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	service "github.com/dlystyr/fantasypl-mcp/internal/app"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/analytics"
	"github.com/dlystyr/fantasypl-mcp/internal/domain/types"
	"github.com/dlystyr/fantasypl-mcp/pkg/logger"
	"github.com/dlystyr/fantasypl-mcp/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

const (
	serverName     = "fantasypl-mcp"
	defaultVersion = "dev"
	defaultHeader  = "X-API-Key"
)

// Service is the operation surface exposed as tools.
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

// ToolInfo names a registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Server owns the MCP server and its tool registry.
type Server struct {
	svc     Service
	server  *mcp.Server
	tools   []ToolInfo
	version string
	apiKey  string
	header  string
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires key in header (or as a bearer token) on every request.
// An empty key disables the check.
func WithAPIKey(key, header string) Option {
	return func(s *Server) {
		s.apiKey = strings.TrimSpace(key)
		if header != "" {
			s.header = header
		}
	}
}

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New registers every operation as a tool.
func New(svc Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		version: defaultVersion,
		header:  defaultHeader,
		logger:  logger.Named("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: s.version}, nil)
	s.registerTools()
	return s
}

// MCP returns the underlying server, for in-process transports.
func (s *Server) MCP() *mcp.Server { return s.server }

// Tools lists the registered tools in registration order.
func (s *Server) Tools() []ToolInfo {
	return append([]ToolInfo(nil), s.tools...)
}

// Handler serves the streamable HTTP transport behind the API key check.
func (s *Server) Handler() http.Handler {
	h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
	return s.withAuth(h)
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := strings.TrimSpace(r.Header.Get(s.header))
		if key == "" {
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				key = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			metrics.RecordErrorByComponent("mcp", "unauthorized")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// addTool registers a typed tool whose result is the Outcome envelope as JSON text.
func addTool[In any](s *Server, name, description string, call func(context.Context, In) types.Outcome) {
	s.tools = append(s.tools, ToolInfo{Name: name, Description: description})
	mcp.AddTool(s.server, &mcp.Tool{Name: name, Description: description},
		func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, any, error) {
			start := time.Now()
			o := call(ctx, args)
			return s.result(ctx, name, start, o), nil, nil
		})
}

func (s *Server) result(ctx context.Context, tool string, start time.Time, o types.Outcome) *mcp.CallToolResult {
	label := "ok"
	if !o.OK && o.Error != nil {
		label = string(o.Error.Kind)
	}
	metrics.RecordToolCall(tool, label)
	s.logger.Debug(ctx, "tool call",
		logger.String("tool", tool),
		logger.String("outcome", label),
		logger.Duration("took", time.Since(start)))

	isErr := !o.OK
	body, err := json.Marshal(o)
	if err != nil {
		isErr = true
		s.logger.Error(ctx, "marshal tool result", logger.String("tool", tool), logger.Error(err))
		body = []byte(`{"ok":false,"error":{"kind":"internal","message":"result could not be encoded"}}`)
	}
	return &mcp.CallToolResult{
		IsError: isErr,
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}
}
