package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshdurbin/lift-mcp/internal/analytics"
	"github.com/joshdurbin/lift-mcp/internal/logging"
	"github.com/joshdurbin/lift-mcp/internal/metrics"
	"github.com/joshdurbin/lift-mcp/internal/streak"
)

const (
	serverName    = "lift-mcp"
	serverVersion = "1.0.0"
)

// ptr returns a pointer to the given value - useful for optional fields in structs
func ptr[T any](v T) *T {
	return &v
}

// Recorder persists logged workouts and cardio sessions
type Recorder interface {
	SaveWorkout(ctx context.Context, userID string, w analytics.WorkoutRecord, source string) (string, error)
	SaveCardio(ctx context.Context, userID string, c analytics.CardioRecord, source string) (string, error)
}

// Deps are the collaborators the MCP tools run against
type Deps struct {
	Registry    *analytics.Registry
	Recorder    Recorder
	Streaks     *streak.Store
	Metrics     *metrics.Manager
	DefaultUser string
	// Now defaults to time.Now
	Now func() time.Time
}

// Server wraps the MCP server and the analytics registry
type Server struct {
	mcp         *mcp.Server
	registry    *analytics.Registry
	recorder    Recorder
	streaks     *streak.Store
	metrics     *metrics.Manager
	defaultUser string
	now         func() time.Time

	// serializes streak read-modify-write cycles
	streakMu sync.Mutex
}

// MCPServer returns the underlying MCP server (for use with HTTP/SSE transport)
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// New creates a new MCP server with workout analytics tools
func New(deps Deps) *Server {
	logging.Info("MCP server initializing", "name", serverName, "version", serverVersion)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s := &Server{
		mcp:         mcpServer,
		registry:    deps.Registry,
		recorder:    deps.Recorder,
		streaks:     deps.Streaks,
		metrics:     deps.Metrics,
		defaultUser: deps.DefaultUser,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = metrics.NewManager(metrics.Namespace, metrics.Subsystem, prometheus.NewRegistry())
	}

	logging.Debug("Registering MCP tools")
	s.registerWorkoutTools()
	s.registerProgressTools()
	s.registerRecoveryTools()
	s.registerRecordsTools()
	s.registerStreakTools()

	logging.Debug("Registering MCP resources")
	s.registerResources()

	logging.Debug("Registering MCP prompts")
	s.registerPrompts()

	logging.Info("MCP server initialized", "tools_registered", 8, "resource_templates_registered", 2, "prompts_registered", 2)
	return s
}

// Run starts the MCP server over stdio transport
func (s *Server) Run(ctx context.Context) error {
	logging.Info("MCP server starting")
	defer logging.Info("MCP server stopped")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// user resolves the tool's user_id argument against the default user
func (s *Server) user(userID string) (string, error) {
	if u := strings.TrimSpace(userID); u != "" {
		return u, nil
	}
	if s.defaultUser == "" {
		return "", NewInvalidInputError("user_id is required")
	}
	return s.defaultUser, nil
}

// service returns the initialized analytics service for the user
func (s *Server) service(ctx context.Context, userID string) (*analytics.Service, error) {
	svc, err := s.registry.For(ctx, userID)
	if err != nil {
		return nil, toToolError(err)
	}
	if loadErr := svc.LoadErrors(); loadErr != nil {
		logging.Warn("analytics running on partial history", "user_id", userID, "error", loadErr)
	}
	return svc, nil
}

// instrument counts calls and failures of a tool handler
func instrument[In, Out any](s *Server, tool string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		res, out, err := h(ctx, req, input)
		s.metrics.ToolCall(tool, err != nil)
		if err != nil {
			logging.Error("MCP tool failed", "tool", tool, "error", err)
		}
		return res, out, err
	}
}

// countFeedback records the types of returned feedback items
func (s *Server) countFeedback(items ...analytics.Feedback) {
	for _, f := range items {
		s.metrics.Feedback(f.Type)
	}
}

// readOnly is the annotation set shared by the query tools
func readOnly(title string) *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		Title:           title,
		ReadOnlyHint:    true,
		IdempotentHint:  true,
		OpenWorldHint:   ptr(false),
		DestructiveHint: ptr(false),
	}
}
