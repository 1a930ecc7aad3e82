package server

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshdurbin/lift-mcp/internal/logging"
)

const (
	dashboardURIPrefix = "lift://dashboard/"
	streaksURIPrefix   = "lift://streaks/"
)

// registerResources registers all MCP resources for the server
func (s *Server) registerResources() {
	// Resource template: dashboard by user
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: dashboardURIPrefix + "{user}",
		Name:        "dashboard_by_user",
		Description: "Dashboard analytics for a user: stagnation, progress summaries and recovery",
		MIMEType:    "application/json",
	}, s.readDashboard)

	// Resource template: streaks by user
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: streaksURIPrefix + "{user}",
		Name:        "streaks_by_user",
		Description: "Current workout and calorie streaks for a user",
		MIMEType:    "application/json",
	}, s.readStreaks)

	logging.Debug("MCP resources registered", "count", 2)
}

// userFromURI extracts the {user} segment of a resource URI
func userFromURI(uri, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(uri, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", NewInvalidInputErrorWithDetails("invalid resource URI format", uri)
	}
	userID, err := url.PathUnescape(rest)
	if err != nil {
		return "", NewInvalidInputErrorWithDetails("invalid user in resource URI", uri)
	}
	return userID, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, NewInternalErrorWithCause("failed to marshal resource", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(jsonData),
			},
		},
	}, nil
}

// readDashboard returns the dashboard analytics of the user in the URI
func (s *Server) readDashboard(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	userID, err := userFromURI(req.Params.URI, dashboardURIPrefix)
	if err != nil {
		return nil, err
	}
	logging.Info("MCP resource read", "resource", "dashboard_by_user", "user_id", userID)

	dash, err := s.dashboard(ctx, userID)
	if err != nil {
		logging.Error("readDashboard failed", "user_id", userID, "error", err)
		return nil, err
	}
	return jsonResource(req.Params.URI, dash)
}

// readStreaks returns the streak summary of the user in the URI
func (s *Server) readStreaks(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	userID, err := userFromURI(req.Params.URI, streaksURIPrefix)
	if err != nil {
		return nil, err
	}
	logging.Info("MCP resource read", "resource", "streaks_by_user", "user_id", userID)

	summary, err := s.streakSummary(ctx, userID)
	if err != nil {
		logging.Error("readStreaks failed", "user_id", userID, "error", err)
		return nil, err
	}
	summary.SuggestedActions = nil
	return jsonResource(req.Params.URI, summary)
}
