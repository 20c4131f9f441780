package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/usecase/generate"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	"github.com/m-mizutani/promptshot/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "promptshot"
	ServerVersion = "0.1.0"
)

type generateImageParams struct {
	Prompt string `json:"prompt" jsonschema:"Text describing the image to generate"`
}

type listHistoryParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of entries to return, newest first. 0 returns all"`
}

type clearHistoryParams struct{}

// Server exposes image generation and history as MCP tools
type Server struct {
	ctrl   *generate.Controller
	store  *history.Store
	server *mcp.Server

	// submitMu keeps SetPrompt and Submit of one request together
	submitMu sync.Mutex
}

// NewServer creates a new MCP server backed by ctrl and store
func NewServer(ctrl *generate.Controller, store *history.Store) *Server {
	s := &Server{
		ctrl:  ctrl,
		store: store,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate an image from a text prompt and record it in history. Returns the image URL.",
	}, s.generateImage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_history",
		Description: "List past image generations, newest first",
	}, s.listHistory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Delete all past image generations",
	}, s.clearHistory)

	return s
}

// RunStdio serves MCP over stdin/stdout until ctx is done or the peer disconnects
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "failed to run MCP server on stdio")
	}
	return nil
}

// Handler returns a streamable HTTP handler serving this server
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

func (s *Server) generateImage(ctx context.Context, req *mcp.CallToolRequest, params *generateImageParams) (*mcp.CallToolResult, any, error) {
	if !s.submitMu.TryLock() {
		return errorResult(model.ErrBusy.Error()), nil, nil
	}
	defer s.submitMu.Unlock()

	if params == nil {
		params = &generateImageParams{}
	}
	if err := s.ctrl.SetPrompt(params.Prompt); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	entry, err := s.ctrl.Submit(ctx)
	if err != nil {
		logging.Component(ctx, "mcp").Warn("generate_image failed", "error", err)
		if msg := s.ctrl.State().Message; msg != "" {
			return errorResult(msg), nil, nil
		}
		return errorResult(model.ErrGenerationFailed.Error()), nil, nil
	}
	s.ctrl.Reset()

	return textResult(entry.ImageURL), nil, nil
}

func (s *Server) listHistory(ctx context.Context, req *mcp.CallToolRequest, params *listHistoryParams) (*mcp.CallToolResult, any, error) {
	if params == nil {
		params = &listHistoryParams{}
	}
	if params.Limit < 0 {
		return nil, nil, goerr.New("limit must not be negative", goerr.V("limit", params.Limit))
	}

	entries := s.store.Entries(ctx)
	if params.Limit > 0 && len(entries) > params.Limit {
		entries = entries[:params.Limit]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal history")
	}

	return textResult(string(data)), nil, nil
}

func (s *Server) clearHistory(ctx context.Context, req *mcp.CallToolRequest, params *clearHistoryParams) (*mcp.CallToolResult, any, error) {
	s.store.Clear(ctx)
	return textResult("history cleared"), nil, nil
}
