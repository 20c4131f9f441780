package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/promptshot/pkg/model"
	"github.com/m-mizutani/promptshot/pkg/repository"
	"github.com/m-mizutani/promptshot/pkg/service/imagegen"
	"github.com/m-mizutani/promptshot/pkg/service/mcp"
	"github.com/m-mizutani/promptshot/pkg/usecase/generate"
	"github.com/m-mizutani/promptshot/pkg/usecase/history"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func setupSession(t *testing.T) (*mcpsdk.ClientSession, *history.Store) {
	t.Helper()
	ctx := context.Background()

	store := history.New(repository.NewMemory())
	provider := imagegen.NewPlaceholder(
		imagegen.WithDelay(0),
		imagegen.WithImages([]string{"https://example.com/generated.jpeg"}),
	)
	server := mcp.NewServer(generate.New(provider, store), store)

	testServer := httptest.NewServer(server.Handler())
	t.Cleanup(testServer.Close)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "promptshot-test",
		Version: "1.0.0",
	}, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{
		Endpoint: testServer.URL,
	}, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session, store
}

func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	session, _ := setupSession(t)

	tools, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	gt.True(t, names["generate_image"])
	gt.True(t, names["list_history"])
	gt.True(t, names["clear_history"])
}

func TestGenerateImageTool(t *testing.T) {
	ctx := context.Background()
	session, store := setupSession(t)

	text, isError := callText(t, session, "generate_image", map[string]any{"prompt": "a cat"})
	gt.False(t, isError)
	gt.Equal(t, text, "https://example.com/generated.jpeg")

	entries := store.Entries(ctx)
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].Prompt, "a cat")

	// The controller is ready for the next request
	text, isError = callText(t, session, "generate_image", map[string]any{"prompt": "a dog"})
	gt.False(t, isError)
	gt.Equal(t, text, "https://example.com/generated.jpeg")
	gt.A(t, store.Entries(ctx)).Length(2)
}

func TestGenerateImageToolEmptyPrompt(t *testing.T) {
	session, store := setupSession(t)

	text, isError := callText(t, session, "generate_image", map[string]any{"prompt": "   "})
	gt.True(t, isError)
	gt.Equal(t, text, "Please enter a prompt first")
	gt.A(t, store.Entries(context.Background())).Length(0)
}

func TestListAndClearHistoryTools(t *testing.T) {
	ctx := context.Background()
	session, store := setupSession(t)

	for _, p := range []string{"cat", "dog", "bird"} {
		store.Append(ctx, model.HistoryEntry{Prompt: p, ImageURL: "https://example.com/" + p})
	}

	text, isError := callText(t, session, "list_history", map[string]any{"limit": 2})
	gt.False(t, isError)

	var entries []model.HistoryEntry
	gt.NoError(t, json.Unmarshal([]byte(text), &entries))
	gt.A(t, entries).Length(2)
	gt.Equal(t, entries[0].Prompt, "bird")
	gt.Equal(t, entries[1].Prompt, "dog")

	_, isError = callText(t, session, "clear_history", map[string]any{})
	gt.False(t, isError)
	gt.A(t, store.Entries(ctx)).Length(0)

	text, _ = callText(t, session, "list_history", map[string]any{})
	gt.Equal(t, text, "[]")
}
