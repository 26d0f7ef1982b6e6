package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"

	"techbot/model"
	"techbot/provider/testutil"
)

// chunkEvent renders one chat.completion.chunk SSE event.
func chunkEvent(content ...string) string {
	choices := make([]map[string]any, 0, len(content))
	for i, c := range content {
		choices = append(choices, map[string]any{
			"index":         i,
			"delta":         map[string]any{"content": c},
			"finish_reason": nil,
		})
	}
	data, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1700000000,
		"model":   "gpt-4",
		"choices": choices,
	})
	return "data: " + string(data) + "\n\n"
}

type recordedRequest struct {
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// sseServer replays events and records the last request it received.
func sseServer(t *testing.T, status int, events ...string) (*httptest.Server, func() recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		last recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec := recordedRequest{path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone()}
		_ = json.Unmarshal(raw, &rec.body)
		mu.Lock()
		last = rec
		mu.Unlock()

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"The response was filtered","type":"invalid_request_error","code":"content_filter"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, e := range events {
			fmt.Fprint(w, e)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func collect(t *testing.T, stream model.FragmentStream) ([]string, error) {
	t.Helper()
	defer stream.Close()
	var texts []string
	for stream.Next() {
		texts = append(texts, stream.Current().Text())
	}
	return texts, stream.Err()
}

func request(messages ...model.Message) model.CompletionRequest {
	return model.CompletionRequest{
		Messages:    messages,
		Temperature: model.DefaultTemperature,
		Stream:      true,
	}
}

func TestOpenAIStream(t *testing.T) {
	srv, last := sseServer(t, http.StatusOK,
		`data: {"id":"","object":"","created":0,"model":"","choices":[],"prompt_filter_results":[]}`+"\n\n",
		chunkEvent("Hel"),
		chunkEvent("lo"),
		chunkEvent(" world"),
		"data: [DONE]\n\n",
	)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(testutil.TestMessages()...))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	texts, err := collect(t, stream)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if got := strings.Join(texts, "|"); got != "|Hel|lo| world" {
		t.Errorf("fragments = %q", got)
	}

	req := last()
	if req.path != "/chat/completions" {
		t.Errorf("path = %q", req.path)
	}
	if req.body["model"] != "gpt-4" || req.body["stream"] != true || req.body["temperature"] != 0.8 {
		t.Errorf("body = %v", req.body)
	}
	if msgs, _ := req.body["messages"].([]any); len(msgs) != 4 {
		t.Errorf("messages sent = %d, want 4", len(msgs))
	}
}

func TestOpenAIStreamContentPolicy(t *testing.T) {
	srv, _ := sseServer(t, http.StatusBadRequest)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("bad prompt")))
	if !errors.Is(err, model.ErrContentPolicy) {
		t.Fatalf("Stream() error = %v, want ErrContentPolicy", err)
	}
	if stream != nil {
		t.Error("stream should be nil on rejection")
	}
}

func TestOpenAIStreamServerError(t *testing.T) {
	srv, _ := sseServer(t, http.StatusInternalServerError)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if err == nil || errors.Is(err, model.ErrContentPolicy) {
		t.Fatalf("Stream() error = %v, want plain request failure", err)
	}
}

func TestOpenAIStreamMidStreamError(t *testing.T) {
	srv, _ := sseServer(t, http.StatusOK,
		chunkEvent("partial"),
		`data: {"error":{"message":"upstream reset"}}`+"\n\n",
	)

	p, err := NewOpenAIProvider(srv.URL, "sk-test", "gpt-4", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	texts, err := collect(t, stream)
	if !errors.Is(err, model.ErrStreamInterrupted) {
		t.Errorf("stream error = %v, want ErrStreamInterrupted", err)
	}
	if len(texts) != 1 || texts[0] != "partial" {
		t.Errorf("fragments = %q", texts)
	}
}

func TestAzureStreamRoutesToDeployment(t *testing.T) {
	srv, last := sseServer(t, http.StatusOK, chunkEvent("ok"), "data: [DONE]\n\n")

	p, err := NewAzureProvider(srv.URL, "azure-key", "2024-02-15-preview", "chat-prod", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if _, err := collect(t, stream); err != nil {
		t.Fatalf("stream error = %v", err)
	}

	req := last()
	if req.path != "/openai/deployments/chat-prod/chat/completions" {
		t.Errorf("path = %q", req.path)
	}
	if !strings.Contains(req.query, "api-version=2024-02-15-preview") {
		t.Errorf("query = %q", req.query)
	}
	if req.header.Get("Api-Key") != "azure-key" {
		t.Errorf("Api-Key header = %q", req.header.Get("Api-Key"))
	}

	models, err := p.ListModels(context.Background())
	if err != nil || len(models) != 1 || models[0].Name != "chat-prod" {
		t.Errorf("ListModels() = %v, %v", models, err)
	}
}

func TestOpenRouterListModelsStripsPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"meta-llama/llama-3.2-90b","object":"model","created":0,"owned_by":"meta"}]}`)
	}))
	defer srv.Close()

	p, err := NewOpenRouterProvider(srv.URL, "key", "", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama-3.2-90b" || models[0].InternalName != "meta-llama/llama-3.2-90b" {
		t.Errorf("models = %+v", models)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
