package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ollama/ollama/api"

	"techbot/attachment"
	"techbot/model"
	"techbot/provider/testutil"
)

func TestOllamaProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*OllamaProvider)(nil)
}

func ollamaLine(content string, done bool) string {
	data, _ := json.Marshal(map[string]any{
		"model":      "llava",
		"created_at": time.Unix(0, 0).UTC().Format(time.RFC3339),
		"message":    map[string]any{"role": "assistant", "content": content},
		"done":       done,
	})
	return string(data) + "\n"
}

func TestOllamaStream(t *testing.T) {
	var req api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, ollamaLine("Hel", false), ollamaLine("lo", false), ollamaLine("", true))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "llava")
	if err != nil {
		t.Fatal(err)
	}

	img, _ := attachment.FromBytes("dot.png", testutil.TinyPNG).Message()
	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("what is this"), img))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	texts, err := collect(t, stream)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if got := strings.Join(texts, ""); got != "Hello" {
		t.Errorf("text = %q, want Hello", got)
	}

	if req.Model != "llava" || len(req.Messages) != 2 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Messages[1].Images) != 1 || len(req.Messages[1].Images[0]) != len(testutil.TinyPNG) {
		t.Errorf("image not sent inline: %+v", req.Messages[1])
	}
	if req.Options["temperature"] != 0.8 {
		t.Errorf("temperature = %v", req.Options["temperature"])
	}
}

func TestOllamaStreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid request"}`)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "llama3.1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if !errors.Is(err, model.ErrContentPolicy) {
		t.Errorf("Stream() error = %v, want ErrContentPolicy", err)
	}
}

func TestOllamaStreamRejectsImagesForTextModel(t *testing.T) {
	p, err := NewOllamaProvider("http://127.0.0.1:1", "mistral:latest")
	if err != nil {
		t.Fatal(err)
	}
	img, _ := attachment.FromBytes("dot.png", testutil.TinyPNG).Message()
	if _, err := p.Stream(context.Background(), request(img)); !errors.Is(err, model.ErrInvalidMessage) {
		t.Errorf("Stream() error = %v, want ErrInvalidMessage", err)
	}
}

func TestOllamaStreamCloseStopsProducer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ollamaLine("first", false))
		flusher.Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p, err := NewOllamaProvider(srv.URL, "llama3.1")
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if !stream.Next() || stream.Current().Text() != "first" {
		t.Fatalf("first fragment = %q", stream.Current().Text())
	}

	done := make(chan struct{})
	go func() {
		stream.Close()
		for stream.Next() {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after Close")
	}
	if !errors.Is(stream.Err(), model.ErrStreamInterrupted) {
		t.Errorf("Err() = %v, want ErrStreamInterrupted", stream.Err())
	}
}

func TestOllamaStreamWithoutDoneIsInterrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprint(w, ollamaLine("Hel", false), ollamaLine("lo", false))
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "llama3.1")
	if err != nil {
		t.Fatal(err)
	}

	stream, err := p.Stream(context.Background(), request(model.NewUserMessage("hi")))
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	texts, err := collect(t, stream)
	if got := strings.Join(texts, ""); got != "Hello" {
		t.Errorf("text = %q, want Hello", got)
	}
	if !errors.Is(err, model.ErrStreamInterrupted) {
		t.Errorf("stream error = %v, want ErrStreamInterrupted", err)
	}
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"models":[{"name":"llava:latest","model":"llava:latest","size":4700000000}]}`)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 1 || models[0].Name != "llava:latest" || models[0].Size != 4700000000 || models[0].Provider != "ollama" {
		t.Errorf("models = %+v", models)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
