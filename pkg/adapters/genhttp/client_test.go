package genhttp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapestrylab/weft/pkg/adapters/genhttp"
	"github.com/tapestrylab/weft/pkg/domain"
	"github.com/tapestrylab/weft/pkg/ports"
)

func TestGenerate_StreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ports.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "build a form", req.Prompt)
		require.NotNil(t, req.CurrentSpec)
		assert.Equal(t, "a", req.CurrentSpec.Root)

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"op":"replace","path":"/root","value":"a"}` + "\n"))
		w.Write([]byte(`{"op":"add","path":"/nodes/a","value":{"type":"text"}}` + "\n"))
	}))
	defer srv.Close()

	client := genhttp.New(srv.URL)
	seed := domain.NewSpec()
	seed.Root = "a"

	body, err := client.Generate(context.Background(), ports.GenerateRequest{
		Prompt:      "build a form",
		CurrentSpec: seed,
	})
	require.NoError(t, err)
	defer body.Close()

	var lines []string
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Len(t, lines, 2)
}

func TestGenerate_BearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	client := genhttp.New(srv.URL, genhttp.WithAPIKey("sk-test"))
	body, err := client.Generate(context.Background(), ports.GenerateRequest{})
	require.NoError(t, err)
	body.Close()
}

func TestGenerate_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	client := genhttp.New(srv.URL)
	_, err := client.Generate(context.Background(), ports.GenerateRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerate_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := genhttp.New(srv.URL)
	_, err := client.Generate(context.Background(), ports.GenerateRequest{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream unavailable")
}

func TestGenerate_CustomPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	client := genhttp.New(srv.URL, genhttp.WithPath("/api/stream"))
	body, err := client.Generate(context.Background(), ports.GenerateRequest{})
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "/api/stream", gotPath)
}
