package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/maitri/internal/domain"
)

func TestOpenAICompleteSuccess(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "az-key", r.Header.Get("api-key"))
		assert.Equal(t, "Bearer az-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Hello back "}}]}`))
	}))
	defer server.Close()

	c := NewOpenAIClient(server.URL+"/chat/completions", "az-key", quietLog(), WithChatSystemPrompt("be nice"))
	history := []domain.Message{
		{ID: 1, Author: domain.AuthorBot, Text: "Hi!", Status: domain.StatusFinal},
		{ID: 2, Author: domain.AuthorUser, Text: "earlier", Status: domain.StatusFinal},
	}

	reply, err := c.Complete(context.Background(), history, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello back", reply)

	assert.Equal(t, []chatMessage{
		{Role: "system", Content: "be nice"},
		{Role: "assistant", Content: "Hi!"},
		{Role: "user", Content: "earlier"},
		{Role: "user", Content: "hello"},
	}, got.Messages)
	assert.Empty(t, got.Model)
}

func TestOpenAIConfigErrorsSkipNetwork(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	var cfgErr *domain.ConfigError

	_, err := NewOpenAIClient(server.URL, "", quietLog()).Complete(context.Background(), nil, "hi")
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, MissingCredential, err.Error())

	_, err = NewOpenAIClient("", "key", quietLog()).Complete(context.Background(), nil, "hi")
	require.True(t, errors.As(err, &cfgErr))

	assert.Zero(t, calls.Load())
}

func TestOpenAIServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached"}}`))
	}))
	defer server.Close()

	_, err := NewOpenAIClient(server.URL, "key", quietLog()).Complete(context.Background(), nil, "hi")
	var svcErr *domain.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.StatusCode)
	assert.Equal(t, "Rate limit reached", svcErr.Msg)
}

func TestOpenAINoChoicesFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	reply, err := NewOpenAIClient(server.URL, "key", quietLog()).Complete(context.Background(), nil, "hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
}
