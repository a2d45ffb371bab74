package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemed-server/internal/config"
)

func TestDailyClient_CreateRoom(t *testing.T) {
	expiresAt := time.Date(2030, 1, 2, 11, 0, 0, 0, time.UTC)

	var got createRoomRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/rooms", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","name":"telemed-1-a1b2c3","url":"https://example.daily.co/telemed-1-a1b2c3"}`))
	}))
	defer srv.Close()

	client := NewDailyClient(config.VideoConfig{APIURL: srv.URL + "/v1/", APIKey: "secret-key"})
	room, err := client.CreateRoom(context.Background(), "telemed-1-a1b2c3", expiresAt)
	require.NoError(t, err)

	assert.Equal(t, "https://example.daily.co/telemed-1-a1b2c3", room.URL)
	assert.Equal(t, "telemed-1-a1b2c3", got.Name)
	assert.Equal(t, "private", got.Privacy)
	assert.Equal(t, expiresAt.Unix(), got.Properties.Exp)
	assert.Equal(t, "cloud", got.Properties.EnableRecording)
	assert.True(t, got.Properties.EnablePrejoinUI)
}

func TestDailyClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid-request-error"}`))
	}))
	defer srv.Close()

	client := NewDailyClient(config.VideoConfig{APIURL: srv.URL, APIKey: "k"})
	_, err := client.CreateRoom(context.Background(), "telemed-x", time.Now())

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Contains(t, perr.Body, "invalid-request-error")
}

func TestDailyClient_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"telemed-x"}`))
	}))
	defer srv.Close()

	client := NewDailyClient(config.VideoConfig{APIURL: srv.URL, APIKey: "k"})
	_, err := client.CreateRoom(context.Background(), "telemed-x", time.Now())
	assert.Error(t, err)
}
