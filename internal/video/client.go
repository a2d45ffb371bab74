package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"telemed-server/internal/config"
)

// Provider provisions rooms on the video-conferencing service
type Provider interface {
	CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*ProvisionedRoom, error)
}

// ProvisionedRoom is what the provider reports back for a new room
type ProvisionedRoom struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ProviderError is a non-2xx answer from the provider API
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("video provider returned %d: %s", e.StatusCode, e.Body)
}

type roomProperties struct {
	Exp             int64  `json:"exp"`
	EnableRecording string `json:"enable_recording"`
	EnablePrejoinUI bool   `json:"enable_prejoin_ui"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

// DailyClient talks to the Daily REST API
type DailyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewDailyClient(cfg config.VideoConfig) *DailyClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DailyClient{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateRoom creates a private room that expires at expiresAt
func (c *DailyClient) CreateRoom(ctx context.Context, name string, expiresAt time.Time) (*ProvisionedRoom, error) {
	payload, err := json.Marshal(createRoomRequest{
		Name:    name,
		Privacy: "private",
		Properties: roomProperties{
			Exp:             expiresAt.Unix(),
			EnableRecording: "cloud",
			EnablePrejoinUI: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build room request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var room ProvisionedRoom
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return nil, fmt.Errorf("decode room response: %w", err)
	}
	if room.URL == "" {
		return nil, fmt.Errorf("create room: provider response has no url")
	}
	return &room, nil
}
