// Package twitchapi contains minimal helpers to interact with the Twitch Helix API:
// an app access token source and a stream status lookup.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// StreamsURL is the Helix "Get Streams" endpoint.
const StreamsURL = "https://api.twitch.tv/helix/streams"

// HelixClient queries Helix for stream status.
type HelixClient struct {
	ClientID   string
	HTTPClient *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// Stream is the subset of a Helix stream object we care about.
type Stream struct {
	ID        string `json:"id"`
	UserLogin string `json:"user_login"`
	Title     string `json:"title"`
	GameName  string `json:"game_name"`
	StartedAt string `json:"started_at"`
}

// StatusError is returned for non-2xx Helix responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helix streams status %d: %s", e.Code, e.Body)
}

// GetStreams returns the active streams for login. An empty token sends the
// request without Client-Id/Authorization headers; Helix then answers 401,
// which surfaces as a *StatusError.
func (hc *HelixClient) GetStreams(ctx context.Context, login, token string) ([]Stream, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, StreamsURL, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("user_login", login)
	req.URL.RawQuery = q.Encode()
	if token != "" && hc.ClientID != "" {
		req.Header.Set("Client-Id", hc.ClientID)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b)}
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode helix streams: %w", err)
	}
	return body.Data, nil
}

// IsLive reports whether login currently has at least one active stream.
func (hc *HelixClient) IsLive(ctx context.Context, login, token string) (bool, error) {
	streams, err := hc.GetStreams(ctx, login, token)
	if err != nil {
		return false, err
	}
	return len(streams) > 0, nil
}
