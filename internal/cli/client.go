package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tycoon/internal/api"
	"tycoon/internal/game"
	"tycoon/internal/store"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the server, which for game
// routes means the session expired.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodGet, "/healthz", "", nil, nil, "")
}

func (c *Client) CreateGame(ctx context.Context, in api.CreateGameRequest) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/games", "", in, &out, "")
	return out, err
}

func (c *Client) GameState(ctx context.Context, gameID, token string) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, ""), token, nil, &out, "")
	return out, err
}

func (c *Client) PlayTurn(ctx context.Context, gameID, token string, decision *game.Decision, idem string) (api.TurnResult, error) {
	var out api.TurnResult
	in := api.TurnRequest{Decision: decision, Autopilot: decision == nil}
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/turns"), token, in, &out, idem)
	return out, err
}

func (c *Client) Preview(ctx context.Context, gameID, token string, decision game.Decision) (game.Command, error) {
	var out game.Command
	err := c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/preview"), token, decision, &out, "")
	return out, err
}

func (c *Client) Snapshot(ctx context.Context, gameID, token string) (game.Snapshot, error) {
	var out game.Snapshot
	err := c.jsonRequest(ctx, http.MethodGet, gamePath(gameID, "/snapshot"), token, nil, &out, "")
	return out, err
}

func (c *Client) SaveGame(ctx context.Context, gameID, token, name string) error {
	return c.jsonRequest(ctx, http.MethodPost, gamePath(gameID, "/save"), token, api.SaveRequest{Name: name}, nil, "")
}

func (c *Client) EndGame(ctx context.Context, gameID, token string) error {
	return c.jsonRequest(ctx, http.MethodDelete, gamePath(gameID, ""), token, nil, nil, "")
}

func (c *Client) ListSaves(ctx context.Context) ([]store.SaveInfo, error) {
	var out struct {
		Saves []store.SaveInfo `json:"saves"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/saves", "", nil, &out, "")
	return out.Saves, err
}

func (c *Client) Standings(ctx context.Context, name string) ([]store.Standing, error) {
	var out struct {
		Standings []store.Standing `json:"standings"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/saves/"+url.PathEscape(name), "", nil, &out, "")
	return out.Standings, err
}

func (c *Client) LoadSave(ctx context.Context, name string) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/saves/"+url.PathEscape(name)+"/load", "", nil, &out, "")
	return out, err
}

func gamePath(gameID, suffix string) string {
	return "/v1/games/" + url.PathEscape(gameID) + suffix
}

func (c *Client) jsonRequest(ctx context.Context, method, path, accessToken string, in any, out any, idem string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if idem != "" {
		req.Header.Set("Idempotency-Key", idem)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
