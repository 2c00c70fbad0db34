// Package slack is the chat side of the gateway: confirmation prompts with
// open/report buttons, expiry edits, direct messages, operator reports and
// opener health alerts, all sent through the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

const DefaultAPIBaseURL = "https://slack.com/api"

var ErrAPI = errors.New("slack api error")

type Config struct {
	Token         string
	ReportChannel string
	APIBaseURL    string
	Timeout       time.Duration
}

// Client implements service.Notifier and service.HealthListener.
type Client struct {
	baseURL       string
	token         string
	reportChannel string
	http          *http.Client
	logger        *slog.Logger
}

var (
	_ service.Notifier       = (*Client)(nil)
	_ service.HealthListener = (*Client)(nil)
)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       base,
		token:         cfg.Token,
		reportChannel: cfg.ReportChannel,
		http:          &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

func (c *Client) RequestConfirmation(ctx context.Context, userID string, door types.Door, callbackID string) (types.MessageHandle, error) {
	resp, err := c.call(ctx, "chat.postMessage", message{
		Channel:     userID,
		AsUser:      true,
		Attachments: []attachment{confirmationAttachment(userID, door, callbackID)},
	})
	if err != nil {
		return types.MessageHandle{}, err
	}
	return types.MessageHandle{Channel: resp.Channel, Timestamp: resp.TS}, nil
}

func (c *Client) MarkExpired(ctx context.Context, handle types.MessageHandle, door types.Door, callbackID string) error {
	_, err := c.call(ctx, "chat.update", message{
		Channel:     handle.Channel,
		TS:          handle.Timestamp,
		Attachments: []attachment{expiredAttachment(door, callbackID)},
	})
	return err
}

func (c *Client) NotifyUser(ctx context.Context, userID, text string) error {
	_, err := c.call(ctx, "chat.postMessage", message{Channel: userID, AsUser: true, Text: text})
	return err
}

func (c *Client) Report(ctx context.Context, userID string, door types.Door, attemptedAt time.Time) error {
	if c.reportChannel == "" {
		c.logger.Warn("report dropped, no report channel configured", "user_id", userID, "door_id", door.ID)
		return nil
	}
	_, err := c.call(ctx, "chat.postMessage", message{
		Channel: c.reportChannel,
		Text:    reportText(userID, door, attemptedAt),
	})
	return err
}

func (c *Client) OpenerDegraded(ctx context.Context, alert service.HealthAlert) {
	c.alert(ctx, degradedText(alert))
}

func (c *Client) OpenerRecovered(ctx context.Context, alert service.HealthAlert) {
	c.alert(ctx, recoveredText(alert))
}

func (c *Client) alert(ctx context.Context, text string) {
	if c.reportChannel == "" {
		return
	}
	if _, err := c.call(ctx, "chat.postMessage", message{Channel: c.reportChannel, Text: text}); err != nil {
		c.logger.Error("operator alert failed", "error", err)
	}
}

type apiResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Channel string `json:"channel,omitempty"`
	TS      string `json:"ts,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, body any) (apiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return apiResponse{}, fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("send %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apiResponse{}, fmt.Errorf("%w: %s status %d: %s", ErrAPI, method, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return apiResponse{}, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		return apiResponse{}, fmt.Errorf("%w: %s: %s", ErrAPI, method, out.Error)
	}

	c.logger.Debug("slack call ok", "method", method, "channel", out.Channel)
	return out, nil
}
