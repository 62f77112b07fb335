package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	AdviceTimeout = 30 * time.Second

	maxAdviceBody = 1 << 20
)

type adviceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type adviceRequest struct {
	Messages []adviceMessage `json:"messages"`
}

type adviceResponse struct {
	Result *string `json:"result"`
}

// AdviceClient calls the external advice oracle. It never returns an error:
// every failure yields the fallback text.
type AdviceClient struct {
	url    string
	key    string
	host   string
	client *http.Client
	log    *logrus.Logger
}

func NewAdviceClient(url, key, host string, log *logrus.Logger) *AdviceClient {
	return &AdviceClient{
		url:    url,
		key:    key,
		host:   host,
		client: &http.Client{Timeout: AdviceTimeout},
		log:    log,
	}
}

func (c *AdviceClient) Advice(ctx context.Context, prompt, fallback string) string {
	text, err := c.ask(ctx, prompt)
	if err != nil {
		c.log.WithError(err).Warn("🤖 advice unavailable, using fallback")
		return fallback
	}
	return text
}

func (c *AdviceClient) ask(ctx context.Context, prompt string) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("advice endpoint is not configured")
	}

	body, err := json.Marshal(adviceRequest{
		Messages: []adviceMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, AdviceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.key != "" {
		req.Header.Set("X-RapidAPI-Key", c.key)
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("advice request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("advice status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAdviceBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out adviceResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Result == nil || strings.TrimSpace(*out.Result) == "" {
		return "", fmt.Errorf("response has no result")
	}
	return *out.Result, nil
}
