package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Domenick1991/bookingfulfillment/config"
	"github.com/Domenick1991/bookingfulfillment/internal/logger"
	"golang.org/x/oauth2"
)

// Client talks to the flight inventory API. It serves both offer lookups and
// order creation.
type Client struct {
	baseURL    string
	apiVersion string
	http       *http.Client
	log        logger.Logger
}

func NewClient(cfg config.InventoryConfig, log logger.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = cfg.RequestTimeout

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		http:       httpClient,
		log:        log,
	}
}

type apiError struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, *errorEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiVersion != "" {
		req.Header.Set("Inventory-Version", c.apiVersion)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var env errorEnvelope
		if len(data) > 0 {
			_ = json.Unmarshal(data, &env)
		}
		return resp.StatusCode, &env, nil
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil, nil
}

func (e *errorEnvelope) first() apiError {
	if e == nil || len(e.Errors) == 0 {
		return apiError{}
	}
	return e.Errors[0]
}

func (e *errorEnvelope) hasCode(codes ...string) bool {
	if e == nil {
		return false
	}
	for _, apiErr := range e.Errors {
		for _, code := range codes {
			if apiErr.Code == code {
				return true
			}
		}
	}
	return false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
