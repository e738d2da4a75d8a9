// Package persistence is the client side of the guess store REST contract.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"raffle-guess/internal/models"
)

// ErrStore marks every failure to reach or be accepted by the store.
var ErrStore = errors.New("guess store request failed")

// StatusError is returned when the store answers with a non-2xx status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store returned %d", e.Status)
	}
	return fmt.Sprintf("store returned %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrStore }

// Guess is the payload of POST /guesses.
type Guess struct {
	Timestamp    int64  `json:"timestamp"`
	UserAddress  string `json:"user_address"`
	FID          int64  `json:"fid"`
	ReadableTime string `json:"readable_time"`
}

// Client talks to the guess store.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

type recordResponse struct {
	Success bool                 `json:"success"`
	Data    []models.GuessRecord `json:"data"`
	Error   string               `json:"error"`
}

type listResponse struct {
	Guesses []models.GuessRecord `json:"guesses"`
	Error   string               `json:"error"`
}

// RecordGuess creates one GuessRecord. Identical (user_address, timestamp)
// pairs are deduplicated by the store, so retrying is safe.
func (c *Client) RecordGuess(ctx context.Context, g Guess) (*models.GuessRecord, error) {
	body, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrStore, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/guesses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload recordResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	if !payload.Success || len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: store did not return the created record", ErrStore)
	}
	return &payload.Data[0], nil
}

// ListGuesses returns the guesses recorded for fid, newest first.
func (c *Client) ListGuesses(ctx context.Context, fid int64) ([]models.GuessRecord, error) {
	q := url.Values{"fid": {strconv.FormatInt(fid, 10)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/guesses?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	var payload listResponse
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	if payload.Guesses == nil {
		return []models.GuessRecord{}, nil
	}
	return payload.Guesses, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrStore, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		return &StatusError{Status: resp.StatusCode, Message: e.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrStore, err)
	}
	return nil
}
