// Package fid maps wallet addresses to Farcaster IDs.
package fid

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"raffle-guess/internal/logger"
	"raffle-guess/internal/models"
)

// Resolver fetches and caches address -> FID from a Farcaster
// user-by-address API. Lookups that fail or miss resolve to
// models.UnknownFID.
type Resolver struct {
	baseURL string
	apiKey  string
	mu      sync.RWMutex
	cache   map[string]entry // lower-case address -> fid
	ttl     time.Duration
	client  *http.Client
	log     *logger.Logger
}

type entry struct {
	fid     int64
	fetched time.Time
}

// NewResolver returns nil when baseURL is empty; a nil Resolver always
// answers models.UnknownFID.
func NewResolver(baseURL, apiKey string, log *logger.Logger) *Resolver {
	if baseURL == "" {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		cache:   map[string]entry{},
		ttl:     30 * time.Minute,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, address string) int64 {
	if r == nil || address == "" {
		return models.UnknownFID
	}
	key := strings.ToLower(address)

	r.mu.RLock()
	e, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && time.Since(e.fetched) <= r.ttl {
		return e.fid
	}

	fid, err := r.fetch(ctx, key)
	if err != nil {
		r.log.Error("fid lookup failed", "address", key, "err", err)
		if ok {
			return e.fid
		}
		return models.UnknownFID
	}

	r.mu.Lock()
	r.cache[key] = entry{fid: fid, fetched: time.Now()}
	r.mu.Unlock()
	r.log.Debug("fid resolved", "address", key, "fid", fid)
	return fid
}

type user struct {
	FID int64 `json:"fid"`
}

func (r *Resolver) fetch(ctx context.Context, address string) (int64, error) {
	q := url.Values{"addresses": {address}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v2/farcaster/user/bulk-by-address?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("x-api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// The API answers 404 for addresses with no linked account.
	if resp.StatusCode == http.StatusNotFound {
		return models.UnknownFID, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("status %d", resp.StatusCode)
	}

	var byAddr map[string][]user
	if err := json.NewDecoder(resp.Body).Decode(&byAddr); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	for addr, users := range byAddr {
		if strings.EqualFold(addr, address) && len(users) > 0 {
			return models.FIDOrUnknown(users[0].FID), nil
		}
	}
	return models.UnknownFID, nil
}
