package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raffle-guess/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	rows    []models.GuessRecord
	failErr error
}

func (m *memStore) Record(_ context.Context, rec *models.GuessRecord) (bool, error) {
	if m.failErr != nil {
		return false, m.failErr
	}
	for _, r := range m.rows {
		if r.UserAddress == rec.UserAddress && r.Timestamp == rec.Timestamp {
			*rec = r
			return false, nil
		}
	}
	rec.ID = uint(len(m.rows) + 1)
	m.rows = append(m.rows, *rec)
	return true, nil
}

func (m *memStore) ListByFID(_ context.Context, fid int64) ([]models.GuessRecord, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []models.GuessRecord
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].FID == fid {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

type fixedPool struct{ err error }

func (f fixedPool) PrizePool(context.Context, *big.Int) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return big.NewInt(42_000_000), nil
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]json.RawMessage
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

const validBody = `{"timestamp":1740850200,"user_address":"0xAbC","fid":7,"readable_time":"2025-03-01T17:30:00.000Z"}`

func TestCreateGuess(t *testing.T) {
	store := &memStore{}
	r := NewRouter(store, Options{})

	w, out := do(t, r, http.MethodPost, "/guesses", validBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "true", string(out["success"]))

	var data []models.GuessRecord
	require.NoError(t, json.Unmarshal(out["data"], &data))
	require.Len(t, data, 1)
	assert.Equal(t, int64(1740850200), data[0].Timestamp)
	assert.Equal(t, int64(7), data[0].FID)
	assert.False(t, data[0].CreatedAt.IsZero())
}

func TestCreateGuessIsIdempotent(t *testing.T) {
	store := &memStore{}
	r := NewRouter(store, Options{})

	_, first := do(t, r, http.MethodPost, "/guesses", validBody)
	w, second := do(t, r, http.MethodPost, "/guesses", validBody)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, string(first["data"]), string(second["data"]))
	assert.Len(t, store.rows, 1)
}

func TestCreateGuessMissingFields(t *testing.T) {
	r := NewRouter(&memStore{}, Options{})
	for _, body := range []string{
		`{}`,
		`{"timestamp":1,"user_address":"0xabc","fid":7}`,
		`{"timestamp":1,"user_address":"  ","fid":7,"readable_time":"x"}`,
		`not json`,
	} {
		w, out := do(t, r, http.MethodPost, "/guesses", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, string(out["error"]), "Missing required fields")
	}
}

func TestCreateGuessStoreError(t *testing.T) {
	r := NewRouter(&memStore{failErr: errors.New("db down")}, Options{})
	w, out := do(t, r, http.MethodPost, "/guesses", validBody)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, string(out["error"]), "db down")
}

func TestListGuesses(t *testing.T) {
	store := &memStore{}
	r := NewRouter(store, Options{})
	do(t, r, http.MethodPost, "/guesses", validBody)
	do(t, r, http.MethodPost, "/guesses", `{"timestamp":1740900000,"user_address":"0xAbC","fid":7,"readable_time":"b"}`)

	w, out := do(t, r, http.MethodGet, "/guesses?fid=7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.GuessRecord
	require.NoError(t, json.Unmarshal(out["guesses"], &list))
	require.Len(t, list, 2)
	assert.Equal(t, int64(1740900000), list[0].Timestamp)
}

func TestListGuessesEmpty(t *testing.T) {
	r := NewRouter(&memStore{}, Options{})
	w, out := do(t, r, http.MethodGet, "/guesses?fid=99", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", string(out["guesses"]))
}

func TestListGuessesBadFID(t *testing.T) {
	r := NewRouter(&memStore{}, Options{})
	w, _ := do(t, r, http.MethodGet, "/guesses", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/guesses?fid=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrizePoolRoute(t *testing.T) {
	r := NewRouter(&memStore{}, Options{})
	w, _ := do(t, r, http.MethodGet, "/raffles/1/prize-pool", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	r = NewRouter(&memStore{}, Options{Prize: fixedPool{}})
	w, out := do(t, r, http.MethodGet, "/raffles/1/prize-pool", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"42000000"`, string(out["prize_pool"]))

	w, _ = do(t, r, http.MethodGet, "/raffles/zero/prize-pool", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = NewRouter(&memStore{}, Options{Prize: fixedPool{err: errors.New("rpc")}})
	w, _ = do(t, r, http.MethodGet, "/raffles/1/prize-pool", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := NewRouter(&memStore{}, Options{RateLimit: 0.001, RateBurst: 2})
	for i := 0; i < 2; i++ {
		w, _ := do(t, r, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, _ := do(t, r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := NewRouter(&memStore{}, Options{CORSOrigins: []string{"https://app.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/guesses", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}
