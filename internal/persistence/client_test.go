package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"raffle-guess/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGuess(t *testing.T) {
	var got Guess
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/guesses", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data": []models.GuessRecord{{
				ID: 5, Timestamp: got.Timestamp, UserAddress: got.UserAddress,
				FID: got.FID, ReadableTime: got.ReadableTime,
			}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	rec, err := c.RecordGuess(context.Background(), Guess{
		Timestamp: 1740850200, UserAddress: "0xabc", FID: 7, ReadableTime: "2025-03-01T17:30:00.000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(5), rec.ID)
	assert.Equal(t, int64(7), got.FID)
	assert.Equal(t, "2025-03-01T17:30:00.000Z", got.ReadableTime)
}

func TestRecordGuessStoreErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"Failed to insert guess"}`))
		}))
		_, err := NewClient(srv.URL).RecordGuess(context.Background(), Guess{Timestamp: 1, UserAddress: "0x1", FID: 1, ReadableTime: "x"})
		srv.Close()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStore)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, status, se.Status)
		assert.Equal(t, "Failed to insert guess", se.Message)
	}
}

func TestRecordGuessTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).RecordGuess(context.Background(), Guess{Timestamp: 1})
	assert.ErrorIs(t, err, ErrStore)
}

func TestListGuesses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("fid"))
		_, _ = w.Write([]byte(`{"guesses":[{"id":2,"timestamp":200,"fid":7},{"id":1,"timestamp":100,"fid":7}]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).ListGuesses(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint(2), out[0].ID)
}

func TestListGuessesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"guesses":null}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL).ListGuesses(context.Background(), 404)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
