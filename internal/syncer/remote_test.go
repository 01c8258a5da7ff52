package syncer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solwatch/internal/models"
)

func TestHTTPRemote_GetAndPut(t *testing.T) {
	var (
		mu     sync.Mutex
		stored []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/watchlist", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("id") != "abc" || stored == nil {
				_, _ = io.WriteString(w, `{"code":0,"message":"ok"}`)
				return
			}
			_, _ = io.WriteString(w, `{"code":0,"message":"ok","data":`+string(stored)+`}`)
		case http.MethodPost:
			b, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			stored = b
			_, _ = io.WriteString(w, `{"code":0,"message":"ok"}`)
		}
	}))
	defer srv.Close()

	r := NewHTTPRemote(HTTPRemoteOptions{BaseURL: srv.URL + "/", Token: "tok"})
	ctx := context.Background()

	_, found, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	w := models.NewWatchlist()
	w[0].Tokens = append(w[0].Tokens, models.Token{ID: "t1", Address: "mint"})
	require.NoError(t, r.Put(ctx, "abc", w))

	var sent models.Watchlist
	mu.Lock()
	require.NoError(t, json.Unmarshal(stored, &sent))
	mu.Unlock()
	assert.Equal(t, w, sent)

	got, found, err := r.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, w, got)

	_, found, err = r.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHTTPRemote_ServiceUnavailableIsNotConfigured(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"code":503,"message":"store not configured"}`)
	}))
	defer srv.Close()

	r := NewHTTPRemote(HTTPRemoteOptions{BaseURL: srv.URL, RetryMax: 3})
	_, _, err := r.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPRemote_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"code":400,"message":"invalid body"}`)
			return
		}
		_, _ = io.WriteString(w, `{"code":0,"data":{"not":"a list"}}`)
	}))
	defer srv.Close()

	r := NewHTTPRemote(HTTPRemoteOptions{BaseURL: srv.URL})
	_, _, err := r.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)

	err = r.Put(context.Background(), "abc", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
