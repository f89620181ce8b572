package httpstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docdb/blobstore"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/corpus/a/b/c/diabetes.md", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("# Diabetes"))
	})
	mux.HandleFunc("/corpus/gone.md", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})
	mux.HandleFunc("/corpus/big.md", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	})
	mux.HandleFunc("/corpus/slow.md", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStore_Get(t *testing.T) {
	srv := newServer(t)
	store, err := New(srv.URL+"/corpus", WithHeader("Authorization", "Bearer secret"))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Relative", func(t *testing.T) {
		b, err := store.Get(ctx, "a/b/c/diabetes.md")
		require.NoError(t, err)
		assert.Equal(t, "# Diabetes", string(b))
	})

	t.Run("LeadingSlash", func(t *testing.T) {
		b, err := store.Get(ctx, "/a/b/c/diabetes.md")
		require.NoError(t, err)
		assert.Equal(t, "# Diabetes", string(b))
	})

	t.Run("Absolute", func(t *testing.T) {
		b, err := store.Get(ctx, srv.URL+"/corpus/a/b/c/diabetes.md")
		require.NoError(t, err)
		assert.Equal(t, "# Diabetes", string(b))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing.md")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		_, err = store.Get(ctx, "gone.md")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}

func TestStore_StatusError(t *testing.T) {
	srv := newServer(t)
	store, err := New(srv.URL + "/corpus/")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "a/b/c/diabetes.md")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.False(t, errors.Is(err, blobstore.ErrNotFound))
}

func TestStore_MaxBodySize(t *testing.T) {
	srv := newServer(t)
	store, err := New(srv.URL+"/corpus", WithMaxBodySize(10))
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "big.md")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.ErrorIs(t, err, blobstore.ErrTooLarge)
}

func TestStore_ContextTimeout(t *testing.T) {
	srv := newServer(t)
	store, err := New(srv.URL+"/corpus", WithClient(srv.Client()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = store.Get(ctx, "slow.md")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_RelativeWithoutBase(t *testing.T) {
	store, err := New("")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "a.md")
	assert.Error(t, err)
}
