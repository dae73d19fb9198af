package netx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	payload := []byte("not really a jpeg")

	t.Run("success follows redirect", func(t *testing.T) {
		var gotUA string
		mux := http.NewServeMux()
		mux.HandleFunc("/random", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/img/42.jpg", http.StatusFound)
		})
		mux.HandleFunc("/img/42.jpg", func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(payload)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()

		resp, err := Download(context.Background(), ts.Client(), ts.URL+"/random", 1024, "test-agent")
		require.NoError(t, err)
		assert.Equal(t, payload, resp.Body)
		assert.Equal(t, ts.URL+"/img/42.jpg", resp.FinalURL)
		assert.Equal(t, "image/jpeg", resp.ContentType)
		assert.Equal(t, "test-agent", gotUA)
	})

	t.Run("non-2xx is StatusError", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := Download(context.Background(), ts.Client(), ts.URL, 1024, "")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	})

	t.Run("body over limit", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		_, err := Download(context.Background(), ts.Client(), ts.URL, 4, "")
		require.True(t, errors.Is(err, ErrTooLarge))
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		_, err := Download(context.Background(), http.DefaultClient, url, 0, "")
		require.Error(t, err)
		var se *StatusError
		assert.False(t, errors.As(err, &se))
	})

	t.Run("canceled context", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(payload)
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Download(ctx, ts.Client(), ts.URL, 0, "")
		require.ErrorIs(t, err, context.Canceled)
	})
}
