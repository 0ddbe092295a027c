package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glorpus-work/stacgrab/pkg/errors"
)

func testHTTPClient() *HTTPClient {
	return NewHTTPClient(HTTPOptions{
		Timeout:         5 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 2 * time.Millisecond,
	})
}

func TestHTTPClientMatches(t *testing.T) {
	c := testHTTPClient()
	assert.True(t, c.Matches("https://example.com/a.tif"))
	assert.True(t, c.Matches("http://example.com/a.tif"))
	assert.False(t, c.Matches("s3://bucket/a.tif"))
	assert.False(t, c.Matches("/local/a.tif"))
}

func TestHTTPClientFetch(t *testing.T) {
	tests := []struct {
		name             string
		handler          func(calls *atomic.Int32) http.HandlerFunc
		expectedCalls    int32
		expectError      bool
		expectedSentinel error
	}{
		{
			name: "successful download",
			handler: func(_ *atomic.Int32) http.HandlerFunc {
				return func(w http.ResponseWriter, _ *http.Request) {
					_, _ = w.Write([]byte("asset payload"))
				}
			},
			expectedCalls: 1,
		},
		{
			name: "not found is not retried",
			handler: func(_ *atomic.Int32) http.HandlerFunc {
				return func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusNotFound)
				}
			},
			expectedCalls:    1,
			expectError:      true,
			expectedSentinel: pkgerrors.ErrFetchFailed,
		},
		{
			name: "server error is retried until success",
			handler: func(calls *atomic.Int32) http.HandlerFunc {
				return func(w http.ResponseWriter, _ *http.Request) {
					if calls.Load() < 2 {
						w.WriteHeader(http.StatusInternalServerError)
						return
					}
					_, _ = w.Write([]byte("asset payload"))
				}
			},
			expectedCalls: 2,
		},
		{
			name: "retry budget exhausts",
			handler: func(_ *atomic.Int32) http.HandlerFunc {
				return func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				}
			},
			expectedCalls:    3,
			expectError:      true,
			expectedSentinel: pkgerrors.ErrFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := tt.handler(&calls)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				handler(w, r)
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "item-1", "asset.tif")
			err := testHTTPClient().Fetch(context.Background(), server.URL+"/asset.tif", dest)

			assert.Equal(t, tt.expectedCalls, calls.Load())
			if tt.expectError {
				require.Error(t, err)
				if tt.expectedSentinel != nil {
					assert.ErrorIs(t, err, tt.expectedSentinel)
				}
				_, statErr := os.Stat(dest)
				assert.True(t, os.IsNotExist(statErr), "no file should appear on failure")
				return
			}
			require.NoError(t, err)
			content, err := os.ReadFile(dest)
			require.NoError(t, err)
			assert.Equal(t, "asset payload", string(content))
		})
	}
}

func TestHTTPClientFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "asset.tif")
	err := testHTTPClient().Fetch(ctx, server.URL, dest)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor(t *testing.T) {
	httpClient := testHTTPClient()
	clients := []Client{httpClient}

	assert.Equal(t, Client(httpClient), For(clients, "https://example.com/a.tif"))
	assert.Nil(t, For(clients, "s3://bucket/key"))
	assert.Nil(t, For(nil, "https://example.com/a.tif"))
}

func TestParseS3Href(t *testing.T) {
	tests := []struct {
		href        string
		bucket      string
		key         string
		expectError bool
	}{
		{href: "s3://bucket/key.tif", bucket: "bucket", key: "key.tif"},
		{href: "s3://bucket/nested/path/key.tif", bucket: "bucket", key: "nested/path/key.tif"},
		{href: "s3://bucket", expectError: true},
		{href: "s3:///key.tif", expectError: true},
		{href: "s3://bucket/", expectError: true},
		{href: "https://example.com/key.tif", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			bucket, key, err := ParseS3Href(tt.href)
			if tt.expectError {
				assert.ErrorIs(t, err, pkgerrors.ErrInvalidS3Href)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}
