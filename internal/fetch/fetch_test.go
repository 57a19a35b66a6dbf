package fetch_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detail-scraper/internal/fetch"
)

func TestFetch_UserAgentAndBody(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("<article>ok</article>"))
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	body, err := cl.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<article>ok</article>", body)
	assert.Equal(t, fetch.UserAgent, gotUA)
}

func TestFetch_StatusIsTransportErrorWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	_, err = cl.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, fetch.ErrTransport)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cl, err := fetch.New(fetch.Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	_, err = cl.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, fetch.ErrTransport)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}

func TestNew_BadProxy(t *testing.T) {
	_, err := fetch.New(fetch.Options{ProxyHTTP: "://bad"})
	assert.Error(t, err)
}

func TestFetch_OversizedBodyIsTransportError(t *testing.T) {
	const limit = 8 << 20
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := limit
		if r.URL.Path == "/big" {
			n++
		}
		_, _ = w.Write(bytes.Repeat([]byte("a"), n))
	}))
	defer srv.Close()

	cl, err := fetch.New(fetch.Options{Timeout: 5 * time.Second})
	require.NoError(t, err)

	body, err := cl.Fetch(context.Background(), srv.URL+"/exact")
	require.NoError(t, err)
	assert.Len(t, body, limit)

	_, err = cl.Fetch(context.Background(), srv.URL+"/big")
	assert.ErrorIs(t, err, fetch.ErrTransport)
}
