package feeds_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"detail-scraper/internal/dedup"
	"detail-scraper/internal/feeds"
	"detail-scraper/internal/fetch"
)

const rss = `<?xml version="1.0"?><rss version="2.0"><channel>
<title>tag search</title><link>/search</link>
<item><title>a</title><link>/tags/a/info</link></item>
<item><title>b</title><link>https://example.com/tags/b/info</link></item>
<item><title>dup</title><link>/tags/a/info</link></item>
<item><title>other</title><link>/users/1</link></item>
</channel></rss>`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rss))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head></html>`))
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head></head></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func client(t *testing.T) *fetch.Client {
	t.Helper()
	cl, err := fetch.New(fetch.Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return cl
}

func TestDiscoverFeed(t *testing.T) {
	srv := newServer(t)
	cl := client(t)

	got, err := feeds.DiscoverFeed(context.Background(), cl, srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/feed.xml", got)

	got, err = feeds.DiscoverFeed(context.Background(), cl, srv.URL+"/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/feed.xml", got)

	_, err = feeds.DiscoverFeed(context.Background(), cl, srv.URL+"/plain")
	assert.Error(t, err)
}

func TestFromFeed(t *testing.T) {
	srv := newServer(t)
	recs, err := feeds.FromFeed(context.Background(), client(t), srv.URL+"/feed.xml", feeds.Options{Contains: "/tags/"})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/tags/a/info", "https://example.com/tags/b/info"}, dedup.URLs(recs))
	require.NotNil(t, recs[0].GroupLabel)
	assert.Equal(t, "tag search", *recs[0].GroupLabel)

	recs, err = feeds.FromFeed(context.Background(), client(t), srv.URL+"/feed.xml", feeds.Options{Group: "manual", Max: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "manual", *recs[0].GroupLabel)
}

func TestFromList(t *testing.T) {
	in := "# header\nhttps://e/1\n\nnot a url\nhttps://e/2\nhttps://e/1\n"
	recs, err := feeds.FromList(strings.NewReader(in), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://e/1", "https://e/2"}, dedup.URLs(recs))
	assert.Nil(t, recs[0].GroupLabel)
}
