package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFetchSetsConditionalHeaders(t *testing.T) {
	var gotIfNoneMatch, gotIfModified string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		gotIfModified = r.Header.Get("If-Modified-Since")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2026 07:28:00 GMT")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	tr := NewDefault(5 * time.Second)
	resp, err := tr.Fetch(t.Context(), Request{
		URL:         srv.URL,
		IfNoneMatch: `"prev-etag"`,
		IfModified:  "Tue, 20 Oct 2026 07:28:00 GMT",
	})
	require.NoError(t, err)

	assert.Equal(t, `"prev-etag"`, gotIfNoneMatch)
	assert.Equal(t, "Tue, 20 Oct 2026 07:28:00 GMT", gotIfModified)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
	assert.Equal(t, `"abc123"`, resp.ETag)
	assert.Equal(t, "Wed, 21 Oct 2026 07:28:00 GMT", resp.LastModified)
}

func TestDefaultFetchCustomHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	tr := NewDefault(0)
	resp, err := tr.Fetch(t.Context(), Request{
		URL:     srv.URL,
		Headers: map[string]string{"User-Agent": "foiacorpus/test"},
	})
	require.NoError(t, err)

	assert.Equal(t, "foiacorpus/test", gotUA)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestDefaultFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := NewDefault(0)
	_, err := tr.Fetch(t.Context(), Request{
		URL:     srv.URL,
		Timeout: 5 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestDefaultFetchInvalidURL(t *testing.T) {
	tr := NewDefault(time.Second)
	_, err := tr.Fetch(t.Context(), Request{URL: "://not-a-url"})
	assert.Error(t, err)
}
