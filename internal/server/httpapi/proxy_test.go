package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/authgate/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamProxy_ForwardsUnchanged(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Upstream-Path", r.URL.RequestURI())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write(body)
	}))
	defer upstream.Close()

	p, err := NewUpstreamProxy(upstream.URL, logging.Nop{})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/run/predict?x=1", strings.NewReader("payload")))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "/run/predict?x=1", rr.Header().Get("X-Upstream-Path"))
	assert.Equal(t, "payload", rr.Body.String())
}

func TestUpstreamProxy_Unavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	p, err := NewUpstreamProxy(url, logging.Nop{})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestNewUpstreamProxy_BadURL(t *testing.T) {
	_, err := NewUpstreamProxy("not a url", logging.Nop{})
	assert.Error(t, err)
	_, err = NewUpstreamProxy("://x", logging.Nop{})
	assert.Error(t, err)
}
