package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/dmitrijs2005/authgate/internal/logging"
)

// NewUpstreamProxy forwards requests to the wrapped application unchanged.
func NewUpstreamProxy(upstream string, l logging.Logger) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream url %q needs scheme and host", upstream)
	}

	p := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			l.Error(r.Context(), "upstream unavailable", "request_id", requestID(r.Context()), "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream unavailable"})
		},
	}
	return p, nil
}
