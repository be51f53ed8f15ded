// Package negotiate extracts request fields from bodies whose encoding the
// client may or may not have declared. It never logs what it extracts.
package negotiate

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/authgate/internal/common"
)

// DefaultMaxBodyBytes bounds how much of a body is read.
const DefaultMaxBodyBytes = 1 << 20

// Credentials are the login fields.
type Credentials struct {
	Account  string
	Password string
}

// AccountKeys are consulted in order for the login identifier.
var AccountKeys = []string{"account", "username"}

// Body is a request body read once, with its declared media type.
type Body struct {
	MediaType string
	Params    map[string]string
	Raw       []byte
}

// Strategy turns a body into fields. ok is false when the strategy does not
// apply or could not parse the body.
type Strategy interface {
	Name() string
	Extract(b *Body) (fields map[string]string, ok bool)
}

type Negotiator struct {
	strategies []Strategy
	maxBytes   int64
}

type Option func(*Negotiator)

func WithMaxBodyBytes(n int64) Option {
	return func(ng *Negotiator) { ng.maxBytes = n }
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(ng *Negotiator) { ng.strategies = s }
}

// New returns a negotiator trying, in order: declared form encodings,
// declared JSON, then for undeclared or unknown types raw JSON followed by
// raw key=value pairs.
func New(opts ...Option) *Negotiator {
	ng := &Negotiator{
		strategies: []Strategy{FormStrategy{}, JSONStrategy{}, RawJSONStrategy{}, RawPairsStrategy{}},
		maxBytes:   DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(ng)
	}
	return ng
}

// Read consumes r.Body once.
func (ng *Negotiator) Read(r *http.Request) (*Body, error) {
	b := &Body{}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, params, err := mime.ParseMediaType(ct)
		if err == nil {
			b.MediaType, b.Params = strings.ToLower(mt), params
		}
	}
	if r.Body == nil {
		return b, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, ng.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrorBadRequest, err)
	}
	if int64(len(raw)) > ng.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", common.ErrorBadRequest, ng.maxBytes)
	}
	b.Raw = bytes.TrimSpace(raw)
	return b, nil
}

// Values returns the fields of the first strategy that yields any. An empty
// or unparseable body gives an empty map, not an error.
func (ng *Negotiator) Values(r *http.Request) (map[string]string, error) {
	b, err := ng.Read(r)
	if err != nil {
		return nil, err
	}
	for _, s := range ng.strategies {
		if f, ok := s.Extract(b); ok && len(f) > 0 {
			return f, nil
		}
	}
	return map[string]string{}, nil
}

// Credentials returns the first account/password pair in which both fields
// are non-empty. Otherwise it fails with common.ErrorBadRequest.
func (ng *Negotiator) Credentials(r *http.Request) (Credentials, error) {
	b, err := ng.Read(r)
	if err != nil {
		return Credentials{}, err
	}
	for _, s := range ng.strategies {
		f, ok := s.Extract(b)
		if !ok {
			continue
		}
		c := Credentials{Account: firstOf(f, AccountKeys...), Password: f["password"]}
		if c.Account != "" && c.Password != "" {
			return c, nil
		}
	}
	return Credentials{}, fmt.Errorf("%w: missing credentials", common.ErrorBadRequest)
}

func firstOf(f map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(f[k]); v != "" {
			return v
		}
	}
	return ""
}
