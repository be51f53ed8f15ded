package gateway

import (
	"net/http"
	"net/url"
	"strings"
)

// Policy is the data the gateway decides on. Lists are consulted in order.
type Policy struct {
	LoginPath  string
	LogoutPath string
	RootPath   string

	ExemptPaths    []string
	ExemptPrefixes []string

	// InternalParams are query keys of the wrapped application's own UI.
	InternalParams []string

	ThemeParam string
	ThemeFrom  string
	ThemeTo    string

	// CookieNames are read in priority order.
	CookieNames []string
	// ClearCookieNames are expired on logout.
	ClearCookieNames []string
}

const (
	PrimaryCookie = "session_token"
	LegacyCookie  = "session_id"
)

func DefaultPolicy() Policy {
	return Policy{
		LoginPath:  "/login",
		LogoutPath: "/logout",
		RootPath:   "/",
		ExemptPaths: []string{
			"/login", "/login_check", "/logout", "/favicon.ico",
			"/docs", "/redoc", "/openapi.json", "/auth_test",
			"/login_debug", "/navbar", "/metrics",
		},
		ExemptPrefixes: []string{
			"/static/", "/file=", "/js/", "/css/", "/images/", "/fonts/",
			"/assets/", "/theme=", "/api/", "/internal/", "/run/", "/queue/",
			"/upload", "/file/", "/stream", "/ws", "/tmp/",
		},
		InternalParams:   []string{"__theme", "view", "component"},
		ThemeParam:       "__theme",
		ThemeFrom:        "light",
		ThemeTo:          "dark",
		CookieNames:      []string{PrimaryCookie, LegacyCookie},
		ClearCookieNames: []string{PrimaryCookie, LegacyCookie, "sd_session_id", "auth_token"},
	}
}

func (p *Policy) exactExempt(path string) bool {
	for _, e := range p.ExemptPaths {
		if path == e {
			return true
		}
	}
	return false
}

func (p *Policy) prefixExempt(path string) bool {
	if path == p.RootPath {
		return false
	}
	for _, pre := range p.ExemptPrefixes {
		if pre != "" && pre != "/" && strings.HasPrefix(path, pre) {
			return true
		}
	}
	return false
}

func (p *Policy) hasInternalParam(q url.Values) bool {
	for _, k := range p.InternalParams {
		if _, ok := q[k]; ok {
			return true
		}
	}
	return false
}

// themeRewrite returns the target URL when the query asks for ThemeFrom.
func (p *Policy) themeRewrite(u *url.URL, q url.Values) (string, bool) {
	if p.ThemeParam == "" {
		return "", false
	}
	vals, ok := q[p.ThemeParam]
	if !ok {
		return "", false
	}
	hit := false
	for i, v := range vals {
		if v == p.ThemeFrom {
			vals[i] = p.ThemeTo
			hit = true
		}
	}
	if !hit {
		return "", false
	}
	target := *u
	target.RawQuery = q.Encode()
	return target.RequestURI(), true
}

// SessionTokens returns the non-empty session cookie values in priority
// order, without duplicates.
func (p *Policy) SessionTokens(r *http.Request) []string {
	var out []string
	for _, name := range p.CookieNames {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			continue
		}
		dup := false
		for _, t := range out {
			if t == c.Value {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c.Value)
		}
	}
	return out
}
