package negotiate

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
)

const (
	mediaForm      = "application/x-www-form-urlencoded"
	mediaMultipart = "multipart/form-data"
	mediaJSON      = "application/json"
)

func isForm(mt string) bool { return mt == mediaForm || mt == mediaMultipart }

func isJSON(mt string) bool { return mt == mediaJSON || strings.HasSuffix(mt, "+json") }

// declared reports whether a strategy other than the raw ones owns mt.
func declared(mt string) bool { return isForm(mt) || isJSON(mt) }

// FormStrategy handles declared urlencoded and multipart bodies.
type FormStrategy struct{}

func (FormStrategy) Name() string { return "form" }

func (FormStrategy) Extract(b *Body) (map[string]string, bool) {
	switch b.MediaType {
	case mediaForm:
		return parsePairs(string(b.Raw), true)
	case mediaMultipart:
		boundary := b.Params["boundary"]
		if boundary == "" {
			return nil, false
		}
		form, err := multipart.NewReader(bytes.NewReader(b.Raw), boundary).ReadForm(int64(len(b.Raw)) + 1)
		if err != nil {
			return nil, false
		}
		defer func() { _ = form.RemoveAll() }()

		out := make(map[string]string, len(form.Value))
		for k, v := range form.Value {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// JSONStrategy handles declared JSON bodies.
type JSONStrategy struct{}

func (JSONStrategy) Name() string { return "json" }

func (JSONStrategy) Extract(b *Body) (map[string]string, bool) {
	if !isJSON(b.MediaType) {
		return nil, false
	}
	return parseJSONObject(b.Raw)
}

// RawJSONStrategy tries JSON on bodies without a recognised type.
type RawJSONStrategy struct{}

func (RawJSONStrategy) Name() string { return "raw-json" }

func (RawJSONStrategy) Extract(b *Body) (map[string]string, bool) {
	if declared(b.MediaType) {
		return nil, false
	}
	return parseJSONObject(b.Raw)
}

// RawPairsStrategy tries key=value&key=value on bodies without a recognised
// type.
type RawPairsStrategy struct{}

func (RawPairsStrategy) Name() string { return "raw-pairs" }

func (RawPairsStrategy) Extract(b *Body) (map[string]string, bool) {
	if declared(b.MediaType) {
		return nil, false
	}
	return parsePairs(string(b.Raw), false)
}

// parseJSONObject flattens the top-level scalar members of a JSON object.
func parseJSONObject(raw []byte) (map[string]string, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}

	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out, true
}

// parsePairs decodes key=value pairs joined by '&'. Pairs without '=' are
// skipped; a body without any '=' is not applicable unless allowEmpty.
func parsePairs(s string, allowEmpty bool) (map[string]string, bool) {
	if !strings.Contains(s, "=") {
		if allowEmpty {
			return map[string]string{}, true
		}
		return nil, false
	}

	out := make(map[string]string)
	for _, pair := range strings.Split(s, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k, v = unescape(k), unescape(v)
		if _, seen := out[k]; !seen {
			out[k] = v
		}
	}
	return out, true
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return strings.ReplaceAll(s, "+", " ")
}
