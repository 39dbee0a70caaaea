// Package params carries per-invocation parameters from the host page's
// query string into the guest document.
//
// Values travel as a data literal, never as code: the serialized form is a
// JSON object with every character that could close the surrounding script
// element or break a JavaScript string escaped.
package params

import (
	"net/url"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
)

// GlobalName is the global the guest reads its parameters from.
const GlobalName = "BrandHubParams"

// Params is a flat string-to-string mapping.
type Params map[string]string

// protoKey cannot survive an object literal as an own property, so it is
// never accepted as a parameter name.
const protoKey = "__proto__"

// Extract parses a raw query string (with or without a leading '?').
// Repeated keys keep the last occurrence. Pairs that fail to unescape are
// skipped rather than failing the whole query.
func Extract(rawQuery string) Params {
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	out := make(Params)

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil || key == "" || key == protoKey {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}

// FromValues flattens url.Values with the same last-wins rule as Extract.
func FromValues(v url.Values) Params {
	out := make(Params, len(v))
	for k, vs := range v {
		if k == "" || k == protoKey || len(vs) == 0 {
			continue
		}
		out[k] = vs[len(vs)-1]
	}
	return out
}

// Clone returns an independent copy. Clone of nil is an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both sets hold the same pairs.
func (p Params) Equal(o Params) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

var literalEscaper = strings.NewReplacer(
	"<", `\u003c`,
	">", `\u003e`,
	"&", `\u0026`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

// Serialize renders p as a JSON object literal that is safe to place inside
// a <script> element. Keys are sorted so equal params give equal documents.
func Serialize(p Params) (string, error) {
	clean := make(map[string]string, len(p))
	for k, v := range p {
		if k != protoKey {
			clean[k] = v
		}
	}
	return Literal(clean)
}

// Literal renders any JSON-encodable value as a script-safe literal.
func Literal(v any) (string, error) {
	raw, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", err
	}
	// ConfigStd already escapes HTML; the replacer also covers the line
	// separators and leaves existing escapes alone.
	return literalEscaper.Replace(string(raw)), nil
}

// Assignment is the single global-scope statement that publishes literal.
func Assignment(literal string) string {
	return "window." + GlobalName + " = " + literal + ";"
}
