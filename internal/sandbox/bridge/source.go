package bridge

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
)

// GlobalName is the guest-visible bridge object.
const GlobalName = "BrandHub"

var sourceTemplate = template.Must(template.New("bridge").Funcs(template.FuncMap{
	"lit": params.Literal,
}).Parse(`(function (global) {
  "use strict";
  var apiBaseUrl = {{lit .BaseURL}};

  function empty(shape) {
    return shape === "array" ? [] : {};
  }

  function coerce(shape, field, data) {
    if (shape === "array") {
      if (Array.isArray(data)) return data;
      if (data && field && Array.isArray(data[field])) return data[field];
      return [];
    }
    if (data !== null && typeof data === "object" && !Array.isArray(data)) return data;
    return {};
  }

  function read(name, path, shape, field) {
    return function () {
      var pending;
      try {
        pending = Promise.resolve(global.fetch(apiBaseUrl + path, {
          method: "GET",
          credentials: "omit",
          headers: { "Accept": "application/json" }
        }));
      } catch (err) {
        pending = Promise.reject(err);
      }
      return pending.then(function (res) {
        if (!res || !res.ok) {
          throw new Error("HTTP " + (res ? res.status : "no response"));
        }
        return res.json();
      }).then(function (data) {
        return coerce(shape, field, data);
      }).catch(function (err) {
        try {
          global.console.error("{{.Global}}." + name + " failed:", String(err && err.message ? err.message : err));
        } catch (ignored) {}
        return empty(shape);
      });
    };
  }

  var bridge = {
    version: {{lit .Version}},
    apiBaseUrl: apiBaseUrl{{range .Capabilities}},
    {{.Name}}: read({{lit .Name}}, {{lit .Path}}, {{lit .Shape}}, {{lit .Field}}){{end}}
  };

  Object.defineProperty(global, "{{.Global}}", {
    value: Object.freeze(bridge),
    writable: false,
    enumerable: true,
    configurable: false
  });
})(typeof window !== "undefined" ? window : this);
`))

// Source renders the bridge script for the API rooted at apiBaseURL.
func Source(apiBaseURL string) (string, error) {
	base, err := normalizeBase(apiBaseURL)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	err = sourceTemplate.Execute(&b, struct {
		BaseURL      string
		Version      string
		Global       string
		Capabilities []Capability
	}{base, Version, GlobalName, capabilities})
	if err != nil {
		return "", fmt.Errorf("render bridge: %w", err)
	}
	return b.String(), nil
}

func normalizeBase(raw string) (string, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return "", fmt.Errorf("bridge api url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("bridge api url %q: must be an absolute http(s) url", raw)
	}
	if u.User != nil {
		return "", fmt.Errorf("bridge api url %q: credentials are not allowed", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
