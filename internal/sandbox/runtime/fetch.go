package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/BrandHub/backend/internal/assetapi"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

type fetchRequest struct {
	method string
	url    *url.URL
	header http.Header
}

// fetch is a read-only subset of the Fetch API. Only GET and HEAD to an
// allowed origin leave the document; anything else rejects with TypeError,
// as a browser does when CSP blocks a request.
func (d *Document) fetch(call goja.FunctionCall) goja.Value {
	vm := d.vm
	p, resolve, reject := vm.NewPromise()

	req, err := d.parseFetch(call)
	if err != nil {
		reject(vm.NewTypeError(err.Error()))
		return vm.ToValue(p)
	}
	if !d.allowedOrigin(req.url) {
		d.logger.Debug("fetch blocked", zap.String("url", req.url.String()))
		reject(vm.NewTypeError(fmt.Sprintf("Failed to fetch: %s is not an allowed origin", originOf(req.url))))
		return vm.ToValue(p)
	}
	if d.cfg.Fetcher == nil {
		reject(vm.NewTypeError("Failed to fetch"))
		return vm.ToValue(p)
	}

	d.begin()
	fetcher := d.cfg.Fetcher
	go func() {
		resp, err := fetcher.Do(context.Background(), req.method, req.url.String(), req.header)
		d.post(func() {
			defer d.end()
			d.run("fetch", func() error {
				if err != nil {
					d.logger.Debug("fetch failed", zap.String("url", req.url.String()), zap.Error(err))
					reject(d.vm.NewTypeError("Failed to fetch"))
					return nil
				}
				resolve(d.newResponse(req, resp))
				return nil
			})
		})
	}()

	return vm.ToValue(p)
}

func (d *Document) parseFetch(call goja.FunctionCall) (*fetchRequest, error) {
	input := call.Argument(0)
	if goja.IsUndefined(input) {
		return nil, errors.New("Failed to execute 'fetch': 1 argument required")
	}
	raw := input.String()
	if obj, ok := input.(*goja.Object); ok {
		if u := obj.Get("url"); u != nil && !goja.IsUndefined(u) {
			raw = u.String()
		}
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("Failed to parse URL from %s", raw)
	}

	req := &fetchRequest{method: http.MethodGet, url: u, header: make(http.Header)}

	init, ok := call.Argument(1).(*goja.Object)
	if !ok {
		return req, nil
	}
	if m := init.Get("method"); m != nil && !goja.IsUndefined(m) {
		req.method = strings.ToUpper(m.String())
	}
	if req.method != http.MethodGet && req.method != http.MethodHead {
		return nil, fmt.Errorf("Failed to fetch: method %s is not allowed", req.method)
	}
	if b := init.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
		return nil, errors.New("Request with GET/HEAD method cannot have body")
	}
	if h, ok := init.Get("headers").(*goja.Object); ok {
		for _, k := range h.Keys() {
			if credentialHeader(k) {
				continue
			}
			req.header.Set(k, h.Get(k).String())
		}
	}
	return req, nil
}

// credentialHeader reports headers a guest may not set. Guest requests run
// without credentials.
func credentialHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case "Authorization", "Proxy-Authorization", "Cookie", "Cookie2":
		return true
	}
	return false
}

func (d *Document) allowedOrigin(u *url.URL) bool {
	_, ok := d.origins[originOf(u)]
	return ok
}

func (d *Document) newResponse(req *fetchRequest, resp *assetapi.Response) *goja.Object {
	vm := d.vm
	body := resp.Body
	if req.method == http.MethodHead {
		body = nil
	}

	obj := vm.NewObject()
	_ = obj.Set("ok", resp.Status >= 200 && resp.Status <= 299)
	_ = obj.Set("status", resp.Status)
	_ = obj.Set("statusText", http.StatusText(resp.Status))
	_ = obj.Set("url", req.url.String())
	_ = obj.Set("redirected", false)
	_ = obj.Set("type", "cors")

	headers := vm.NewObject()
	_ = headers.Set("get", func(name string) goja.Value {
		if v := resp.Header.Values(name); len(v) > 0 {
			return vm.ToValue(strings.Join(v, ", "))
		}
		return goja.Null()
	})
	_ = headers.Set("has", func(name string) bool {
		return len(resp.Header.Values(name)) > 0
	})
	_ = obj.Set("headers", headers)

	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		p, resolve, _ := vm.NewPromise()
		resolve(string(body))
		return vm.ToValue(p)
	})

	parse, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	_ = obj.Set("json", func(goja.FunctionCall) goja.Value {
		p, resolve, reject := vm.NewPromise()
		v, err := parse(goja.Undefined(), vm.ToValue(string(body)))
		var exc *goja.Exception
		switch {
		case err == nil:
			resolve(v)
		case errors.As(err, &exc):
			reject(exc.Value())
		default:
			reject(vm.NewTypeError(err.Error()))
		}
		return vm.ToValue(p)
	})

	return obj
}

// normalizeOrigin reduces an origin or URL to scheme://host[:port] with
// default ports dropped.
func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", raw)
	}
	return originOf(u), nil
}

func originOf(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}
