package runtime

import (
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// styleDecl backs element.style, reading and writing the style attribute.
type styleDecl struct {
	vm *goja.Runtime
	n  *html.Node
}

type declaration struct {
	prop, value string
}

var objectProtoNames = map[string]bool{
	"constructor": true, "hasOwnProperty": true, "isPrototypeOf": true,
	"propertyIsEnumerable": true, "toLocaleString": true, "toString": true,
	"valueOf": true, "toJSON": true,
}

func (s *styleDecl) decls() []declaration {
	raw, _ := attr(s.n, "style")
	var out []declaration
	for _, part := range strings.Split(raw, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" || value == "" {
			continue
		}
		out = append(out, declaration{prop, value})
	}
	return out
}

func (s *styleDecl) write(decls []declaration) {
	if len(decls) == 0 {
		removeAttr(s.n, "style")
		return
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value + ";"
	}
	setAttr(s.n, "style", strings.Join(parts, " "))
}

func (s *styleDecl) lookup(prop string) (string, bool) {
	for _, d := range s.decls() {
		if d.prop == prop {
			return d.value, true
		}
	}
	return "", false
}

func (s *styleDecl) setProperty(prop, value string) {
	decls := s.decls()
	for i, d := range decls {
		if d.prop == prop {
			if value == "" {
				decls = append(decls[:i], decls[i+1:]...)
			} else {
				decls[i].value = value
			}
			s.write(decls)
			return
		}
	}
	if value != "" {
		s.write(append(decls, declaration{prop, value}))
	}
}

func (s *styleDecl) Get(key string) goja.Value {
	switch key {
	case "cssText":
		v, _ := attr(s.n, "style")
		return s.vm.ToValue(v)
	case "length":
		return s.vm.ToValue(len(s.decls()))
	case "setProperty":
		return s.vm.ToValue(func(prop, value string) { s.setProperty(strings.ToLower(prop), strings.TrimSpace(value)) })
	case "getPropertyValue":
		return s.vm.ToValue(func(prop string) string { v, _ := s.lookup(strings.ToLower(prop)); return v })
	case "removeProperty":
		return s.vm.ToValue(func(prop string) string {
			prop = strings.ToLower(prop)
			v, _ := s.lookup(prop)
			s.setProperty(prop, "")
			return v
		})
	}
	if objectProtoNames[key] {
		return nil
	}
	if v, ok := s.lookup(cssName(key)); ok {
		return s.vm.ToValue(v)
	}
	if isPropertyName(key) {
		return s.vm.ToValue("")
	}
	return nil
}

func (s *styleDecl) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		setAttr(s.n, "style", val.String())
		return true
	}
	value := ""
	if val != nil && !goja.IsNull(val) && !goja.IsUndefined(val) {
		value = strings.TrimSpace(val.String())
	}
	s.setProperty(cssName(key), value)
	return true
}

func (s *styleDecl) Has(key string) bool {
	_, ok := s.lookup(cssName(key))
	return ok
}

func (s *styleDecl) Delete(key string) bool {
	s.setProperty(cssName(key), "")
	return true
}

func (s *styleDecl) Keys() []string {
	decls := s.decls()
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = camelName(d.prop)
	}
	return keys
}

// cssName maps backgroundColor to background-color and WebkitTransform to
// -webkit-transform. Names already containing dashes are kept.
func cssName(key string) string {
	if key == "cssFloat" {
		return "float"
	}
	if strings.Contains(key, "-") {
		return strings.ToLower(key)
	}
	var sb strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 || strings.HasPrefix(key, "Webkit") || strings.HasPrefix(key, "Moz") {
				sb.WriteByte('-')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func camelName(prop string) string {
	if prop == "float" {
		return "cssFloat"
	}
	parts := strings.Split(strings.TrimPrefix(prop, "-"), "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	name := strings.Join(parts, "")
	if strings.HasPrefix(prop, "-") && name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name
}

func isPropertyName(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		if !(unicode.IsLetter(r) || (i > 0 && r == '-')) {
			return false
		}
	}
	return true
}
