package params

import (
	"net/url"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{"empty", "", Params{}},
		{"leading question mark", "?a=1", Params{"a": "1"}},
		{"percent and plus decoding", "color=%23ff0000&label=Big+Sale", Params{"color": "#ff0000", "label": "Big Sale"}},
		{"last occurrence wins", "a=1&a=2&a=3", Params{"a": "3"}},
		{"key without value", "flag", Params{"flag": ""}},
		{"malformed escape skipped", "bad=%zz&good=1", Params{"good": "1"}},
		{"malformed key skipped", "%zz=1&ok=2", Params{"ok": "2"}},
		{"empty key skipped", "=orphan&x=y", Params{"x": "y"}},
		{"stray separators", "&&a=1&&", Params{"a": "1"}},
		{"equals in value", "expr=a=b", Params{"expr": "a=b"}},
		{"semicolon is literal", "a=1;b=2", Params{"a": "1;b=2"}},
		{"tool key kept", "tool=banner&size=lg", Params{"tool": "banner", "size": "lg"}},
		{"proto key dropped", "__proto__=x&a=1", Params{"a": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.query))
		})
	}
}

func TestFromValues(t *testing.T) {
	got := FromValues(url.Values{"a": {"1", "2"}, "b": {}, "": {"x"}})
	assert.Equal(t, Params{"a": "2"}, got)
}

func TestClone(t *testing.T) {
	p := Params{"a": "1"}
	c := p.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", p["a"])

	var nilParams Params
	assert.NotNil(t, nilParams.Clone())
	assert.True(t, nilParams.Equal(Params{}))
}

func TestSerializeEscapesScriptBreakers(t *testing.T) {
	p := Params{
		"x": `</script><script>alert(1)</script>`,
		"y": "a & b > c",
		"z": "line\u2028sep\u2029para",
	}

	lit, err := Serialize(p)
	require.NoError(t, err)

	for _, bad := range []string{"<", ">", "&", "\u2028", "\u2029"} {
		assert.NotContains(t, lit, bad)
	}
	assert.False(t, strings.Contains(strings.ToLower(lit), "</script"))
}

func TestSerializeNilAndOrdering(t *testing.T) {
	lit, err := Serialize(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", lit)

	lit, err = Serialize(Params{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"1","b":"2"}`, lit)

	lit, err = Serialize(Params{"__proto__": "x"})
	require.NoError(t, err)
	assert.Equal(t, "{}", lit)
}

// Evaluating the assignment in a real engine must yield a deep-equal value
// for any input, however hostile.
func TestAssignmentRoundTrip(t *testing.T) {
	inputs := []Params{
		{},
		{"color": "#ff0000", "label": "Sale"},
		{"x": `"; alert(1); //`},
		{"x": `</script><script>window.pwned=1</script>`},
		{"x": "back\\slash", "y": "quote'single", "z": "tab\tnew\nline"},
		{"x": "\u2028\u2029", "emoji": "🎨", "nul": "a\x00b"},
		{"constructor": "c", "toString": "t"},
	}

	for _, in := range inputs {
		lit, err := Serialize(in)
		require.NoError(t, err)

		vm := goja.New()
		require.NoError(t, vm.Set("window", vm.GlobalObject()))
		_, err = vm.RunString(Assignment(lit))
		require.NoError(t, err, "literal: %s", lit)

		got := make(Params)
		obj := vm.Get(GlobalName).ToObject(vm)
		for _, k := range obj.Keys() {
			got[k] = obj.Get(k).String()
		}
		assert.Equal(t, in, got, "literal: %s", lit)
		assert.True(t, vm.Get("pwned") == nil || goja.IsUndefined(vm.Get("pwned")))
	}
}
