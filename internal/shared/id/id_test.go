package id

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ViewPrefix, RenderPrefix, RequestPrefix} {
		t.Run(prefix, func(t *testing.T) {
			id := gen.GenerateWithPrefix(prefix)
			assert.True(t, strings.HasPrefix(id, prefix+"_"))
			assert.True(t, HasPrefix(id, prefix))
		})
	}
}

func TestIDsSortByCreation(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = NewViewID().String()
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	assert.Equal(t, ids, sorted)
}

func TestIsViewID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"generated", NewViewID().String(), true},
		{"wrong prefix", NewRenderID().String(), false},
		{"no prefix", Default().Generate().String(), false},
		{"garbage", "view_not-a-ulid", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsViewID(tt.in))
		})
	}
}
