package bundle

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ID
		wantErr bool
	}{
		{"string", `"tool-7"`, "tool-7", false},
		{"integer", `42`, "42", false},
		{"null", `null`, "", false},
		{"object", `{}`, "", true},
		{"bool", `true`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			err := sonic.Unmarshal([]byte(tt.in), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestValidSlug(t *testing.T) {
	tests := []struct {
		slug string
		want bool
	}{
		{"palette-picker", true},
		{"v2.banner_maker", true},
		{"", false},
		{"-leading-dash", false},
		{"has space", false},
		{"../escape", false},
		{"a/b", false},
		{"q?x=1", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidSlug(tt.slug))
		})
	}
}

func TestSummarySanitizesMetadataOnly(t *testing.T) {
	b := ToolBundle{
		ID:          "1",
		Slug:        "x",
		Title:       `Banner <script>alert(1)</script>maker`,
		Description: `<b>bold</b> text`,
		Markup:      `<script>kept()</script>`,
		IsActive:    true,
	}

	s := b.Summary()
	assert.Equal(t, "Banner maker", s.Title)
	assert.Equal(t, "bold text", s.Description)
	assert.Equal(t, `<script>kept()</script>`, b.Markup, "content fields are untouched")
}

func TestResolveErrorIs(t *testing.T) {
	nf := NotFound("gone")
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.False(t, errors.Is(nf, ErrTransport))

	tr := &ResolveError{Slug: "x", Kind: KindTransport, Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(tr, ErrTransport))
	assert.True(t, errors.Is(tr, context.DeadlineExceeded))
	assert.Equal(t, KindTransport, KindOf(tr))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s, err := NewStatic(
		ToolBundle{ID: "1", Slug: "b", Title: "Beta", IsActive: true},
		ToolBundle{ID: "2", Slug: "a", Title: "Alpha", IsActive: true},
		ToolBundle{ID: "3", Slug: "off", Title: "Hidden", IsActive: false},
	)
	require.NoError(t, err)

	got, err := s.ResolveBySlug(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Title)

	got.Title = "mutated"
	again, err := s.ResolveBySlug(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", again.Title, "callers receive copies")

	_, err = s.ResolveBySlug(ctx, "off")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.ResolveBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Slug)
	assert.Equal(t, "b", list[1].Slug)

	_, err = NewStatic(ToolBundle{Slug: "dup"}, ToolBundle{Slug: "dup"})
	assert.Error(t, err)
}
