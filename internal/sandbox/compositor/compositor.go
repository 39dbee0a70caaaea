// Package compositor assembles the document a tool bundle runs in.
//
// Composition is text concatenation only. Guest markup, style and script are
// copied byte for byte and never parsed, so a malformed bundle produces a
// malformed document rather than an error here.
package compositor

import (
	"encoding/hex"
	"html"
	"strings"

	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/bundle"
	"github.com/GriffinCanCode/BrandHub/backend/internal/sandbox/params"
	"golang.org/x/crypto/blake2b"
)

// Placeholder is the body content used when a bundle has no markup.
const Placeholder = `<p class="brandhub-empty">No markup provided for this tool.</p>`

// Section markers on the generated elements.
const (
	SectionReset  = "reset"
	SectionStyle  = "style"
	SectionBridge = "bridge"
	SectionParams = "params"
	SectionScript = "script"
)

const resetCSS = `*,*::before,*::after{box-sizing:border-box}` +
	`html,body{margin:0;padding:0}` +
	`body{font-family:system-ui,-apple-system,"Segoe UI",Roboto,sans-serif;line-height:1.5;-webkit-font-smoothing:antialiased}` +
	`img,picture,svg,canvas,video{display:block;max-width:100%}` +
	`input,button,textarea,select{font:inherit}`

// Compose builds the document for b. bridgeSource is the rendered bridge
// script and paramsLiteral the serialized invocation parameters; both are
// placed before the guest script so it can use them at load time.
func Compose(b bundle.ToolBundle, bridgeSource, paramsLiteral string) string {
	title := b.Title
	if title == "" {
		title = b.Slug
	}

	markup := b.Markup
	if markup == "" {
		markup = Placeholder
	}

	var sb strings.Builder
	sb.Grow(len(resetCSS) + len(b.Style) + len(markup) + len(bridgeSource) + len(paramsLiteral) + len(b.Script) + 512)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString("<title>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</title>\n")
	element(&sb, "style", SectionReset, resetCSS)
	element(&sb, "style", SectionStyle, b.Style)
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(markup)
	sb.WriteString("\n")
	element(&sb, "script", SectionBridge, bridgeSource)
	element(&sb, "script", SectionParams, params.Assignment(paramsLiteral))
	element(&sb, "script", SectionScript, b.Script)
	sb.WriteString("</body>\n</html>\n")

	return sb.String()
}

func element(sb *strings.Builder, tag, section, body string) {
	sb.WriteString("<")
	sb.WriteString(tag)
	sb.WriteString(` data-brandhub="`)
	sb.WriteString(section)
	sb.WriteString(`">`)
	sb.WriteString(body)
	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteString(">\n")
}

// Fingerprint returns a strong ETag for a composed document.
func Fingerprint(doc string) string {
	sum := blake2b.Sum256([]byte(doc))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}
