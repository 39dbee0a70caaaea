package catalog

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns data as UTF-8 text. Binary content is rejected; other
// encodings are detected and transcoded.
func decodeText(path string, data []byte) (string, error) {
	if !isText(mimetype.Detect(data)) {
		return "", fmt.Errorf("%s: not a text file", path)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	name := "windows-1252"
	if res, err := chardet.NewTextDetector().DetectBest(data); err == nil && res != nil {
		name = strings.ToLower(res.Charset)
	}
	enc, _ := charset.Lookup(name)
	if enc == nil {
		return "", fmt.Errorf("%s: unsupported text encoding %q", path, name)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: decode %s: %w", path, name, err)
	}
	return string(out), nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") || m.Is("application/json") {
			return true
		}
	}
	return false
}
