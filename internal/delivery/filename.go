// Package delivery hands generated documents to the host environment: a
// directory on disk or a browser download.
package delivery

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultFilename is used when the authority supplies no usable hint.
const DefaultFilename = "participants.pdf"

// Filename extracts the suggested filename from a Content-Disposition
// value. The RFC 5987 filename* parameter wins over filename. Directory
// components are stripped; anything missing or malformed yields
// DefaultFilename.
func Filename(disposition string) string {
	disposition = strings.TrimSpace(disposition)
	if disposition == "" {
		return DefaultFilename
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		// Some servers omit the disposition type and send parameters only.
		_, params, err = mime.ParseMediaType("attachment; " + disposition)
		if err != nil {
			return DefaultFilename
		}
	}
	// ParseMediaType folds a decodable filename* into "filename".
	name, ok := sanitize(params["filename"])
	if !ok {
		return DefaultFilename
	}
	return name
}

func sanitize(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return "", false
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", false
	}
	return name, true
}

// ContentDisposition formats an attachment header carrying both an ASCII
// filename fallback and the exact UTF-8 name as filename*.
func ContentDisposition(filename string) string {
	name, ok := sanitize(filename)
	if !ok {
		name = DefaultFilename
	}
	return `attachment; filename="` + asciiFallback(name) + `"; filename*=UTF-8''` + encodeRFC5987(name)
}

func asciiFallback(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('_')
		case r < 0x20 || r > 0x7e:
			sb.WriteByte('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

const hexDigits = "0123456789ABCDEF"

// encodeRFC5987 percent-encodes everything outside attr-char.
func encodeRFC5987(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAttrChar(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String()
}

func isAttrChar(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("!#$&+-.^_`|~", c) >= 0
}
