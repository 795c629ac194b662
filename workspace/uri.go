package workspace

import (
	"path/filepath"
	"runtime"
	"strings"
)

// URIToPath converts a file:// URI into a filesystem path, percent-decoding
// escaped bytes. It returns false for anything that is not a file URI.
func URIToPath(uri string) (string, bool) {
	rest, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return "", false
	}
	decoded := percentDecode(strings.TrimLeft(rest, "/"))
	if decoded == "" {
		return "", false
	}
	if runtime.GOOS == "windows" {
		return strings.ReplaceAll(decoded, "/", `\`), true
	}
	return "/" + decoded, true
}

// PathToURI converts a filesystem path into a file:// URI.
func PathToURI(p string) string {
	s := filepath.ToSlash(p)
	if runtime.GOOS == "windows" {
		return "file:///" + s
	}
	return "file://" + s
}

func percentDecode(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok1 := hexVal(s[i+1]); ok1 {
				if lo, ok2 := hexVal(s[i+2]); ok2 {
					out.WriteByte(hi<<4 | lo)
					i += 3
					continue
				}
			}
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
