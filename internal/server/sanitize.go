package server

import "strings"

// MaxFilenameLength caps the length of a stored filename.
const MaxFilenameLength = 100

// SanitizeFilename turns a client-supplied filename into one that is safe to
// join onto the upload directory.
//
// Characters outside [A-Za-z0-9._-] are deleted (not replaced), which also
// drops every path separator. Any ".." left afterwards is removed until none
// remains, and the result is cut to MaxFilenameLength bytes. An empty string
// means nothing usable was left; "." is reported as empty too.
func SanitizeFilename(filename string) string {
	var b strings.Builder
	b.Grow(len(filename))
	for i := 0; i < len(filename); i++ {
		if c := filename[i]; isFilenameChar(c) {
			b.WriteByte(c)
		}
	}
	name := b.String()

	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", "")
	}

	if len(name) > MaxFilenameLength {
		name = name[:MaxFilenameLength]
	}
	if name == "." {
		return ""
	}
	return name
}

func isFilenameChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '.', c == '_', c == '-':
		return true
	}
	return false
}
