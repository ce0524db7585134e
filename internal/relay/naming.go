package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxNameBytes = 200

// SanitizeFilename strips path separators, parent references and control
// characters from a client supplied file name.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")

	var builder strings.Builder
	for _, r := range filename {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}

	out := strings.TrimSpace(builder.String())
	if len(out) > maxNameBytes {
		out = strings.ToValidUTF8(out[len(out)-maxNameBytes:], "")
	}
	return out
}

// EscapeFilename escapes a name for a quoted Content-Disposition parameter.
func EscapeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, `\\`)
	filename = strings.ReplaceAll(filename, `"`, `\"`)
	return filename
}

// GenerateName returns the stored name of an upload:
// <unix-millis>-<random6>-<sanitized original>.
func GenerateName(now time.Time, original string) string {
	unique := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	name := SanitizeFilename(original)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), unique, name)
}
