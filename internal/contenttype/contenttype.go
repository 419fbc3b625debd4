// Package contenttype detects the MIME type of uploaded content.
package contenttype

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Default is used when neither the content nor the extension identify a type.
const Default = "application/octet-stream"

// sniffLen is the number of leading bytes inspected for detection.
const sniffLen = 512

// ForFile determines the content type of a local file, sniffing its content
// where possible and falling back to extension-based lookup.
func ForFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return FromExtension(path)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, _ := io.ReadFull(f, buf)
	return fromBytes(path, buf[:n])
}

// ForReader sniffs the first bytes of r. It returns the detected type and a
// reader that replays the consumed bytes followed by the rest of r.
func ForReader(name string, r io.Reader) (string, io.Reader) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	head := buf[:n]
	rest := io.MultiReader(bytes.NewReader(head), r)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FromExtension(name), rest
	}
	return fromBytes(name, head), rest
}

// FromExtension looks up the content type by the extension of name.
func FromExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return Default
}

func fromBytes(name string, head []byte) string {
	if len(head) > 0 {
		// mimetype reports text/plain or octet-stream for content it cannot
		// place, where the extension is usually more specific.
		if mt := mimetype.Detect(head); mt != nil && !isGeneric(mt) {
			return mt.String()
		}
	}
	return FromExtension(name)
}

func isGeneric(mt *mimetype.MIME) bool {
	return mt.Is("application/octet-stream") || mt.Is("text/plain")
}
