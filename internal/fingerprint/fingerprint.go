package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"mime"
	"net/http"
	"unicode/utf8"
)

// Hash computes a content fingerprint from a stream.
type Hash func(r io.Reader) (string, error)

// Sniff derives a mimetype and encoding classification from a stream.
// Sniffers never fail hard: unknown or unreadable input yields empty
// strings.
type Sniff func(r io.Reader) (mimetype, encoding string)

// Checksum returns the sha256 hex digest of the stream. Identical
// binaries always produce the same checksum.
func Checksum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

const sniffLen = 512

// Detect sniffs the mimetype and encoding from the first bytes of the
// stream. Detection failure is soft: it returns empty strings, never an
// error.
func Detect(r io.Reader) (string, string) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", ""
	}
	buf = buf[:n]

	mediatype, _, err := mime.ParseMediaType(http.DetectContentType(buf))
	if err != nil {
		return "", ""
	}

	return mediatype, classifyEncoding(buf)
}

func classifyEncoding(data []byte) string {
	if len(data) == 0 {
		return "empty"
	}
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return "utf-8"
	}
	return "binary"
}
