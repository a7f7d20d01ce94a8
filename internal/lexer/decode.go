package lexer

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when no encoding is named.
const DefaultEncoding = "utf-8"

var (
	ErrUnknownEncoding = errors.New("unknown text encoding")
	ErrDecode          = errors.New("decode SQL text")
)

// LookupEncoding resolves a WHATWG or IANA encoding name.
func LookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = DefaultEncoding
	}
	if enc, err := htmlindex.Get(n); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(n)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// Decode reads all of r and converts it from the named encoding to UTF-8.
// UTF-8 input must be valid; a leading byte order mark is dropped.
func Decode(r io.Reader, name string) (string, error) {
	enc, err := LookupEncoding(name)
	if err != nil {
		return "", err
	}

	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("read SQL: %w", err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: invalid utf-8", ErrDecode)
		}
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}

	var dec transform.Transformer = enc.NewDecoder()
	if canonical, _ := htmlindex.Name(enc); strings.HasPrefix(canonical, "utf-16") {
		dec = unicode.BOMOverride(dec)
	}
	data, err := io.ReadAll(transform.NewReader(r, dec))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return string(data), nil
}
