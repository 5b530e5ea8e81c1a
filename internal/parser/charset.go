package parser

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// utf8BOM is stripped from already-decoded payloads.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeToUTF8 converts a subtitle payload to UTF-8. Japanese subtitle files
// are frequently Shift-JIS or EUC-JP encoded with no declaration, so the
// decoder is chosen by trial: valid UTF-8 passes through untouched (minus
// BOM), then Shift-JIS and EUC-JP are attempted in that order. Content that
// survives no decoder is returned unchanged rather than corrupted.
func DecodeToUTF8(content []byte) []byte {
	if bytes.HasPrefix(content, utf8BOM) {
		return content[len(utf8BOM):]
	}
	if utf8.Valid(content) {
		return content
	}

	for _, enc := range []encoding.Encoding{
		unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
		japanese.ShiftJIS,
		japanese.EUCJP,
	} {
		decoded, err := decodeWith(content, enc)
		if err == nil && utf8.Valid(decoded) {
			return decoded
		}
	}

	return content
}

// NewUTF8Reader wraps r so its full contents are decoded to UTF-8 with the
// same trial strategy as DecodeToUTF8. The whole payload is buffered;
// subtitle files are small enough that this is not a concern.
func NewUTF8Reader(r io.Reader) (io.Reader, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(DecodeToUTF8(content)), nil
}

func decodeWith(content []byte, enc encoding.Encoding) ([]byte, error) {
	decoded, _, err := transform.Bytes(enc.NewDecoder(), content)
	return decoded, err
}
