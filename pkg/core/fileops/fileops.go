package fileops

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dimchansky/utfbom"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// EncodingUTF8 is reported when the input needed no transcoding.
const EncodingUTF8 = "utf-8"

// chardetAliases maps detector charset names that the indexes don't know.
var chardetAliases = map[string]string{
	"GB-18030": "gb18030",
}

// DecodeSubtitle converts raw subtitle bytes to a UTF-8 string. A byte order
// mark always wins; otherwise hint is used when it names a known encoding,
// then valid UTF-8 is accepted as is, and finally the charset is guessed.
// The name of the encoding that was applied is returned alongside the text.
func DecodeSubtitle(data []byte, hint string) (string, string, error) {
	rd, bom := utfbom.Skip(bytes.NewReader(data))
	if enc, name := bomEncoding(bom); name != "" {
		text, err := decodeWith(rd, enc)
		return text, name, err
	}
	body, err := io.ReadAll(rd)
	if err != nil {
		return "", "", fmt.Errorf("failed to read subtitle data: %w", err)
	}

	if hint != "" {
		if enc, name := LookupEncoding(hint); enc != nil {
			text, err := decodeWith(bytes.NewReader(body), enc)
			return text, name, err
		}
	}

	if utf8.Valid(body) {
		return string(body), EncodingUTF8, nil
	}

	detected, err := chardet.NewTextDetector().DetectBest(body)
	if err == nil {
		if enc, name := LookupEncoding(detected.Charset); enc != nil {
			text, err := decodeWith(bytes.NewReader(body), enc)
			return text, name, err
		}
	}

	return strings.ToValidUTF8(string(body), string(utf8.RuneError)), EncodingUTF8, nil
}

// LookupEncoding resolves a charset label using the WHATWG index first and the
// IANA registry second. It returns a nil encoding for unknown labels.
func LookupEncoding(label string) (encoding.Encoding, string) {
	label = strings.TrimSpace(label)
	if alias, ok := chardetAliases[label]; ok {
		label = alias
	}
	if enc, err := htmlindex.Get(label); err == nil {
		name, _ := htmlindex.Name(enc)
		return enc, name
	}
	if enc, err := ianaindex.IANA.Encoding(label); err == nil && enc != nil {
		name, _ := ianaindex.IANA.Name(enc)
		return enc, strings.ToLower(name)
	}
	return nil, ""
}

func bomEncoding(bom utfbom.Encoding) (encoding.Encoding, string) {
	switch bom {
	case utfbom.UTF8:
		return unicode.UTF8, EncodingUTF8
	case utfbom.UTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be"
	case utfbom.UTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le"
	case utfbom.UTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), "utf-32be"
	case utfbom.UTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), "utf-32le"
	}
	return nil, ""
}

func decodeWith(r io.Reader, enc encoding.Encoding) (string, error) {
	out, err := io.ReadAll(transform.NewReader(r, enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("failed to decode subtitle data: %w", err)
	}
	return string(out), nil
}

// ReadSubtitleFile reads and decodes the subtitle at filePath.
func ReadSubtitleFile(filePath, encodingHint string) (string, string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read subtitle file '%s': %w", filePath, err)
	}
	return DecodeSubtitle(data, encodingHint)
}
