// Package dfxp converts SubRip cue text into TTML inline markup and assembles
// complete DFXP caption documents.
package dfxp

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// assBlockRegex matches an ASS override block such as {\i1\c&H0000FF&}.
var assBlockRegex = regexp.MustCompile(`\{\\(.+?)\}`)

// assColorRegex matches a primary colour override. The hex digits are BGR ordered.
var assColorRegex = regexp.MustCompile(`^1?c&H([0-9a-fA-F]{0,6})&$`)

// The pseudo tag that carries override commands through the tokenizer.
const assTag = "ass"

const (
	lineStart = "&#x202a;" // left-to-right embedding
	lineEnd   = "&#x202c;" // pop directional formatting
	lineBreak = "<br/>"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// xmlChar drops runes that XML 1.0 does not allow in character data.
func xmlChar(r rune) rune {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return r
	case r >= 0x20 && r <= 0xD7FF, r >= 0xE000 && r <= 0xFFFD, r >= 0x10000 && r <= utf8.MaxRune:
		return r
	}
	return -1
}

// escapeText makes s safe to emit as XML character or attribute data.
func escapeText(s string) string {
	return textEscaper.Replace(strings.Map(xmlChar, s))
}

// override is the flat record set by ASS override commands. A nil field means
// the tag derived style applies.
type override struct {
	bold          *bool
	italic        *bool
	underline     *bool
	strikethrough *bool
	color         string
}

type styleState struct {
	italicDepth    int
	boldDepth      int
	underlineDepth int
	strikeDepth    int

	// fonts holds the colour of each open <font>, "" when it had none.
	fonts []string

	override override
}

func (s *styleState) counter(tag string) *int {
	switch tag {
	case "i":
		return &s.italicDepth
	case "b":
		return &s.boldDepth
	case "u":
		return &s.underlineDepth
	case "s":
		return &s.strikeDepth
	}
	return nil
}

func (s *styleState) open(tag string, attrs map[string]string) {
	if c := s.counter(tag); c != nil {
		*c++
		return
	}
	switch tag {
	case "font":
		s.fonts = append(s.fonts, attrs["color"])
	case assTag:
		s.applyOverrides(attrs["cmd"])
	}
}

func (s *styleState) close(tag string) {
	if c := s.counter(tag); c != nil {
		if *c > 0 {
			*c--
		}
		return
	}
	if tag == "font" && len(s.fonts) > 0 {
		s.fonts = s.fonts[:len(s.fonts)-1]
	}
}

// applyOverrides interprets every command of a single override block in order.
func (s *styleState) applyOverrides(cmd string) {
	for _, token := range strings.Split(cmd, `\`) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == "r" {
			s.override = override{}
			continue
		}
		if len(token) == 2 && (token[1] == '0' || token[1] == '1') {
			on := token[1] == '1'
			switch token[0] {
			case 'b':
				s.override.bold = &on
			case 'i':
				s.override.italic = &on
			case 'u':
				s.override.underline = &on
			case 's':
				s.override.strikethrough = &on
			}
			continue
		}
		if m := assColorRegex.FindStringSubmatch(token); m != nil {
			s.override.color = bgrToRGB(m[1])
		}
	}
}

// bgrToRGB turns an ASS BBGGRR hex value into a #RRGGBB colour.
func bgrToRGB(hex string) string {
	hex = strings.Repeat("0", 6-len(hex)) + hex
	return "#" + hex[4:6] + hex[2:4] + hex[0:2]
}

func resolve(o *bool, depth int) bool {
	if o != nil {
		return *o
	}
	return depth > 0
}

// span returns the opening wrapper for the current computed style, or "" when
// the style is empty.
func (s *styleState) span() string {
	var attrs []string
	if resolve(s.override.bold, s.boldDepth) {
		attrs = append(attrs, `tts:fontWeight="bold"`)
	}
	if resolve(s.override.italic, s.italicDepth) {
		attrs = append(attrs, `tts:fontStyle="italic"`)
	}
	if resolve(s.override.underline, s.underlineDepth) {
		attrs = append(attrs, `tts:textDecoration="underline"`)
	} else if resolve(s.override.strikethrough, s.strikeDepth) {
		attrs = append(attrs, `tts:textDecoration="lineThrough"`)
	}
	if color := s.color(); color != "" {
		attrs = append(attrs, `tts:color="`+escapeText(color)+`"`)
	}
	if len(attrs) == 0 {
		return ""
	}
	return "<span " + strings.Join(attrs, " ") + ">"
}

func (s *styleState) color() string {
	if s.override.color != "" {
		return s.override.color
	}
	for i := len(s.fonts) - 1; i >= 0; i-- {
		if s.fonts[i] != "" {
			return s.fonts[i]
		}
	}
	return ""
}

type transcoder struct {
	style    styleState
	out      strings.Builder
	openSpan string
}

func (t *transcoder) text(run string) {
	run = strings.Map(xmlChar, newlineNormalizer.Replace(run))
	if run == "" {
		return
	}
	if next := t.style.span(); next != t.openSpan {
		if t.openSpan != "" {
			t.out.WriteString("</span>")
		}
		t.out.WriteString(next)
		t.openSpan = next
	}
	for i, line := range strings.Split(textEscaper.Replace(run), "\n") {
		if i > 0 {
			t.out.WriteString(lineBreak)
		}
		t.out.WriteString(lineStart)
		t.out.WriteString(line)
		t.out.WriteString(lineEnd)
	}
}

func (t *transcoder) finish() string {
	if t.openSpan != "" {
		t.out.WriteString("</span>")
		t.openSpan = ""
	}
	return t.out.String()
}

// normalizeOverrides rewrites every {\...} block into a self-closing <ass/>
// element so the tokenizer sees override commands in stream order.
func normalizeOverrides(raw string) string {
	return assBlockRegex.ReplaceAllStringFunc(raw, func(block string) string {
		cmd := assBlockRegex.FindStringSubmatch(block)[1]
		return `<` + assTag + ` cmd="` + html.EscapeString(cmd) + `"/>`
	})
}

// Convert transcodes the raw text of one cue, which may mix HTML-like tags
// with ASS override blocks, into TTML inline content. Malformed markup is
// tolerated: unknown tags and commands are dropped and unbalanced closes are
// ignored. Source text is escaped as written, so entities are not decoded,
// and characters XML cannot carry are removed. The result always has balanced
// <span> elements.
func Convert(raw string) string {
	t := &transcoder{}
	z := html.NewTokenizer(strings.NewReader(normalizeOverrides(raw)))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer failure; both end the stream.
			return t.finish()
		case html.TextToken:
			// Raw keeps entities as written in the source.
			t.text(string(z.Raw()))
		case html.StartTagToken:
			// Cue text has no raw-text elements; <title> or <script> must
			// not swallow the markup that follows them.
			z.NextIsNotRawText()
			name, attrs := tagOf(z)
			t.style.open(name, attrs)
		case html.SelfClosingTagToken:
			z.NextIsNotRawText()
			name, attrs := tagOf(z)
			t.style.open(name, attrs)
			t.style.close(name)
		case html.EndTagToken:
			name, _ := z.TagName()
			t.style.close(string(name))
		}
	}
}

func tagOf(z *html.Tokenizer) (string, map[string]string) {
	name, more := z.TagName()
	var attrs map[string]string
	for more {
		var key, val []byte
		key, val, more = z.TagAttr()
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[string(key)] = string(val)
	}
	return string(name), attrs
}
