// Package srt splits SubRip text into timed cues. Inline markup is left
// untouched for the dfxp transcoder.
package srt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
)

const maxLineSize = 1024 * 1024

// Parse reads SubRip cues from r. It tolerates missing index lines, missing
// blank separators, CRLF line endings and '.' as the millisecond separator.
// A stream without a single timing line yields ErrEmptySubtitle.
func Parse(r io.Reader) ([]dfxp.Cue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		cues    []dfxp.Cue
		current *dfxp.Cue
		lines   []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.Join(lines, "\n")
		cues = append(cues, *current)
		current, lines = nil, nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if start, end, ok := parseTiming(line); ok {
			if current != nil {
				// No blank line before this cue, so its index ended up as text.
				if n := len(lines); n > 0 && isIndex(lines[n-1]) {
					lines = lines[:n-1]
				}
				flush()
			}
			current = &dfxp.Cue{Start: start, End: end}
			continue
		}

		if current == nil {
			// Index lines and junk between cues.
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading srt: %w", err)
	}
	flush()

	if len(cues) == 0 {
		return nil, coreErrors.ErrEmptySubtitle
	}
	return cues, nil
}

func isIndex(line string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(line))
	return err == nil
}

// parseTiming parses "00:00:01,000 --> 00:00:02,500", ignoring any trailing
// position coordinates.
func parseTiming(line string) (time.Duration, time.Duration, bool) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, false
	}
	endFields := strings.Fields(parts[1])
	if len(endFields) == 0 {
		return 0, 0, false
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return 0, 0, false
	}
	end, err := ParseTimestamp(endFields[0])
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// ParseTimestamp parses an SRT timestamp such as "01:02:03,456". Hours may be
// omitted and '.' is accepted in place of ','.
func ParseTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")

	clock, frac, _ := strings.Cut(value, ",")
	hms := strings.Split(clock, ":")
	if len(hms) == 2 {
		hms = append([]string{"0"}, hms...)
	}
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}

	var fields [3]int
	for i, part := range hms {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		fields[i] = n
	}

	var millis int
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		frac += strings.Repeat("0", 3-len(frac))
		n, err := strconv.Atoi(frac)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", value)
		}
		millis = n
	}

	return time.Duration(fields[0])*time.Hour +
		time.Duration(fields[1])*time.Minute +
		time.Duration(fields[2])*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// Format renders d as an SRT timestamp. Negative durations are clamped to zero
// since SubRip cannot express them.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}

// Write renders cues back to SubRip, numbering them from 1.
func Write(w io.Writer, cues []dfxp.Cue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, Format(cue.Start), Format(cue.End), cue.Text); err != nil {
			return fmt.Errorf("write srt cue %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}
