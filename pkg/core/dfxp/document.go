package dfxp

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// MIMEType is the media type served for assembled documents.
	MIMEType = "application/ttml+xml"
	// Extension is the file extension for assembled documents.
	Extension = ".dfxp"

	// TickRate is the number of ticks per second declared in the header.
	TickRate = 10000000
)

// tick is the duration of one media tick at TickRate.
const tick = time.Second / TickRate

const header = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<tt xmlns:tt="http://www.w3.org/ns/ttml" xmlns:ttm="http://www.w3.org/ns/ttml#metadata" xmlns:ttp="http://www.w3.org/ns/ttml#parameter" xmlns:tts="http://www.w3.org/ns/ttml#styling" ttp:tickRate="10000000" ttp:timeBase="media" xmlns="http://www.w3.org/ns/ttml">
<head>
<ttp:profile use="http://netflix.com/ttml/profile/dfxp-ls-sdh"/>
<styling>
<style tts:backgroundColor="transparent" tts:textAlign="center" xml:id="style0"/>
</styling>
<layout>
<region tts:displayAlign="after" xml:id="region0"/>
<region tts:displayAlign="before" xml:id="region1"/>
</layout>
</head>
<body>
<div xml:space="preserve">`

const footer = "\n</div>\n</body>\n</tt>"

const cueFormat = "\n" + `<p begin="%dt" end="%dt" region="region0" style="style0" tts:extent="80.00%% 80.00%%" tts:origin="10.00%% 10.00%%" xml:id="subtitle%d">%s</p>`

// Cue is one timed subtitle unit as produced by an SRT parser.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Ticks converts d to media ticks, rounded to the nearest tick.
func Ticks(d time.Duration) int64 {
	return int64(d.Round(tick) / tick)
}

// Assemble builds a complete DFXP document from cues. Cues with empty text are
// skipped, but every emitted paragraph keeps the index of its cue in the input
// so identifiers stay stable when cues drop out.
func Assemble(cues []Cue) string {
	var b strings.Builder
	b.WriteString(header)
	for i, cue := range cues {
		if cue.Text == "" {
			continue
		}
		fmt.Fprintf(&b, cueFormat, Ticks(cue.Start), Ticks(cue.End), i, Convert(cue.Text))
	}
	b.WriteString(footer)
	return b.String()
}

// Resync returns a copy of cues with every timestamp shifted by offset.
// Resulting timestamps are not clamped and may be negative.
func Resync(cues []Cue, offset time.Duration) []Cue {
	shifted := make([]Cue, len(cues))
	for i, cue := range cues {
		shifted[i] = Cue{
			Start: cue.Start + offset,
			End:   cue.End + offset,
			Text:  cue.Text,
		}
	}
	return shifted
}

// OffsetFromSeconds converts a resync offset in seconds to a duration rounded
// to the millisecond.
func OffsetFromSeconds(seconds float64) time.Duration {
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}

// AssembleResynced is Assemble over Resync(cues, offset).
func AssembleResynced(cues []Cue, offset time.Duration) string {
	return Assemble(Resync(cues, offset))
}
