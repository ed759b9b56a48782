package cmd

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	"github.com/angelospk/osdfxp/pkg/core/fileops"
	"github.com/angelospk/osdfxp/pkg/core/metadata"
	"github.com/angelospk/osdfxp/pkg/processor"
	"github.com/spf13/cobra"
)

const (
	formatDFXP = "dfxp"
	formatSRT  = "srt"
)

// contentFlags describe the film or episode to search subtitles for.
type contentFlags struct {
	query   string
	year    int
	season  int
	episode int
	imdbID  string
	release string
	video   string
	langs   string
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "Film or series title")
	cmd.Flags().IntVar(&f.year, "year", 0, "Release year (films)")
	cmd.Flags().IntVarP(&f.season, "season", "s", 0, "Season number (episodes)")
	cmd.Flags().IntVarP(&f.episode, "episode", "e", 0, "Episode number (episodes)")
	cmd.Flags().StringVar(&f.imdbID, "imdbid", "", "IMDb ID (e.g., tt1234567)")
	cmd.Flags().StringVar(&f.release, "release", "", "Release name to identify, e.g. The.Show.S02E05.720p.WEB-DL")
	cmd.Flags().StringVar(&f.video, "video", "", "Video file to identify by name and moviehash")
	cmd.Flags().StringVarP(&f.langs, "lang", "l", "", "Comma-separated list of language codes (e.g., en,el)")
}

func (f *contentFlags) reset() {
	*f = contentFlags{}
}

func (f *contentFlags) languages() []string {
	if f.langs == "" {
		return nil
	}
	return strings.Split(f.langs, ",")
}

// resolve builds the content to search for. Explicit flags override whatever
// was identified from --video or --release.
func (f *contentFlags) resolve(p *processor.Processor) (metadata.VideoInfo, error) {
	var info metadata.VideoInfo
	switch {
	case f.video != "":
		identified, err := p.IdentifyVideo(f.video)
		if err != nil {
			return info, err
		}
		info = identified
	case f.release != "":
		info = metadata.IdentifyRelease(f.release)
	}

	if f.query != "" {
		info.Title = f.query
	}
	if f.year > 0 {
		info.Year = f.year
	}
	if f.season > 0 {
		info.Season = f.season
	}
	if f.episode > 0 {
		info.Episode = f.episode
	}
	if f.imdbID != "" {
		id, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(f.imdbID), "tt"))
		if err != nil {
			return info, fmt.Errorf("invalid --imdbid %q", f.imdbID)
		}
		info.IMDbID = id
	}

	if info.Title == "" && info.IMDbID == 0 && info.MovieHash == "" {
		return info, fmt.Errorf("at least one of --query, --imdbid, --release or --video must be provided")
	}
	if info.Season > 0 && info.Episode == 0 {
		return info, fmt.Errorf("--episode is required with --season")
	}
	return info, nil
}

// parseOffset accepts a Go duration ("1.5s", "-250ms") or plain seconds
// ("1.5", "-0.3"), rounded to the millisecond.
func parseOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, fmt.Errorf("invalid resync offset %q: use seconds (1.5) or a duration (1500ms)", value)
	}
	return dfxp.OffsetFromSeconds(seconds), nil
}

// writeResult renders a processed subtitle in format and writes it to dir.
// name overrides the suggested file name.
func writeResult(result *processor.Result, offset time.Duration, dir, name, format string) (string, error) {
	filename := result.Filename
	if name != "" {
		filename = name
	}

	var content string
	switch strings.ToLower(format) {
	case "", formatDFXP:
		if !strings.HasSuffix(strings.ToLower(filename), dfxp.Extension) {
			filename += dfxp.Extension
		}
		content = dfxp.AssembleResynced(result.Cues, offset)
	case formatSRT:
		filename = strings.TrimSuffix(filename, dfxp.Extension)
		if !strings.HasSuffix(strings.ToLower(filename), ".srt") {
			filename += ".srt"
		}
		data, err := processor.Encode(result.Cues, offset)
		if err != nil {
			return "", err
		}
		content = string(data)
	default:
		return "", fmt.Errorf("unsupported --format %q: use %s or %s", format, formatDFXP, formatSRT)
	}

	return fileops.WriteDocument(dir, filename, content)
}
