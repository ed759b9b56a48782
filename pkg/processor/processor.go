package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/angelospk/osdfxp/pkg/core/fileops"
	"github.com/angelospk/osdfxp/pkg/core/metadata"
	"github.com/angelospk/osdfxp/pkg/core/opensubtitles"
	"github.com/angelospk/osdfxp/pkg/core/srt"
	log "github.com/sirupsen/logrus"
)

// ProcessorInterface defines the subtitle pipeline used by the CLI.
type ProcessorInterface interface {
	Search(ctx context.Context, info metadata.VideoInfo, languages []string) ([]Candidate, error)
	FetchForContent(ctx context.Context, info metadata.VideoInfo, opts FetchOptions) (*Result, error)
	LoadLocalFile(path, encodingHint string) (*Result, error)
}

// Ensure Processor implements ProcessorInterface
var _ ProcessorInterface = (*Processor)(nil)

// convertibleFormats are the formats the API can hand back as SRT. An empty
// format is reported for plain SRT uploads.
var convertibleFormats = map[string]bool{
	"": true, "srt": true, "subrip": true, "ssa": true, "ass": true, "vtt": true, "webvtt": true, "sub": true, "mpl": true, "tmp": true,
}

// Processor runs the download, decode and parse steps that turn a subtitle
// into cues ready for assembly.
type Processor struct {
	client metadata.OpenSubtitlesClient
	logger *log.Logger
}

// NewProcessor creates a new Processor instance. client may be nil when only
// local files are processed.
func NewProcessor(client metadata.OpenSubtitlesClient, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New()
		logger.SetFormatter(&log.TextFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(log.InfoLevel)
	}
	return &Processor{
		client: client,
		logger: logger,
	}
}

// Candidate is one downloadable subtitle file from a search.
type Candidate struct {
	SubtitleID      string
	FileID          int
	FileName        string
	Language        string
	LanguageName    string
	Release         string
	Format          string
	Downloads       int
	HearingImpaired bool
	Feature         opensubtitles.FeatureInfo
}

// FetchOptions control how FetchForContent picks and decodes a subtitle.
type FetchOptions struct {
	Languages       []string // search filter; empty searches all languages
	PinnedLanguages []string // a single match among these is chosen automatically
	FileID          int      // explicit choice, overrides pinning
	Username        string   // optional; logs in before downloading
	Password        string
	EncodingHint    string
}

// Result is a decoded, parsed subtitle with the name its document should get.
type Result struct {
	Cues     []dfxp.Cue
	Filename string
	Language string
	Encoding string
	Source   string
}

// Search queries the API for info and returns the convertible candidates,
// one per subtitle, in API order.
func (p *Processor) Search(ctx context.Context, info metadata.VideoInfo, languages []string) ([]Candidate, error) {
	if p.client == nil {
		return nil, fmt.Errorf("search: %w", coreErrors.ErrNotLoggedIn)
	}
	p.logger.WithFields(log.Fields{"content": info.ContentName(), "languages": metadata.JoinLanguages(languages)}).Info("Searching subtitles")

	resp, err := p.client.SearchSubtitles(ctx, info.Query(languages))
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, sub := range resp.Data {
		attrs := sub.Attributes
		format := strings.ToLower(attrs.Format)
		if len(attrs.Files) == 0 || !convertibleFormats[format] {
			p.logger.Debugf("Skipping subtitle %s (format %q, %d files)", sub.ID, attrs.Format, len(attrs.Files))
			continue
		}
		file := attrs.Files[0]
		candidates = append(candidates, Candidate{
			SubtitleID:      sub.ID,
			FileID:          file.FileID,
			FileName:        file.FileName,
			Language:        strings.ToLower(attrs.Language),
			LanguageName:    metadata.LanguageName(attrs.Language),
			Release:         attrs.Release,
			Format:          format,
			Downloads:       attrs.DownloadCount,
			HearingImpaired: attrs.HearingImpaired,
			Feature:         attrs.FeatureDetails,
		})
	}
	p.logger.Infof("Found %d convertible subtitles (%d results)", len(candidates), len(resp.Data))
	return candidates, nil
}

// SortCandidates orders candidates for display: pinned languages first, then
// by language name, then by lowercase file name.
func SortCandidates(candidates []Candidate, pinned []string) {
	isPinned := pinnedSet(pinned)
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if pa, pb := isPinned[a.Language], isPinned[b.Language]; pa != pb {
			return pa
		}
		if a.LanguageName != b.LanguageName {
			return a.LanguageName < b.LanguageName
		}
		return strings.ToLower(a.FileName) < strings.ToLower(b.FileName)
	})
}

// IsPinned reports whether c is in one of the pinned languages.
func (c Candidate) IsPinned(pinned []string) bool {
	return pinnedSet(pinned)[c.Language]
}

func pinnedSet(pinned []string) map[string]bool {
	set := make(map[string]bool, len(pinned))
	for _, lang := range strings.Split(metadata.JoinLanguages(pinned), ",") {
		if lang != "" {
			set[lang] = true
		}
	}
	return set
}

// SelectCandidate picks the candidate to download. An explicit fileID wins;
// otherwise exactly one candidate in a pinned language is chosen. A lone
// candidate is chosen when nothing is pinned.
func SelectCandidate(candidates []Candidate, pinned []string, fileID int) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, coreErrors.ErrNoCandidates
	}
	if fileID > 0 {
		for _, c := range candidates {
			if c.FileID == fileID {
				return c, nil
			}
		}
		return Candidate{}, fmt.Errorf("file id %d: %w", fileID, coreErrors.ErrNoCandidates)
	}

	isPinned := pinnedSet(pinned)
	var matches []Candidate
	for _, c := range candidates {
		if isPinned[c.Language] {
			matches = append(matches, c)
		}
	}
	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		return Candidate{}, fmt.Errorf("%d candidates in pinned languages: %w", len(matches), coreErrors.ErrAmbiguousSubtitle)
	case len(isPinned) > 0:
		return Candidate{}, fmt.Errorf("none of %d candidates in pinned languages %s: %w", len(candidates), metadata.JoinLanguages(pinned), coreErrors.ErrAmbiguousSubtitle)
	case len(candidates) == 1:
		return candidates[0], nil
	}
	return Candidate{}, fmt.Errorf("%d candidates: %w", len(candidates), coreErrors.ErrAmbiguousSubtitle)
}

// SelectionError carries the sorted candidates when none could be chosen.
type SelectionError struct {
	Candidates []Candidate
	Err        error
}

func (e *SelectionError) Error() string { return e.Err.Error() }

func (e *SelectionError) Unwrap() error { return e.Err }

// FetchForContent searches, selects, downloads, decodes and parses a subtitle
// for info.
func (p *Processor) FetchForContent(ctx context.Context, info metadata.VideoInfo, opts FetchOptions) (*Result, error) {
	if p.client == nil {
		return nil, fmt.Errorf("fetch: %w", coreErrors.ErrNotLoggedIn)
	}
	if opts.Username != "" && !p.client.IsLoggedIn() {
		if _, err := p.client.Login(ctx, opts.Username, opts.Password); err != nil {
			return nil, err
		}
		p.logger.WithField("username", opts.Username).Info("Logged in")
	}

	candidates, err := p.Search(ctx, info, opts.Languages)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", info.ContentName(), coreErrors.ErrNoCandidates)
	}
	SortCandidates(candidates, opts.PinnedLanguages)

	chosen, err := SelectCandidate(candidates, opts.PinnedLanguages, opts.FileID)
	if err != nil {
		return nil, &SelectionError{Candidates: candidates, Err: err}
	}
	p.logger.WithFields(log.Fields{"file_id": chosen.FileID, "language": chosen.Language, "file": chosen.FileName}).Info("Downloading subtitle")

	dl, err := p.client.RequestDownload(ctx, opensubtitles.DownloadRequest{FileID: chosen.FileID})
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("Download link issued, %d downloads remaining", dl.Remaining)

	data, err := p.client.FetchFile(ctx, dl.Link)
	if err != nil {
		return nil, err
	}

	result, err := p.decode(data, opts.EncodingHint)
	if err != nil {
		return nil, fmt.Errorf("subtitle file %d: %w", chosen.FileID, err)
	}
	result.Language = chosen.Language
	result.Source = "opensubtitles:" + strconv.Itoa(chosen.FileID)
	result.Filename = metadata.SuggestedFilename(contentInfo(info, chosen.Feature), chosen.LanguageName)
	return result, nil
}

// contentInfo fills a missing title from the feature the API matched.
func contentInfo(info metadata.VideoInfo, feature opensubtitles.FeatureInfo) metadata.VideoInfo {
	if strings.TrimSpace(info.Title) != "" {
		return info
	}
	if feature.EpisodeNumber > 0 && feature.ParentTitle != "" {
		info.Title = feature.ParentTitle
		info.Season, info.Episode = feature.SeasonNumber, feature.EpisodeNumber
		return info
	}
	if feature.Title != "" {
		info.Title = feature.Title
	} else {
		info.Title = feature.MovieName
	}
	return info
}

// LoadLocalFile decodes and parses an SRT file from disk. The document name is
// the file's base name with ".srt" replaced by ".dfxp".
func (p *Processor) LoadLocalFile(path, encodingHint string) (*Result, error) {
	text, encName, err := fileops.ReadSubtitleFile(path, encodingHint)
	if err != nil {
		return nil, err
	}
	result, err := p.parse(text, encName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(base), ".srt") {
		base = base[:len(base)-len(".srt")]
	}
	result.Filename = base + dfxp.Extension
	result.Language = metadata.DetectSubtitleLanguage(path)
	result.Source = path
	p.logger.WithFields(log.Fields{"file": path, "cues": len(result.Cues), "encoding": result.Encoding}).Info("Loaded local subtitle")
	return result, nil
}

func (p *Processor) decode(data []byte, hint string) (*Result, error) {
	text, encName, err := fileops.DecodeSubtitle(data, hint)
	if err != nil {
		return nil, err
	}
	return p.parse(text, encName)
}

func (p *Processor) parse(text, encName string) (*Result, error) {
	cues, err := srt.Parse(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("Decoded %s subtitle into %d cues", encName, len(cues))
	return &Result{Cues: cues, Encoding: encName}, nil
}

// IdentifyVideo derives search info from a video file: the release name
// parsed from its file name plus its moviehash. A file too small to hash is
// still identified by name.
func (p *Processor) IdentifyVideo(path string) (metadata.VideoInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return metadata.VideoInfo{}, fmt.Errorf("failed to stat video '%s': %w", path, err)
	}
	info := metadata.IdentifyRelease(path)
	hash, _, err := fileops.MovieHash(path)
	if err != nil {
		p.logger.Warnf("Could not hash %s: %v", filepath.Base(path), err)
	} else {
		info.MovieHash = hash
	}
	return info, nil
}

// ScanDirectory lists the SRT files under rootPath, descending into
// subdirectories only when recursive is set.
func (p *Processor) ScanDirectory(ctx context.Context, rootPath string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			p.logger.Warnf("Error accessing path %q: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != rootPath && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".srt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan %s: %w", rootPath, err)
	}
	p.logger.Infof("Scan complete. Found %d subtitle files in %s (Recursive: %t)", len(files), rootPath, recursive)
	return files, nil
}

// Encode renders cues back to SubRip, shifted by offset. It backs the
// convert command's srt output.
func Encode(cues []dfxp.Cue, offset time.Duration) ([]byte, error) {
	var buf bytes.Buffer
	if err := srt.Write(&buf, dfxp.Resync(cues, offset)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
