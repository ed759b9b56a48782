package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/angelospk/osdfxp/pkg/core/dfxp"
	"github.com/angelospk/osdfxp/pkg/core/opensubtitles"
	ptn "github.com/razsteinmetz/go-ptn"
)

// VideoInfo identifies the content a subtitle belongs to. Title is the film
// title, or the series title when Episode is set.
type VideoInfo struct {
	Title        string `json:"title,omitempty"`
	Year         int    `json:"year,omitempty"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	Resolution   string `json:"resolution,omitempty"` // e.g., "1080p", "720p"
	Source       string `json:"source,omitempty"`     // e.g., "BluRay", "WEB-DL"
	ReleaseGroup string `json:"releaseGroup,omitempty"`

	MovieHash string `json:"movieHash,omitempty"`
	IMDbID    int    `json:"imdbId,omitempty"`
}

// IsEpisode reports whether the info describes a series episode.
func (v VideoInfo) IsEpisode() bool {
	return v.Episode > 0
}

// ContentName is the film title, or "<series> - SxxEyy" for an episode.
func (v VideoInfo) ContentName() string {
	title := strings.TrimSpace(v.Title)
	if v.IsEpisode() {
		return fmt.Sprintf("%s - S%02dE%02d", title, v.Season, v.Episode)
	}
	return title
}

// SuggestedFilename builds "<content name> - <language name>.dfxp".
func SuggestedFilename(info VideoInfo, languageName string) string {
	name := info.ContentName()
	if name == "" {
		name = "subtitles"
	}
	if languageName = strings.TrimSpace(languageName); languageName != "" {
		name += " - " + languageName
	}
	return name + dfxp.Extension
}

// Query builds the subtitle search parameters for this content.
func (v VideoInfo) Query(languages []string) opensubtitles.SearchSubtitlesParams {
	var params opensubtitles.SearchSubtitlesParams
	if title := strings.TrimSpace(v.Title); title != "" {
		params.Query = &title
	}
	if v.IMDbID > 0 {
		id := v.IMDbID
		params.IMDbID = &id
	}
	if v.MovieHash != "" {
		hash := v.MovieHash
		params.Moviehash = &hash
	}
	kind := "movie"
	if v.IsEpisode() {
		kind = "episode"
		season, episode := v.Season, v.Episode
		params.SeasonNumber = &season
		params.EpisodeNumber = &episode
	} else if v.Year > 0 {
		year := v.Year
		params.Year = &year
	}
	params.Type = &kind
	if langs := JoinLanguages(languages); langs != "" {
		params.Languages = &langs
	}
	return params
}

// JoinLanguages lowercases, de-duplicates and sorts codes into the comma
// separated form the API expects.
func JoinLanguages(codes []string) string {
	seen := make(map[string]bool, len(codes))
	var out []string
	for _, code := range codes {
		for _, part := range strings.Split(code, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// knownExtensions are the video and subtitle extensions stripped from release names.
var knownExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".wmv": true, ".flv": true, ".m4v": true, ".webm": true,
	".srt": true, ".sub": true, ".ssa": true, ".ass": true, ".vtt": true,
}

// IdentifyRelease derives VideoInfo from a release or video file name such as
// "The.Show.S02E05.720p.WEB-DL.mkv".
func IdentifyRelease(name string) VideoInfo {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); knownExtensions[strings.ToLower(ext)] {
		base = strings.TrimSuffix(base, ext)
	}

	parsed, err := ptn.Parse(base)
	if err != nil || strings.TrimSpace(parsed.Title) == "" {
		return VideoInfo{Title: strings.TrimSpace(strings.NewReplacer(".", " ", "_", " ").Replace(base))}
	}
	return VideoInfo{
		Title:        strings.TrimSpace(parsed.Title),
		Year:         parsed.Year,
		Season:       parsed.Season,
		Episode:      parsed.Episode,
		Resolution:   parsed.Resolution,
		Source:       parsed.Quality,
		ReleaseGroup: parsed.Group,
	}
}

// --- Client Interfaces for Dependency Injection ---

// OpenSubtitlesClient defines the methods needed from the OpenSubtitles client.
type OpenSubtitlesClient interface {
	Login(ctx context.Context, username, password string) (*opensubtitles.LoginResponse, error)
	Logout(ctx context.Context) error
	GetUserInfo(ctx context.Context) (*opensubtitles.UserInfo, error)
	IsLoggedIn() bool
	SearchSubtitles(ctx context.Context, params opensubtitles.SearchSubtitlesParams) (*opensubtitles.SearchSubtitlesResponse, error)
	RequestDownload(ctx context.Context, req opensubtitles.DownloadRequest) (*opensubtitles.DownloadResponse, error)
	FetchFile(ctx context.Context, link string) ([]byte, error)
}

var _ OpenSubtitlesClient = (*opensubtitles.Client)(nil)
