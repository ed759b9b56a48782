package opensubtitles

import (
	"fmt"
	"net/http"

	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
)

// LoginRequest represents the request body for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the successful response from the login endpoint.
// BaseURL is the host subsequent requests must use (e.g. vip-api.opensubtitles.com).
type LoginResponse struct {
	User    UserInfo `json:"user"`
	BaseURL string   `json:"base_url"`
	Token   string   `json:"token"`
	Status  int      `json:"status"`
}

// LogoutResponse is returned by the logout endpoint.
type LogoutResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// UserInfo represents user details provided by the API.
type UserInfo struct {
	AllowedDownloads   int    `json:"allowed_downloads"`
	Level              string `json:"level"`
	UserID             int    `json:"user_id"`
	ExtInstalled       bool   `json:"ext_installed"`
	Vip                bool   `json:"vip"`
	DownloadsCount     int    `json:"downloads_count"`
	RemainingDownloads int    `json:"remaining_downloads"`
	Username           string `json:"username"`
}

type getUserInfoResponse struct {
	Data UserInfo `json:"data"`
}

// SearchSubtitlesParams defines query parameters for the /subtitles endpoint.
// Nil fields are omitted from the query string.
type SearchSubtitlesParams struct {
	IMDbID          *int    `url:"imdb_id,omitempty"`
	ParentFeatureID *int    `url:"parent_feature_id,omitempty"`
	Query           *string `url:"query,omitempty"`
	SeasonNumber    *int    `url:"season_number,omitempty"`
	EpisodeNumber   *int    `url:"episode_number,omitempty"`
	Moviehash       *string `url:"moviehash,omitempty"` // Must match `^[a-f0-9]{16}$`
	Languages       *string `url:"languages,omitempty"` // Comma-separated, sorted language codes
	Type            *string `url:"type,omitempty"`      // "movie", "episode", "all"
	Year            *int    `url:"year,omitempty"`
	Page            *int    `url:"page,omitempty"`
}

// SearchSubtitlesResponse wraps the paginated subtitle results.
type SearchSubtitlesResponse struct {
	TotalPages int        `json:"total_pages"`
	TotalCount int        `json:"total_count"`
	PerPage    int        `json:"per_page"`
	Page       int        `json:"page"`
	Data       []Subtitle `json:"data"`
}

// Subtitle represents a single subtitle entry.
type Subtitle struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Attributes SubtitleAttributes `json:"attributes"`
}

// SubtitleAttributes contains the details of a subtitle.
type SubtitleAttributes struct {
	SubtitleID        string         `json:"subtitle_id"`
	Language          string         `json:"language"`
	DownloadCount     int            `json:"download_count"`
	HearingImpaired   bool           `json:"hearing_impaired"`
	HD                bool           `json:"hd"`
	FPS               float64        `json:"fps"`
	Format            string         `json:"format"`
	Votes             int            `json:"votes"`
	Ratings           float64        `json:"ratings"`
	FromTrusted       bool           `json:"from_trusted"`
	ForeignPartsOnly  bool           `json:"foreign_parts_only"`
	AITranslated      bool           `json:"ai_translated"`
	MachineTranslated bool           `json:"machine_translated"`
	UploadDate        string         `json:"upload_date"`
	Release           string         `json:"release"`
	Comments          string         `json:"comments"`
	Uploader          UploaderInfo   `json:"uploader"`
	FeatureDetails    FeatureInfo    `json:"feature_details"`
	URL               string         `json:"url"`
	Files             []SubtitleFile `json:"files"`
	MoviehashMatch    bool           `json:"moviehash_match"`
}

// UploaderInfo contains details about the subtitle uploader.
type UploaderInfo struct {
	UploaderID int    `json:"uploader_id"`
	Name       string `json:"name"`
	Rank       string `json:"rank"`
}

// FeatureInfo contains details about the feature associated with the subtitle.
type FeatureInfo struct {
	FeatureID     int    `json:"feature_id"`
	FeatureType   string `json:"feature_type"` // Movie, Episode, Tvshow
	Year          int    `json:"year"`
	Title         string `json:"title"`
	MovieName     string `json:"movie_name"`
	ImdbID        int    `json:"imdb_id"`
	TmdbID        int    `json:"tmdb_id"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	ParentTitle   string `json:"parent_title"`
}

// SubtitleFile represents a file associated with a subtitle entry.
type SubtitleFile struct {
	FileID   int    `json:"file_id"`
	CDNumber int    `json:"cd_number"`
	FileName string `json:"file_name"`
}

// DownloadRequest represents the request body for the download endpoint.
type DownloadRequest struct {
	FileID    int    `json:"file_id"`
	SubFormat string `json:"sub_format,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// DownloadResponse represents the successful response from the download endpoint.
type DownloadResponse struct {
	Link         string `json:"link"`
	FileName     string `json:"file_name"`
	Requests     int    `json:"requests"`
	Remaining    int    `json:"remaining"`
	Message      string `json:"message"`
	ResetTime    string `json:"reset_time"`
	ResetTimeUTC string `json:"reset_time_utc"`
}

// ErrorResponse represents a standard error response from the API.
type ErrorResponse struct {
	Errors  []string `json:"errors"`
	Status  int      `json:"status"`
	Message string   `json:"message"` // Used in some error cases like download limit
}

// Error implements the error interface.
func (r *ErrorResponse) Error() string {
	if r.Message != "" {
		return fmt.Sprintf("API Error (Status %d): %s", r.Status, r.Message)
	}
	if len(r.Errors) > 0 {
		return fmt.Sprintf("API Error (Status %d): %v", r.Status, r.Errors)
	}
	return fmt.Sprintf("API Error (Status %d): Unknown error", r.Status)
}

// Unwrap maps the HTTP status to one of the shared sentinel errors so callers
// can use errors.Is.
func (r *ErrorResponse) Unwrap() error {
	switch {
	case r.Status == http.StatusUnauthorized:
		return coreErrors.ErrUnauthorized
	case r.Status == http.StatusForbidden, r.Status == http.StatusNotAcceptable:
		// 406 is what /download answers once the daily quota is spent.
		return coreErrors.ErrForbidden
	case r.Status == http.StatusNotFound:
		return coreErrors.ErrNotFound
	case r.Status == http.StatusTooManyRequests:
		return coreErrors.ErrRateLimited
	case r.Status >= 500:
		return coreErrors.ErrServiceUnavailable
	}
	return nil
}
