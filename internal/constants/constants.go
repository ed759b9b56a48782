package constants

// DefaultBaseURL is the standard base URL for the OpenSubtitles REST API.
const DefaultBaseURL = "https://api.opensubtitles.com/api/v1"

// ApiPath is the common path prefix for API endpoints.
const ApiPath = "/api/v1"

// DefaultUserAgent identifies this tool to the API. OpenSubtitles requires an
// "AppName vX.Y" style value.
const DefaultUserAgent = "osdfxp v1.0"

// SubtitleFormatSRT is requested from /download so cues can be parsed locally.
const SubtitleFormatSRT = "srt"
