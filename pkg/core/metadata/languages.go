package metadata

import (
	"path/filepath"
	"strings"
)

// LanguageInfo holds details for a specific language.
type LanguageInfo struct {
	OSCode string // Code used by OpenSubtitles API (e.g., "en", "pt-br")
	Code2  string // ISO 639-1 Code (e.g., "en", "pt")
	Code3  string // ISO 639-2/3 Code (e.g., "eng", "por")
	Name   string // English name (e.g., "English", "Portuguese")
}

// languagesDB maps a lowercase OSCode, Code2, Code3 or Name to its language.
// Entries listed first claim shared keys, so "pt" resolves to Brazilian.
var languagesDB = map[string]LanguageInfo{}

var languages = []LanguageInfo{
	{OSCode: "en", Code2: "en", Code3: "eng", Name: "English"},
	{OSCode: "el", Code2: "el", Code3: "gre", Name: "Greek"},
	{OSCode: "es", Code2: "es", Code3: "spa", Name: "Spanish"},
	{OSCode: "fr", Code2: "fr", Code3: "fre", Name: "French"},
	{OSCode: "de", Code2: "de", Code3: "ger", Name: "German"},
	{OSCode: "it", Code2: "it", Code3: "ita", Name: "Italian"},
	{OSCode: "pt-br", Code2: "pt", Code3: "por", Name: "Portuguese (Brazilian)"},
	{OSCode: "pt-pt", Code2: "pt", Code3: "por", Name: "Portuguese"},
	{OSCode: "zh-cn", Code2: "zh", Code3: "zho", Name: "Chinese (simplified)"},
	{OSCode: "zh-tw", Code2: "zh", Code3: "zho", Name: "Chinese (traditional)"},
	{OSCode: "ze", Code2: "zh", Code3: "zho", Name: "Chinese bilingual"},
	{OSCode: "af", Code2: "af", Code3: "afr", Name: "Afrikaans"},
	{OSCode: "sq", Code2: "sq", Code3: "sqi", Name: "Albanian"},
	{OSCode: "ar", Code2: "ar", Code3: "ara", Name: "Arabic"},
	{OSCode: "hy", Code2: "hy", Code3: "hye", Name: "Armenian"},
	{OSCode: "eu", Code2: "eu", Code3: "eus", Name: "Basque"},
	{OSCode: "bn", Code2: "bn", Code3: "ben", Name: "Bengali"},
	{OSCode: "bg", Code2: "bg", Code3: "bul", Name: "Bulgarian"},
	{OSCode: "ca", Code2: "ca", Code3: "cat", Name: "Catalan"},
	{OSCode: "hr", Code2: "hr", Code3: "hrv", Name: "Croatian"},
	{OSCode: "cs", Code2: "cs", Code3: "ces", Name: "Czech"},
	{OSCode: "da", Code2: "da", Code3: "dan", Name: "Danish"},
	{OSCode: "nl", Code2: "nl", Code3: "nld", Name: "Dutch"},
	{OSCode: "fi", Code2: "fi", Code3: "fin", Name: "Finnish"},
	{OSCode: "he", Code2: "he", Code3: "heb", Name: "Hebrew"},
	{OSCode: "hi", Code2: "hi", Code3: "hin", Name: "Hindi"},
	{OSCode: "hu", Code2: "hu", Code3: "hun", Name: "Hungarian"},
	{OSCode: "id", Code2: "id", Code3: "ind", Name: "Indonesian"},
	{OSCode: "ja", Code2: "ja", Code3: "jpn", Name: "Japanese"},
	{OSCode: "ko", Code2: "ko", Code3: "kor", Name: "Korean"},
	{OSCode: "lv", Code2: "lv", Code3: "lav", Name: "Latvian"},
	{OSCode: "lt", Code2: "lt", Code3: "lit", Name: "Lithuanian"},
	{OSCode: "mk", Code2: "mk", Code3: "mkd", Name: "Macedonian"},
	{OSCode: "ms", Code2: "ms", Code3: "msa", Name: "Malay"},
	{OSCode: "no", Code2: "no", Code3: "nor", Name: "Norwegian"},
	{OSCode: "fa", Code2: "fa", Code3: "fas", Name: "Persian"},
	{OSCode: "pl", Code2: "pl", Code3: "pol", Name: "Polish"},
	{OSCode: "ro", Code2: "ro", Code3: "ron", Name: "Romanian"},
	{OSCode: "ru", Code2: "ru", Code3: "rus", Name: "Russian"},
	{OSCode: "sr", Code2: "sr", Code3: "srp", Name: "Serbian"},
	{OSCode: "sk", Code2: "sk", Code3: "slk", Name: "Slovak"},
	{OSCode: "sl", Code2: "sl", Code3: "slv", Name: "Slovenian"},
	{OSCode: "sv", Code2: "sv", Code3: "swe", Name: "Swedish"},
	{OSCode: "th", Code2: "th", Code3: "tha", Name: "Thai"},
	{OSCode: "tr", Code2: "tr", Code3: "tur", Name: "Turkish"},
	{OSCode: "uk", Code2: "uk", Code3: "ukr", Name: "Ukrainian"},
	{OSCode: "vi", Code2: "vi", Code3: "vie", Name: "Vietnamese"},
}

func init() {
	for _, lang := range languages {
		// An OSCode always maps to its own entry; the other keys go to
		// whichever entry claimed them first.
		languagesDB[strings.ToLower(lang.OSCode)] = lang
		for _, key := range []string{lang.Code2, lang.Code3, lang.Name} {
			key = strings.ToLower(key)
			if _, exists := languagesDB[key]; key != "" && !exists {
				languagesDB[key] = lang
			}
		}
	}
}

// LookupLanguage finds a language by OpenSubtitles code, ISO code or English
// name, case-insensitively.
func LookupLanguage(code string) (LanguageInfo, bool) {
	lang, ok := languagesDB[strings.ToLower(strings.TrimSpace(code))]
	return lang, ok
}

// LanguageName returns the display name for code, or code itself when the
// language is unknown.
func LanguageName(code string) string {
	if lang, ok := LookupLanguage(code); ok {
		return lang.Name
	}
	return code
}

// subtitleExts are stripped before looking for a language tag in a file name.
var subtitleExts = []string{".srt", ".sub", ".ass", ".ssa", ".vtt", ".txt"}

// flagTerms mark hearing impaired or forced subtitles and collide with
// language codes ("hi" is Hindi).
var flagTerms = map[string]bool{"hi": true, "sdh": true, "cc": true, "forced": true, "frc": true}

// DetectSubtitleLanguage looks for a language tag such as ".en." or
// "_greek" in a subtitle file name and returns its OpenSubtitles code, or ""
// when none is found.
func DetectSubtitleLanguage(filename string) string {
	base := strings.ToLower(filepath.Base(filename))
	for _, ext := range subtitleExts {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}

	parts := strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == ' '
	})
	// The tag is usually last, so scan right to left. The first part is the
	// title and never counts.
	for i := len(parts) - 1; i > 0; i-- {
		if flagTerms[parts[i]] {
			continue
		}
		if lang, ok := languagesDB[parts[i]]; ok {
			return lang.OSCode
		}
	}
	return ""
}
