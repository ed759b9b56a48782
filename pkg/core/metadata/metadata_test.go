package metadata_test

import (
	"testing"

	"github.com/angelospk/osdfxp/pkg/core/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentName(t *testing.T) {
	tests := []struct {
		name     string
		info     metadata.VideoInfo
		expected string
	}{
		{"Film", metadata.VideoInfo{Title: "Inception", Year: 2010}, "Inception"},
		{"Episode", metadata.VideoInfo{Title: "The Show", Season: 2, Episode: 5}, "The Show - S02E05"},
		{"Double digit episode", metadata.VideoInfo{Title: "The Show", Season: 12, Episode: 103}, "The Show - S12E103"},
		{"Season zero special", metadata.VideoInfo{Title: "The Show", Episode: 1}, "The Show - S00E01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.info.ContentName())
		})
	}
}

func TestSuggestedFilename(t *testing.T) {
	assert.Equal(t, "Inception - English.dfxp", metadata.SuggestedFilename(metadata.VideoInfo{Title: "Inception"}, "English"))
	assert.Equal(t, "The Show - S01E03 - Greek.dfxp", metadata.SuggestedFilename(metadata.VideoInfo{Title: "The Show", Season: 1, Episode: 3}, "Greek"))
	assert.Equal(t, "Inception.dfxp", metadata.SuggestedFilename(metadata.VideoInfo{Title: "Inception"}, ""))
	assert.Equal(t, "subtitles - French.dfxp", metadata.SuggestedFilename(metadata.VideoInfo{}, "French"))
}

func TestQuery(t *testing.T) {
	t.Run("Film", func(t *testing.T) {
		params := metadata.VideoInfo{Title: "Inception", Year: 2010, MovieHash: "8e245d9679d31e12"}.Query([]string{"EN", "el", "en"})
		require.NotNil(t, params.Query)
		assert.Equal(t, "Inception", *params.Query)
		require.NotNil(t, params.Year)
		assert.Equal(t, 2010, *params.Year)
		assert.Equal(t, "movie", *params.Type)
		assert.Equal(t, "el,en", *params.Languages)
		assert.Equal(t, "8e245d9679d31e12", *params.Moviehash)
		assert.Nil(t, params.SeasonNumber)
		assert.Nil(t, params.IMDbID)
	})

	t.Run("Episode", func(t *testing.T) {
		params := metadata.VideoInfo{Title: "The Show", Year: 2019, Season: 2, Episode: 5, IMDbID: 1234567}.Query(nil)
		assert.Equal(t, "episode", *params.Type)
		assert.Equal(t, 2, *params.SeasonNumber)
		assert.Equal(t, 5, *params.EpisodeNumber)
		assert.Equal(t, 1234567, *params.IMDbID)
		assert.Nil(t, params.Year)
		assert.Nil(t, params.Languages)
	})
}

func TestJoinLanguages(t *testing.T) {
	assert.Equal(t, "de,el,en,pt-br", metadata.JoinLanguages([]string{"en", "EL, de", "pt-BR", "en", ""}))
	assert.Equal(t, "", metadata.JoinLanguages(nil))
}

func TestIdentifyRelease(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		title    string
		season   int
		episode  int
		year     int
		episodic bool
	}{
		{"Episode release", "/media/tv/The.Show.S02E05.720p.WEB-DL.x264-GRP.mkv", "The Show", 2, 5, 0, true},
		{"Film release", "Inception.2010.1080p.BluRay.x264-GROUP.mkv", "Inception", 0, 0, 2010, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := metadata.IdentifyRelease(tt.input)
			assert.Equal(t, tt.title, info.Title)
			assert.Equal(t, tt.season, info.Season)
			assert.Equal(t, tt.episode, info.Episode)
			if tt.year != 0 {
				assert.Equal(t, tt.year, info.Year)
			}
			assert.Equal(t, tt.episodic, info.IsEpisode())
		})
	}
}

func TestLanguageName(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"en", "English"},
		{"EL", "Greek"},
		{"gre", "Greek"},
		{"pt-br", "Portuguese (Brazilian)"},
		{"pt-pt", "Portuguese"},
		{"pt", "Portuguese (Brazilian)"},
		{"zh-tw", "Chinese (traditional)"},
		{"xx", "xx"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, metadata.LanguageName(tt.code))
		})
	}
}

func TestDetectSubtitleLanguage(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"movie.title.year.en.srt", "en"},
		{"movie.title.year.el.srt", "el"},
		{"Movie_Title_Greek.srt", "el"},
		{"movie.title.eng.srt", "en"},
		{"movie.title.en.hi.srt", "en"},
		{"movie.title.pt-br.srt", "pt-br"},
		{"/some/dir/show.s01e01.fre.forced.srt", "fr"},
		{"movie.title.srt", ""},
		{"english.srt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, metadata.DetectSubtitleLanguage(tt.name))
		})
	}
}
