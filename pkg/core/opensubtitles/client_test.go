package opensubtitles

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		APIKey:     "test-api-key",
		UserAgent:  "osdfxp-test v0.1",
		BaseURL:    server.URL + "/api/v1",
		HTTPClient: server.Client(),
	})
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Login_Success(t *testing.T) {
	var serverURL string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/login":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "test-api-key", r.Header.Get("Api-Key"))
			assert.Equal(t, "osdfxp-test v0.1", r.Header.Get("User-Agent"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, LoginRequest{Username: "testuser", Password: "testpass"}, body)

			writeJSON(w, http.StatusOK, map[string]interface{}{
				"user":     map[string]interface{}{"user_id": 123, "level": "Sub leecher", "username": "testuser"},
				"base_url": serverURL,
				"token":    "fake-jwt-token",
				"status":   200,
			})
		case "/api/v1/infos/user":
			assert.Equal(t, "Bearer fake-jwt-token", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"data": map[string]interface{}{"username": "testuser", "remaining_downloads": 19},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	serverURL = server.URL

	resp, err := client.Login(context.Background(), "testuser", "testpass")
	require.NoError(t, err)
	assert.Equal(t, "fake-jwt-token", resp.Token)
	assert.Equal(t, 123, resp.User.UserID)
	assert.True(t, client.IsLoggedIn())
	assert.Equal(t, "testuser", client.Username())
	assert.Equal(t, server.URL+"/api/v1", client.BaseURL())

	info, err := client.GetUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "testuser", info.Username)
	assert.Equal(t, 19, info.RemainingDownloads)
}

func TestClient_Login_Failure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Errors: []string{"Unauthorized"}, Status: http.StatusUnauthorized})
	})

	resp, err := client.Login(context.Background(), "testuser", "wrongpass")
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, coreErrors.ErrUnauthorized)

	var apiErr *ErrorResponse
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, []string{"Unauthorized"}, apiErr.Errors)
	assert.False(t, client.IsLoggedIn())
}

func TestClient_GetUserInfo_NotLoggedIn(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s", r.URL.Path)
	})
	_, err := client.GetUserInfo(context.Background())
	assert.ErrorIs(t, err, coreErrors.ErrNotLoggedIn)
}

func TestClient_Logout(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		expectErr bool
	}{
		{"Success", http.StatusOK, false},
		{"Expired token still logs out", http.StatusUnauthorized, false},
		{"Server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logoutCalls := 0
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/v1/login":
					writeJSON(w, http.StatusOK, map[string]interface{}{"token": "tok"})
				case "/api/v1/logout":
					logoutCalls++
					assert.Equal(t, http.MethodDelete, r.Method)
					assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
					writeJSON(w, tt.status, map[string]interface{}{"message": "bye", "status": tt.status})
				}
			})

			_, err := client.Login(context.Background(), "u", "p")
			require.NoError(t, err)

			err = client.Logout(context.Background())
			if tt.expectErr {
				assert.ErrorIs(t, err, coreErrors.ErrServiceUnavailable)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, logoutCalls)
			assert.False(t, client.IsLoggedIn())

			// Second logout is a local no-op.
			assert.NoError(t, client.Logout(context.Background()))
			assert.Equal(t, 1, logoutCalls)
		})
	}
}

func TestClient_SearchSubtitles(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/subtitles", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "The Show", q.Get("query"))
		assert.Equal(t, "2", q.Get("season_number"))
		assert.Equal(t, "5", q.Get("episode_number"))
		assert.Equal(t, "el,en", q.Get("languages"))
		assert.False(t, q.Has("imdb_id"))
		assert.False(t, q.Has("moviehash"))

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_count": 1,
			"total_pages": 1,
			"page":        1,
			"data": []map[string]interface{}{{
				"id":   "42",
				"type": "subtitle",
				"attributes": map[string]interface{}{
					"language": "en",
					"release":  "The.Show.S02E05.720p",
					"files":    []map[string]interface{}{{"file_id": 777, "file_name": "The.Show.S02E05.srt"}},
				},
			}},
		})
	})

	query, season, episode, langs := "The Show", 2, 5, "el,en"
	resp, err := client.SearchSubtitles(context.Background(), SearchSubtitlesParams{
		Query:         &query,
		SeasonNumber:  &season,
		EpisodeNumber: &episode,
		Languages:     &langs,
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "en", resp.Data[0].Attributes.Language)
	assert.Equal(t, 777, resp.Data[0].Attributes.Files[0].FileID)
}

func TestClient_SearchSubtitles_RateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	_, err := client.SearchSubtitles(context.Background(), SearchSubtitlesParams{})
	require.Error(t, err)
	assert.ErrorIs(t, err, coreErrors.ErrRateLimited)
	assert.Contains(t, err.Error(), "slow down")
}

func TestClient_RequestDownload(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/download", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(777), body["file_id"])
		assert.Equal(t, "srt", body["sub_format"])

		writeJSON(w, http.StatusOK, DownloadResponse{Link: "https://dl.example/file.srt", FileName: "file.srt", Remaining: 4})
	})

	resp, err := client.RequestDownload(context.Background(), DownloadRequest{FileID: 777})
	require.NoError(t, err)
	assert.Equal(t, "https://dl.example/file.srt", resp.Link)
	assert.Equal(t, 4, resp.Remaining)
}

func TestClient_RequestDownload_QuotaExceeded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotAcceptable, map[string]interface{}{"message": "You have downloaded your allowed 5 subtitles for 24h"})
	})

	_, err := client.RequestDownload(context.Background(), DownloadRequest{FileID: 1})
	assert.ErrorIs(t, err, coreErrors.ErrForbidden)
	assert.Contains(t, err.Error(), "allowed 5 subtitles")
}

func TestClient_FetchFile(t *testing.T) {
	const srtBody = "1\n00:00:01,000 --> 00:00:02,000\nHi\n"
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(srtBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Api-Key"))
		switch r.URL.Path {
		case "/plain.srt":
			_, _ = w.Write([]byte(srtBody))
		case "/packed.srt.gz":
			_, _ = w.Write(gz.Bytes())
		default:
			http.NotFound(w, r)
		}
	})

	for _, path := range []string{"/plain.srt", "/packed.srt.gz"} {
		body, err := client.FetchFile(context.Background(), server.URL+path)
		require.NoError(t, err, path)
		assert.Equal(t, srtBody, string(body), path)
	}

	_, err = client.FetchFile(context.Background(), server.URL+"/missing.srt")
	assert.ErrorIs(t, err, coreErrors.ErrNotFound)
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"vip-api.opensubtitles.com", "https://vip-api.opensubtitles.com/api/v1", false},
		{"https://api.opensubtitles.com", "https://api.opensubtitles.com/api/v1", false},
		{"http://127.0.0.1:8080/api/v1/", "http://127.0.0.1:8080/api/v1", false},
		{"https://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestClient_Resume(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/infos/user", r.URL.Path)
		assert.Equal(t, "Bearer saved-token", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{"username": "saved"}})
	})

	assert.ErrorIs(t, client.Resume("saved", "", ""), coreErrors.ErrNotLoggedIn)
	assert.False(t, client.IsLoggedIn())

	require.NoError(t, client.Resume("saved", "saved-token", server.URL))
	assert.True(t, client.IsLoggedIn())
	assert.Equal(t, "saved-token", client.Token())
	assert.Equal(t, "saved", client.Username())
	assert.Equal(t, server.URL+"/api/v1", client.BaseURL())

	info, err := client.GetUserInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "saved", info.Username)
}
