package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestInnertubeClient_Extract(t *testing.T) {
	var gotCookie, gotUserAgent string
	var gotBody playerRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtubei/v1/player" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotCookie = r.Header.Get("Cookie")
		gotUserAgent = r.Header.Get("User-Agent")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"playabilityStatus": {"status": "OK"},
			"videoDetails": {"title": "Never Gonna Give You Up", "author": "Rick Astley", "lengthSeconds": "212"},
			"streamingData": {"adaptiveFormats": [
				{"url": "http://cdn/audio-low", "mimeType": "audio/webm; codecs=\"opus\"", "bitrate": 64000},
				{"url": "http://cdn/audio-high", "mimeType": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 128000},
				{"url": "http://cdn/video", "mimeType": "video/mp4; codecs=\"avc1\"", "bitrate": 2500000},
				{"url": "", "mimeType": "audio/mp4", "bitrate": 256000}
			]}
		}`))
	}))
	defer server.Close()

	client := NewInnertubeClient(server.URL, "SID=abc; HSID=def", 5*time.Second)
	profile := DefaultProfiles()["ios"]

	extraction, err := client.Extract(context.Background(), "dQw4w9WgXcQ", profile)
	if err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}

	if gotCookie != "SID=abc; HSID=def" {
		t.Errorf("Cookie header = %q, expected configured blob", gotCookie)
	}
	if gotUserAgent != profile.UserAgent {
		t.Errorf("User-Agent = %q, want profile user agent %q", gotUserAgent, profile.UserAgent)
	}
	if gotBody.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("request videoId = %q, want dQw4w9WgXcQ", gotBody.VideoID)
	}
	if gotBody.Context.Client.ClientName != "IOS" {
		t.Errorf("request clientName = %q, want IOS", gotBody.Context.Client.ClientName)
	}

	// Formats with empty URLs are dropped; the rest keep first-seen order.
	if len(extraction.Candidates) != 3 {
		t.Fatalf("Extract() returned %d candidates, want 3", len(extraction.Candidates))
	}
	if extraction.Title != "Never Gonna Give You Up" || extraction.Uploader != "Rick Astley" {
		t.Errorf("Extract() metadata = %q / %q", extraction.Title, extraction.Uploader)
	}
	if extraction.DurationSec != 212 {
		t.Errorf("Extract() duration = %d, want 212", extraction.DurationSec)
	}

	best, err := SelectBest(extraction.Candidates)
	if err != nil {
		t.Fatalf("SelectBest() unexpected error: %v", err)
	}
	if best.URL != "http://cdn/audio-high" || best.BitrateKbps != 128 {
		t.Errorf("SelectBest() = %q at %d kbps, want the 128 kbps audio URL", best.URL, best.BitrateKbps)
	}
}

func TestInnertubeClient_ExtractNoCookie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Cookie"]; ok {
			t.Error("Cookie header sent despite no configured blob")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"playabilityStatus": {"status": "OK"},
			"streamingData": {"adaptiveFormats": [{"url": "http://cdn/a", "mimeType": "audio/webm", "bitrate": 96000}]}
		}`))
	}))
	defer server.Close()

	client := NewInnertubeClient(server.URL, "", 5*time.Second)
	if _, err := client.Extract(context.Background(), "dQw4w9WgXcQ", DefaultProfiles()["web"]); err != nil {
		t.Fatalf("Extract() unexpected error: %v", err)
	}
}

func TestInnertubeClient_ExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Blocked playability",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"playabilityStatus": {"status": "LOGIN_REQUIRED", "reason": "Sign in to confirm your age"}}`))
			},
		},
		{
			name: "Non-200 status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusForbidden)
			},
		},
		{
			name: "Malformed JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			},
		},
		{
			name: "No formats",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"playabilityStatus": {"status": "OK"}, "streamingData": {"adaptiveFormats": []}}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewInnertubeClient(server.URL, "", 5*time.Second)
			if _, err := client.Extract(context.Background(), "dQw4w9WgXcQ", DefaultProfiles()["android"]); err == nil {
				t.Error("Extract() expected error, got nil")
			}
		})
	}
}
