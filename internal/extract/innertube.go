package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ClientProfile is one named device/client impersonation accepted by the
// video-info backend. Different profiles expose different format sets and
// fail independently, which is why the resolver tries several.
type ClientProfile struct {
	Name          string
	ClientName    string
	ClientVersion string
	UserAgent     string
	DeviceModel   string
	AndroidSDK    int
}

// DefaultProfiles returns the known client profiles keyed by name.
func DefaultProfiles() map[string]ClientProfile {
	return map[string]ClientProfile{
		"web": {
			Name:          "web",
			ClientName:    "WEB",
			ClientVersion: "2.20240726.00.00",
			UserAgent:     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
		},
		"web_safari": {
			Name:          "web_safari",
			ClientName:    "WEB",
			ClientVersion: "2.20240726.00.00",
			UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
		},
		"ios": {
			Name:          "ios",
			ClientName:    "IOS",
			ClientVersion: "19.29.1",
			UserAgent:     "com.google.ios.youtube/19.29.1 (iPhone16,2; U; CPU iOS 17_5_1 like Mac OS X;)",
			DeviceModel:   "iPhone16,2",
		},
		"android": {
			Name:          "android",
			ClientName:    "ANDROID",
			ClientVersion: "19.29.37",
			UserAgent:     "com.google.android.youtube/19.29.37 (Linux; U; Android 11) gzip",
			AndroidSDK:    30,
		},
		"tv_embedded": {
			Name:          "tv_embedded",
			ClientName:    "TVHTML5_SIMPLY_EMBEDDED_PLAYER",
			ClientVersion: "2.0",
			UserAgent:     "Mozilla/5.0 (PlayStation; PlayStation 4/12.00) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0 Safari/605.1.15",
		},
	}
}

// InnertubeClient queries the video-info backend's player endpoint while
// impersonating a client profile.
type InnertubeClient struct {
	baseURL string
	cookie  string
	client  *http.Client
}

// NewInnertubeClient creates a client for the backend at baseURL. cookie is
// optional credential material attached to every request when non-empty.
func NewInnertubeClient(baseURL, cookie string, timeout time.Duration) *InnertubeClient {
	return &InnertubeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		cookie:  cookie,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type playerRequest struct {
	VideoID        string        `json:"videoId"`
	Context        playerContext `json:"context"`
	ContentCheckOK bool          `json:"contentCheckOk"`
	RacyCheckOK    bool          `json:"racyCheckOk"`
}

type playerContext struct {
	Client playerClient `json:"client"`
}

type playerClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	AndroidSDKVersion int    `json:"androidSdkVersion,omitempty"`
	HL                string `json:"hl"`
}

type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
	StreamingData struct {
		AdaptiveFormats []adaptiveFormat `json:"adaptiveFormats"`
	} `json:"streamingData"`
}

type adaptiveFormat struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Bitrate  int    `json:"bitrate"`
}

// Extract queries the player endpoint as the given profile and returns the
// normalized candidate list. Any failure (network, non-200, blocked
// playability, no formats) is an ordinary error: the caller treats it as
// "this profile failed" and moves on.
func (c *InnertubeClient) Extract(ctx context.Context, identifier string, profile ClientProfile) (*Extraction, error) {
	payload := playerRequest{
		VideoID: identifier,
		Context: playerContext{
			Client: playerClient{
				ClientName:        profile.ClientName,
				ClientVersion:     profile.ClientVersion,
				DeviceModel:       profile.DeviceModel,
				AndroidSDKVersion: profile.AndroidSDK,
				HL:                "en",
			},
		},
		ContentCheckOK: true,
		RacyCheckOK:    true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode player request: %w", err)
	}

	reqURL := c.baseURL + "/youtubei/v1/player?prettyPrint=false"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", profile.UserAgent)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("player request failed for profile %s: %w", profile.Name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("player endpoint returned status %d for profile %s", resp.StatusCode, profile.Name)
	}

	var player playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return nil, fmt.Errorf("failed to decode player response: %w", err)
	}

	if status := player.PlayabilityStatus.Status; status != "OK" {
		return nil, fmt.Errorf("profile %s blocked: %s (%s)", profile.Name, status, player.PlayabilityStatus.Reason)
	}

	candidates := make([]Candidate, 0, len(player.StreamingData.AdaptiveFormats))
	for _, f := range player.StreamingData.AdaptiveFormats {
		if f.URL == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:         f.URL,
			BitrateKbps: f.Bitrate / 1000,
			AudioOnly:   strings.HasPrefix(f.MimeType, "audio/"),
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("profile %s returned no formats", profile.Name)
	}

	duration, _ := strconv.Atoi(player.VideoDetails.LengthSeconds)

	return &Extraction{
		Candidates:  candidates,
		Title:       player.VideoDetails.Title,
		Uploader:    player.VideoDetails.Author,
		DurationSec: duration,
	}, nil
}
