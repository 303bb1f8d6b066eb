package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MirrorClient queries the stream-metadata endpoint of an independently
// operated mirror API instance.
type MirrorClient struct {
	client *http.Client
}

// NewMirrorClient creates a mirror client with the given per-call timeout.
func NewMirrorClient(timeout time.Duration) *MirrorClient {
	return &MirrorClient{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// kbps tolerates the bitrate shapes mirrors actually emit: a JSON number or
// a numeric string, sometimes in bits per second instead of kbps. Anything
// unparseable decodes to 0.
type kbps int

func (k *kbps) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*k = 0
		return nil
	}
	// Values this large are bits per second.
	if n > 8000 {
		n /= 1000
	}
	*k = kbps(n)
	return nil
}

type mirrorStream struct {
	URL         string `json:"url"`
	Bitrate     kbps   `json:"bitrate"`
	BitrateKbps kbps   `json:"bitrateKbps"`
}

type mirrorResponse struct {
	Title        string         `json:"title"`
	Uploader     string         `json:"uploader"`
	Duration     int            `json:"duration"`
	AudioStreams []mirrorStream `json:"audioStreams"`
}

// Extract fetches audio stream candidates for identifier from the mirror at
// baseURL. Non-200 responses, timeouts and malformed JSON are all reported
// as an ordinary error so the caller can move on to the next mirror.
func (c *MirrorClient) Extract(ctx context.Context, identifier, baseURL string) (*Extraction, error) {
	reqURL := strings.TrimRight(baseURL, "/") + "/streams/" + identifier
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mirror %s returned status %d", baseURL, resp.StatusCode)
	}

	var payload mirrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode mirror response: %w", err)
	}
	if len(payload.AudioStreams) == 0 {
		return nil, fmt.Errorf("mirror %s returned no audio streams", baseURL)
	}

	candidates := make([]Candidate, 0, len(payload.AudioStreams))
	for _, s := range payload.AudioStreams {
		bitrate := int(s.Bitrate)
		if bitrate == 0 {
			bitrate = int(s.BitrateKbps)
		}
		candidates = append(candidates, Candidate{
			URL:         s.URL,
			BitrateKbps: bitrate,
			// Everything under audioStreams is audio-only by contract.
			AudioOnly: true,
		})
	}

	return &Extraction{
		Candidates:  candidates,
		Title:       payload.Title,
		Uploader:    payload.Uploader,
		DurationSec: payload.Duration,
	}, nil
}
