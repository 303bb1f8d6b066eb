package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// maxSearchResults bounds how many items one search call returns.
const maxSearchResults = 20

// SearchResult is one video hit from the backend's search endpoint.
type SearchResult struct {
	ID          string
	Title       string
	Uploader    string
	DurationSec int
}

type searchRequest struct {
	Context playerContext `json:"context"`
	Query   string        `json:"query"`
}

type runsText struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (r runsText) first() string {
	if len(r.Runs) == 0 {
		return ""
	}
	return r.Runs[0].Text
}

type searchItem struct {
	VideoRenderer struct {
		VideoID    string   `json:"videoId"`
		Title      runsText `json:"title"`
		OwnerText  runsText `json:"ownerText"`
		LengthText struct {
			SimpleText string `json:"simpleText"`
		} `json:"lengthText"`
	} `json:"videoRenderer"`
}

type searchResponse struct {
	Contents struct {
		TwoColumnSearchResultsRenderer struct {
			PrimaryContents struct {
				SectionListRenderer struct {
					Contents []struct {
						ItemSectionRenderer struct {
							Contents []searchItem `json:"contents"`
						} `json:"itemSectionRenderer"`
					} `json:"contents"`
				} `json:"sectionListRenderer"`
			} `json:"primaryContents"`
		} `json:"twoColumnSearchResultsRenderer"`
	} `json:"contents"`
}

// Search queries the backend's search endpoint and returns up to limit video
// hits. Non-video entries in the result sections (channels, shelves, ads)
// carry no videoRenderer and are skipped. An empty result list is a valid
// answer, not an error.
func (c *InnertubeClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	// Search is served to the plain web client; profile rotation only
	// matters for the player endpoint.
	profile := DefaultProfiles()["web"]
	payload := searchRequest{
		Context: playerContext{
			Client: playerClient{
				ClientName:    profile.ClientName,
				ClientVersion: profile.ClientVersion,
				HL:            "en",
			},
		},
		Query: query,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	reqURL := c.baseURL + "/youtubei/v1/search?prettyPrint=false"
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
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var search searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, limit)
	sections := search.Contents.TwoColumnSearchResultsRenderer.PrimaryContents.SectionListRenderer.Contents
	for _, section := range sections {
		for _, item := range section.ItemSectionRenderer.Contents {
			v := item.VideoRenderer
			if v.VideoID == "" {
				continue
			}
			results = append(results, SearchResult{
				ID:          v.VideoID,
				Title:       v.Title.first(),
				Uploader:    v.OwnerText.first(),
				DurationSec: parseClockDuration(v.LengthText.SimpleText),
			})
			if len(results) == limit {
				return results, nil
			}
		}
	}
	return results, nil
}

// parseClockDuration converts a "3:33" or "1:02:33" length label to seconds.
// Anything unparseable yields 0.
func parseClockDuration(s string) int {
	if s == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
