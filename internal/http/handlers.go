package http

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/pkg/mediaid"
)

type convertResponse struct {
	OK    bool   `json:"ok"`
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Link  string `json:"link,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	identifier, err := mediaid.Normalize(s.mediaRef(r))
	if err != nil {
		s.finishConvert(w, start, http.StatusBadRequest, convertResponse{OK: false, Error: "invalid_identifier"})
		return
	}

	entry, err := s.source.GetOrResolve(r.Context(), identifier)
	if err != nil {
		kind := core.ErrorKind(err)
		s.logger.Warn("Resolution failed",
			zap.String("identifier", identifier),
			zap.String("kind", kind),
			zap.Error(err))
		// Routine upstream failures are a structured indicator, not a
		// protocol-level error.
		s.finishConvert(w, start, http.StatusOK, convertResponse{OK: false, ID: identifier, Error: kind})
		return
	}

	s.recordPlay(r, identifier, entry.Metadata.Title, entry.CacheHit)

	s.finishConvert(w, start, http.StatusOK, convertResponse{
		OK:    true,
		ID:    identifier,
		Title: entry.Metadata.Title,
		Link:  "/media/" + identifier + ".mp3",
	})
}

// mediaRef pulls the requested identifier or URL out of whichever shape the
// client sent: query string, JSON body, form body, or raw body.
func (s *Server) mediaRef(r *http.Request) string {
	if v := r.URL.Query().Get("url"); v != "" {
		return v
	}
	if v := r.URL.Query().Get("id"); v != "" {
		return v
	}
	if r.Method != http.MethodPost {
		return ""
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var body struct {
			URL string `json:"url"`
			ID  string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return ""
		}
		if body.URL != "" {
			return body.URL
		}
		return body.ID
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return ""
		}
		if v := r.PostForm.Get("url"); v != "" {
			return v
		}
		return r.PostForm.Get("id")
	default:
		raw, err := io.ReadAll(io.LimitReader(r.Body, 4096))
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(raw))
	}
}

func (s *Server) finishConvert(w http.ResponseWriter, start time.Time, status int, resp convertResponse) {
	outcome := "ok"
	if !resp.OK {
		outcome = resp.Error
	}
	s.metrics.ResolvesTotal.WithLabelValues(outcome).Inc()
	s.metrics.ResolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.writeJSON(w, status, resp)
}

func (s *Server) recordPlay(r *http.Request, identifier, title string, cacheHit bool) {
	rec := core.PlayRecord{
		Identifier: identifier,
		Title:      title,
		CacheHit:   cacheHit,
		FirstPlay:  s.firstPlays.Mark(identifier),
		At:         time.Now(),
	}
	if err := s.history.RecordPlay(r.Context(), rec); err != nil {
		s.logger.Warn("Failed to record play", zap.String("identifier", identifier), zap.Error(err))
	}
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	name := path.Base(r.URL.Path)
	if !strings.HasSuffix(name, ".mp3") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	file, err := s.source.Open(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	http.ServeContent(w, r, name, info.ModTime(), file)
}

type searchResultItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Uploader    string `json:"uploader"`
	DurationSec int    `json:"duration"`
	Link        string `json:"link"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_query"})
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > 20 {
				n = 20
			}
			limit = n
		}
	}

	results, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream_error"})
		return
	}

	items := make([]searchResultItem, 0, len(results))
	for _, res := range results {
		items = append(items, searchResultItem{
			ID:          res.ID,
			Title:       res.Title,
			Uploader:    res.Uploader,
			DurationSec: res.DurationSec,
			Link:        "/convert?id=" + res.ID,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": items,
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > 100 {
				n = 100
			}
			limit = n
		}
	}
	plays, err := s.history.RecentPlays(r.Context(), limit)
	if err != nil {
		s.logger.Warn("Failed to list recent plays", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	if plays == nil {
		plays = []core.PlayRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"plays": plays})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if err := s.history.RecordPing(r.Context(), r.RemoteAddr, time.Now()); err != nil {
		s.logger.Warn("Failed to record ping", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "projectm-music"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	plays, err := s.history.PlayCount(r.Context())
	if err != nil {
		s.logger.Warn("Failed to count plays", zap.Error(err))
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":       "projectm-music",
		"uptime":        time.Since(s.started).Truncate(time.Second).String(),
		"cache_entries": s.source.Len(),
		"plays":         plays,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "projectm-music"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>ProjectM Music</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; }
        .endpoint { margin: 10px 0; }
        .endpoint a { text-decoration: none; color: #0066cc; }
    </style>
</head>
<body>
    <h1>🎵 ProjectM Music</h1>
    <p>Media to MP3 converter service.</p>

    <h2>Endpoints</h2>
    <div class="endpoint">🔍 <code>/search?q=...</code> - Search the backend catalog</div>
    <div class="endpoint">🎧 <code>/convert?url=...</code> - Resolve and transcode</div>
    <div class="endpoint">📦 <code>/media/&lt;id&gt;.mp3</code> - Download artifact</div>
    <div class="endpoint">📊 <a href="/metrics">Metrics</a> - Prometheus metrics</div>
    <div class="endpoint">📈 <a href="/status">Status</a> - Service status</div>
    <div class="endpoint">💚 <a href="/healthz">Health</a> - Health check</div>
</body>
</html>`)); err != nil {
		s.logger.Debug("Failed to write index response", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("Failed to write JSON response", zap.Error(err))
	}
}
