package core

import (
	"time"
)

type Config struct {
	Resolver ResolverConfig
	Cache    CacheConfig
	History  HistoryConfig
	Server   ServerConfig
	Log      LogConfig
}

type ResolverConfig struct {
	// BackendURL is the base URL of the video-info backend queried by the
	// client-profile strategies.
	BackendURL string
	// CookieBlob is optional credential material attached to every
	// client-profile request. Its presence switches the profile trial order.
	CookieBlob string
	// ProfileOrderAuth and ProfileOrderAnon are fixed trial orders over the
	// named client profiles; one of them is selected at startup depending on
	// whether a cookie blob is configured.
	ProfileOrderAuth []string
	ProfileOrderAnon []string
	// Mirrors are base URLs of independently operated mirror APIs, tried in
	// order after every profile has failed.
	Mirrors []string

	RequestTimeout    time.Duration
	TranscodeTimeout  time.Duration
	OutputBitrateKbps int
	FFmpegPath        string
}

type CacheConfig struct {
	Dir              string
	TTL              time.Duration
	EvictionInterval time.Duration
	MetadataEntries  int
}

type HistoryConfig struct {
	Path                   string
	FirstPlayMaxTracked    int
	FirstPlayFalsePositive float64
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			BackendURL:        "https://www.youtube.com",
			ProfileOrderAuth:  []string{"web", "web_safari", "ios", "android"},
			ProfileOrderAnon:  []string{"ios", "android", "web", "tv_embedded"},
			Mirrors:           []string{},
			RequestTimeout:    20 * time.Second,
			TranscodeTimeout:  600 * time.Second,
			OutputBitrateKbps: 192,
			FFmpegPath:        "ffmpeg",
		},
		Cache: CacheConfig{
			Dir:              "./media",
			TTL:              6 * time.Hour,
			EvictionInterval: 15 * time.Minute,
			MetadataEntries:  1024,
		},
		History: HistoryConfig{
			Path:                   "./history.db",
			FirstPlayMaxTracked:    10000,
			FirstPlayFalsePositive: 0.001,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			ReadTimeout: 10 * time.Second,
			// A convert request can legitimately block for a full cascade
			// plus transcode, so the write timeout must exceed both.
			WriteTimeout: 15 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ProfileOrder returns the profile trial order matching the configured
// credential state. Order selection is a fixed lookup, never computed per
// request.
func (rc *ResolverConfig) ProfileOrder() []string {
	if rc.CookieBlob != "" {
		return rc.ProfileOrderAuth
	}
	return rc.ProfileOrderAnon
}
