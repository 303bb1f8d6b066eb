package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Molvine192/projectM-music/internal/core"
	"github.com/Molvine192/projectM-music/internal/extract"
)

type fakeBackend struct {
	calls   []string
	results map[string]*extract.Extraction
	errs    map[string]error
}

func (f *fakeBackend) Extract(_ context.Context, _ string, profile extract.ClientProfile) (*extract.Extraction, error) {
	f.calls = append(f.calls, profile.Name)
	if err, ok := f.errs[profile.Name]; ok {
		return nil, err
	}
	if res, ok := f.results[profile.Name]; ok {
		return res, nil
	}
	return nil, errors.New("profile not configured in fake")
}

type fakeMirror struct {
	calls   []string
	results map[string]*extract.Extraction
}

func (f *fakeMirror) Extract(_ context.Context, _ string, baseURL string) (*extract.Extraction, error) {
	f.calls = append(f.calls, baseURL)
	if res, ok := f.results[baseURL]; ok {
		return res, nil
	}
	return nil, errors.New("mirror down")
}

type fakeEncoder struct {
	calls []string
	err   error
}

func (f *fakeEncoder) ToMP3(_ context.Context, sourceURL, _ string) error {
	f.calls = append(f.calls, sourceURL)
	return f.err
}

func testConfig(cookie string, mirrors ...string) *core.ResolverConfig {
	return &core.ResolverConfig{
		CookieBlob:       cookie,
		ProfileOrderAuth: []string{"web", "ios"},
		ProfileOrderAnon: []string{"ios", "android"},
		Mirrors:          mirrors,
		RequestTimeout:   time.Second,
	}
}

func audioExtraction(url string, kbps int) *extract.Extraction {
	return &extract.Extraction{
		Candidates: []extract.Candidate{
			{URL: url, BitrateKbps: kbps, AudioOnly: true},
		},
		Title: "some title",
	}
}

func TestCascade_FirstProfileWins(t *testing.T) {
	backend := &fakeBackend{results: map[string]*extract.Extraction{
		"ios": {
			Candidates: []extract.Candidate{
				{URL: "http://cdn/audio128", BitrateKbps: 128, AudioOnly: true},
				{URL: "http://cdn/video720", BitrateKbps: 2500, AudioOnly: false},
			},
			Title:    "Never Gonna Give You Up",
			Uploader: "Rick Astley",
		},
	}}
	mirror := &fakeMirror{}
	encoder := &fakeEncoder{}

	c := NewCascade(testConfig("", "http://mirror-a"), backend, mirror, encoder, nil, zap.NewNop())
	result, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	// Anonymous order starts at ios; it succeeds, so android and all
	// mirrors must never be invoked.
	if len(backend.calls) != 1 || backend.calls[0] != "ios" {
		t.Errorf("backend calls = %v, want exactly [ios]", backend.calls)
	}
	if len(mirror.calls) != 0 {
		t.Errorf("mirror calls = %v, want none", mirror.calls)
	}
	if len(encoder.calls) != 1 || encoder.calls[0] != "http://cdn/audio128" {
		t.Errorf("encoder calls = %v, want the 128 kbps audio URL", encoder.calls)
	}
	if result.Metadata.Strategy != "profile:ios" {
		t.Errorf("result strategy = %q, want profile:ios", result.Metadata.Strategy)
	}
	if result.Metadata.Title != "Never Gonna Give You Up" {
		t.Errorf("result title = %q", result.Metadata.Title)
	}
}

func TestCascade_ProfileOrderDependsOnCredentials(t *testing.T) {
	tests := []struct {
		name      string
		cookie    string
		wantOrder []string
	}{
		{name: "Anonymous order", cookie: "", wantOrder: []string{"ios", "android"}},
		{name: "Authenticated order", cookie: "SID=abc", wantOrder: []string{"web", "ios"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{errs: map[string]error{
				"web": errors.New("blocked"), "ios": errors.New("blocked"), "android": errors.New("blocked"),
			}}
			c := NewCascade(testConfig(tt.cookie), backend, &fakeMirror{}, &fakeEncoder{}, nil, zap.NewNop())

			_, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
			if !errors.Is(err, core.ErrAllStrategiesExhausted) {
				t.Fatalf("Resolve() error = %v, want ErrAllStrategiesExhausted", err)
			}
			if len(backend.calls) != len(tt.wantOrder) {
				t.Fatalf("backend calls = %v, want %v", backend.calls, tt.wantOrder)
			}
			for i, name := range tt.wantOrder {
				if backend.calls[i] != name {
					t.Errorf("backend call %d = %q, want %q", i, backend.calls[i], name)
				}
			}
		})
	}
}

func TestCascade_FallsBackToMirrorsInOrder(t *testing.T) {
	backend := &fakeBackend{errs: map[string]error{
		"ios": errors.New("blocked"), "android": errors.New("blocked"),
	}}
	mirror := &fakeMirror{results: map[string]*extract.Extraction{
		"http://mirror-b": audioExtraction("http://mirror-b/stream", 160),
	}}
	encoder := &fakeEncoder{}

	c := NewCascade(testConfig("", "http://mirror-a", "http://mirror-b", "http://mirror-c"),
		backend, mirror, encoder, nil, zap.NewNop())

	result, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	if len(mirror.calls) != 2 || mirror.calls[0] != "http://mirror-a" || mirror.calls[1] != "http://mirror-b" {
		t.Errorf("mirror calls = %v, want [http://mirror-a http://mirror-b]", mirror.calls)
	}
	if result.Metadata.Strategy != "mirror:http://mirror-b" {
		t.Errorf("result strategy = %q", result.Metadata.Strategy)
	}
}

func TestCascade_AllStrategiesExhausted(t *testing.T) {
	backend := &fakeBackend{errs: map[string]error{
		"ios": errors.New("down"), "android": errors.New("down"),
	}}
	mirror := &fakeMirror{}
	encoder := &fakeEncoder{}

	c := NewCascade(testConfig("", "http://mirror-a"), backend, mirror, encoder, nil, zap.NewNop())
	_, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
	if !errors.Is(err, core.ErrAllStrategiesExhausted) {
		t.Fatalf("Resolve() error = %v, want ErrAllStrategiesExhausted", err)
	}
	if len(encoder.calls) != 0 {
		t.Errorf("encoder invoked %d times despite exhaustion", len(encoder.calls))
	}
}

func TestCascade_VideoOnlyProfileContinues(t *testing.T) {
	backend := &fakeBackend{
		results: map[string]*extract.Extraction{
			"ios": {Candidates: []extract.Candidate{
				{URL: "http://cdn/video", BitrateKbps: 2500, AudioOnly: false},
			}},
			"android": audioExtraction("http://cdn/audio", 128),
		},
	}
	encoder := &fakeEncoder{}

	c := NewCascade(testConfig(""), backend, &fakeMirror{}, encoder, nil, zap.NewNop())
	result, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if result.Metadata.Strategy != "profile:android" {
		t.Errorf("result strategy = %q, want profile:android", result.Metadata.Strategy)
	}
}

func TestCascade_TranscodeFailureIsTerminal(t *testing.T) {
	backend := &fakeBackend{results: map[string]*extract.Extraction{
		"ios": audioExtraction("http://cdn/audio", 128),
	}}
	mirror := &fakeMirror{}
	encoder := &fakeEncoder{err: core.ErrTranscodeFailed}

	c := NewCascade(testConfig("", "http://mirror-a"), backend, mirror, encoder, nil, zap.NewNop())
	_, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3")
	if !errors.Is(err, core.ErrTranscodeFailed) {
		t.Fatalf("Resolve() error = %v, want ErrTranscodeFailed", err)
	}

	// The cascade stops at the transcode failure: no further profiles or
	// mirrors are tried.
	if len(backend.calls) != 1 {
		t.Errorf("backend calls = %v, want a single call", backend.calls)
	}
	if len(mirror.calls) != 0 {
		t.Errorf("mirror calls = %v, want none", mirror.calls)
	}
}

func TestCascade_UnknownProfileNamesIgnored(t *testing.T) {
	cfg := testConfig("")
	cfg.ProfileOrderAnon = []string{"does-not-exist", "ios"}

	backend := &fakeBackend{results: map[string]*extract.Extraction{
		"ios": audioExtraction("http://cdn/audio", 128),
	}}

	c := NewCascade(cfg, backend, &fakeMirror{}, &fakeEncoder{}, nil, zap.NewNop())
	if _, err := c.Resolve(context.Background(), "dQw4w9WgXcQ", "/tmp/out.mp3"); err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if len(backend.calls) != 1 || backend.calls[0] != "ios" {
		t.Errorf("backend calls = %v, want exactly [ios]", backend.calls)
	}
}
