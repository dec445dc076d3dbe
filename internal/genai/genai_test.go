package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"healthguard/internal/report"
	"healthguard/internal/scoring"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Retries: 2, Timeout: 5 * time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "  "}, zerolog.Nop()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("want ErrMissingAPIKey, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header missing")
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "be brief" {
			t.Errorf("system instruction not sent: %+v", req.SystemInstruction)
		}
		if req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("prompt not sent: %+v", req.Contents)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hallo "},{"text":"Welt"}]}}]}`))
	})

	got, err := c.Generate(context.Background(), "hello", "be brief")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Hallo Welt" {
		t.Fatalf("Generate = %q", got)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	})

	got, err := c.Generate(context.Background(), "p", "")
	if err != nil || got != "ok" {
		t.Fatalf("Generate = %q, %v", got, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestGenerateErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "empty") {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.Generate(context.Background(), "p", "")
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("want api error, got %v", err)
	}

	c.cfg.Model = "empty"
	if _, err := c.Generate(context.Background(), "p", ""); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("want ErrEmptyResponse, got %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "gemini-2.5-flash-preview-tts:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseModalities[0] != "AUDIO" {
			t.Errorf("audio modality missing")
		} else if req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
			t.Errorf("voice not sent")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/L16;rate=24000", "data": base64.StdEncoding.EncodeToString(pcm)}},
			}}}},
		})
	})

	got, err := c.Synthesize(context.Background(), "Hallo")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != string(pcm) {
		t.Fatalf("pcm = %v, want %v", got, pcm)
	}
}

type fakeGenerator struct {
	prompt, system string
	text           string
	err            error
	spoken         string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, system string) (string, error) {
	f.prompt, f.system = prompt, system
	return f.text, f.err
}

func (f *fakeGenerator) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.spoken = text
	return []byte{0, 0}, f.err
}

func TestAssistantPrompts(t *testing.T) {
	gen := &fakeGenerator{text: "1. Mehr schlafen"}
	a := NewAssistant(gen, "", "", zerolog.Nop())

	if got := a.Recommendations(context.Background(), "Status: Low risk."); got != "1. Mehr schlafen" {
		t.Fatalf("Recommendations = %q", got)
	}
	if gen.prompt != "ANALYSIS INPUT: \"Status: Low risk.\". \n\nGENERATE RECOMMENDATIONS." {
		t.Fatalf("prompt = %q", gen.prompt)
	}
	if !strings.Contains(gen.system, "Language: German.") {
		t.Fatalf("system = %q", gen.system)
	}

	a.WeeklySummary(context.Background(), report.Weekly{Score: 75, Steps: 8432, SleepHours: decimal.RequireFromString("7.5")})
	want := "WEEKLY DATA: Health Score (Avg): 75/100, Steps (Avg): 8.432, Sleep (Avg): 7.5 hours. \n\nGENERATE WEEKLY SUMMARY."
	if gen.prompt != want {
		t.Fatalf("summary prompt = %q", gen.prompt)
	}
}

func TestAssistantUnavailable(t *testing.T) {
	a := NewAssistant(&fakeGenerator{err: errors.New("boom")}, "English", "en", zerolog.Nop())
	if got := a.Recommendations(context.Background(), "x"); !IsUnavailable(got) {
		t.Fatalf("want sentinel, got %q", got)
	}

	none := NewAssistant(nil, "", "", zerolog.Nop())
	if none.Available() {
		t.Fatal("nil generator should be unavailable")
	}
	if got := none.WeeklySummary(context.Background(), report.Weekly{}); got != UnavailableText {
		t.Fatalf("want sentinel, got %q", got)
	}
	if _, err := none.Speech(context.Background(), "x"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("want ErrMissingAPIKey, got %v", err)
	}
}

func TestAssistantCoach(t *testing.T) {
	gen := &fakeGenerator{text: "Gehen Sie spazieren."}
	a := NewAssistant(gen, "", "", zerolog.Nop())
	conv := NewConversation(0)

	snap := scoring.Snapshot{Metrics: scoring.Metrics{HeartRate: 68, StepCount: 8432, SleepHours: 7.5, StressLevel: 35}, Score: 75}
	reply := a.Coach(context.Background(), conv, "Wie schlafe ich besser?", snap)
	if reply.Role != RoleModel || reply.Text != "Gehen Sie spazieren." {
		t.Fatalf("reply = %+v", reply)
	}

	wantPrompt := "CURRENT HEALTH DATA:\n- Heart Rate: 68 BPM\n- Steps Today: 8432\n- Sleep Last Night: 7.5 hours\n- Stress Level: 35/100\n- Health Score: 75/100" +
		"\n\nCONVERSATION HISTORY:\nMODEL: " + Greeting + "\nUSER: Wie schlafe ich besser?" +
		"\n\nUSER: Wie schlafe ich besser?\n\nMODEL:"
	if gen.prompt != wantPrompt {
		t.Fatalf("coach prompt =\n%s\nwant\n%s", gen.prompt, wantPrompt)
	}

	msgs := conv.Messages()
	if len(msgs) != 3 || msgs[2] != reply {
		t.Fatalf("history = %+v", msgs)
	}

	if _, err := a.Speech(context.Background(), "Hallo"); err != nil {
		t.Fatalf("Speech: %v", err)
	}
	if gen.spoken != "Sage auf Deutsch mit einer klaren, professionellen Stimme: Hallo" {
		t.Fatalf("spoken = %q", gen.spoken)
	}
}

func TestConversationBounded(t *testing.T) {
	conv := NewConversation(4)
	for i := 0; i < 5; i++ {
		conv.append(Message{Role: RoleUser, Text: strings.Repeat("x", i+1)})
	}
	msgs := conv.Messages()
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[0].Text != Greeting || msgs[1].Text != "xxx" || msgs[3].Text != "xxxxx" {
		t.Fatalf("unexpected history %+v", msgs)
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(time.Minute, 10)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	conv := s.Start()
	got, err := s.Get(conv.ID.String())
	if err != nil || got != conv {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if _, err := s.Get("not-a-uuid"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(conv.ID.String()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestSessionsExpireAfterChatTurns(t *testing.T) {
	s := NewSessions(time.Minute, 10)
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	conv := s.Start()
	now = now.Add(30 * time.Second)
	conv.append(Message{Role: RoleUser, Text: "Wie schlafe ich besser?"})

	now = now.Add(45 * time.Second)
	if _, err := s.Get(conv.ID.String()); err != nil {
		t.Fatalf("session used 45s ago should be live: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(conv.ID.String()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session idle past its ttl should be gone, got %v", err)
	}
}
