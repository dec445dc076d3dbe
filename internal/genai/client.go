// Package genai talks to the hosted generative-language model that writes
// recommendations, weekly summaries, coach replies and spoken audio.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"healthguard/internal/audio"
)

var (
	// ErrMissingAPIKey is returned by NewClient when no key is configured.
	ErrMissingAPIKey = errors.New("genai: api key is missing")
	// ErrEmptyResponse means the model answered without usable content.
	ErrEmptyResponse = errors.New("genai: empty response")
)

// Generator is the model collaborator the Assistant depends on.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config holds connection settings for the generative-language API.
type Config struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	SpeechModel string        `mapstructure:"speech_model"`
	Voice       string        `mapstructure:"voice"`
	Language    string        `mapstructure:"language"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
}

// Client calls models/{model}:generateContent over REST.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient builds a Client. Retries cover transport errors, 429 and 5xx.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("x-goog-api-key", cfg.APIKey).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:   client,
		cfg:    cfg,
		logger: logger.With().Str("component", "genai").Logger(),
	}, nil
}

// Generate returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	resp, err := c.call(ctx, c.cfg.Model, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Synthesize asks the speech model to read text aloud and returns raw
// 16-bit PCM at 24 kHz mono.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	speech := &speechConfig{}
	speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName = c.cfg.Voice
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       speech,
		},
	}

	resp, err := c.call(ctx, c.cfg.SpeechModel, req)
	if err != nil {
		return nil, err
	}
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return audio.DecodePCM(p.InlineData.Data)
			}
		}
	}
	return nil, ErrEmptyResponse
}

func (c *Client) call(ctx context.Context, model string, body generateRequest) (*generateResponse, error) {
	var (
		result generateResponse
		failed apiError
	)
	started := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", model).
		SetBody(body).
		SetResult(&result).
		SetError(&failed).
		Post("/models/{model}:generateContent")
	if err != nil {
		return nil, fmt.Errorf("genai: call %s: %w", model, err)
	}
	if resp.IsError() {
		msg := failed.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("genai: %s returned %d: %s", model, resp.StatusCode(), msg)
	}

	c.logger.Debug().
		Str("model", model).
		Dur("latency", time.Since(started)).
		Int("candidates", len(result.Candidates)).
		Msg("model call completed")
	return &result, nil
}
