package genai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"healthguard/internal/report"
	"healthguard/internal/scoring"
)

// UnavailableText replaces any model answer that could not be produced.
const UnavailableText = "ERROR: The AI service is currently unavailable. Please check configuration and try again later."

// IsUnavailable reports whether s is the UnavailableText sentinel.
func IsUnavailable(s string) bool {
	return s == UnavailableText
}

const (
	recommendationsSystem = "SYSTEM: You are a health data analysis model. Your function is to provide objective, actionable recommendations based on the provided user health summary. Output format must be a short list of 2-3 items. Language: %s. Tone: Professional, clear, concise."
	summarySystem         = "SYSTEM: You are a health data summarization model. Your function is to generate a concise weekly performance report based on key health metrics. The report should be encouraging but data-focused. Output format: A brief paragraph (2-4 sentences). Language: %s. Tone: Professional, analytical."
	coachSystem           = "SYSTEM: You are an AI health and fitness coach. Your function is to provide guidance, answer questions, and motivate the user. You have access to the user's current health data for context. Respond helpfully and accurately. Keep responses concise. Language: %s. Tone: Supportive but professional."
)

var speechPrefix = map[string]string{
	"German":  "Sage auf Deutsch mit einer klaren, professionellen Stimme: ",
	"English": "Say in English with a clear, professional voice: ",
}

// Assistant turns dashboard state into model prompts. Text operations never
// fail: any model error is logged and reported as UnavailableText.
type Assistant struct {
	gen      Generator
	language string
	locale   string
	logger   zerolog.Logger
}

// NewAssistant wraps gen. A nil gen makes every call unavailable, which is
// how a missing API key surfaces. language names the answer language in
// the prompts (default German); locale picks digit grouping.
func NewAssistant(gen Generator, language, locale string, logger zerolog.Logger) *Assistant {
	if language == "" {
		language = "German"
	}
	if locale == "" {
		locale = "de"
	}
	return &Assistant{
		gen:      gen,
		language: language,
		locale:   locale,
		logger:   logger.With().Str("component", "assistant").Logger(),
	}
}

// Available reports whether a model is configured.
func (a *Assistant) Available() bool {
	return a.gen != nil
}

// Recommendations asks for 2-3 actionable items based on the status message.
func (a *Assistant) Recommendations(ctx context.Context, analysis string) string {
	prompt := fmt.Sprintf("ANALYSIS INPUT: %q. \n\nGENERATE RECOMMENDATIONS.", analysis)
	return a.generate(ctx, "recommendations", prompt, fmt.Sprintf(recommendationsSystem, a.language))
}

// WeeklySummary asks for a short paragraph about the averaged week.
func (a *Assistant) WeeklySummary(ctx context.Context, w report.Weekly) string {
	prompt := fmt.Sprintf("WEEKLY DATA: Health Score (Avg): %d/100, Steps (Avg): %s, Sleep (Avg): %s hours. \n\nGENERATE WEEKLY SUMMARY.",
		w.Score, w.StepsText(a.locale), w.SleepHours.String())
	return a.generate(ctx, "weekly_summary", prompt, fmt.Sprintf(summarySystem, a.language))
}

// Coach appends text to conv as a user turn, asks the model with the
// current health data as context and records the reply.
func (a *Assistant) Coach(ctx context.Context, conv *Conversation, text string, s scoring.Snapshot) Message {
	history := conv.append(Message{Role: RoleUser, Text: text})
	reply := Message{Role: RoleModel, Text: a.generate(ctx, "coach", coachPrompt(history, s), fmt.Sprintf(coachSystem, a.language))}
	conv.append(reply)
	return reply
}

// Speech returns raw PCM for text, or an error when the model is unavailable.
func (a *Assistant) Speech(ctx context.Context, text string) ([]byte, error) {
	if a.gen == nil {
		return nil, ErrMissingAPIKey
	}
	prefix, ok := speechPrefix[a.language]
	if !ok {
		prefix = speechPrefix["English"]
	}
	pcm, err := a.gen.Synthesize(ctx, prefix+text)
	if err != nil {
		a.logger.Warn().Err(err).Msg("speech synthesis failed")
		return nil, err
	}
	return pcm, nil
}

func (a *Assistant) generate(ctx context.Context, op, prompt, system string) string {
	if a.gen == nil {
		a.logger.Warn().Str("op", op).Msg("no model configured")
		return UnavailableText
	}
	out, err := a.gen.Generate(ctx, prompt, system)
	if err != nil {
		a.logger.Warn().Err(err).Str("op", op).Msg("model call failed")
		return UnavailableText
	}
	return out
}

func coachPrompt(history []Message, s scoring.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CURRENT HEALTH DATA:\n- Heart Rate: %d BPM\n- Steps Today: %d\n- Sleep Last Night: %s hours\n- Stress Level: %d/100\n- Health Score: %d/100",
		s.HeartRate, s.StepCount, strconv.FormatFloat(s.SleepHours, 'f', -1, 64), s.StressLevel, s.Score)

	sb.WriteString("\n\nCONVERSATION HISTORY:\n")
	for i, m := range history {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", strings.ToUpper(string(m.Role)), m.Text)
	}
	if n := len(history); n > 0 {
		fmt.Fprintf(&sb, "\n\nUSER: %s", history[n-1].Text)
	}
	sb.WriteString("\n\nMODEL:")
	return sb.String()
}
