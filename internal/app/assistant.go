package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"healthguard/internal/audio"
	"healthguard/internal/export"
	"healthguard/internal/genai"
	"healthguard/internal/report"
)

// Recommend prints recommendations for analysis, or for the current status
// message when analysis is empty.
func (a *App) Recommend(ctx context.Context, analysis string) error {
	if strings.TrimSpace(analysis) == "" {
		mon, err := a.loadMonitor()
		if err != nil {
			return err
		}
		d, _ := mon.Current()
		analysis = d.StatusMessage
	}

	text := a.newAssistant().Recommendations(ctx, analysis)
	fmt.Fprintln(a.Out, text)
	return nil
}

// Summary prints the weekly summary and the share text for the current
// dashboard.
func (a *App) Summary(ctx context.Context) error {
	mon, err := a.loadMonitor()
	if err != nil {
		return err
	}
	d, _ := mon.Current()
	weekly := report.FromDashboard(d)

	text := a.newAssistant().WeeklySummary(ctx, weekly)
	shareSummary := text
	if genai.IsUnavailable(text) {
		shareSummary = ""
	}
	fmt.Fprintln(a.Out, text)
	fmt.Fprintln(a.Out)
	fmt.Fprintln(a.Out, report.ShareText(a.Config.Scoring.Locale, weekly, shareSummary))
	return nil
}

// Coach runs an interactive chat on in until EOF or "exit".
func (a *App) Coach(ctx context.Context, in io.Reader) error {
	mon, err := a.loadMonitor()
	if err != nil {
		return err
	}
	assistant := a.newAssistant()
	conv := genai.NewConversation(a.Config.Coach.MaxHistory)

	fmt.Fprintf(a.Out, "coach> %s\n", genai.Greeting)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.Out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.Out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		d, _ := mon.Current()
		reply := assistant.Coach(ctx, conv, text, d.Snapshot)
		fmt.Fprintf(a.Out, "coach> %s\n", reply.Text)
	}
}

// Speak synthesises text and writes it as a WAV file to path.
func (a *App) Speak(ctx context.Context, text, path string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("text must not be empty")
	}

	pcm, err := a.newAssistant().Speech(ctx, text)
	if err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}
	if err := export.WriteFile(path, func(w io.Writer) error { return audio.WriteWAV(w, pcm, audio.SpeechFormat) }); err != nil {
		return err
	}

	a.Logger.Info().
		Str("path", path).
		Dur("duration", audio.Duration(pcm, audio.SpeechFormat)).
		Msg("speech written")
	return nil
}
