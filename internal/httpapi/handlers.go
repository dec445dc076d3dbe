package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"healthguard/internal/audio"
	"healthguard/internal/genai"
	"healthguard/internal/monitor"
	"healthguard/internal/report"
	"healthguard/internal/scoring"
	"healthguard/internal/series"
	"healthguard/internal/version"
)

// SnapshotResponse is the dashboard plus the values the cards derive from it.
type SnapshotResponse struct {
	monitor.Dashboard
	StressBand    scoring.Band `json:"stress_band"`
	StepsProgress float64      `json:"steps_progress"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func newSnapshotResponse(d monitor.Dashboard, at time.Time) SnapshotResponse {
	return SnapshotResponse{Dashboard: d, StressBand: d.StressBand(), StepsProgress: d.StepsProgress(), UpdatedAt: at}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "healthguard",
		"version": version.Version,
	})
}

func (s *Server) snapshot(c *gin.Context) {
	d, at := s.deps.Monitor.Current()
	c.JSON(http.StatusOK, newSnapshotResponse(d, at))
}

func (s *Server) patchMetrics(c *gin.Context) {
	var patch monitor.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "patch contains no fields"})
		return
	}

	change, err := s.deps.Monitor.Apply(SourceAPI, patch)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, monitor.ErrInvalidPatch) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, newSnapshotResponse(change.Current, change.AppliedAt))
}

func (s *Server) reset(c *gin.Context) {
	change := s.deps.Monitor.Reset(SourceAPI)
	c.JSON(http.StatusOK, newSnapshotResponse(change.Current, change.AppliedAt))
}

type scoreResponse struct {
	scoring.Snapshot
	Hits []scoring.Hit `json:"hits,omitempty"`
}

// score evaluates the posted snapshot without touching the live state.
// ?locale= picks the message catalog, ?explain=true adds the fired rules.
func (s *Server) score(c *gin.Context) {
	var in scoring.Snapshot
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine := s.deps.Monitor.Engine()
	if locale := c.Query("locale"); locale != "" && locale != engine.Locale() {
		var err error
		if engine, err = scoring.New(locale); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "locales": scoring.Locales()})
			return
		}
	}

	resp := scoreResponse{Snapshot: engine.Evaluate(in)}
	if c.Query("explain") == "true" {
		resp.Hits = engine.Explain(in.Metrics)
	}
	c.JSON(http.StatusOK, resp)
}

type bar struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

func (s *Server) seriesFor(c *gin.Context) {
	d, _ := s.deps.Monitor.Current()
	name := c.Param("metric")

	switch name {
	case "sleep":
		stages := series.SleepStages(d.SleepHours)
		bars := make([]bar, len(stages))
		for i, st := range stages {
			bars[i] = bar{Name: st.Name, Value: st.Hours, Color: st.Color}
		}
		c.JSON(http.StatusOK, gin.H{"metric": name, "unit": "h", "bars": bars})
		return
	case "score":
		bars := make([]bar, 0, len(d.Radar))
		for _, p := range d.Radar {
			bars = append(bars, bar{Name: p.Label, Value: p.Value * 100, Color: "#a855f7"})
		}
		c.JSON(http.StatusOK, gin.H{"metric": name, "unit": "/ 100", "bars": bars})
		return
	}

	pts, spec, err := s.deps.Series.Metric(name, d)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "metric": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metric": name, "spec": spec, "points": pts})
}

type recommendationsRequest struct {
	Analysis string `json:"analysis"`
}

func (s *Server) recommendations(c *gin.Context) {
	var req recommendationsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if strings.TrimSpace(req.Analysis) == "" {
		d, _ := s.deps.Monitor.Current()
		req.Analysis = d.StatusMessage
	}

	text := s.deps.Assistant.Recommendations(c.Request.Context(), req.Analysis)
	c.JSON(http.StatusOK, gin.H{"text": text, "available": !genai.IsUnavailable(text)})
}

func (s *Server) summary(c *gin.Context) {
	d, _ := s.deps.Monitor.Current()
	weekly := report.FromDashboard(d)
	if s.deps.Window != nil {
		if avg, ok := s.deps.Window.Average(s.now()); ok {
			weekly = avg
		}
	}

	text := s.deps.Assistant.WeeklySummary(c.Request.Context(), weekly)
	shareSummary := text
	if genai.IsUnavailable(text) {
		shareSummary = ""
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":    text,
		"available":  !genai.IsUnavailable(text),
		"report":     weekly,
		"share_text": report.ShareText(s.deps.Locale, weekly, shareSummary),
	})
}

type coachRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// coach starts a session when none is given; an empty message only
// returns the session with its greeting.
func (s *Server) coach(c *gin.Context) {
	var req coachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var conv *genai.Conversation
	if req.SessionID == "" {
		conv = s.deps.Sessions.Start()
	} else {
		var err error
		if conv, err = s.deps.Sessions.Get(req.SessionID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	}

	resp := gin.H{"session_id": conv.ID.String()}
	if text := strings.TrimSpace(req.Message); text != "" {
		d, _ := s.deps.Monitor.Current()
		reply := s.deps.Assistant.Coach(c.Request.Context(), conv, text, d.Snapshot)
		resp["reply"] = reply
		resp["available"] = !genai.IsUnavailable(reply.Text)
	}
	resp["messages"] = conv.Messages()
	c.JSON(http.StatusOK, resp)
}

type speechRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) speech(c *gin.Context) {
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pcm, err := s.deps.Assistant.Speech(c.Request.Context(), req.Text)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": genai.UnavailableText})
		return
	}
	wav, err := audio.EncodeWAV(pcm, audio.SpeechFormat)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Audio-Duration", audio.Duration(pcm, audio.SpeechFormat).String())
	c.Data(http.StatusOK, "audio/wav", wav)
}
