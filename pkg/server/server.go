package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/n-khatri/paisa/pkg/adapter"
	"github.com/n-khatri/paisa/pkg/model"
	"github.com/n-khatri/paisa/pkg/usecase/assistant"
	"github.com/n-khatri/paisa/pkg/utils/logging"
)

// Server is the HTTP boundary of the assistant. Speech is optional; without
// it audio requests are rejected.
type Server struct {
	uc     *assistant.UseCase
	speech adapter.Speech
}

type Option func(*Server)

// WithSpeech enables audio input and spoken replies
func WithSpeech(sp adapter.Speech) Option {
	return func(s *Server) {
		s.speech = sp
	}
}

func New(uc *assistant.UseCase, opts ...Option) *Server {
	s := &Server{uc: uc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	v1.POST("/turns", s.postTurn)
	v1.POST("/expenses", s.postExpense)
	v1.GET("/dashboard", s.getDashboard)
	v1.GET("/sessions/:id/turns", s.getSessionTurns)

	return r
}

// turnRequest is one conversational exchange. Exactly one of textContent or
// audioContent carries the utterance; isSessionEnd closes the session
// instead of running a turn.
type turnRequest struct {
	SessionID    string `json:"sessionId"`
	UserID       string `json:"userId" binding:"required"`
	TextContent  string `json:"textContent"`
	AudioContent string `json:"audioContent"` // base64 WEBM_OPUS
	LanguageCode string `json:"languageCode"`
	WantAudio    bool   `json:"wantAudio"`
	IsSessionEnd bool   `json:"isSessionEnd"`
}

type turnResponse struct {
	SessionID    string `json:"sessionId"`
	ResponseText string `json:"responseText"`
	Intent       string `json:"intent,omitempty"`
	Transcript   string `json:"transcript,omitempty"`
	AudioContent string `json:"audioContent,omitempty"` // base64 MP3
	Success      bool   `json:"success"`
}

func (s *Server) postTurn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	if req.IsSessionEnd {
		if err := s.uc.Sessions().End(ctx, model.SessionID(req.SessionID)); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Chat saved successfully.",
		})
		return
	}

	utterance := req.TextContent
	var transcript string
	if utterance == "" && req.AudioContent != "" {
		if s.speech == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "audio input is not enabled"})
			return
		}
		text, err := s.speech.Transcribe(ctx, req.AudioContent, req.LanguageCode)
		if err != nil {
			s.writeError(c, err)
			return
		}
		utterance = text
		transcript = text
	}
	if utterance == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "textContent or audioContent is required"})
		return
	}

	out, err := s.uc.HandleTurn(ctx, assistant.TurnInput{
		SessionID: model.SessionID(req.SessionID),
		UserID:    req.UserID,
		Utterance: utterance,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := turnResponse{
		SessionID:    string(out.SessionID),
		ResponseText: out.Response,
		Intent:       string(out.Intent),
		Transcript:   transcript,
		Success:      true,
	}

	if req.WantAudio && s.speech != nil {
		audio, err := s.speech.Synthesize(ctx, out.Response)
		if err != nil {
			// The text reply still stands when synthesis fails.
			logging.From(ctx).Warn("speech synthesis failed", "error", err)
		} else {
			resp.AudioContent = audio
		}
	}

	c.JSON(http.StatusOK, resp)
}

type expenseRequest struct {
	UserID  string             `json:"userId" binding:"required"`
	Expense model.ExpenseDraft `json:"expense" binding:"required"`
}

func (s *Server) postExpense(c *gin.Context) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, items, err := s.uc.SaveExpense(c.Request.Context(), req.UserID, &req.Expense)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"receiptId": id,
		"items":     items,
		"success":   true,
	})
}

func (s *Server) getDashboard(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}

	window := assistant.DashboardRange(c.DefaultQuery("range", string(assistant.Range30Days)))
	dashboard, err := s.uc.BuildDashboard(c.Request.Context(), userID, window)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}

func (s *Server) getSessionTurns(c *gin.Context) {
	id := model.SessionID(c.Param("id"))

	turns, err := s.uc.Sessions().TurnLog(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": id,
		"turns":     turns,
	})
}

// writeError maps pipeline errors to status codes. Validation problems are
// the caller's fault, everything else is ours.
func (s *Server) writeError(c *gin.Context, err error) {
	logging.From(c.Request.Context()).Error("request failed", "error", err)

	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, model.ErrTranscription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not transcribe audio"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
