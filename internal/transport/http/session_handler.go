package http

import (
	"bytes"
	"fmt"
	"net/http"

	"aiquiz-service/internal/app"
	"aiquiz-service/internal/channel"
	"aiquiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SessionHandler manages live sessions and their closing report.
type SessionHandler struct {
	live   *app.LiveService
	finals *app.FinalsService
	log    zerolog.Logger
}

func NewSessionHandler(live *app.LiveService, finals *app.FinalsService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		live:   live,
		finals: finals,
		log:    log.With().Str("component", "session_handler").Logger(),
	}
}

type createSessionRequest struct {
	DeckID string `json:"deckId" binding:"required"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	HostKey   string `json:"hostKey"`
	Channel   string `json:"channel"`
}

// Create handles POST /api/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	session, hostKey, err := h.live.CreateSession(c.Request.Context(), req.DeckID)
	if err != nil {
		FailErr(c, err)
		return
	}
	Success(c, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		HostKey:   hostKey,
		Channel:   channel.SessionName(session.ID),
	})
}

// End handles DELETE /api/sessions/:id?key=.
func (h *SessionHandler) End(c *gin.Context) {
	if err := h.live.EndSession(c.Request.Context(), c.Param("id"), c.Query("key")); err != nil {
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, gin.H{"ended": true})
}

type finalsRequest struct {
	CompanyName string     `json:"companyName" binding:"required"`
	WinnerName  string     `json:"winnerName"`
	WinnerPhoto string     `json:"winnerPhoto"`
	Slides      []slideDTO `json:"slides" binding:"omitempty,dive"`
}

// Finals handles POST /api/sessions/:id/finals?key=.
func (h *SessionHandler) Finals(c *gin.Context) {
	sessionID := c.Param("id")
	session, err := h.live.Session(sessionID)
	if err != nil {
		FailErr(c, err)
		return
	}
	if err := session.CheckHostKey(c.Query("key")); err != nil {
		FailErr(c, err)
		return
	}

	var req finalsRequest
	if fields := Bind(c, &req); fields != nil {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	photo, err := domain.ParseDataURL(req.WinnerPhoto)
	if err != nil {
		FailErr(c, err)
		return
	}
	slides, err := slidesFromDTO(req.Slides)
	if err != nil {
		FailErr(c, err)
		return
	}

	artifacts, err := h.finals.Generate(c.Request.Context(), sessionID, app.FinalsRequest{
		CompanyName: req.CompanyName,
		WinnerName:  req.WinnerName,
		WinnerPhoto: photo,
		Slides:      slides,
	})
	if err != nil {
		FailErr(c, err)
		return
	}
	Success(c, http.StatusOK, artifactsToDTO(artifacts))
}

// Report handles GET /api/sessions/:id/report.pdf.
func (h *SessionHandler) Report(c *gin.Context) {
	sessionID := c.Param("id")
	var buf bytes.Buffer
	if err := h.finals.Export(c.Request.Context(), sessionID, &buf); err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("report export failed")
		FailErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-report-%s.pdf"`, sessionID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
