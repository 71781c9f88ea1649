package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aiquiz-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

var (
	errUnsupportedMessage = errors.New("unsupported message type")
	errInvalidPayload     = errors.New("invalid payload")
	errActionRejected     = errors.New("action not allowed in the current phase")
	errAnswerRejected     = errors.New("answer not accepted")
)

// WSHandler serves the presenter and student sockets of live sessions.
type WSHandler struct {
	live     *app.LiveService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWSHandler accepts any origin when allowedOrigins is empty.
func NewWSHandler(live *app.LiveService, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		live: live,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		log: log.With().Str("component", "ws_handler").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type leaderboardPayload struct {
	Visible bool `json:"visible"`
}

type joinPayload struct {
	Name string `json:"name"`
}

type answerPayload struct {
	Value string `json:"value"`
}

// Host handles GET /ws/sessions/:id/host?key=. Only one presenter socket
// per session is accepted at a time.
func (h *WSHandler) Host(c *gin.Context) {
	sessionID := c.Param("id")
	host, release, err := h.live.AttachHost(c.Request.Context(), sessionID, c.Query("key"))
	if err != nil {
		FailErr(c, err)
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	views, cancel := host.Watch()
	defer cancel()

	log := h.log.With().Str("session_id", sessionID).Str("role", "host").Logger()
	log.Info().Msg("host connected")
	serveSocket(conn, log, "host_view", views, func(in inboundMessage) error {
		return hostAction(host, in)
	})
	log.Info().Msg("host disconnected")
}

func hostAction(host *app.Host, in inboundMessage) error {
	var ok bool
	switch in.Type {
	case "start":
		ok = host.Start()
	case "reveal":
		ok = host.Reveal()
	case "next":
		ok = host.Next()
	case "leaderboard":
		var p leaderboardPayload
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return errInvalidPayload
		}
		ok = host.SetLeaderboardVisible(p.Visible)
	default:
		return errUnsupportedMessage
	}
	if !ok {
		return errActionRejected
	}
	return nil
}

// Student handles GET /ws/sessions/:id/student.
func (h *WSHandler) Student(c *gin.Context) {
	sessionID := c.Param("id")
	client, err := h.live.OpenStudent(c.Request.Context(), sessionID)
	if err != nil {
		FailErr(c, err)
		return
	}
	defer client.Close()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	views, cancel := client.Watch()
	defer cancel()

	log := h.log.With().Str("session_id", sessionID).Str("participant_id", client.ParticipantID()).Logger()
	serveSocket(conn, log, "view", views, func(in inboundMessage) error {
		switch in.Type {
		case "join":
			var p joinPayload
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				return errInvalidPayload
			}
			return client.Join(p.Name)
		case "answer":
			var p answerPayload
			if err := json.Unmarshal(in.Payload, &p); err != nil {
				return errInvalidPayload
			}
			if !client.Submit(p.Value) {
				return errAnswerRejected
			}
			return nil
		default:
			return errUnsupportedMessage
		}
	})
	log.Debug().Msg("student disconnected")
}

// serveSocket pumps updates to the client as updateType messages and feeds
// inbound messages to onMessage until either side goes away. A closed
// updates channel means the session ended and closes the socket.
func serveSocket[T any](conn *websocket.Conn, log zerolog.Logger, updateType string, updates <-chan T, onMessage func(inboundMessage) error) {
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
						time.Now().Add(writeWait))
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: updateType, Payload: update}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				if !push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "malformed message"}}) {
					break
				}
				continue
			}
			break
		}
		if err := onMessage(inbound); err != nil {
			if !push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
