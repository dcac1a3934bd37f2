package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/prompt-clan/prompt-arena/internal/game"
	"github.com/prompt-clan/prompt-arena/internal/llm"
	"github.com/prompt-clan/prompt-arena/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is one frame of a streamed run
type StreamMessage struct {
	Type       string             `json:"type"`
	State      game.State         `json:"state,omitempty"`
	Message    string             `json:"message,omitempty"`
	Submission *models.Submission `json:"submission,omitempty"`
}

const writeTimeout = 10 * time.Second

// handleRunStream runs one submission over a websocket, pushing phase
// transitions as they happen. The client sends a single RunRequest frame
// and receives state frames followed by a result or error frame.
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	var req models.RunRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.sendStreamError(conn, "invalid run request")
		return
	}

	lang := req.Language.Normalize()
	level, ok := s.catalog.Level(lang, req.LevelID)
	if !ok {
		s.sendStreamError(conn, "no such level: "+req.LevelID)
		return
	}

	slog.Info("run stream started",
		"user_id", session.Subject,
		"level_id", level.ID,
		"provider", req.Provider)

	sub, err := s.runner.Run(r.Context(), level, req.Prompt, session.Subject, lang, game.Options{
		Model:    req.Model,
		Provider: llm.ParseProvider(req.Provider),
		OnState: func(state game.State) {
			if state == game.StateCompleted {
				return
			}
			s.sendStreamMessage(conn, StreamMessage{Type: "state", State: state})
		},
	})
	if err != nil {
		if errors.Is(err, game.ErrEmptyPrompt) {
			s.sendStreamError(conn, "prompt must not be empty")
		} else {
			slog.Error("streamed run failed", "user_id", session.Subject, "error", err)
			s.sendStreamError(conn, "internal error")
		}
		return
	}

	if sub.Success {
		s.cache.InvalidateLeaderboard(r.Context())
	}

	s.sendStreamMessage(conn, StreamMessage{Type: "result", Submission: sub})
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		slog.Warn("failed to write stream message", "error", err)
	}
}

func (s *Server) sendStreamError(conn *websocket.Conn, message string) {
	s.sendStreamMessage(conn, StreamMessage{Type: "error", Message: message})
}
