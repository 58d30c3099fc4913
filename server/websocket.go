package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/xhad/campus/pkg/agent"
)

// Message is the websocket frame in both directions. Clients send type
// "chat" (agent path) or "ask" (ask path); the server replies with
// "response" or "error".
type Message struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Data    any    `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(msg Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("failed to send websocket message")
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	state := s.state(c)

	// In-flight messages are cancelled before waiting on them.
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			ws.send(Message{Type: "error", Content: "Invalid message."})
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, ws, state, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, state *agent.SessionState, msg Message) {
	var (
		answer *agent.Answer
		err    error
	)
	switch msg.Type {
	case "ask":
		answer, err = s.deps.Agent.Ask(ctx, state, msg.Content)
	case "chat", "":
		answer, err = s.deps.Agent.Run(ctx, state, msg.Content)
	default:
		ws.send(Message{Type: "error", Content: "Unknown message type."})
		return
	}

	if err != nil {
		message := internalError
		var agentErr *agent.Error
		if errors.As(err, &agentErr) {
			message = agentErr.Message
		}
		ws.send(Message{Type: "error", Content: message})
		return
	}

	ws.send(Message{
		Type:    "response",
		Content: answer.String(),
		Data:    answer.Payload(),
	})
}
