package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/domain"
)

type WSHandler struct {
	engine   *app.Engine
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine) *WSHandler {
	return &WSHandler{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	QuizID  string         `json:"quizId"`
	Answers domain.Answers `json:"answers"`
}

type purchasePayload struct {
	QuizID string `json:"quizId"`
}

type subscribedPayload struct {
	UserID string `json:"userId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and streams the user's ledger events.
// Clients may also submit attempts and buy extra attempts over the socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	h.serve(r, userID, conn)
}

// wsConn is the part of *websocket.Conn a session uses. Close may be called
// concurrently with reads.
type wsConn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

func (h *WSHandler) serve(r *http.Request, userID string, conn wsConn) {
	events, cancel := h.engine.Feed().Subscribe(userID)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes. Closing conn on a
	// write error unblocks the read loop below.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				conn.Close()
				return
			}
		}
	}()

	enqueue := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: ev.Type, Payload: ev}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if enqueue(outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{UserID: userID}}) {
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			if !enqueue(h.handle(r, userID, inbound)) {
				break
			}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, userID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "submitAttempt":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.NewError(domain.ErrValidation, "invalid submitAttempt payload", nil))
		}
		result, err := h.engine.SubmitAttempt(r.Context(), userID, payload.QuizID, payload.Answers)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "attemptResult", Payload: result}
	case "purchaseExtraAttempt":
		var payload purchasePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(domain.NewError(domain.ErrValidation, "invalid purchaseExtraAttempt payload", nil))
		}
		result, err := h.engine.PurchaseExtraAttempt(r.Context(), userID, payload.QuizID)
		if err != nil {
			return errorMessage(err)
		}
		return outboundMessage[any]{Type: "purchaseResult", Payload: result}
	default:
		return errorMessage(domain.NewError(domain.ErrValidation, "unsupported message type", nil))
	}
}

func errorMessage(err error) outboundMessage[any] {
	body, _ := toErrorBody(err)
	return outboundMessage[any]{Type: "error", Payload: body}
}
