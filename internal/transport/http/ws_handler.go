package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"talent-exam-service/internal/app"
	"talent-exam-service/internal/domain"
)

// WSHandler streams live leaderboard updates for one contest slot.
type WSHandler struct {
	board    *app.LeaderboardHub
	upgrader websocket.Upgrader
}

func NewWSHandler(board *app.LeaderboardHub) *WSHandler {
	return &WSHandler{
		board: board,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

// ServeWS upgrades the request and forwards standings until the client hangs
// up. The subscription channel drops stale frames for slow readers, so a
// laggy client only ever misses intermediate standings, never the latest.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	contestID := r.URL.Query().Get("contestId")
	slotID := r.URL.Query().Get("slotId")
	if contestID == "" || slotID == "" {
		http.Error(w, "missing contestId or slotId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.board.Subscribe(contestID, slotID)
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-readerDone:
			return
		}
	}
}
