package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"advent-ranking-service/internal/app"
	"advent-ranking-service/internal/domain"
)

// WSHandler streams standings snapshots to websocket clients. Each client
// picks one period; it receives the current scoreboard on connect and a
// fresh one after every calculation run for that period.
type WSHandler struct {
	provider StandingsProvider
	hub      *app.StandingsHub
	upgrader websocket.Upgrader
}

func NewWSHandler(provider StandingsProvider, hub *app.StandingsHub) *WSHandler {
	return &WSHandler{
		provider: provider,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string           `json:"type"`
	Payload domain.Standings `json:"payload"`
}

// ServeWS upgrades the request and streams standings until the client
// disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Reader only detects disconnects; clients send nothing meaningful.
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	current, err := h.provider.Standings(r.Context(), period)
	if err != nil {
		log.Printf("ws: initial standings %s: %v", period, err)
	} else {
		send <- outboundMessage{Type: "standings", Payload: current}
	}

loop:
	for {
		select {
		case update := <-updates:
			if update.Period != period {
				continue
			}
			select {
			case send <- outboundMessage{Type: "standings", Payload: update}:
			case <-writerDone:
				break loop
			case <-readerDone:
				break loop
			}
		case <-writerDone:
			break loop
		case <-readerDone:
			break loop
		}
	}

	close(send)
	<-writerDone
}
