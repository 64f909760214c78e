package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"rodinstudio/internal/middleware"
	"rodinstudio/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	eventsWriteWait = 10 * time.Second
	eventsPongWait  = 60 * time.Second
	eventsPingEvery = (eventsPongWait * 9) / 10
	// eventsTick re-sends the snapshot while loading so elapsed time advances.
	eventsTick = time.Second
)

type sessionEvent struct {
	Type     string                 `json:"type"`
	Snapshot *orchestrator.Snapshot `json:"snapshot,omitempty"`
}

// SessionEvents streams session snapshots over a websocket. Every state change
// is pushed; slow clients only get the latest one.
func (a *App) SessionEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	locale := middleware.LocaleFromContext(r.Context())

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(1024)
	if err := conn.SetReadDeadline(time.Now().Add(eventsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	updates, unsubscribe := s.Subscribe()
	defer unsubscribe()

	ping := time.NewTicker(eventsPingEvery)
	defer ping.Stop()
	tick := time.NewTicker(eventsTick)
	defer tick.Stop()

	write := func(v any) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
			return false
		}
		return conn.WriteJSON(v) == nil
	}

	loading := false
	for {
		select {
		case <-ctx.Done():
			return
		case _, open := <-updates:
			if !open {
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			snap := s.SnapshotFor(locale)
			loading = snap.IsLoading
			if !write(sessionEvent{Type: "snapshot", Snapshot: &snap}) {
				return
			}
		case <-tick.C:
			if !loading {
				continue
			}
			snap := s.SnapshotFor(locale)
			loading = snap.IsLoading
			if !write(sessionEvent{Type: "snapshot", Snapshot: &snap}) {
				return
			}
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// checkOrigin accepts configured CORS origins, or same-host origins when none
// are configured.
func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(a.origins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
	if _, ok := a.origins["*"]; ok {
		return true
	}
	_, ok := a.origins[origin]
	return ok
}
