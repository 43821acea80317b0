package transport

import (
	"net/http"
	"time"

	"github.com/antigravity-dev/maestro/internal/events"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// frame is the wire shape of every WebSocket message: a type
// discriminator plus the underlying event's fields flattened in.
type frame struct {
	Type    string `json:"type"`
	Project string `json:"project,omitempty"`
	Page    string `json:"page,omitempty"`
	Region  string `json:"region,omitempty"`
	Slug    string `json:"slug,omitempty"`
	ID      string `json:"id,omitempty"`
}

// frameType maps a bus event to its WebSocket wire type. TypeHeartbeatUpdated
// is surfaced to clients as the spec's "heartbeat" frame, distinct from the
// internal bus event name used for cache invalidation.
func frameType(t events.Type) string {
	if t == events.TypeHeartbeatUpdated {
		return "heartbeat"
	}
	return string(t)
}

func frameFromEvent(evt events.Event) frame {
	return frame{
		Type: frameType(evt.Type), Project: evt.Project, Page: evt.Page,
		Region: evt.Region, Slug: evt.Slug, ID: evt.ID,
	}
}

// handleWorkspaceWS upgrades to a per-project workspace connection. The
// {type:"init"} frame is sent before any event frame, per spec §5.
func (s *Server) handleWorkspaceWS(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("workspace ws upgrade failed", "error", err)
		return
	}
	s.serveConnection(conn, frame{Type: "init", Project: slug}, func(evt events.Event) bool {
		return slug == "" || evt.Project == slug || evt.Slug == slug
	})
}

// handleCommandCenterWS upgrades to the fleet-wide command-center
// connection, which sees every project's events.
func (s *Server) handleCommandCenterWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("command center ws upgrade failed", "error", err)
		return
	}
	s.serveConnection(conn, frame{Type: "init"}, func(events.Event) bool { return true })
}

// serveConnection sends initFrame, then streams bus events matching
// filter until the client disconnects. Disconnecting unsubscribes
// without affecting other subscribers (spec §5).
func (s *Server) serveConnection(conn *websocket.Conn, initFrame frame, filter func(events.Event) bool) {
	defer conn.Close()

	if err := conn.WriteJSON(initFrame); err != nil {
		return
	}

	sub := s.bus.Subscribe()
	defer sub.Close()

	go drainReads(conn)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if !filter(evt) {
				continue
			}
			if err := conn.WriteJSON(frameFromEvent(evt)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards client frames (this connection is server-push
// only) but must keep reading so gorilla's control-frame handling and
// disconnect detection keep working.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}
