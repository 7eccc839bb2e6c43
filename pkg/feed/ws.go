package feed

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"anonchat/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin enforcement happens in the security middleware before the
	// upgrade; the handler accepts what got this far.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// WSHandler streams feed events for one topic over a websocket. The topic
// comes from the query string: ?conversation=<id> for group/channel feeds,
// ?dm=1 for the broad DM feed (filtered client-side by participant pair).
func WSHandler(b *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var topic string
		if convID := r.URL.Query().Get("conversation"); convID != "" {
			topic = TopicConv(convID)
		} else if r.URL.Query().Get("dm") != "" {
			topic = TopicDM
		} else {
			http.Error(w, `{"error":"conversation or dm required"}`, http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws_upgrade_failed", "error", err)
			return
		}
		sub := b.Subscribe(topic)
		logger.Debug("ws_feed_attached", "topic", topic, "remote", r.RemoteAddr)

		// reader: we expect no client frames besides control; the loop exists
		// to observe close and refresh the read deadline on pongs
		go func() {
			defer sub.Close()
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			sub.Close()
			_ = conn.Close()
			logger.Debug("ws_feed_detached", "topic", topic, "remote", r.RemoteAddr)
		}()

		for {
			select {
			case ev, ok := <-sub.C():
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug("ws_write_failed", "topic", topic, "error", err)
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
