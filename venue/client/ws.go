package client

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsEvent is the gateway's push notification envelope. The session layer
// only cares about session lifecycle; everything else is ignored here.
type wsEvent struct {
	Type string `json:"type"`
}

// watchSession subscribes to the gateway's event feed and flips the
// session handle to closed when the gateway revokes it. This is how a
// polling loop learns the session died between ticks instead of on the
// next failing request.
func (c *Client) watchSession(wsEndpoint, token string) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint+"/v2/ws", header)
	if err != nil {
		return errors.Wrap(err, "dial event feed")
	}

	go func() {
		defer conn.Close()
		go func() {
			// Unblocks the read loop when the handle is closed locally.
			<-c.wsDone
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if !c.closed.Load() {
					log.Warnf("event feed closed: %v", err)
				}
				return
			}
			var ev wsEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				continue
			}
			if ev.Type == "sessionClosed" {
				log.Warn("gateway revoked the session")
				c.closed.Store(true)
				return
			}
		}
	}()
	return nil
}
