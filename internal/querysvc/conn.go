package querysvc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// conn is one client's websocket session. watches is only ever touched
// from the Hub.Run goroutine, same as the teacher's wsConn.queries.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	watches map[string]*watchedQuery
}

// ServeHTTP upgrades the request to a websocket and pumps it until the
// client disconnects. Wire it to a mux path such as "/watch".
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &conn{
		ws:      ws,
		send:    make(chan []byte, buffered),
		hub:     h,
		watches: make(map[string]*watchedQuery),
	}
	h.register <- c
	go c.writePump()
	c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.ws.Close()
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var cm clientMessage
		if err := json.Unmarshal(raw, &cm); err != nil {
			c.hub.log.Warn("ignoring malformed websocket message", "err", err)
			continue
		}
		if cm.Tag == "" {
			continue
		}
		if cm.Unsubscribe {
			c.hub.watchReq <- watchRequest{conn: c, tag: cm.Tag}
			continue
		}
		q, columns, err := c.hub.factory.Lookup(cm.Tag)
		if err != nil {
			c.hub.log.Warn("unknown watch tag", "tag", cm.Tag, "err", err)
			continue
		}
		c.hub.watchReq <- watchRequest{conn: c, tag: cm.Tag, q: q, columns: columns}
	}
}

func (c *conn) write(messageType int, payload []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, payload)
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
