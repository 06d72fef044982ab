package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"booking-sync/contract"
	"booking-sync/domain/event"

	"github.com/fasthttp/websocket"
)

// WebsocketDialer opens the live connection over a websocket speaking
// event-tagged JSON frames.
type WebsocketDialer struct {
	URL string
}

func (d WebsocketDialer) Dial(ctx context.Context, credential string) (contract.PushConn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Emit(name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", name, err)
	}
	return c.conn.WriteJSON(event.Frame{Event: name, Payload: raw})
}

func (c *wsConn) Next() (event.Frame, error) {
	var frame event.Frame
	err := c.conn.ReadJSON(&frame)
	return frame, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
