package hostbus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// Listen connects to a hub at url and calls fn for every event until ctx is
// done, reconnecting with exponential backoff.
func Listen(ctx context.Context, url string, fn func(Message)) error {
	backoff := 1 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[HOSTBUS] Connecting to %s", url)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			log.Printf("[HOSTBUS] Dial error: %v. Retrying in %v...", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > 60*time.Second {
				backoff = 60 * time.Second
			}
			continue
		}
		backoff = 1 * time.Second

		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[HOSTBUS] Read error: %v", err)
				}
				break
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("[HOSTBUS] Ignoring malformed message: %v", err)
				continue
			}
			fn(msg)
		}
		stop()
		_ = c.Close()
	}
}

// Send dials url and writes one command.
func Send(ctx context.Context, url string, cmd Command) error {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("[HOSTBUS] Error closing connection: %v", err)
		}
	}()
	if err := c.WriteJSON(cmd); err != nil {
		return err
	}
	return c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
