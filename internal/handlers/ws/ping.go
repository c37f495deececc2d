package ws

import "time"

// MessagePing is an application-level keepalive from the client, separate
// from the protocol ping frames the hub sends.
type MessagePing struct {
}

func (msg *MessagePing) GetType() string {
	return "ping"
}

func (msg *MessagePing) Process(ctx *MessageContext) error {
	return ctx.Hub.WriteToConnection(ctx.ConnID, EventPong, map[string]interface{}{
		"ts": time.Now().UnixMilli(),
	})
}

// MessagePong acknowledges a server ping sent as an application frame.
type MessagePong struct {
}

func (msg *MessagePong) GetType() string {
	return "pong"
}

func (msg *MessagePong) Process(ctx *MessageContext) error {
	return nil
}
