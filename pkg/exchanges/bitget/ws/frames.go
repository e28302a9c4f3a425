package ws

import "encoding/json"

// Outbound frame shapes for the Bitget v2 websocket protocol.

// channelArg addresses one channel in a subscribe/unsubscribe/login frame.
type channelArg struct {
	InstType string `json:"instType,omitempty"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId,omitempty"`
}

// opFrame is the generic request envelope: {"op": ..., "args": [...]}.
type opFrame struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

func subscribeFrame(instType, channel, instID string) opFrame {
	return opFrame{Op: "subscribe", Args: []any{channelArg{InstType: instType, Channel: channel, InstID: instID}}}
}

func unsubscribeFrame(instType, channel, instID string) opFrame {
	return opFrame{Op: "unsubscribe", Args: []any{channelArg{InstType: instType, Channel: channel, InstID: instID}}}
}

func loginFrame(args map[string]string) opFrame {
	return opFrame{Op: "login", Args: []any{args}}
}

// PushMessage is an inbound data frame. The Data payloads stay raw; each
// subscriber decodes the record shape its channel carries.
type PushMessage struct {
	Action string `json:"action"` // "snapshot" or "update"
	Arg    struct {
		InstType string `json:"instType"`
		Channel  string `json:"channel"`
		InstID   string `json:"instId"`
	} `json:"arg"`
	Data []json.RawMessage `json:"data"`
}

// eventMessage is an inbound control frame: subscribe acks, login results,
// and error notifications.
type eventMessage struct {
	Event string `json:"event"`
	Code  any    `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
}
