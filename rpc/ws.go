package rpc

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

// wsUpgrader upgrades HTTP connections to websockets for the JSON-RPC
// subscription transport. Origin checking is left to a reverse proxy; this
// server is meant to run behind one, not exposed directly.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS serves JSON-RPC requests over a websocket connection. Each text
// frame received is treated as one JSON-RPC request and answered with one
// response frame, using the same dispatch path as the HTTP transport.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("rpc: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		msgType, body, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			resp := &Response{JSONRPC: "2.0", Error: &RPCError{Code: ErrCodeParse, Message: "invalid JSON"}}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
			continue
		}

		resp := s.api.HandleRequest(&req)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}
