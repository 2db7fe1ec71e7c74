// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// BadSubprotocolError closes a socket that did not negotiate the fraud subprotocol.
const BadSubprotocolError websocket.StatusCode = 3000
