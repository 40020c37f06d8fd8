package main

import (
	"time"

	"github.com/gorilla/websocket"
)

// Sockets that sit idle through a whole interval get a ping so proxies
// and browsers keep the connection open.
const wsIdlePingInterval = 30 * time.Second

// pumpWS drains a client's send channel onto the socket, pinging when a
// full idle interval passes without traffic. It returns when the channel
// closes or the socket errors out.
func pumpWS(conn *websocket.Conn, send <-chan []byte) error {
	idle := time.NewTicker(wsIdlePingInterval)
	defer idle.Stop()
	ping := mustMarshal(wsMessage{Type: "ping"})
	last := time.Now()

	for {
		select {
		case msg, open := <-send:
			if !open {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			last = time.Now()
		case <-idle.C:
			if time.Since(last) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
			last = time.Now()
		}
	}
}
