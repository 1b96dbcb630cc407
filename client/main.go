package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom   = 101
	MsgTypeJoinRoom     = 102
	MsgTypeLeaveRoom    = 103
	MsgTypeReadyUp      = 201
	MsgTypePlayerMove   = 202
	MsgTypeSetTurnOrder = 203
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	var (
		addr     = flag.String("addr", "localhost:8080", "server address")
		playerID = flag.String("player", "alice", "stable player identifier")
		name     = flag.String("name", "Alice", "display name")
		roomID   = flag.String("room", "", "room to join; empty creates one")
		games    = flag.String("games", "dicegame", "comma separated rule sets for a new room")
	)
	flag.Parse()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	if *roomID == "" {
		log.Println("Creating a room...")
		err = sendJSON(c, MsgTypeCreateRoom, map[string]any{
			"player_id":   *playerID,
			"player_name": *name,
			"room_name":   "test room",
			"max_players": 4,
			"games":       strings.Split(*games, ","),
		})
	} else {
		log.Printf("Joining room %s...", *roomID)
		err = sendJSON(c, MsgTypeJoinRoom, map[string]any{
			"player_id":   *playerID,
			"player_name": *name,
			"room_id":     *roomID,
		})
	}
	if err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Commands: ready | move <n> | order <id,id,...> | leave")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}

			var err error
			switch {
			case text == "ready":
				err = sendJSON(c, MsgTypeReadyUp, map[string]any{})
			case text == "leave":
				err = sendJSON(c, MsgTypeLeaveRoom, map[string]any{})
			case strings.HasPrefix(text, "move "):
				guess, convErr := strconv.Atoi(strings.TrimPrefix(text, "move "))
				if convErr != nil {
					log.Println("move takes a number")
					continue
				}
				err = sendJSON(c, MsgTypePlayerMove, map[string]any{"guess": guess})
			case strings.HasPrefix(text, "order "):
				ids := strings.Split(strings.TrimPrefix(text, "order "), ",")
				err = sendJSON(c, MsgTypeSetTurnOrder, map[string]any{
					"kind":  "explicit",
					"order": ids,
				})
			default:
				log.Printf("Unknown command: %s", text)
				continue
			}
			if err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", text)
		}
	}
}
