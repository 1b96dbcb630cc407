package room

// Broadcaster is how a room pushes frames out. Defined here to break
// the import cycle between room and broadcast. SendToPlayer exists so
// per-recipient views (redacted game state) are never fanned out.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	SendToPlayer(roomID, playerID string, msgID uint16, data []byte) error
}
