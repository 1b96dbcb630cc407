// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/turnserver/room"
	"github.com/wfunc/turnserver/session"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found in room")
)

// Broadcaster fans frames out to rooms, single players and everyone.
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	SendToPlayer(roomID, playerID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
}

// RoomBroadcaster resolves rooms and sessions to deliver frames.
type RoomBroadcaster struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager:    roomManager,
		sessionManager: sessionManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.GetSessions() {
		if err := s.Send(msgID, data); err != nil {
			// A dead connection is the reader goroutine's problem; keep
			// delivering to the rest.
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) SendToPlayer(roomID, playerID string, msgID uint16, data []byte) error {
	r, exists := b.roomManager.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	s, ok := r.GetSessionByPlayer(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	return s.Send(msgID, data)
}

func (b *RoomBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	for _, r := range b.roomManager.Rooms() {
		b.BroadcastToRoom(r.ID, msgID, data)
	}
	return nil
}
