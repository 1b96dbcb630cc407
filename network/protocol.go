package network

// Message IDs. Client-to-server requests sit below 300, server-to-client
// notifications at 300 and up, errors at 400.
const (
	MsgTypeHeartbeat = 1

	MsgTypeCreateRoom = 101
	MsgTypeJoinRoom   = 102
	MsgTypeLeaveRoom  = 103

	MsgTypeReadyUp      = 201
	MsgTypePlayerMove   = 202
	MsgTypeSetTurnOrder = 203

	MsgTypeRoomInfo    = 301
	MsgTypeGameState   = 302
	MsgTypePlayerReady = 303
	MsgTypeTurnStart   = 304
	MsgTypeMove        = 305
	MsgTypeGameEnd     = 306
	MsgTypeGameDestroy = 307
	MsgTypeReadyAck    = 308
	MsgTypeMoveAck     = 309

	MsgTypeError = 400
)

// ErrorPayload is the body of MsgTypeError; Reason is the rejection
// string surfaced verbatim to the originating client.
type ErrorPayload struct {
	Request uint16 `json:"request"`
	Reason  string `json:"reason"`
}
