package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/turnserver/broadcast"
	"github.com/wfunc/turnserver/config"
	"github.com/wfunc/turnserver/game"
	"github.com/wfunc/turnserver/logger"
	"github.com/wfunc/turnserver/monitor"
	"github.com/wfunc/turnserver/network"
	"github.com/wfunc/turnserver/persistence"
	"github.com/wfunc/turnserver/playlist"
	"github.com/wfunc/turnserver/room"
	turnserver_rpc "github.com/wfunc/turnserver/rpc"
	"github.com/wfunc/turnserver/rulesets"
	"github.com/wfunc/turnserver/services"
	"github.com/wfunc/turnserver/session"
	"github.com/wfunc/turnserver/timer"
)

const heartbeatInterval = 30 * time.Second

type GameServer struct {
	addr           string
	gameCfg        config.GameConfig
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	resultService  *services.ResultService
	broadcaster    broadcast.Broadcaster
	timers         *timer.Manager
	monitor        *monitor.Monitor
	rpcServer      *turnserver_rpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(addr, rpcAddr string, db persistence.Database, mon *monitor.Monitor, gameCfg config.GameConfig) *GameServer {
	s := &GameServer{
		addr:           addr,
		gameCfg:        gameCfg,
		roomManager:    room.NewRoomManager(),
		sessionManager: session.NewManager(),
		resultService:  services.NewResultService(db),
		timers:         timer.NewManager(),
		monitor:        mon,
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.broadcaster = broadcast.NewRoomBroadcaster(s.roomManager, s.sessionManager)

	rpcServer, err := turnserver_rpc.NewServer(rpcAddr)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer

	adminService := turnserver_rpc.NewAdminService(s.roomManager, s.resultService)
	rpc.Register(adminService)

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.monitor != nil {
		s.monitor.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		s.dropFromRoom(sess)
		if s.monitor != nil {
			s.monitor.DecOnlinePlayers()
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	if s.monitor != nil {
		s.monitor.IncMessagesReceived()
		defer func(start time.Time) {
			s.monitor.ObserveMessageLatency(time.Since(start))
		}(time.Now())
	}

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.LastActive = time.Now()
	case network.MsgTypeCreateRoom:
		s.handleCreateRoom(sess, packet)
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeLeaveRoom:
		s.handleLeaveRoom(sess, packet)
	case network.MsgTypeReadyUp:
		s.handleReadyUp(sess, packet)
	case network.MsgTypePlayerMove:
		s.handlePlayerMove(sess, packet)
	case network.MsgTypeSetTurnOrder:
		s.handleSetTurnOrder(sess, packet)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}
}

// sendError surfaces a rejection to the originating client, reason
// string verbatim.
func (s *GameServer) sendError(sess *session.Session, request uint16, reason string) {
	data, _ := json.Marshal(network.ErrorPayload{Request: request, Reason: reason})
	sess.Send(network.MsgTypeError, data)
}

type createRoomRequest struct {
	PlayerID   string   `json:"player_id"`
	PlayerName string   `json:"player_name"`
	RoomName   string   `json:"room_name"`
	MaxPlayers int      `json:"max_players"`
	Password   string   `json:"password"`
	Games      []string `json:"games"`
}

func (s *GameServer) handleCreateRoom(sess *session.Session, packet *network.Packet) {
	var req createRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, packet.MsgID, "malformed request")
		return
	}
	if req.PlayerID == "" {
		s.sendError(sess, packet.MsgID, "player_id is required")
		return
	}
	if req.MaxPlayers <= 0 {
		req.MaxPlayers = 4
	}

	pl := playlist.New()
	for _, name := range req.Games {
		hooks, ok := rulesets.Lookup(name)
		if !ok {
			s.sendError(sess, packet.MsgID, "unknown rule set: "+name)
			return
		}
		pl.Append(playlist.Entry{Name: name, Hooks: hooks})
	}

	sess.PlayerID = req.PlayerID
	sess.Name = req.PlayerName

	roomID := uuid.New().String()
	r := s.roomManager.CreateRoom(roomID, req.RoomName, req.MaxPlayers, req.Password, s.gameCfg, s.broadcaster, s.timers, pl)
	r.OnGameStart = s.onGameStart
	r.OnGameEnd = s.onGameEnd
	r.OnGameDestroyed = s.onGameDestroyed
	if err := r.AddPlayer(sess, req.Password); err != nil {
		s.roomManager.RemoveRoom(roomID)
		s.sendError(sess, packet.MsgID, err.Error())
		return
	}
	if s.monitor != nil {
		s.monitor.SetActiveRooms(s.roomManager.Count())
	}

	logger.Log.Infof("Session %s created room %s", sess.GetID(), roomID)

	resp := map[string]any{
		"room_id": roomID,
		"games":   pl.Names(),
	}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeCreateRoom, data)
}

type joinRoomRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	RoomID     string `json:"room_id"`
	Password   string `json:"password"`
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, packet.MsgID, "malformed request")
		return
	}
	if req.PlayerID == "" {
		s.sendError(sess, packet.MsgID, "player_id is required")
		return
	}

	r, exists := s.roomManager.GetRoom(req.RoomID)
	if !exists {
		s.sendError(sess, packet.MsgID, "room not found")
		return
	}

	sess.PlayerID = req.PlayerID
	sess.Name = req.PlayerName
	if err := r.AddPlayer(sess, req.Password); err != nil {
		s.sendError(sess, packet.MsgID, err.Error())
		return
	}

	logger.Log.Infof("Session %s joined room %s as %s", sess.GetID(), r.ID, req.PlayerID)

	resp := map[string]any{
		"room_id": r.ID,
		"players": r.PlayerCount(),
		"games":   r.Playlist().Names(),
	}
	data, _ := json.Marshal(resp)
	sess.Send(network.MsgTypeJoinRoom, data)

	s.maybeStart(r)
}

// maybeStart kicks off the playlist once enough players are seated. The
// ready-up phase inside the game still gates actual play.
func (s *GameServer) maybeStart(r *room.Room) {
	if r.GetStatus() != room.StatusWaiting {
		return
	}
	if r.PlayerCount() < s.gameCfg.MinPlayers {
		return
	}
	if err := r.StartNextGame(); err != nil {
		logger.Log.Warnf("room %s: could not start game: %v", r.ID, err)
	}
}

func (s *GameServer) handleLeaveRoom(sess *session.Session, packet *network.Packet) {
	s.dropFromRoom(sess)
	sess.Send(network.MsgTypeLeaveRoom, []byte(`{}`))
}

func (s *GameServer) dropFromRoom(sess *session.Session) {
	if sess.RoomID == "" {
		return
	}
	r, exists := s.roomManager.GetRoom(sess.RoomID)
	sess.RoomID = ""
	if !exists {
		return
	}
	r.RemovePlayer(sess.GetID())
	if r.PlayerCount() == 0 {
		s.roomManager.RemoveRoom(r.ID)
	}
	if s.monitor != nil {
		s.monitor.SetActiveRooms(s.roomManager.Count())
	}
}

func (s *GameServer) handleReadyUp(sess *session.Session, packet *network.Packet) {
	r, ok := s.sessionRoom(sess, packet.MsgID)
	if !ok {
		return
	}

	var payload any
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &payload); err != nil {
			s.sendError(sess, packet.MsgID, "malformed request")
			return
		}
	}

	ack, err := r.ReadyUp(sess.PlayerID, payload)
	if err != nil {
		s.sendError(sess, packet.MsgID, err.Error())
		return
	}
	data, _ := json.Marshal(map[string]any{"ack": ack})
	sess.Send(network.MsgTypeReadyAck, data)
}

func (s *GameServer) handlePlayerMove(sess *session.Session, packet *network.Packet) {
	r, ok := s.sessionRoom(sess, packet.MsgID)
	if !ok {
		return
	}

	var payload any
	if len(packet.Data) > 0 {
		if err := json.Unmarshal(packet.Data, &payload); err != nil {
			s.sendError(sess, packet.MsgID, "malformed request")
			return
		}
	}

	move, err := r.PlayerMove(sess.PlayerID, payload)
	if err != nil {
		if s.monitor != nil {
			s.monitor.IncMovesRejected()
		}
		s.sendError(sess, packet.MsgID, err.Error())
		return
	}
	if s.monitor != nil {
		s.monitor.IncMovesAccepted()
	}
	data, _ := json.Marshal(move)
	sess.Send(network.MsgTypeMoveAck, data)
}

type setTurnOrderRequest struct {
	Kind  string   `json:"kind"` // "default", "random" or "explicit"
	Order []string `json:"order"`
}

func (s *GameServer) handleSetTurnOrder(sess *session.Session, packet *network.Packet) {
	r, ok := s.sessionRoom(sess, packet.MsgID)
	if !ok {
		return
	}

	var req setTurnOrderRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.sendError(sess, packet.MsgID, "malformed request")
		return
	}

	var order game.OrderRequest
	switch req.Kind {
	case "random":
		order = game.RandomOrder()
	case "explicit":
		order = game.ExplicitOrder(req.Order...)
	default:
		order = game.DefaultOrder()
	}

	if err := r.SetTurnOrder(order); err != nil {
		s.sendError(sess, packet.MsgID, err.Error())
		return
	}
	sess.Send(network.MsgTypeSetTurnOrder, []byte(`{}`))
}

// sessionRoom resolves the room for a game-facing request; missing
// membership is reported to the client.
func (s *GameServer) sessionRoom(sess *session.Session, request uint16) (*room.Room, bool) {
	if sess.RoomID == "" {
		s.sendError(sess, request, "not in a room")
		return nil, false
	}
	r, exists := s.roomManager.GetRoom(sess.RoomID)
	if !exists {
		s.sendError(sess, request, "room not found")
		return nil, false
	}
	return r, true
}

func (s *GameServer) onGameStart(roomID, gameName string) {
	if s.monitor != nil {
		s.monitor.IncActiveGames()
	}
}

func (s *GameServer) onGameEnd(roomID string, snap game.Snapshot, results any, duration time.Duration) {
	if s.monitor != nil {
		s.monitor.DecActiveGames()
		s.monitor.ObserveGameDuration(duration)
	}
	s.resultService.RecordGame(roomID, snap.Name, snap, results, duration)
}

func (s *GameServer) onGameDestroyed(roomID, reason string) {
	if s.monitor != nil {
		s.monitor.DecActiveGames()
	}
	logger.Log.Infof("room %s: game torn down: %s", roomID, reason)
}
