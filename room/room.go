// room/room.go
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/turnserver/config"
	"github.com/wfunc/turnserver/game"
	"github.com/wfunc/turnserver/logger"
	"github.com/wfunc/turnserver/network"
	"github.com/wfunc/turnserver/playlist"
	"github.com/wfunc/turnserver/session"
	"github.com/wfunc/turnserver/timer"
)

// RoomStatus is the room's business state.
type RoomStatus int

const (
	StatusWaiting RoomStatus = iota
	StatusGaming
	StatusResults
	StatusClosed
)

var (
	ErrRoomFull       = errors.New("room is full")
	ErrWrongPassword  = errors.New("wrong password")
	ErrGameInProgress = errors.New("a game is already in progress")
	ErrNoActiveGame   = errors.New("no active game")
	ErrPlaylistEmpty  = errors.New("playlist is exhausted")
)

// Room owns a roster of sessions and runs its playlist of games one at
// a time. It implements game.Notifier: lifecycle events map onto wire
// message IDs here, keeping the game package transport-free.
type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	CreatedAt  time.Time

	password string
	cfg      config.GameConfig

	statusMutex sync.RWMutex
	Status      RoomStatus

	playerMutex sync.RWMutex
	sessions    []*session.Session // join order
	byPlayer    map[string]*session.Session

	gameMutex sync.RWMutex
	current   *game.Game
	startedAt time.Time

	playlist    *playlist.Playlist
	broadcaster Broadcaster
	timers      *timer.Manager
	resultsTask int64 // guarded by gameMutex; 0 when no advance is pending

	// OnGameStart, OnGameEnd and OnGameDestroyed report lifecycle
	// transitions upward. The server wires persistence and metrics
	// here. OnGameEnd fires after endResults is recorded and before the
	// results display interval starts.
	OnGameStart     func(roomID, gameName string)
	OnGameEnd       func(roomID string, snap game.Snapshot, results any, duration time.Duration)
	OnGameDestroyed func(roomID, reason string)
}

// NewRoom builds a room. The playlist may be empty and appended to
// later; nothing starts until StartNextGame.
func NewRoom(id, name string, maxPlayers int, password string, cfg config.GameConfig, b Broadcaster, timers *timer.Manager, pl *playlist.Playlist) *Room {
	if pl == nil {
		pl = playlist.New()
	}
	return &Room{
		ID:          id,
		Name:        name,
		MaxPlayers:  maxPlayers,
		CreatedAt:   time.Now(),
		password:    password,
		cfg:         cfg,
		Status:      StatusWaiting,
		byPlayer:    make(map[string]*session.Session),
		playlist:    pl,
		broadcaster: b,
		timers:      timers,
	}
}

// --- roster ---

// AddPlayer seats a session, gated by password and capacity. A session
// whose PlayerID is already seated replaces the old session (reconnect)
// and bypasses both gates and the in-progress check.
func (r *Room) AddPlayer(s *session.Session, password string) error {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	if old, seated := r.byPlayer[s.PlayerID]; seated {
		for i, existing := range r.sessions {
			if existing == old {
				r.sessions[i] = s
				break
			}
		}
		r.byPlayer[s.PlayerID] = s
		s.RoomID = r.ID
		return nil
	}

	if r.password != "" && password != r.password {
		return ErrWrongPassword
	}
	if len(r.sessions) >= r.MaxPlayers {
		return ErrRoomFull
	}
	if r.GetStatus() != StatusWaiting {
		return ErrGameInProgress
	}

	r.sessions = append(r.sessions, s)
	r.byPlayer[s.PlayerID] = s
	s.RoomID = r.ID
	return nil
}

// RemovePlayer drops a session; a running game is told about the
// departure.
func (r *Room) RemovePlayer(sessionID string) {
	r.playerMutex.Lock()
	var playerID string
	for i, s := range r.sessions {
		if s.ID == sessionID {
			playerID = s.PlayerID
			s.RoomID = ""
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			delete(r.byPlayer, playerID)
			break
		}
	}
	r.playerMutex.Unlock()

	if playerID == "" {
		return
	}
	if g := r.Game(); g != nil && !g.Ended() {
		g.PlayerLeave(playerID)
	}
}

// GetSessions returns the seated sessions in join order (a copy).
func (r *Room) GetSessions() []*session.Session {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	sessions := make([]*session.Session, len(r.sessions))
	copy(sessions, r.sessions)
	return sessions
}

// GetSessionByPlayer resolves the seat for a stable player identifier.
func (r *Room) GetSessionByPlayer(playerID string) (*session.Session, bool) {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	s, ok := r.byPlayer[playerID]
	return s, ok
}

// Roster projects the seated players, join order preserved.
func (r *Room) Roster() []game.RosterEntry {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	roster := make([]game.RosterEntry, len(r.sessions))
	for i, s := range r.sessions {
		roster[i] = game.RosterEntry{ID: s.PlayerID, Name: s.Name}
	}
	return roster
}

// PlayerCount returns the number of seated players.
func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.sessions)
}

// --- status ---

func (r *Room) SetStatus(status RoomStatus) {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()
	r.Status = status
}

func (r *Room) GetStatus() RoomStatus {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()
	return r.Status
}

// --- game lifecycle ---

// Playlist exposes the queued games.
func (r *Room) Playlist() *playlist.Playlist {
	return r.playlist
}

// Game returns the current game instance, nil between games.
func (r *Room) Game() *game.Game {
	r.gameMutex.RLock()
	defer r.gameMutex.RUnlock()
	return r.current
}

// StartNextGame takes the next playlist entry and runs its lifecycle
// over the current roster.
func (r *Room) StartNextGame() error {
	r.gameMutex.Lock()
	if r.current != nil && !r.current.Ended() {
		r.gameMutex.Unlock()
		return ErrGameInProgress
	}
	entry, ok := r.playlist.Next()
	if !ok {
		r.current = nil
		r.gameMutex.Unlock()
		r.SetStatus(StatusWaiting)
		return ErrPlaylistEmpty
	}

	defaults := game.Settings{
		ReadyUp:        r.cfg.ReadyUp,
		ResultsTimeout: r.cfg.ResultsTimeout,
		MinPlayers:     r.cfg.MinPlayers,
	}
	g, err := game.New(entry.Name, r.Roster(), entry.Hooks, r, defaults)
	if err != nil {
		r.gameMutex.Unlock()
		return err
	}
	g.SetLeavePolicy(game.ParseLeavePolicy(r.cfg.LeavePolicy))
	r.current = g
	r.startedAt = time.Now()
	r.gameMutex.Unlock()

	r.SetStatus(StatusGaming)
	logger.Log.Infof("room %s: starting game %s (%s)", r.ID, entry.Name, g.ID())
	if r.OnGameStart != nil {
		r.OnGameStart(r.ID, entry.Name)
	}
	return g.Init()
}

// ReadyUp forwards a ready submission to the running game.
func (r *Room) ReadyUp(playerID string, payload any) (any, error) {
	g := r.Game()
	if g == nil {
		return nil, ErrNoActiveGame
	}
	return g.ReadyUp(playerID, payload)
}

// PlayerMove forwards a move to the running game.
func (r *Room) PlayerMove(playerID string, payload any) (game.Move, error) {
	g := r.Game()
	if g == nil {
		return game.Move{}, ErrNoActiveGame
	}
	return g.PlayerMove(playerID, payload)
}

// SetTurnOrder forwards an order request to the running game.
func (r *Room) SetTurnOrder(req game.OrderRequest) error {
	g := r.Game()
	if g == nil {
		return ErrNoActiveGame
	}
	g.SetTurnOrder(req)
	return nil
}

// Close tears the room down, cancelling any pending playlist advance.
func (r *Room) Close() {
	r.gameMutex.Lock()
	task := r.resultsTask
	r.resultsTask = 0
	r.gameMutex.Unlock()
	if task != 0 {
		r.timers.Cancel(task)
	}
	r.SetStatus(StatusClosed)
}

// --- game.Notifier ---

// msgIDFor maps lifecycle events onto wire message IDs.
func msgIDFor(event game.Event) uint16 {
	switch event {
	case game.EventState:
		return network.MsgTypeGameState
	case game.EventPlayerReady:
		return network.MsgTypePlayerReady
	case game.EventTurnStart:
		return network.MsgTypeTurnStart
	case game.EventMove:
		return network.MsgTypeMove
	case game.EventEnd:
		return network.MsgTypeGameEnd
	case game.EventDestroy:
		return network.MsgTypeGameDestroy
	default:
		return network.MsgTypeRoomInfo
	}
}

func (r *Room) Broadcast(event game.Event, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.broadcaster.BroadcastToRoom(r.ID, msgIDFor(event), data)
}

func (r *Room) SendTo(playerID string, event game.Event, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.broadcaster.SendToPlayer(r.ID, playerID, msgIDFor(event), data)
}

// GameEnded records the results and schedules the playlist advance once
// the results display interval elapses.
func (r *Room) GameEnded(gameID string, results any) {
	r.SetStatus(StatusResults)

	g := r.Game()
	if g == nil {
		return
	}
	duration := time.Since(r.startedAt)
	if r.OnGameEnd != nil {
		r.OnGameEnd(r.ID, g.Snapshot(), results, duration)
	}

	timeout := g.Settings().ResultsTimeout
	if timeout <= 0 {
		timeout = r.cfg.ResultsTimeout
	}
	r.gameMutex.Lock()
	r.resultsTask = r.timers.Schedule(timeout, func() {
		r.gameMutex.Lock()
		r.resultsTask = 0
		r.gameMutex.Unlock()
		if err := r.StartNextGame(); err != nil {
			if !errors.Is(err, ErrPlaylistEmpty) {
				logger.Log.Errorf("room %s: playlist advance: %v", r.ID, err)
			}
		}
	})
	r.gameMutex.Unlock()
}

// GameDestroyed clears the dead game; the room goes back to waiting.
func (r *Room) GameDestroyed(gameID string, reason string) {
	logger.Log.Infof("room %s: game %s destroyed: %s", r.ID, gameID, reason)
	r.gameMutex.Lock()
	r.current = nil
	r.gameMutex.Unlock()
	r.SetStatus(StatusWaiting)
	if r.OnGameDestroyed != nil {
		r.OnGameDestroyed(r.ID, reason)
	}
}

// --- room manager ---

// Manager owns every live room.
type Manager struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewRoomManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

func (m *Manager) CreateRoom(id, name string, maxPlayers int, password string, cfg config.GameConfig, b Broadcaster, timers *timer.Manager, pl *playlist.Playlist) *Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room := NewRoom(id, name, maxPlayers, password, cfg, b, timers, pl)
	m.rooms[id] = room
	return room
}

func (m *Manager) RemoveRoom(id string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[id]; exists {
		room.Close()
		delete(m.rooms, id)
	}
}

func (m *Manager) GetRoom(id string) (*Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	room, exists := m.rooms[id]
	return room, exists
}

// Rooms returns a copy of the live room list.
func (m *Manager) Rooms() []*Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

// FindAvailableRoom returns a joinable room, nil when none exists.
func (m *Manager) FindAvailableRoom() *Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, r := range m.rooms {
		if r.PlayerCount() < r.MaxPlayers && r.GetStatus() == StatusWaiting {
			return r
		}
	}
	return nil
}
