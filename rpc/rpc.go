package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/turnserver/logger"
	"github.com/wfunc/turnserver/models"
	"github.com/wfunc/turnserver/room"
	"github.com/wfunc/turnserver/services"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the
// caller before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService exposes the operator surface over net/rpc: live room
// inspection, player aggregates, and room game history.
type AdminService struct {
	rooms   *room.Manager
	results *services.ResultService
}

func NewAdminService(rooms *room.Manager, results *services.ResultService) *AdminService {
	return &AdminService{rooms: rooms, results: results}
}

type RoomSummary struct {
	ID          string
	Name        string
	Status      int
	PlayerCount int
	MaxPlayers  int
	GameID      string
	GameName    string
	QueuedGames []string
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms []RoomSummary
}

func (a *AdminService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, r := range a.rooms.Rooms() {
		summary := RoomSummary{
			ID:          r.ID,
			Name:        r.Name,
			Status:      int(r.GetStatus()),
			PlayerCount: r.PlayerCount(),
			MaxPlayers:  r.MaxPlayers,
			QueuedGames: r.Playlist().Names(),
		}
		if g := r.Game(); g != nil {
			summary.GameID = g.ID()
			summary.GameName = g.Name()
		}
		reply.Rooms = append(reply.Rooms, summary)
	}
	return nil
}

type PlayerStatsArgs struct {
	PlayerID string
}

type PlayerStatsReply struct {
	Stats *models.PlayerStats
}

func (a *AdminService) GetPlayerStats(args *PlayerStatsArgs, reply *PlayerStatsReply) error {
	stats, err := a.results.PlayerStats(args.PlayerID)
	if err != nil {
		return err
	}
	reply.Stats = stats
	return nil
}

type RoomHistoryArgs struct {
	RoomID string
	Limit  int
}

type RoomHistoryReply struct {
	Records []*models.GameRecord
}

func (a *AdminService) GetRoomHistory(args *RoomHistoryArgs, reply *RoomHistoryReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}
	records, err := a.results.RoomHistory(args.RoomID, limit)
	if err != nil {
		return err
	}
	reply.Records = records
	return nil
}
