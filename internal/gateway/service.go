package gateway

import (
	"context"
	"net/http"

	"github.com/mcdev12/draftroom/internal/engine"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/rs/zerolog/log"
)

// Engine is what the gateway needs from the draft engine. Implemented by
// engine.Manager.
type Engine interface {
	CreateRoom(ctx context.Context, cfg models.RoomConfig) (*engine.Room, error)
	Snapshot(roomID string) (engine.Snapshot, error)
	ListRooms() []engine.RoomSummary
	SubmitPick(ctx context.Context, roomID string, pickNumber, seatIndex int, playerID string) (models.Pick, error)
	UpdateQueue(ctx context.Context, roomID string, seatIndex int, playerIDs []string) error
	AppendToQueue(ctx context.Context, roomID string, seatIndex int, playerID string) error
	RemoveFromQueue(ctx context.Context, roomID string, seatIndex int, playerID string) error
	SetReady(ctx context.Context, roomID string, seatIndex int) error
	Pause(ctx context.Context, roomID, reason string) error
	Resume(ctx context.Context, roomID string) error
}

// Service is the client-facing surface: the WebSocket event feed plus REST
// endpoints for room management and snapshots.
type Service struct {
	eng               Engine
	connectionManager *ConnectionManager
}

// Config holds configuration for the gateway service.
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns the stock gateway configuration.
func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService creates a gateway over eng, fed by bus.
func NewService(config Config, eng Engine, bus eventbus.Bus) *Service {
	s := &Service{eng: eng}
	s.connectionManager = NewConnectionManager(config.ConnectionConfig, bus, s)
	return s
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)
}

// RegisterRoutes attaches the gateway's HTTP surface to mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms", s.handleRoomConnection)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/rooms/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /api/rooms/{id}/resume", s.handleResume)
	mux.HandleFunc("GET /ws/stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	log.Info().Msg("gateway routes registered")
}

// HandleCommand dispatches a client command received over a WebSocket.
func (s *Service) HandleCommand(ctx context.Context, conn *Connection, cmd ClientCommand) {
	switch cmd.Action {
	case ActionSubmitPick:
		_, err := s.eng.SubmitPick(ctx, conn.RoomID, cmd.PickNumber, cmd.SeatIndex, cmd.PlayerID)
		if err != nil {
			// A stale request means the pick already resolved; the client
			// sees the outcome on the event feed, so no error goes back.
			if code := errorCode(err); code != CodeStaleRequest {
				conn.sendError(code, err.Error())
			}
			return
		}
		conn.sendMessage(MessageAck, ackBody{Action: cmd.Action, PickNumber: cmd.PickNumber})

	case ActionUpdateQueue:
		if err := s.eng.UpdateQueue(ctx, conn.RoomID, cmd.SeatIndex, cmd.PlayerIDs); err != nil {
			conn.sendError(errorCode(err), err.Error())
			return
		}
		conn.sendMessage(MessageAck, ackBody{Action: cmd.Action})

	case ActionQueueAdd:
		if cmd.PlayerID == "" {
			conn.sendError(CodeMalformed, "player_id is required")
			return
		}
		if err := s.eng.AppendToQueue(ctx, conn.RoomID, cmd.SeatIndex, cmd.PlayerID); err != nil {
			conn.sendError(errorCode(err), err.Error())
			return
		}
		conn.sendMessage(MessageAck, ackBody{Action: cmd.Action})

	case ActionQueueRemove:
		if cmd.PlayerID == "" {
			conn.sendError(CodeMalformed, "player_id is required")
			return
		}
		if err := s.eng.RemoveFromQueue(ctx, conn.RoomID, cmd.SeatIndex, cmd.PlayerID); err != nil {
			conn.sendError(errorCode(err), err.Error())
			return
		}
		conn.sendMessage(MessageAck, ackBody{Action: cmd.Action})

	case ActionReady:
		if err := s.eng.SetReady(ctx, conn.RoomID, cmd.SeatIndex); err != nil {
			conn.sendError(errorCode(err), err.Error())
			return
		}
		conn.sendMessage(MessageAck, ackBody{Action: cmd.Action})

	default:
		conn.sendError(CodeMalformed, "unknown action "+cmd.Action)
	}
}
