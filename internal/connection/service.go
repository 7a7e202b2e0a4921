// Package connection implements the consent handshake between two users.
// A pair holds at most one Connection; it is created PENDING by the requester
// and decided once by the recipient.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"
	"shelterlink/backend/internal/storage"

	"go.uber.org/zap"
)

// Actions carried in models.ConnectionEvent.
const (
	ActionRequested = "requested"
	ActionApproved  = "approved"
	ActionRejected  = "rejected"
)

// Notifier receives events after the state change is committed. It must not
// block.
type Notifier interface {
	Notify(userID string, event models.Event)
}

// Status is the answer to "are these two users connected".
type Status struct {
	Connected    bool                     `json:"connected"`
	Status       *models.ConnectionStatus `json:"status"`
	ConnectionID string                   `json:"connection_id,omitempty"`
}

func statusOf(c *models.Connection) Status {
	if c == nil {
		return Status{}
	}
	st := c.Status
	return Status{
		Connected:    st == models.ConnectionApproved,
		Status:       &st,
		ConnectionID: c.ID,
	}
}

// Peer is an approved connection seen from one side.
type Peer struct {
	Connection  models.Connection `json:"connection"`
	OtherUserID string            `json:"other_user_id"`
}

type Service struct {
	Storage  storage.Storage
	notifier Notifier
	logger   *zap.Logger
}

// NewService створює сервіс з'єднань. notifier може бути nil.
func NewService(s storage.Storage, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		Storage:  s,
		notifier: notifier,
		logger:   logging.OrNop(logger).Named("connection"),
	}
}

func (s *Service) emit(userID string, action string, conn models.Connection, actorID string) {
	if s.notifier == nil {
		return
	}
	typ := models.EventConnectionUpdate
	if action == ActionRequested {
		typ = models.EventConnectionRequest
	}
	s.notifier.Notify(userID, models.Event{
		Type: typ,
		Data: models.ConnectionEvent{Action: action, Connection: conn, ActorID: actorID},
	})
}

// conflictFor describes why an existing record blocks a new request.
func conflictFor(c *models.Connection) error {
	switch c.Status {
	case models.ConnectionApproved:
		return apperr.Conflict("already connected")
	case models.ConnectionRejected:
		return apperr.Conflict("request was declined")
	default:
		return apperr.Conflict("connection request already pending")
	}
}

// RequestConnection creates a PENDING connection from requesterID to
// recipientID and tells the recipient about it.
func (s *Service) RequestConnection(ctx context.Context, requesterID, recipientID string, message *string) (*models.Connection, error) {
	if recipientID == "" {
		return nil, apperr.Validation("recipientId is required")
	}
	if requesterID == recipientID {
		return nil, apperr.Validation("cannot connect to yourself")
	}
	if !models.ValidUserID(recipientID) {
		return nil, apperr.Validation("recipientId %q is not a valid user id", recipientID)
	}

	if _, err := s.Storage.GetUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("user %s not found", recipientID)
		}
		return nil, fmt.Errorf("lookup recipient: %w", err)
	}

	existing, err := s.Storage.FindConnectionByPair(ctx, requesterID, recipientID)
	switch {
	case err == nil:
		return nil, conflictFor(existing)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("lookup connection: %w", err)
	}

	conn := &models.Connection{
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      models.ConnectionPending,
		Message:     message,
	}
	if err := s.Storage.CreateConnection(ctx, conn); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			// lost the race against a concurrent request for the same pair
			if winner, ferr := s.Storage.FindConnectionByPair(ctx, requesterID, recipientID); ferr == nil {
				return nil, conflictFor(winner)
			}
			return nil, apperr.Conflict("connection request already pending")
		}
		return nil, fmt.Errorf("create connection: %w", err)
	}

	s.logger.Info("connection requested",
		zap.String("connection_id", conn.ID),
		zap.String("requester_id", requesterID),
		zap.String("recipient_id", recipientID))
	s.emit(recipientID, ActionRequested, *conn, requesterID)
	return conn, nil
}

// Approve moves a PENDING connection to APPROVED. Only the recipient may call it.
func (s *Service) Approve(ctx context.Context, connectionID, actingUserID string) (*models.Connection, error) {
	return s.decide(ctx, connectionID, actingUserID, models.ConnectionApproved)
}

// Reject moves a PENDING connection to REJECTED. Only the recipient may call it.
func (s *Service) Reject(ctx context.Context, connectionID, actingUserID string) (*models.Connection, error) {
	return s.decide(ctx, connectionID, actingUserID, models.ConnectionRejected)
}

func (s *Service) decide(ctx context.Context, connectionID, actingUserID string, to models.ConnectionStatus) (*models.Connection, error) {
	conn, err := s.Storage.GetConnectionByID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("connection %s not found", connectionID)
		}
		return nil, fmt.Errorf("load connection: %w", err)
	}
	if conn.RecipientID != actingUserID {
		return nil, apperr.Forbidden("only the recipient can decide on a connection request")
	}
	if conn.Status.Terminal() {
		return nil, apperr.InvalidState("connection is already %s", conn.Status)
	}

	updated, err := s.Storage.TransitionConnection(ctx, connectionID, models.ConnectionPending, to)
	if err != nil {
		if errors.Is(err, storage.ErrStale) {
			status := models.ConnectionStatus("decided")
			if updated != nil {
				status = updated.Status
			}
			return nil, apperr.InvalidState("connection is already %s", status)
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("connection %s not found", connectionID)
		}
		return nil, fmt.Errorf("transition connection: %w", err)
	}

	action := ActionApproved
	if to == models.ConnectionRejected {
		action = ActionRejected
	}
	s.logger.Info("connection decided",
		zap.String("connection_id", updated.ID),
		zap.String("status", string(updated.Status)))
	s.emit(updated.RequesterID, action, *updated, actingUserID)
	s.emit(updated.RecipientID, action, *updated, actingUserID)
	return updated, nil
}

// CheckStatus looks up the connection between userA and userB.
func (s *Service) CheckStatus(ctx context.Context, userA, userB string) (Status, error) {
	conn, err := s.Storage.FindConnectionByPair(ctx, userA, userB)
	if errors.Is(err, storage.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("check status: %w", err)
	}
	return statusOf(conn), nil
}

// StatusesForUser returns the status against every counterpart userID has a
// connection with.
func (s *Service) StatusesForUser(ctx context.Context, userID string) (map[string]Status, error) {
	conns, err := s.Storage.ListConnectionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	out := make(map[string]Status, len(conns))
	for i := range conns {
		out[conns[i].OtherParty(userID)] = statusOf(&conns[i])
	}
	return out, nil
}

// IncomingRequests returns PENDING connections addressed to userID, newest first.
func (s *Service) IncomingRequests(ctx context.Context, userID string) ([]models.Connection, error) {
	conns, err := s.Storage.ListConnectionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	out := make([]models.Connection, 0)
	for _, c := range conns {
		if c.Status == models.ConnectionPending && c.RecipientID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Connections returns the APPROVED connections of userID, most recently
// updated first.
func (s *Service) Connections(ctx context.Context, userID string) ([]Peer, error) {
	conns, err := s.Storage.ListConnectionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	out := make([]Peer, 0)
	for _, c := range conns {
		if c.Status == models.ConnectionApproved {
			out = append(out, Peer{Connection: c, OtherUserID: c.OtherParty(userID)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Connection.UpdatedAt.After(out[j].Connection.UpdatedAt)
	})
	return out, nil
}
