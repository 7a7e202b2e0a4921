package matching

import (
	"context"
	"errors"
	"fmt"

	"shelterlink/backend/internal/apperr"
	"shelterlink/backend/internal/config"
	"shelterlink/backend/internal/logging"
	"shelterlink/backend/internal/models"
	"shelterlink/backend/internal/storage"

	"go.uber.org/zap"
)

// Service runs matching queries against live storage snapshots. Results are
// recomputed on every call.
type Service struct {
	Storage  storage.Storage
	Defaults config.MatchingConfig
	logger   *zap.Logger
}

// NewService створює новий сервіс пошуку.
func NewService(s storage.Storage, defaults config.MatchingConfig, logger *zap.Logger) *Service {
	return &Service{
		Storage:  s,
		Defaults: defaults,
		logger:   logging.OrNop(logger).Named("matching"),
	}
}

// SeekerMatches is the grouped result for a seeker's open requests.
type SeekerMatches struct {
	Groups        []RequestGroup `json:"matches_by_request"`
	TotalMatches  int            `json:"total_matches"`
	MaxDistanceKm float64        `json:"max_distance_km"`
}

// ParamsFrom fills omitted values from the configured defaults and caps the
// limit. Explicit non-positive values are kept so Validate rejects them.
func (s *Service) ParamsFrom(maxDistanceKm *float64, limit *int) Params {
	p := Params{MaxDistanceKm: s.Defaults.DefaultMaxDistanceKm, Limit: s.Defaults.DefaultLimit}
	if maxDistanceKm != nil {
		p.MaxDistanceKm = *maxDistanceKm
	}
	if limit != nil {
		p.Limit = *limit
	}
	if s.Defaults.MaxLimit > 0 && p.Limit > s.Defaults.MaxLimit {
		p.Limit = s.Defaults.MaxLimit
	}
	return p
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Defaults.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Defaults.QueryTimeout)
}

// fail translates a collaborator error; an expired deadline becomes Timeout.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("matching query timed out", zap.String("op", op))
		return apperr.Timeout(context.DeadlineExceeded, "%s", op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// finish makes sure a ranking computed after the deadline is not returned.
func (s *Service) finish(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return s.fail(ctx, op, err)
	}
	return nil
}

// MatchesForSeeker returns one ranked group per open request of seekerID.
func (s *Service) MatchesForSeeker(ctx context.Context, seekerID string, p Params) (*SeekerMatches, error) {
	const op = "matches for seeker"
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	requests, err := s.Storage.ListPendingRequestsBySeeker(ctx, seekerID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	result := &SeekerMatches{Groups: []RequestGroup{}, MaxDistanceKm: p.MaxDistanceKm}
	if len(requests) == 0 {
		return result, nil
	}

	shelters, err := s.Storage.ListActiveShelters(ctx, seekerID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	groups, err := GroupByRequest(requests, shelters, p)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, op); err != nil {
		return nil, err
	}

	result.Groups = groups
	for _, g := range groups {
		result.TotalMatches += g.MatchCount
	}
	s.logger.Debug("seeker matches computed",
		zap.String("seeker_id", seekerID),
		zap.Int("requests", len(requests)),
		zap.Int("shelters", len(shelters)),
		zap.Int("total_matches", result.TotalMatches))
	return result, nil
}

// MatchesForRequest ranks shelters for a single request owned by seekerID.
func (s *Service) MatchesForRequest(ctx context.Context, seekerID, requestID string, p Params) ([]ShelterMatch, error) {
	const op = "matches for request"
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	req, err := s.Storage.GetRequestByID(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && req.SeekerID != seekerID) {
		return nil, apperr.NotFound("request %s not found", requestID)
	}
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	shelters, err := s.Storage.ListActiveShelters(ctx, seekerID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	matches, err := MatchRequestToShelters(*req, shelters, p)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, op); err != nil {
		return nil, err
	}
	return matches, nil
}

// RequestsForShelter ranks pending requests for one active shelter owned by hostID.
func (s *Service) RequestsForShelter(ctx context.Context, hostID, shelterID string, p Params) ([]RequestMatch, error) {
	const op = "requests for shelter"
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	shelter, err := s.Storage.GetShelterByID(ctx, shelterID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && (shelter.HostID != hostID || !shelter.IsActive)) {
		return nil, apperr.NotFound("shelter %s not found", shelterID)
	}
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	requests, err := s.Storage.ListPendingRequests(ctx)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	matches, err := MatchShelterToRequests(*shelter, requests, p)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, op); err != nil {
		return nil, err
	}
	return matches, nil
}

// MatchesForHost ranks pending requests across all active shelters of hostID.
func (s *Service) MatchesForHost(ctx context.Context, hostID string, p Params) ([]RequestMatch, error) {
	const op = "matches for host"
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	shelters, err := s.Storage.ListActiveSheltersByHost(ctx, hostID)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	if len(shelters) == 0 {
		return []RequestMatch{}, nil
	}

	requests, err := s.Storage.ListPendingRequests(ctx)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	matches, err := MatchSheltersToRequests(shelters, requests, p)
	if err != nil {
		return nil, err
	}
	if err := s.finish(ctx, op); err != nil {
		return nil, err
	}
	s.logger.Debug("host matches computed",
		zap.String("host_id", hostID),
		zap.Int("shelters", len(shelters)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// CreateShelter stores a new offer for hostID after checking its window.
func (s *Service) CreateShelter(ctx context.Context, hostID string, shelter *models.ShelterOffer) error {
	shelter.HostID = hostID
	if !shelter.ValidWindow() {
		return apperr.Validation("availableFrom must not be after availableTo")
	}
	if shelter.Capacity <= 0 {
		return apperr.Validation("capacity must be positive")
	}
	shelter.IsActive = true
	if err := s.Storage.CreateShelter(ctx, shelter); err != nil {
		return fmt.Errorf("create shelter: %w", err)
	}
	return nil
}

// CreateRequest stores a new pending request for seekerID.
func (s *Service) CreateRequest(ctx context.Context, seekerID string, req *models.ShelterRequest) error {
	req.SeekerID = seekerID
	if req.NumberOfPeople <= 0 {
		return apperr.Validation("numberOfPeople must be positive")
	}
	req.Status = models.RequestPending
	if err := s.Storage.CreateRequest(ctx, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}
