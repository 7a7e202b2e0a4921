package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shelterlink/backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage is the persistence contract the core depends on. Every method
// takes a context so callers can put a deadline on the round trip.
type Storage interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error

	CreateShelter(ctx context.Context, shelter *models.ShelterOffer) error
	GetShelterByID(ctx context.Context, id string) (*models.ShelterOffer, error)
	// ListActiveShelters returns active shelters whose host is not excludeHostID.
	ListActiveShelters(ctx context.Context, excludeHostID string) ([]models.ShelterOffer, error)
	ListActiveSheltersByHost(ctx context.Context, hostID string) ([]models.ShelterOffer, error)

	CreateRequest(ctx context.Context, req *models.ShelterRequest) error
	GetRequestByID(ctx context.Context, id string) (*models.ShelterRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.ShelterRequest, error)
	ListPendingRequestsBySeeker(ctx context.Context, seekerID string) ([]models.ShelterRequest, error)

	// CreateConnection returns ErrDuplicate when the pair already has a record.
	CreateConnection(ctx context.Context, conn *models.Connection) error
	GetConnectionByID(ctx context.Context, id string) (*models.Connection, error)
	FindConnectionByPair(ctx context.Context, userA, userB string) (*models.Connection, error)
	ListConnectionsForUser(ctx context.Context, userID string) ([]models.Connection, error)
	// TransitionConnection sets status to `to` only if it is still `from`.
	// It returns ErrStale when the row exists in another state.
	TransitionConnection(ctx context.Context, id string, from, to models.ConnectionStatus) (*models.Connection, error)

	// CreateMessage binds the conversation to the sender/recipient pair on
	// its first message and returns ErrConversationTaken when another pair
	// holds it. Binding and insert are atomic.
	CreateMessage(ctx context.Context, msg *models.Message) error
	FirstMessageInConversation(ctx context.Context, conversationID string) (*models.Message, error)
	ListMessagesForUser(ctx context.Context, userID string) ([]models.Message, error)
	ListConversationMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, recipientID string) (int64, error)
	MarkMessageRead(ctx context.Context, messageID, recipientID string) (*models.Message, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

// Service implements Storage on PostgreSQL through gorm.
type Service struct {
	DB *gorm.DB
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// Open connects to PostgreSQL. TranslateError lets us detect unique index
// violations as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates all tables used by the core.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(
		&models.User{},
		&models.ShelterOffer{},
		&models.ShelterRequest{},
		&models.Connection{},
		&models.Conversation{},
		&models.Message{},
	)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) CreateShelter(ctx context.Context, shelter *models.ShelterOffer) error {
	return s.DB.WithContext(ctx).Create(shelter).Error
}

func (s *Service) GetShelterByID(ctx context.Context, id string) (*models.ShelterOffer, error) {
	var shelter models.ShelterOffer
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&shelter).Error; err != nil {
		return nil, notFound(err)
	}
	return &shelter, nil
}

func (s *Service) ListActiveShelters(ctx context.Context, excludeHostID string) ([]models.ShelterOffer, error) {
	var shelters []models.ShelterOffer
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Where("host_id <> ?", excludeHostID).
		Order("created_at asc").
		Find(&shelters).Error
	return shelters, err
}

func (s *Service) ListActiveSheltersByHost(ctx context.Context, hostID string) ([]models.ShelterOffer, error) {
	var shelters []models.ShelterOffer
	err := s.DB.WithContext(ctx).
		Where("is_active = ? AND host_id = ?", true, hostID).
		Order("created_at asc").
		Find(&shelters).Error
	return shelters, err
}

func (s *Service) CreateRequest(ctx context.Context, req *models.ShelterRequest) error {
	return s.DB.WithContext(ctx).Create(req).Error
}

func (s *Service) GetRequestByID(ctx context.Context, id string) (*models.ShelterRequest, error) {
	var req models.ShelterRequest
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, notFound(err)
	}
	return &req, nil
}

func (s *Service) ListPendingRequests(ctx context.Context) ([]models.ShelterRequest, error) {
	var reqs []models.ShelterRequest
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.RequestPending).
		Order("created_at asc").
		Find(&reqs).Error
	return reqs, err
}

func (s *Service) ListPendingRequestsBySeeker(ctx context.Context, seekerID string) ([]models.ShelterRequest, error) {
	var reqs []models.ShelterRequest
	err := s.DB.WithContext(ctx).
		Where("status = ? AND seeker_id = ?", models.RequestPending, seekerID).
		Order("created_at asc").
		Find(&reqs).Error
	return reqs, err
}

// CreateConnection relies on the unique index over pair_key, so two
// concurrent requests for the same pair cannot both be inserted.
func (s *Service) CreateConnection(ctx context.Context, conn *models.Connection) error {
	conn.PairKey = models.PairKey(conn.RequesterID, conn.RecipientID)
	err := s.DB.WithContext(ctx).Create(conn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (s *Service) GetConnectionByID(ctx context.Context, id string) (*models.Connection, error) {
	var conn models.Connection
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&conn).Error; err != nil {
		return nil, notFound(err)
	}
	return &conn, nil
}

func (s *Service) FindConnectionByPair(ctx context.Context, userA, userB string) (*models.Connection, error) {
	var conn models.Connection
	err := s.DB.WithContext(ctx).
		Where("pair_key = ?", models.PairKey(userA, userB)).
		First(&conn).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conn, nil
}

func (s *Service) ListConnectionsForUser(ctx context.Context, userID string) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.DB.WithContext(ctx).
		Where("requester_id = ? OR recipient_id = ?", userID, userID).
		Order("updated_at desc").
		Find(&conns).Error
	return conns, err
}

// TransitionConnection is a conditional update keyed on the current status.
// Of two concurrent decisions on the same connection only one matches the
// WHERE clause; the other sees zero affected rows.
func (s *Service) TransitionConnection(ctx context.Context, id string, from, to models.ConnectionStatus) (*models.Connection, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.Connection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	conn, err := s.GetConnectionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return conn, ErrStale
	}
	return conn, nil
}
