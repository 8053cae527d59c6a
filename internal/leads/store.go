package leads

import (
	"context"
	"fmt"
	"strings"

	"github.com/vektor-web/leadbot/internal/db"
	"github.com/vektor-web/leadbot/internal/models"
	"gorm.io/gorm"
)

// Store persists leads through GORM.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over an open connection.
func NewStore(conn *gorm.DB) *Store {
	return &Store{db: conn}
}

// Create inserts a new lead.
func (s *Store) Create(ctx context.Context, lead *models.Lead) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("leads: store not initialized")
	}
	if errCreate := s.db.WithContext(ctx).Create(lead).Error; errCreate != nil {
		return fmt.Errorf("leads: create: %w", errCreate)
	}
	return nil
}

// MarkDelivered flags a lead whose owner notification went out.
func (s *Store) MarkDelivered(ctx context.Context, requestID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("leads: store not initialized")
	}
	result := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("request_id = ?", requestID).
		Update("delivered", true)
	if result.Error != nil {
		return fmt.Errorf("leads: mark delivered: %w", result.Error)
	}
	return nil
}

// ListOptions filters and pages the lead listing.
type ListOptions struct {
	Limit  int    // Page size, capped at 200.
	Offset int    // Rows to skip.
	Source string // Optional source filter.
	Search string // Optional substring match on name, contact and message.
}

// List returns leads ordered newest first plus the total count for the
// same filter.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.Lead, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("leads: store not initialized")
	}
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&models.Lead{})
	if source := strings.TrimSpace(opts.Source); source != "" {
		query = query.Where("source = ?", source)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := db.NormalizeLikePattern(s.db, "%"+search+"%")
		like := func(column string) string { return db.CaseInsensitiveLikeExpr(s.db, column) }
		query = query.Where(
			s.db.Where(like("name"), pattern).
				Or(like("contact"), pattern).
				Or(like("message"), pattern),
		)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("leads: count: %w", errCount)
	}

	var rows []models.Lead
	if errFind := query.
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&rows).Error; errFind != nil {
		return nil, 0, fmt.Errorf("leads: list: %w", errFind)
	}
	return rows, total, nil
}

// ByRequestID loads a single lead by its public request id.
func (s *Store) ByRequestID(ctx context.Context, requestID string) (*models.Lead, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("leads: store not initialized")
	}
	var lead models.Lead
	if errFind := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		First(&lead).Error; errFind != nil {
		return nil, fmt.Errorf("leads: find %s: %w", requestID, errFind)
	}
	return &lead, nil
}
