package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"gorm.io/gorm"
)

// ActivityQuery narrows activity list reads
type ActivityQuery struct {
	Fields []string
	Action string
	Limit  int
}

// HistoryEntry pairs an activity row with its revision, if any
type HistoryEntry struct {
	Activity domain.Activity  `json:"activity"`
	Revision *domain.Revision `json:"revision,omitempty"`
}

// ActivityRepository append-only activity/revision data access
type ActivityRepository interface {
	Create(tx *gorm.DB, a *domain.Activity) error
	CreateRevision(tx *gorm.DB, rev *domain.Revision) error
	FindByID(ctx context.Context, id uint64) (*domain.Activity, error)
	FindAll(ctx context.Context, q ActivityQuery) ([]domain.Activity, error)
	History(ctx context.Context, collection, item string) ([]HistoryEntry, error)
	LatestRevision(tx *gorm.DB, collection, item string) (*domain.Revision, error)
	UpdateComment(tx *gorm.DB, id uint64, comment string, editedOn time.Time) error
	SoftDeleteComment(tx *gorm.DB, id uint64, deletedOn time.Time) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Create(tx *gorm.DB, a *domain.Activity) error {
	return tx.Create(a).Error
}

func (r *activityRepository) CreateRevision(tx *gorm.DB, rev *domain.Revision) error {
	return tx.Create(rev).Error
}

func (r *activityRepository) FindByID(ctx context.Context, id uint64) (*domain.Activity, error) {
	var a domain.Activity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrActivityNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *activityRepository) FindAll(ctx context.Context, q ActivityQuery) ([]domain.Activity, error) {
	query := r.db.WithContext(ctx).Model(&domain.Activity{})
	if len(q.Fields) > 0 {
		query = query.Select(q.Fields)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var entries []domain.Activity
	err := query.Order("id ASC").Find(&entries).Error
	return entries, err
}

// History returns all activity for one item in ascending timestamp
// order, id as tiebreak, each joined with its revision. The result is a
// finite per-call snapshot; callers re-query for fresh data.
func (r *activityRepository) History(ctx context.Context, collection, item string) ([]HistoryEntry, error) {
	var activities []domain.Activity
	err := r.db.WithContext(ctx).
		Where("collection = ? AND item = ?", collection, item).
		Order("action_on ASC, id ASC").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, nil
	}

	ids := make([]uint64, len(activities))
	for i, a := range activities {
		ids[i] = a.ID
	}
	var revisions []domain.Revision
	if err := r.db.WithContext(ctx).Where("activity IN ?", ids).Find(&revisions).Error; err != nil {
		return nil, err
	}
	byActivity := make(map[uint64]*domain.Revision, len(revisions))
	for i := range revisions {
		byActivity[revisions[i].Activity] = &revisions[i]
	}

	entries := make([]HistoryEntry, len(activities))
	for i, a := range activities {
		entries[i] = HistoryEntry{Activity: a, Revision: byActivity[a.ID]}
	}
	return entries, nil
}

func (r *activityRepository) LatestRevision(tx *gorm.DB, collection, item string) (*domain.Revision, error) {
	var rev domain.Revision
	err := tx.Where("collection = ? AND item = ?", collection, item).
		Order("id DESC").
		First(&rev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rev, nil
}

func (r *activityRepository) UpdateComment(tx *gorm.DB, id uint64, comment string, editedOn time.Time) error {
	return tx.Model(&domain.Activity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"comment": comment, "edited_on": editedOn}).Error
}

// SoftDeleteComment marks the comment deleted; the row stays for audit
func (r *activityRepository) SoftDeleteComment(tx *gorm.DB, id uint64, deletedOn time.Time) error {
	return tx.Model(&domain.Activity{}).
		Where("id = ?", id).
		Update("comment_deleted_on", deletedOn).Error
}
