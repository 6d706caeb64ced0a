package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dev7ch/api/internal/analytics"
	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"gorm.io/gorm"
)

// RecordInput describes one mutation to document. Before is empty for
// creates, After is empty for deletes.
type RecordInput struct {
	Action     string
	Actor      int64
	IP         string
	UserAgent  string
	Collection string
	Item       string
	Before     domain.Record
	After      domain.Record
	Comment    string

	// set when the mutation happened through a parent item's nested form
	ParentCollection string
	ParentItem       string
}

// ActivityService is the revision/activity tracker. Record must run on
// the same transaction as the mutation it documents so that activity
// history can never diverge from actual data state.
type ActivityService interface {
	Record(tx *gorm.DB, in RecordInput) (*domain.Activity, error)
	History(ctx context.Context, collection, item string) ([]repository.HistoryEntry, error)
	Find(ctx context.Context, id uint64) (*domain.Activity, error)
	FindAll(ctx context.Context, q repository.ActivityQuery) ([]domain.Activity, error)
	Comment(ctx context.Context, actor int64, collection, item, comment string) (*domain.Activity, error)
	UpdateComment(ctx context.Context, id uint64, actor int64, comment string) (*domain.Activity, error)
	SoftDeleteComment(ctx context.Context, id uint64, actor int64) error
}

type activityService struct {
	db     *gorm.DB
	repo   repository.ActivityRepository
	mirror *analytics.Mirror
}

// NewActivityService creates a new ActivityService
func NewActivityService(db *gorm.DB, repo repository.ActivityRepository, mirror *analytics.Mirror) ActivityService {
	return &activityService{db: db, repo: repo, mirror: mirror}
}

// Record writes the activity entry and, for create/update/delete, its
// revision. The revision stores the full post-mutation snapshot and the
// field-level delta against the before snapshot.
func (s *activityService) Record(tx *gorm.DB, in RecordInput) (*domain.Activity, error) {
	activity := &domain.Activity{
		Action:     in.Action,
		ActionBy:   in.Actor,
		ActionOn:   time.Now(),
		IP:         in.IP,
		UserAgent:  in.UserAgent,
		Collection: in.Collection,
		Item:       in.Item,
		Comment:    in.Comment,
	}
	if err := s.repo.Create(tx, activity); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}

	switch in.Action {
	case domain.ActionCreate, domain.ActionUpdate, domain.ActionDelete:
	default:
		return activity, nil
	}

	data, err := json.Marshal(in.After)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	delta, err := json.Marshal(ComputeDelta(in.Before, in.After))
	if err != nil {
		return nil, fmt.Errorf("marshal delta: %w", err)
	}

	revision := &domain.Revision{
		Activity:         activity.ID,
		Collection:       in.Collection,
		Item:             in.Item,
		Data:             data,
		Delta:            delta,
		ParentCollection: in.ParentCollection,
		ParentItem:       in.ParentItem,
		ParentChanged:    domain.Bool(in.ParentCollection != ""),
	}
	if err := s.repo.CreateRevision(tx, revision); err != nil {
		return nil, fmt.Errorf("record revision: %w", err)
	}

	if s.mirror != nil {
		s.mirror.Record(activity)
	}
	return activity, nil
}

// ComputeDelta returns the field-level differences between two
// snapshots as field -> [old, new]. Unchanged fields are omitted.
func ComputeDelta(before, after domain.Record) domain.Delta {
	delta := domain.Delta{}
	for field, newVal := range after {
		oldVal, existed := before[field]
		if !existed {
			delta[field] = []interface{}{nil, newVal}
			continue
		}
		if !equalValue(oldVal, newVal) {
			delta[field] = []interface{}{oldVal, newVal}
		}
	}
	for field, oldVal := range before {
		if _, still := after[field]; !still {
			delta[field] = []interface{}{oldVal, nil}
		}
	}
	return delta
}

// equalValue compares snapshot values loosely: drivers return the same
// column as int64, float64 or string depending on the round trip, so
// the canonical string form decides equality for scalars.
func equalValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Replay folds a history forward and returns the reconstructed latest
// snapshot. Applying every delta in order from the first revision must
// reproduce the last stored snapshot exactly. A delete restores its
// stored snapshot: empty for a hard delete, the flagged row for a soft
// delete, so the round trip holds for both.
func Replay(entries []repository.HistoryEntry) (domain.Record, error) {
	current := domain.Record{}
	for _, e := range entries {
		if e.Revision == nil {
			continue
		}
		if e.Activity.Action == domain.ActionDelete {
			snap, err := e.Revision.Snapshot()
			if err != nil {
				return nil, err
			}
			current = snap
			continue
		}
		delta, err := e.Revision.Changes()
		if err != nil {
			return nil, err
		}
		current = delta.Apply(current)
	}
	return current, nil
}

func (s *activityService) History(ctx context.Context, collection, item string) ([]repository.HistoryEntry, error) {
	return s.repo.History(ctx, collection, item)
}

func (s *activityService) Find(ctx context.Context, id uint64) (*domain.Activity, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *activityService) FindAll(ctx context.Context, q repository.ActivityQuery) ([]domain.Activity, error) {
	return s.repo.FindAll(ctx, q)
}

// Comment appends a comment entry for an item. Comments have no
// revision and no backing mutation, so they run on their own transaction.
func (s *activityService) Comment(ctx context.Context, actor int64, collection, item, comment string) (*domain.Activity, error) {
	var activity *domain.Activity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		activity, err = s.Record(tx, RecordInput{
			Action:     domain.ActionComment,
			Actor:      actor,
			Collection: collection,
			Item:       item,
			Comment:    comment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// UpdateComment edits a comment's text and stamps edited_on. Only the
// comment's author may edit it.
func (s *activityService) UpdateComment(ctx context.Context, id uint64, actor int64, comment string) (*domain.Activity, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.IsComment() {
		return nil, common.ErrNotAComment
	}
	if entry.ActionBy != actor {
		return nil, common.ErrForbidden
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.UpdateComment(tx, id, comment, now)
	})
	if err != nil {
		return nil, err
	}
	entry.Comment = comment
	entry.EditedOn = &now
	return entry, nil
}

// SoftDeleteComment marks a comment deleted without removing the row;
// the audit trail keeps it forever.
func (s *activityService) SoftDeleteComment(ctx context.Context, id uint64, actor int64) error {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !entry.IsComment() {
		return common.ErrNotAComment
	}
	if entry.ActionBy != actor {
		return common.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.SoftDeleteComment(tx, id, time.Now())
	})
}
