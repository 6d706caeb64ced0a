package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/schema"
	"github.com/dev7ch/api/pkg/cache"
	"github.com/dev7ch/api/pkg/search"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CapabilityFunc answers whether the acting user may perform an action
// on a collection. It is passed per call; the facade never reads
// ambient permission state.
type CapabilityFunc func(collection, action string) bool

// auditCollections never accept writes through the facade; the tracker
// is their only writer. File and folder descriptors stay open because
// the files service mutates them through here.
var auditCollections = map[string]bool{
	"dev7_activity":  true,
	"dev7_revisions": true,
}

// QueryOptions narrows read operations
type QueryOptions struct {
	Fields []string
	Filter map[string]interface{}
	Limit  int
	Depth  int
}

// MutationOptions carries the acting user and per-call policy hooks
type MutationOptions struct {
	Actor     int64
	IP        string
	UserAgent string
	Comment   string
	Can       CapabilityFunc

	// set when mutating through a parent item's nested form
	ParentCollection string
	ParentItem       string
}

// ItemService is the generic CRUD facade over arbitrary collections.
// Every mutation runs the Validate -> Resolve -> Persist -> Record
// pipeline inside one transaction; any failing stage aborts all of it.
type ItemService interface {
	Create(ctx context.Context, collection string, payload domain.Record, opts MutationOptions) (domain.Record, error)
	Update(ctx context.Context, collection string, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error)
	Delete(ctx context.Context, collection string, id interface{}, opts MutationOptions) error
	Find(ctx context.Context, collection string, id interface{}, q QueryOptions) (domain.Record, error)
	FindAll(ctx context.Context, collection string, q QueryOptions) ([]domain.Record, error)
}

type itemService struct {
	db        *gorm.DB
	registry  *schema.Registry
	relations RelationService
	tracker   ActivityService
	items     repository.ItemRepository
	cache     cache.Service
	indexer   *search.Indexer
}

// NewItemService creates a new ItemService
func NewItemService(
	db *gorm.DB,
	registry *schema.Registry,
	relations RelationService,
	tracker ActivityService,
	items repository.ItemRepository,
	cacheSvc cache.Service,
	indexer *search.Indexer,
) ItemService {
	return &itemService{
		db:        db,
		registry:  registry,
		relations: relations,
		tracker:   tracker,
		items:     items,
		cache:     cacheSvc,
		indexer:   indexer,
	}
}

// Create inserts a record and documents it as one transactional unit
func (s *itemService) Create(ctx context.Context, collection string, payload domain.Record, opts MutationOptions) (domain.Record, error) {
	if auditCollections[collection] {
		return nil, fmt.Errorf("%w: %s", common.ErrCollectionProtected, collection)
	}
	if !s.registry.IsManaged(collection) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotManaged, collection)
	}
	if opts.Can != nil && !opts.Can(collection, domain.ActionCreate) {
		return nil, common.ErrForbidden
	}

	values, err := s.validate(collection, payload, true)
	if err != nil {
		return nil, err
	}
	if relErr := s.relations.ValidateReferences(ctx, collection, values); relErr != nil {
		return nil, relErr
	}

	pk := s.registry.PrimaryKey(collection)
	var created domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.insertID(tx, collection, pk, values)
		if err != nil {
			return err
		}
		created, err = s.items.FindByIDTx(tx, collection, pk, id)
		if err != nil {
			return err
		}
		_, err = s.tracker.Record(tx, RecordInput{
			Action:           domain.ActionCreate,
			Actor:            opts.Actor,
			IP:               opts.IP,
			UserAgent:        opts.UserAgent,
			Collection:       collection,
			Item:             fmt.Sprint(id),
			Before:           domain.Record{},
			After:            created,
			Comment:          opts.Comment,
			ParentCollection: opts.ParentCollection,
			ParentItem:       opts.ParentItem,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, collection, created[pk], created, false)
	return created, nil
}

// insertID creates the row, honoring client-supplied primary keys
func (s *itemService) insertID(tx *gorm.DB, collection, pk string, values domain.Record) (interface{}, error) {
	if supplied, ok := values[pk]; ok && supplied != nil {
		if err := tx.Table(collection).Create(map[string]interface{}(values)).Error; err != nil {
			return nil, err
		}
		return supplied, nil
	}
	return s.items.Insert(tx, collection, values)
}

// Update applies a partial payload: omitted fields keep their prior
// values, readonly fields in the payload are dropped without error.
func (s *itemService) Update(ctx context.Context, collection string, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error) {
	if auditCollections[collection] {
		return nil, fmt.Errorf("%w: %s", common.ErrCollectionProtected, collection)
	}
	if !s.registry.IsManaged(collection) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotManaged, collection)
	}
	if opts.Can != nil && !opts.Can(collection, domain.ActionUpdate) {
		return nil, common.ErrForbidden
	}

	pk := s.registry.PrimaryKey(collection)
	before, err := s.items.FindByID(ctx, collection, pk, id)
	if err != nil {
		return nil, err
	}

	values, err := s.validate(collection, payload, false)
	if err != nil {
		return nil, err
	}
	delete(values, pk)
	if len(values) == 0 {
		// nothing left after dropping readonly/alias fields
		return before, nil
	}
	if relErr := s.relations.ValidateReferences(ctx, collection, values); relErr != nil {
		return nil, relErr
	}

	var after domain.Record
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.items.UpdateByID(tx, collection, pk, id, values); err != nil {
			return err
		}
		after, err = s.items.FindByIDTx(tx, collection, pk, id)
		if err != nil {
			return err
		}
		_, err = s.tracker.Record(tx, RecordInput{
			Action:           domain.ActionUpdate,
			Actor:            opts.Actor,
			IP:               opts.IP,
			UserAgent:        opts.UserAgent,
			Collection:       collection,
			Item:             fmt.Sprint(id),
			Before:           before,
			After:            after,
			Comment:          opts.Comment,
			ParentCollection: opts.ParentCollection,
			ParentItem:       opts.ParentItem,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, collection, id, after, false)
	return after, nil
}

// Delete removes a record. Collections whose status field maps a
// soft_delete value get flagged instead of removed; the policy lives in
// the registry, never here.
func (s *itemService) Delete(ctx context.Context, collection string, id interface{}, opts MutationOptions) error {
	if auditCollections[collection] {
		return fmt.Errorf("%w: %s", common.ErrCollectionProtected, collection)
	}
	if !s.registry.IsManaged(collection) {
		return fmt.Errorf("%w: %s", common.ErrNotManaged, collection)
	}
	if opts.Can != nil && !opts.Can(collection, domain.ActionDelete) {
		return common.ErrForbidden
	}

	pk := s.registry.PrimaryKey(collection)
	before, err := s.items.FindByID(ctx, collection, pk, id)
	if err != nil {
		return err
	}

	statusField, softValue, soft := s.registry.SoftDeletePolicy(collection)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		after := domain.Record{}
		if soft {
			if err := s.items.UpdateByID(tx, collection, pk, id, map[string]interface{}{statusField: softValue}); err != nil {
				return err
			}
			var err error
			after, err = s.items.FindByIDTx(tx, collection, pk, id)
			if err != nil {
				return err
			}
		} else {
			if err := s.items.DeleteByID(tx, collection, pk, id); err != nil {
				return err
			}
		}
		_, err := s.tracker.Record(tx, RecordInput{
			Action:     domain.ActionDelete,
			Actor:      opts.Actor,
			IP:         opts.IP,
			UserAgent:  opts.UserAgent,
			Collection: collection,
			Item:       fmt.Sprint(id),
			Before:     before,
			After:      after,
			Comment:    opts.Comment,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.afterMutation(ctx, collection, id, nil, !soft)
	return nil
}

// Find reads one record, serving repeat lookups from cache. Reads never
// touch the tracker.
func (s *itemService) Find(ctx context.Context, collection string, id interface{}, q QueryOptions) (domain.Record, error) {
	pk := s.registry.PrimaryKey(collection)

	var record domain.Record
	cacheable := s.cache != nil && q.Depth == 0
	if cacheable {
		var cached domain.Record
		if err := s.cache.GetItem(ctx, collection, id, &cached); err == nil {
			return s.projected(collection, cached, q.Fields)
		}
	}

	record, err := s.items.FindByID(ctx, collection, pk, id)
	if err != nil {
		return nil, err
	}
	if cacheable {
		_ = s.cache.SetItem(ctx, collection, id, record)
	}

	if q.Depth > 0 {
		records := []domain.Record{record}
		if err := s.expandRequested(ctx, collection, records, q); err != nil {
			return nil, err
		}
		record = records[0]
	}
	return s.projected(collection, record, q.Fields)
}

// FindAll reads a finite, restartable result set
func (s *itemService) FindAll(ctx context.Context, collection string, q QueryOptions) ([]domain.Record, error) {
	if err := s.checkProjection(collection, q.Fields); err != nil {
		return nil, err
	}

	columns, trimmed := s.columnFields(collection, q.Fields)
	records, err := s.items.FindAll(ctx, collection, repository.ListQuery{
		Fields: columns,
		Filter: q.Filter,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, err
	}

	if q.Depth > 0 {
		if err := s.expandRequested(ctx, collection, records, q); err != nil {
			return nil, err
		}
	}
	if trimmed {
		for i := range records {
			records[i] = records[i].Project(q.Fields)
		}
	}
	return records, nil
}

// columnFields drops alias fields from a projection before it reaches
// SQL; they have no backing column and are filled by expansion. The
// primary key is kept so child lookups can still match parents, and
// the caller re-projects in memory when the list was touched.
func (s *itemService) columnFields(collection string, fields []string) ([]string, bool) {
	if len(fields) == 0 || !s.registry.IsManaged(collection) {
		return fields, false
	}
	pk := s.registry.PrimaryKey(collection)
	columns := make([]string, 0, len(fields)+1)
	trimmed := false
	hasPK := false
	for _, f := range fields {
		if field, err := s.registry.Field(collection, f); err == nil && field.IsAlias() {
			trimmed = true
			continue
		}
		if f == pk {
			hasPK = true
		}
		columns = append(columns, f)
	}
	if trimmed && !hasPK {
		columns = append(columns, pk)
	}
	return columns, trimmed
}

// expandRequested expands either the requested relational fields or,
// with no projection, every relational field of the collection
func (s *itemService) expandRequested(ctx context.Context, collection string, records []domain.Record, q QueryOptions) error {
	var relational []string
	if len(q.Fields) > 0 {
		for _, f := range q.Fields {
			if field, err := s.registry.Field(collection, f); err == nil && field.IsRelational() {
				relational = append(relational, f)
			}
		}
	} else {
		for _, f := range s.registry.Fields(collection) {
			if f.IsRelational() && s.registry.RelationFor(collection, f.Field) != nil {
				relational = append(relational, f.Field)
			}
		}
	}
	if len(relational) == 0 {
		return nil
	}
	return s.relations.Expand(ctx, collection, records, relational, q.Depth)
}

// projected applies field projection to a single record
func (s *itemService) projected(collection string, record domain.Record, fields []string) (domain.Record, error) {
	if err := s.checkProjection(collection, fields); err != nil {
		return nil, err
	}
	return record.Project(fields), nil
}

// checkProjection rejects projections naming unknown fields on managed
// collections; unmanaged collections accept anything.
func (s *itemService) checkProjection(collection string, fields []string) error {
	if len(fields) == 0 || !s.registry.IsManaged(collection) {
		return nil
	}
	verr := &common.ValidationError{Collection: collection}
	for _, f := range fields {
		if _, err := s.registry.Field(collection, f); err != nil {
			verr.Add(f, common.CodeNotFound, "unknown field")
		}
	}
	if verr.HasViolations() {
		return verr
	}
	return nil
}

// afterMutation invalidates caches and refreshes the search mirror
func (s *itemService) afterMutation(ctx context.Context, collection string, id interface{}, record domain.Record, removed bool) {
	if s.cache != nil {
		_ = s.cache.InvalidateItem(ctx, collection, id)
	}
	if s.indexer == nil {
		return
	}
	if removed {
		s.indexer.RemoveItem(collection, id)
	} else if record != nil {
		s.indexer.IndexItem(collection, id, record)
	}
}

// validate checks a payload against the registry and returns the column
// values to persist. Violations are collected across the whole payload,
// not fail-fast. Readonly fields are dropped silently so naive clients
// may resend full records; alias fields never persist as columns.
func (s *itemService) validate(collection string, payload domain.Record, isCreate bool) (domain.Record, error) {
	verr := &common.ValidationError{Collection: collection}
	values := domain.Record{}

	for name, value := range payload {
		field, err := s.registry.Field(collection, name)
		if err != nil {
			verr.Add(name, common.CodeNotFound, "unknown field")
			continue
		}
		if field.Readonly.Bool() {
			continue
		}
		if field.IsAlias() {
			continue
		}
		if value == nil {
			if field.Required.Bool() {
				verr.Add(name, common.CodeValidationFailed, "is required")
				continue
			}
			values[name] = nil
			continue
		}
		coerced, ok := coerceValue(field, value)
		if !ok {
			verr.Add(name, common.CodeValidationFailed, fmt.Sprintf("invalid value for %s field", field.Type))
			continue
		}
		if field.Type == domain.TypeHash {
			hashed, err := bcrypt.GenerateFromPassword([]byte(fmt.Sprint(coerced)), bcrypt.DefaultCost)
			if err != nil {
				verr.Add(name, common.CodeValidationFailed, "cannot hash value")
				continue
			}
			coerced = string(hashed)
		}
		values[name] = coerced
	}

	if isCreate {
		for _, field := range s.registry.Fields(collection) {
			if !field.Required.Bool() || field.Readonly.Bool() || field.IsAlias() {
				continue
			}
			if field.Interface == "primary-key" {
				continue
			}
			if _, present := values[field.Field]; !present {
				verr.Add(field.Field, common.CodeValidationFailed, "is required")
			}
		}
	}

	if verr.HasViolations() {
		return nil, verr
	}
	return values, nil
}

// coerceValue normalizes a payload value for its field type. The check
// is permissive on purpose: the storage engine is the final validator,
// this layer only catches plainly wrong shapes early.
func coerceValue(field *domain.Field, value interface{}) (interface{}, bool) {
	switch field.Type {
	case domain.TypeInteger, domain.TypeManyToOne, domain.TypeFile, domain.TypeSort:
		switch v := value.(type) {
		case float64:
			return int64(v), true
		case int, int64, uint, uint64:
			return v, true
		case json.Number:
			n, err := v.Int64()
			return n, err == nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			return n, err == nil
		}
		return nil, false
	case domain.TypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, true
		case float64:
			return v != 0, true
		case string:
			b, err := strconv.ParseBool(v)
			return b, err == nil
		}
		return nil, false
	case domain.TypeString, domain.TypeHash, domain.TypeStatus:
		switch v := value.(type) {
		case string:
			return v, true
		case float64, bool, int, int64:
			return fmt.Sprint(v), true
		}
		return nil, false
	case domain.TypeDatetime:
		switch v := value.(type) {
		case time.Time:
			return v, true
		case string:
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if t, err := time.Parse(layout, v); err == nil {
					return t, true
				}
			}
		}
		return nil, false
	case domain.TypeJSON, domain.TypeArray:
		data, err := json.Marshal(value)
		return string(data), err == nil
	default:
		return value, true
	}
}
