package service

import (
	"context"
	"fmt"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/internal/schema"
	"github.com/dev7ch/api/pkg/logger"
)

// RelationService resolves relational fields and expands related
// records in place. Expansion recursion is bounded by a configured
// maximum depth; cycles in the relation graph are broken by the depth
// limit alone, never by visited-set bookkeeping.
type RelationService interface {
	Resolve(collection, field string) (domain.RelationKind, *domain.Relation, error)
	Expand(ctx context.Context, collection string, records []domain.Record, fields []string, depth int) error
	ValidateReferences(ctx context.Context, collection string, payload domain.Record) *common.RelationError
	MaxDepth() int
}

type relationService struct {
	registry *schema.Registry
	items    repository.ItemRepository
	maxDepth int
}

// NewRelationService creates a new RelationService
func NewRelationService(registry *schema.Registry, items repository.ItemRepository, maxDepth int) RelationService {
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &relationService{registry: registry, items: items, maxDepth: maxDepth}
}

func (s *relationService) MaxDepth() int { return s.maxDepth }

// Resolve classifies a field's relation. A relational field without a
// relation entry fails with ErrNotARelation; the core never guesses.
func (s *relationService) Resolve(collection, field string) (domain.RelationKind, *domain.Relation, error) {
	rel := s.registry.RelationFor(collection, field)
	if rel == nil {
		return 0, nil, fmt.Errorf("%w: %s.%s", common.ErrNotARelation, collection, field)
	}
	if rel.CollectionMany == collection && rel.FieldMany == field {
		return domain.KindManyToOne, rel, nil
	}
	if rel.JunctionField != "" {
		return domain.KindManyToMany, rel, nil
	}
	return domain.KindOneToMany, rel, nil
}

// Expand populates the given relational fields on every record. Dangling
// relations are logged and leave the field unset; they never abort the
// read. depth beyond the configured maximum fails before any fetch.
func (s *relationService) Expand(ctx context.Context, collection string, records []domain.Record, fields []string, depth int) error {
	if depth <= 0 || len(records) == 0 {
		return nil
	}
	if depth > s.maxDepth {
		return fmt.Errorf("%w: requested %d, max %d", common.ErrDepthExceeded, depth, s.maxDepth)
	}

	for _, field := range fields {
		kind, rel, err := s.Resolve(collection, field)
		if err != nil {
			return err
		}
		switch kind {
		case domain.KindManyToOne:
			err = s.expandManyToOne(ctx, collection, records, field, rel, depth)
		case domain.KindOneToMany:
			err = s.expandOneToMany(ctx, records, field, rel, depth)
		case domain.KindManyToMany:
			err = s.expandManyToMany(ctx, records, field, rel, depth)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// dangling logs a broken relation and moves on; reads stay alive
func (s *relationService) dangling(collection, field, detail string) {
	logger.GetLogger().Warn().
		Str("collection", collection).
		Str("field", field).
		Str("detail", detail).
		Msg("dangling relation")
}

func (s *relationService) expandManyToOne(ctx context.Context, collection string, records []domain.Record, field string, rel *domain.Relation, depth int) error {
	if !s.registry.IsManaged(rel.CollectionOne) {
		s.dangling(collection, field, fmt.Sprintf("related collection %s is gone", rel.CollectionOne))
		for _, rec := range records {
			rec[field] = nil
		}
		return nil
	}

	farPK := s.registry.PrimaryKey(rel.CollectionOne)
	var keys []interface{}
	seen := map[string]bool{}
	for _, rec := range records {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, v)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	related, err := s.items.FindWhereIn(ctx, rel.CollectionOne, farPK, keys)
	if err != nil {
		// metadata says managed but the table is gone out-of-band
		s.dangling(collection, field, fmt.Sprintf("fetch from %s failed: %v", rel.CollectionOne, err))
		for _, rec := range records {
			rec[field] = nil
		}
		return nil
	}
	byKey := make(map[string]domain.Record, len(related))
	for _, r := range related {
		byKey[fmt.Sprint(r[farPK])] = r
	}

	if err := s.expandNested(ctx, rel.CollectionOne, related, depth-1); err != nil {
		return err
	}

	for _, rec := range records {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		if far, ok := byKey[fmt.Sprint(v)]; ok {
			rec[field] = far
		} else {
			// row references an id that no longer exists
			s.dangling(collection, field, fmt.Sprintf("no %s row with %s=%v", rel.CollectionOne, farPK, v))
			rec[field] = nil
		}
	}
	return nil
}

func (s *relationService) expandOneToMany(ctx context.Context, records []domain.Record, field string, rel *domain.Relation, depth int) error {
	if !s.registry.IsManaged(rel.CollectionMany) {
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("many collection %s is gone", rel.CollectionMany))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}

	onePK := s.registry.PrimaryKey(rel.CollectionOne)
	var keys []interface{}
	for _, rec := range records {
		if v, ok := rec[onePK]; ok && v != nil {
			keys = append(keys, v)
		}
	}

	children, err := s.items.FindWhereIn(ctx, rel.CollectionMany, rel.FieldMany, keys)
	if err != nil {
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("fetch from %s failed: %v", rel.CollectionMany, err))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}
	if err := s.expandNested(ctx, rel.CollectionMany, children, depth-1); err != nil {
		return err
	}

	grouped := make(map[string][]domain.Record)
	for _, child := range children {
		k := fmt.Sprint(child[rel.FieldMany])
		grouped[k] = append(grouped[k], child)
	}
	for _, rec := range records {
		k := fmt.Sprint(rec[onePK])
		if rows, ok := grouped[k]; ok {
			rec[field] = rows
		} else {
			rec[field] = []domain.Record{}
		}
	}
	return nil
}

// expandManyToMany traverses the junction transparently: callers get
// the far side's records, never junction rows.
func (s *relationService) expandManyToMany(ctx context.Context, records []domain.Record, field string, rel *domain.Relation, depth int) error {
	junction := rel.CollectionMany
	if !s.registry.IsManaged(junction) {
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("junction collection %s is gone", junction))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}

	// the junction's other m2o relation names the far collection
	farRel := s.registry.RelationFor(junction, rel.JunctionField)
	if farRel == nil {
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("junction field %s.%s has no relation", junction, rel.JunctionField))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}
	farCollection := farRel.CollectionOne
	if !s.registry.IsManaged(farCollection) {
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("far collection %s is gone", farCollection))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}

	onePK := s.registry.PrimaryKey(rel.CollectionOne)
	var keys []interface{}
	for _, rec := range records {
		if v, ok := rec[onePK]; ok && v != nil {
			keys = append(keys, v)
		}
	}

	junctionRows, err := s.items.FindWhereIn(ctx, junction, rel.FieldMany, keys)
	if err != nil {
		// junction table dropped out-of-band
		s.dangling(rel.CollectionOne, field, fmt.Sprintf("fetch from junction %s failed: %v", junction, err))
		for _, rec := range records {
			rec[field] = []domain.Record{}
		}
		return nil
	}

	farPK := s.registry.PrimaryKey(farCollection)
	var farKeys []interface{}
	seen := map[string]bool{}
	for _, row := range junctionRows {
		v := row[rel.JunctionField]
		if v == nil {
			continue
		}
		k := fmt.Sprint(v)
		if !seen[k] {
			seen[k] = true
			farKeys = append(farKeys, v)
		}
	}

	farRows, err := s.items.FindWhereIn(ctx, farCollection, farPK, farKeys)
	if err != nil {
		return err
	}
	if err := s.expandNested(ctx, farCollection, farRows, depth-1); err != nil {
		return err
	}
	farByKey := make(map[string]domain.Record, len(farRows))
	for _, r := range farRows {
		farByKey[fmt.Sprint(r[farPK])] = r
	}

	grouped := make(map[string][]domain.Record)
	for _, row := range junctionRows {
		near := fmt.Sprint(row[rel.FieldMany])
		if far, ok := farByKey[fmt.Sprint(row[rel.JunctionField])]; ok {
			grouped[near] = append(grouped[near], far)
		}
	}
	for _, rec := range records {
		k := fmt.Sprint(rec[onePK])
		if rows, ok := grouped[k]; ok {
			rec[field] = rows
		} else {
			rec[field] = []domain.Record{}
		}
	}
	return nil
}

// expandNested expands all relational fields of fetched related records
// one level deeper. Depth 0 stops the recursion.
func (s *relationService) expandNested(ctx context.Context, collection string, records []domain.Record, depth int) error {
	if depth <= 0 || len(records) == 0 {
		return nil
	}
	var relational []string
	for _, f := range s.registry.Fields(collection) {
		if f.IsRelational() && s.registry.RelationFor(collection, f.Field) != nil {
			relational = append(relational, f.Field)
		}
	}
	if len(relational) == 0 {
		return nil
	}
	return s.Expand(ctx, collection, records, relational, depth)
}

// ValidateReferences checks that every many-to-one value in the payload
// points at an existing row. Writes that would persist a dangling
// reference are fatal, unlike reads.
func (s *relationService) ValidateReferences(ctx context.Context, collection string, payload domain.Record) *common.RelationError {
	relErr := &common.RelationError{Collection: collection}

	for _, f := range s.registry.Fields(collection) {
		if f.Type != domain.TypeManyToOne && f.Type != domain.TypeFile {
			continue
		}
		v, present := payload[f.Field]
		if !present || v == nil {
			continue
		}
		rel := s.registry.RelationFor(collection, f.Field)
		if rel == nil {
			relErr.Add(f.Field, common.CodeRelationError, "relational field has no relation entry")
			continue
		}
		farPK := s.registry.PrimaryKey(rel.CollectionOne)
		rows, err := s.items.FindWhereIn(ctx, rel.CollectionOne, farPK, []interface{}{v})
		if err != nil || len(rows) == 0 {
			relErr.Add(f.Field, common.CodeRelationError,
				fmt.Sprintf("referenced %s item %v does not exist", rel.CollectionOne, v))
		}
	}

	if relErr.HasViolations() {
		return relErr
	}
	return nil
}
