// Package schema holds the in-memory registry of collection, field and
// relation metadata. The registry is read-mostly: all requests share one
// immutable snapshot, and an explicit Reload swaps it wholesale. Nothing
// here refreshes implicitly; callers that mutate schema metadata must
// reload to observe their own changes.
package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/dev7ch/api/pkg/logger"
)

// Registry is the shared metadata cache. Readers never block on Reload;
// they may observe the previous snapshot until their next access.
type Registry struct {
	repo repository.SchemaRepository

	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is one immutable load of the metadata tables
type snapshot struct {
	collections map[string]*domain.Collection
	fields      map[string]map[string]*domain.Field // collection -> field name -> field
	ordered     map[string][]*domain.Field          // collection -> fields in display order
	relations   []*domain.Relation
	manySide    map[string]*domain.Relation // "collection.field" on the many side
	oneSide     map[string]*domain.Relation // "collection.field" on the one side
}

// NewRegistry creates an empty registry; call Reload before first use
func NewRegistry(repo repository.SchemaRepository) *Registry {
	return &Registry{repo: repo, snap: &snapshot{
		collections: map[string]*domain.Collection{},
		fields:      map[string]map[string]*domain.Field{},
		ordered:     map[string][]*domain.Field{},
		manySide:    map[string]*domain.Relation{},
		oneSide:     map[string]*domain.Relation{},
	}}
}

// Reload replaces the snapshot from persisted metadata. Duplicate
// (collection, field) declarations collapse to the one with the highest
// id: the seed data of the system this grew out of contained conflicting
// duplicates, so the latest declaration is authoritative.
func (r *Registry) Reload(ctx context.Context) error {
	collections, err := r.repo.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("load collections: %w", err)
	}
	fields, err := r.repo.ListFields(ctx)
	if err != nil {
		return fmt.Errorf("load fields: %w", err)
	}
	relations, err := r.repo.ListRelations(ctx)
	if err != nil {
		return fmt.Errorf("load relations: %w", err)
	}

	snap := &snapshot{
		collections: make(map[string]*domain.Collection, len(collections)),
		fields:      make(map[string]map[string]*domain.Field),
		ordered:     make(map[string][]*domain.Field),
		manySide:    make(map[string]*domain.Relation),
		oneSide:     make(map[string]*domain.Relation),
	}

	for i := range collections {
		c := collections[i]
		snap.collections[c.Collection] = &c
	}

	dropped := 0
	for i := range fields {
		f := fields[i]
		byName, ok := snap.fields[f.Collection]
		if !ok {
			byName = make(map[string]*domain.Field)
			snap.fields[f.Collection] = byName
		}
		if _, dup := byName[f.Field]; dup {
			dropped++
		}
		// rows arrive ordered by id; the later row always wins
		byName[f.Field] = &f
	}
	if dropped > 0 {
		logger.GetLogger().Warn().
			Int("dropped", dropped).
			Msg("duplicate field declarations collapsed on reload")
	}

	for collection, byName := range snap.fields {
		ordered := make([]*domain.Field, 0, len(byName))
		for _, f := range byName {
			ordered = append(ordered, f)
		}
		sortFields(ordered)
		snap.ordered[collection] = ordered
	}

	for i := range relations {
		rel := relations[i]
		snap.relations = append(snap.relations, &rel)
		if rel.CollectionMany != "" && rel.FieldMany != "" {
			snap.manySide[rel.CollectionMany+"."+rel.FieldMany] = &rel
		}
		if rel.CollectionOne != "" && rel.FieldOne != "" {
			snap.oneSide[rel.CollectionOne+"."+rel.FieldOne] = &rel
		}
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	logger.GetLogger().Info().
		Int("collections", len(snap.collections)).
		Int("relations", len(snap.relations)).
		Msg("schema registry reloaded")
	return nil
}

// sortFields orders by sort ascending with nulls last, name as tiebreak
func sortFields(fields []*domain.Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i], fields[j]
		switch {
		case a.Sort == nil && b.Sort == nil:
			return a.Field < b.Field
		case a.Sort == nil:
			return false
		case b.Sort == nil:
			return true
		case *a.Sort != *b.Sort:
			return *a.Sort < *b.Sort
		default:
			return a.Field < b.Field
		}
	})
}

func (r *Registry) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Collection returns the named collection's metadata
func (r *Registry) Collection(name string) (*domain.Collection, error) {
	if c, ok := r.snapshot().collections[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrCollectionNotFound, name)
}

// Field returns one field's metadata
func (r *Registry) Field(collection, name string) (*domain.Field, error) {
	if byName, ok := r.snapshot().fields[collection]; ok {
		if f, ok := byName[name]; ok {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s.%s", common.ErrFieldNotFound, collection, name)
}

// Fields returns the collection's fields in display order
func (r *Registry) Fields(collection string) []*domain.Field {
	return r.snapshot().ordered[collection]
}

// CollectionCount returns the number of loaded collections
func (r *Registry) CollectionCount() int {
	return len(r.snapshot().collections)
}

// IsManaged reports whether the collection is under schema management.
// Unknown collections are unmanaged and bypass validation and relation
// enforcement; they exist for ad-hoc user-defined tables.
func (r *Registry) IsManaged(collection string) bool {
	c, ok := r.snapshot().collections[collection]
	return ok && c.Managed.Bool()
}

// PrimaryKey returns the collection's primary key field name. Falls back
// to "id" when no field is flagged, which covers unmanaged tables too.
func (r *Registry) PrimaryKey(collection string) string {
	for _, f := range r.snapshot().ordered[collection] {
		if f.Interface == "primary-key" {
			return f.Field
		}
	}
	return "id"
}

// RelationFor returns the relation entry backing a relational field,
// looking at the many side first, then the one side.
func (r *Registry) RelationFor(collection, field string) *domain.Relation {
	snap := r.snapshot()
	if rel, ok := snap.manySide[collection+"."+field]; ok {
		return rel
	}
	if rel, ok := snap.oneSide[collection+"."+field]; ok {
		return rel
	}
	return nil
}

// SoftDeletePolicy returns the status field name and the mapped value
// that flags a row soft-deleted. ok is false when the collection has no
// status field or no soft_delete mapping, which means hard delete.
func (r *Registry) SoftDeletePolicy(collection string) (field string, value string, ok bool) {
	for _, f := range r.snapshot().ordered[collection] {
		if f.Type != domain.TypeStatus {
			continue
		}
		for v, sv := range f.StatusMapping() {
			if sv.SoftDelete {
				return f.Field, v, true
			}
		}
	}
	return "", "", false
}
