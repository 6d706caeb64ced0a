package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRegistry(t *testing.T) (*gorm.DB, *Registry) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Collection{}, &domain.Field{}, &domain.Relation{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db, NewRegistry(repository.NewSchemaRepository(db))
}

func intp(v int) *int { return &v }

func TestRegistry_DuplicateFieldsCollapseToLatest(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Collection{Collection: "posts", Managed: true}).Error)
	// two conflicting declarations of the same field, as a botched seed
	// merge would leave behind
	require.NoError(t, db.Create(&[]domain.Field{
		{Collection: "posts", Field: "title", Type: domain.TypeString, Interface: "text-input"},
		{Collection: "posts", Field: "title", Type: domain.TypeString, Interface: "markdown"},
	}).Error)

	require.NoError(t, registry.Reload(ctx))

	f, err := registry.Field("posts", "title")
	require.NoError(t, err)
	assert.Equal(t, "markdown", f.Interface, "the declaration with the highest id wins")
	assert.Len(t, registry.Fields("posts"), 1)
}

func TestRegistry_FieldOrdering(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Collection{Collection: "posts", Managed: true}).Error)
	require.NoError(t, db.Create(&[]domain.Field{
		{Collection: "posts", Field: "zset", Type: domain.TypeString, Sort: intp(1)},
		{Collection: "posts", Field: "unsorted_b", Type: domain.TypeString},
		{Collection: "posts", Field: "aset", Type: domain.TypeString, Sort: intp(2)},
		{Collection: "posts", Field: "unsorted_a", Type: domain.TypeString},
	}).Error)

	require.NoError(t, registry.Reload(ctx))

	var names []string
	for _, f := range registry.Fields("posts") {
		names = append(names, f.Field)
	}
	// sort ascending first, nulls last, name as tiebreak
	assert.Equal(t, []string{"zset", "aset", "unsorted_a", "unsorted_b"}, names)
}

func TestRegistry_BoolNormalization(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	// legacy rows store booleans as integers
	require.NoError(t, db.Exec(
		"INSERT INTO dev7_collections (collection, managed, hidden, single) VALUES (?, 1, 0, 1)", "posts",
	).Error)
	require.NoError(t, registry.Reload(ctx))

	c, err := registry.Collection("posts")
	require.NoError(t, err)
	assert.True(t, c.Managed.Bool())
	assert.False(t, c.Hidden.Bool())
	assert.True(t, c.Single.Bool())
	assert.True(t, registry.IsManaged("posts"))
}

func TestRegistry_UnknownCollection(t *testing.T) {
	_, registry := setupRegistry(t)
	require.NoError(t, registry.Reload(context.Background()))

	assert.False(t, registry.IsManaged("ghost"))
	_, err := registry.Collection("ghost")
	assert.ErrorIs(t, err, common.ErrCollectionNotFound)
	_, err = registry.Field("ghost", "name")
	assert.ErrorIs(t, err, common.ErrFieldNotFound)
}

func TestRegistry_PrimaryKeyFallback(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Collection{Collection: "posts", Managed: true}).Error)
	require.NoError(t, db.Create(&[]domain.Field{
		{Collection: "posts", Field: "uid", Type: domain.TypeInteger, Interface: "primary-key"},
		{Collection: "posts", Field: "title", Type: domain.TypeString},
	}).Error)
	require.NoError(t, registry.Reload(ctx))

	assert.Equal(t, "uid", registry.PrimaryKey("posts"))
	assert.Equal(t, "id", registry.PrimaryKey("anything_else"))
}

func TestRegistry_SoftDeletePolicy(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Collection{Collection: "posts", Managed: true}).Error)
	require.NoError(t, db.Create(&domain.Field{
		Collection: "posts", Field: "status", Type: domain.TypeStatus,
		Options: json.RawMessage(`{"status_mapping":{"draft":{"name":"Draft"},"trashed":{"name":"Trashed","soft_delete":true}}}`),
	}).Error)
	require.NoError(t, db.Create(&domain.Collection{Collection: "plain", Managed: true}).Error)
	require.NoError(t, registry.Reload(ctx))

	field, value, ok := registry.SoftDeletePolicy("posts")
	require.True(t, ok)
	assert.Equal(t, "status", field)
	assert.Equal(t, "trashed", value)

	_, _, ok = registry.SoftDeletePolicy("plain")
	assert.False(t, ok)
}

func TestRegistry_RelationForBothSides(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&domain.Relation{
		CollectionMany: "posts", FieldMany: "author", CollectionOne: "authors", FieldOne: "posts",
	}).Error)
	require.NoError(t, registry.Reload(ctx))

	rel := registry.RelationFor("posts", "author")
	require.NotNil(t, rel)
	assert.Equal(t, "authors", rel.CollectionOne)

	assert.NotNil(t, registry.RelationFor("authors", "posts"))
	assert.Nil(t, registry.RelationFor("posts", "title"))
}

func TestRegistry_ReloadIsExplicit(t *testing.T) {
	db, registry := setupRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.Reload(ctx))
	require.NoError(t, db.Create(&domain.Collection{Collection: "late", Managed: true}).Error)

	// persisted but not yet visible
	assert.False(t, registry.IsManaged("late"))
	require.NoError(t, registry.Reload(ctx))
	assert.True(t, registry.IsManaged("late"))
}
