package service

import (
	"context"
	"testing"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalogData(t *testing.T, env *testEnv) {
	t.Helper()
	ctx := context.Background()

	_, err := env.items.Create(ctx, "categories", domain.Record{"title": "Tools"}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Create(ctx, "products", domain.Record{"name": "Hammer", "category": 1}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Create(ctx, "products", domain.Record{"name": "Saw", "category": 1}, asEditor())
	require.NoError(t, err)

	_, err = env.items.Create(ctx, "labels", domain.Record{"name": "sale"}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Create(ctx, "labels", domain.Record{"name": "new"}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Create(ctx, "product_labels", domain.Record{"product": 1, "label": 1}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Create(ctx, "product_labels", domain.Record{"product": 1, "label": 2}, asEditor())
	require.NoError(t, err)
}

func TestRelationService_Resolve(t *testing.T) {
	env := newTestEnv(t)

	kind, rel, err := env.relations.Resolve("products", "category")
	require.NoError(t, err)
	assert.Equal(t, domain.KindManyToOne, kind)
	assert.Equal(t, "categories", rel.CollectionOne)

	kind, rel, err = env.relations.Resolve("categories", "products")
	require.NoError(t, err)
	assert.Equal(t, domain.KindOneToMany, kind)
	assert.Equal(t, "products", rel.CollectionMany)

	kind, rel, err = env.relations.Resolve("products", "labels")
	require.NoError(t, err)
	assert.Equal(t, domain.KindManyToMany, kind)
	assert.Equal(t, "product_labels", rel.CollectionMany)

	_, _, err = env.relations.Resolve("products", "price")
	assert.ErrorIs(t, err, common.ErrNotARelation)
}

func TestRelationService_ExpandManyToOne(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	record, err := env.items.Find(ctx, "products", 1, QueryOptions{Depth: 1})
	require.NoError(t, err)

	category, ok := record["category"].(domain.Record)
	require.True(t, ok, "category should be the expanded record, got %T", record["category"])
	assert.Equal(t, "Tools", category["title"])
}

func TestRelationService_ExpandOneToMany(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	records, err := env.items.FindAll(ctx, "categories", QueryOptions{Depth: 1})
	require.NoError(t, err)
	require.Len(t, records, 1)

	products, ok := records[0]["products"].([]domain.Record)
	require.True(t, ok)
	assert.Len(t, products, 2)
}

func TestRelationService_ExpandManyToManyHidesJunction(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	record, err := env.items.Find(ctx, "products", 1, QueryOptions{Depth: 1})
	require.NoError(t, err)

	labels, ok := record["labels"].([]domain.Record)
	require.True(t, ok)
	require.Len(t, labels, 2)
	// far records, not junction rows
	for _, l := range labels {
		assert.Contains(t, l, "name")
		assert.NotContains(t, l, "product")
	}
}

func TestRelationService_DepthExceededBeforeAnyFetch(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	records := []domain.Record{{"id": int64(1), "category": int64(1)}}
	err := env.relations.Expand(ctx, "products", records, []string{"category"}, 3)
	require.ErrorIs(t, err, common.ErrDepthExceeded)
	// nothing was touched
	assert.Equal(t, int64(1), records[0]["category"])
}

func TestRelationService_DanglingRowReferenceIsNil(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	// out-of-band delete bypassing the facade
	require.NoError(t, env.db.Exec("DELETE FROM categories WHERE id = 1").Error)

	record, err := env.items.Find(ctx, "products", 1, QueryOptions{Depth: 1})
	require.NoError(t, err)
	assert.Nil(t, record["category"])
}

func TestRelationService_DroppedJunctionTableYieldsEmpty(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	// out-of-band table drop; metadata still lists the junction
	require.NoError(t, env.db.Exec("DROP TABLE product_labels").Error)

	record, err := env.items.Find(ctx, "products", 1, QueryOptions{Depth: 1})
	require.NoError(t, err)

	labels, ok := record["labels"].([]domain.Record)
	require.True(t, ok)
	assert.Empty(t, labels)
}

func TestRelationService_NestedExpansionStopsAtDepth(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	record, err := env.items.Find(ctx, "products", 1, QueryOptions{Depth: 2})
	require.NoError(t, err)

	category, ok := record["category"].(domain.Record)
	require.True(t, ok)
	// categories.products expanded one level deeper
	nested, ok := category["products"].([]domain.Record)
	require.True(t, ok)
	require.NotEmpty(t, nested)
	// at the boundary, relational fields stay raw foreign keys
	_, isRecord := nested[0]["category"].(domain.Record)
	assert.False(t, isRecord)
}
