package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemService_CreateReturnsRecordAndLogsActivity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	record, err := env.items.Create(ctx, "products", domain.Record{
		"name":  "Widget",
		"price": 100,
	}, asEditor())
	require.NoError(t, err)
	assert.EqualValues(t, 1, record["id"])
	assert.Equal(t, "Widget", record["name"])

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionCreate, entries[0].Activity.Action)
	assert.EqualValues(t, 7, entries[0].Activity.ActionBy)
	require.NotNil(t, entries[0].Revision)

	snap, err := entries[0].Revision.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Widget", snap["name"])
}

func TestItemService_CreateAggregatesViolations(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.items.Create(context.Background(), "products", domain.Record{
		"price":    "not-a-number",
		"mystery":  1,
		"mystery2": 2,
	}, asEditor())
	require.Error(t, err)

	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	// bad price, two unknown fields, missing required name
	assert.Len(t, verr.Violations, 4)

	// nothing persisted, nothing logged
	var count int64
	env.db.Table("products").Count(&count)
	assert.Zero(t, count)
	env.db.Model(&domain.Activity{}).Count(&count)
	assert.Zero(t, count)
}

func TestItemService_ReadonlyFieldsSilentlyDropped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{
		"name":   "Widget",
		"secret": "client-supplied",
	}, asEditor())
	require.NoError(t, err)
	assert.Nil(t, created["secret"])

	// resending the full record with the readonly field is a no-op, not an error
	updated, err := env.items.Update(ctx, "products", created["id"], domain.Record{
		"name":   "Widget v2",
		"secret": "still-ignored",
	}, asEditor())
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", updated["name"])
	assert.Nil(t, updated["secret"])
}

func TestItemService_UpdateIsPartial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{
		"name":  "Widget",
		"price": 100,
	}, asEditor())
	require.NoError(t, err)

	updated, err := env.items.Update(ctx, "products", created["id"], domain.Record{
		"price": 150,
	}, asEditor())
	require.NoError(t, err)
	assert.Equal(t, "Widget", updated["name"])
	assert.EqualValues(t, 150, updated["price"])
}

func TestItemService_HardDeleteWithoutStatusField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)

	require.NoError(t, env.items.Delete(ctx, "products", created["id"], asEditor()))

	_, err = env.items.Find(ctx, "products", created["id"], QueryOptions{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestItemService_SoftDeleteViaStatusMapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "articles", domain.Record{
		"title":  "Hello",
		"status": "published",
	}, asEditor())
	require.NoError(t, err)

	require.NoError(t, env.items.Delete(ctx, "articles", created["id"], asEditor()))

	// the row survives with the soft-delete status value
	record, err := env.items.Find(ctx, "articles", created["id"], QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "deleted", record["status"])

	entries, err := env.activity.History(ctx, "articles", "1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionDelete, entries[1].Activity.Action)
}

func TestItemService_AuditLogRejectsDirectWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// the bootstrap migration registers the audit tables as managed
	// collections so they stay readable over /items
	systemRows := []domain.Collection{
		{Collection: "dev7_activity", Managed: true, Hidden: true},
		{Collection: "dev7_revisions", Managed: true, Hidden: true},
	}
	require.NoError(t, env.db.Create(&systemRows).Error)
	require.NoError(t, env.registry.Reload(ctx))

	_, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	auditID := entries[0].Activity.ID

	_, err = env.items.Update(ctx, "dev7_activity", auditID, domain.Record{
		"action": "delete",
		"item":   "999",
	}, asEditor())
	assert.ErrorIs(t, err, common.ErrCollectionProtected)

	_, err = env.items.Create(ctx, "dev7_revisions", domain.Record{"collection": "x"}, asEditor())
	assert.ErrorIs(t, err, common.ErrCollectionProtected)

	err = env.items.Delete(ctx, "dev7_activity", auditID, asEditor())
	assert.ErrorIs(t, err, common.ErrCollectionProtected)

	// the audit row never changed
	got, err := env.activity.Find(ctx, auditID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreate, got.Action)
	assert.Equal(t, "1", got.Item)

	// reads stay open
	record, err := env.items.Find(ctx, "dev7_activity", auditID, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "create", record["action"])
}

func TestItemService_UnmanagedCollectionRejectsWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.items.Create(ctx, "ad_hoc_table", domain.Record{"name": "x"}, asEditor())
	assert.ErrorIs(t, err, common.ErrNotManaged)

	_, err = env.items.Update(ctx, "ad_hoc_table", 1, domain.Record{"name": "x"}, asEditor())
	assert.ErrorIs(t, err, common.ErrNotManaged)

	err = env.items.Delete(ctx, "ad_hoc_table", 1, asEditor())
	assert.ErrorIs(t, err, common.ErrNotManaged)
}

func TestItemService_UnmanagedCollectionAllowsRawReads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.db.Exec("CREATE TABLE legacy (id INTEGER PRIMARY KEY, note TEXT)").Error)
	require.NoError(t, env.db.Exec("INSERT INTO legacy (id, note) VALUES (1, 'kept')").Error)

	record, err := env.items.Find(ctx, "legacy", 1, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kept", record["note"])
}

func TestItemService_CapabilityDeniedBeforePersist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	opts := asEditor()
	opts.Can = func(collection, action string) bool { return false }

	_, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, opts)
	assert.ErrorIs(t, err, common.ErrForbidden)

	var count int64
	env.db.Table("products").Count(&count)
	assert.Zero(t, count)
	env.db.Model(&domain.Activity{}).Count(&count)
	assert.Zero(t, count)
}

func TestItemService_DanglingReferenceFatalForWrites(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.items.Create(context.Background(), "products", domain.Record{
		"name":     "Widget",
		"category": 999,
	}, asEditor())
	require.Error(t, err)

	var relErr *common.RelationError
	require.True(t, errors.As(err, &relErr))
	assert.Equal(t, "category", relErr.Violations[0].Field)
}

func TestItemService_FindIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)

	first, err := env.items.Find(ctx, "products", created["id"], QueryOptions{})
	require.NoError(t, err)
	second, err := env.items.Find(ctx, "products", created["id"], QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// reads leave no trace in the activity log
	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestItemService_FindAllProjectionAndFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := env.items.Create(ctx, "products", domain.Record{"name": name, "price": 10}, asEditor())
		require.NoError(t, err)
	}
	_, err := env.items.Create(ctx, "products", domain.Record{"name": "D", "price": 99}, asEditor())
	require.NoError(t, err)

	records, err := env.items.FindAll(ctx, "products", QueryOptions{
		Fields: []string{"id", "name"},
		Filter: map[string]interface{}{"price": 10},
	})
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Contains(t, r, "name")
		assert.NotContains(t, r, "price")
	}

	_, err = env.items.FindAll(ctx, "products", QueryOptions{Fields: []string{"nope"}})
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestItemService_FindAllProjectsAliasFields(t *testing.T) {
	env := newTestEnv(t)
	seedCatalogData(t, env)
	ctx := context.Background()

	// labels has no backing column; the list must still honor the
	// projection and fill it from expansion
	records, err := env.items.FindAll(ctx, "products", QueryOptions{
		Fields: []string{"id", "name", "labels"},
		Depth:  1,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Contains(t, r, "name")
		assert.NotContains(t, r, "price")
	}

	labels, ok := records[0]["labels"].([]domain.Record)
	require.True(t, ok, "labels should be expanded records, got %T", records[0]["labels"])
	assert.Len(t, labels, 2)

	// without the primary key in the projection expansion still joins,
	// and the key does not leak into the result
	narrow, err := env.items.FindAll(ctx, "products", QueryOptions{
		Fields: []string{"name", "labels"},
		Depth:  1,
	})
	require.NoError(t, err)
	require.Len(t, narrow, 2)
	assert.NotContains(t, narrow[0], "id")
	narrowLabels, ok := narrow[0]["labels"].([]domain.Record)
	require.True(t, ok)
	assert.Len(t, narrowLabels, 2)

	// at depth 0 the alias field is simply absent, never a column error
	flat, err := env.items.FindAll(ctx, "products", QueryOptions{
		Fields: []string{"name", "labels"},
	})
	require.NoError(t, err)
	require.Len(t, flat, 2)
	for _, r := range flat {
		assert.NotContains(t, r, "labels")
		assert.NotContains(t, r, "id")
	}
}

func TestItemService_BooleanNormalization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{
		"name":   "Widget",
		"active": "1",
	}, asEditor())
	require.NoError(t, err)

	record, err := env.items.Find(ctx, "products", created["id"], QueryOptions{})
	require.NoError(t, err)
	assert.NotNil(t, record["active"])
}
