package service

import (
	"context"
	"testing"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelta(t *testing.T) {
	tests := []struct {
		name   string
		before domain.Record
		after  domain.Record
		want   domain.Delta
	}{
		{
			name:   "changed field only",
			before: domain.Record{"name": "Widget", "price": 100},
			after:  domain.Record{"name": "Widget v2", "price": 100},
			want:   domain.Delta{"name": {"Widget", "Widget v2"}},
		},
		{
			name:   "added field",
			before: domain.Record{"name": "Widget"},
			after:  domain.Record{"name": "Widget", "price": 100},
			want:   domain.Delta{"price": {nil, 100}},
		},
		{
			name:   "removed field",
			before: domain.Record{"name": "Widget", "price": 100},
			after:  domain.Record{"name": "Widget"},
			want:   domain.Delta{"price": {100, nil}},
		},
		{
			name:   "no changes",
			before: domain.Record{"name": "Widget"},
			after:  domain.Record{"name": "Widget"},
			want:   domain.Delta{},
		},
		{
			name:   "driver type variance is not a change",
			before: domain.Record{"price": int64(100)},
			after:  domain.Record{"price": 100},
			want:   domain.Delta{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDelta(tt.before, tt.after)
			require.Len(t, got, len(tt.want))
			for field, pair := range tt.want {
				gotPair, ok := got[field]
				require.True(t, ok, "missing delta for %s", field)
				require.Len(t, gotPair, 2)
				assert.EqualValues(t, pair[0], gotPair[0])
				assert.EqualValues(t, pair[1], gotPair[1])
			}
		})
	}
}

func TestReplayReconstructsLatestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget", "price": 100}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Update(ctx, "products", created["id"], domain.Record{"name": "Widget v2"}, asEditor())
	require.NoError(t, err)
	latest, err := env.items.Update(ctx, "products", created["id"], domain.Record{"price": 250}, asEditor())
	require.NoError(t, err)

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	replayed, err := Replay(entries)
	require.NoError(t, err)
	for field, want := range latest {
		assert.EqualValues(t, want, replayed[field], "field %s diverged", field)
	}
}

func TestReplayDeleteResetsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)
	require.NoError(t, env.items.Delete(ctx, "products", created["id"], asEditor()))

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	replayed, err := Replay(entries)
	require.NoError(t, err)
	assert.Empty(t, replayed)
}

func TestReplaySoftDeleteKeepsFlaggedSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "articles", domain.Record{
		"title":  "Hello",
		"status": "published",
	}, asEditor())
	require.NoError(t, err)
	require.NoError(t, env.items.Delete(ctx, "articles", created["id"], asEditor()))

	// the row survives the soft delete; replay must land on it, not on
	// an empty record
	latest, err := env.items.Find(ctx, "articles", created["id"], QueryOptions{})
	require.NoError(t, err)

	entries, err := env.activity.History(ctx, "articles", "1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	replayed, err := Replay(entries)
	require.NoError(t, err)
	assert.Equal(t, "deleted", replayed["status"])
	for field, want := range latest {
		assert.EqualValues(t, want, replayed[field], "field %s diverged", field)
	}
}

func TestActivityService_UpdateDeltaIsExact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget", "price": 100}, asEditor())
	require.NoError(t, err)
	_, err = env.items.Update(ctx, "products", created["id"], domain.Record{"name": "Widget v2"}, asEditor())
	require.NoError(t, err)

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	delta, err := entries[1].Revision.Changes()
	require.NoError(t, err)
	require.Len(t, delta, 1, "only the changed field may appear in the delta")
	require.Contains(t, delta, "name")
	assert.EqualValues(t, "Widget", delta["name"][0])
	assert.EqualValues(t, "Widget v2", delta["name"][1])
}

func TestActivityService_Comments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)

	comment, err := env.activity.Comment(ctx, 7, "products", "1", "looks good")
	require.NoError(t, err)
	assert.Equal(t, domain.ActionComment, comment.Action)
	assert.Equal(t, "looks good", comment.Comment)

	// comments write no revision
	latest, err := env.activityRepo.LatestRevision(env.db, "products", "1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.NotEqual(t, comment.ID, latest.Activity)

	edited, err := env.activity.UpdateComment(ctx, comment.ID, 7, "looks great")
	require.NoError(t, err)
	assert.Equal(t, "looks great", edited.Comment)
	assert.NotNil(t, edited.EditedOn)

	// only the author may edit
	_, err = env.activity.UpdateComment(ctx, comment.ID, 99, "hijack")
	assert.ErrorIs(t, err, common.ErrForbidden)

	require.NoError(t, env.activity.SoftDeleteComment(ctx, comment.ID, 7))
	deleted, err := env.activity.Find(ctx, comment.ID)
	require.NoError(t, err)
	assert.NotNil(t, deleted.CommentDeletedOn)
}

func TestActivityService_NonCommentCannotBeEdited(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.items.Create(ctx, "products", domain.Record{"name": "Widget"}, asEditor())
	require.NoError(t, err)

	entries, err := env.activity.History(ctx, "products", "1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = env.activity.UpdateComment(ctx, entries[0].Activity.ID, 7, "nope")
	assert.ErrorIs(t, err, common.ErrNotAComment)

	err = env.activity.SoftDeleteComment(ctx, entries[0].Activity.ID, 7)
	assert.ErrorIs(t, err, common.ErrNotAComment)
}

func TestActivityService_FindUnknown(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.activity.Find(context.Background(), 12345)
	assert.ErrorIs(t, err, common.ErrActivityNotFound)
}
