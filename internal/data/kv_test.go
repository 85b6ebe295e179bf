package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devricklin/slack-merge-gate/internal/biz/repo"
)

func kvImplementations(t *testing.T) map[string]repo.KVRepo {
	t.Helper()
	sq, err := NewSQLiteKV(filepath.Join(t.TempDir(), "nested", "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]repo.KVRepo{
		"sqlite": sq,
		"memory": NewMemoryKV(),
	}
}

func TestKV_SetGetRemove(t *testing.T) {
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := kv.Get(ctx, repo.AreaLocal, "messages")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Set(ctx, repo.AreaLocal, "messages", []byte(`[1]`)))
			require.NoError(t, kv.Set(ctx, repo.AreaLocal, "messages", []byte(`[1,2]`)))
			v, ok, err := kv.Get(ctx, repo.AreaLocal, "messages")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[1,2]`, string(v))

			require.NoError(t, kv.Remove(ctx, repo.AreaLocal, "messages", "absent"))
			_, ok, err = kv.Get(ctx, repo.AreaLocal, "messages")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestKV_AreasAreSeparate(t *testing.T) {
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, kv.Set(ctx, repo.AreaSync, "channelName", []byte(`"deploys"`)))
			require.NoError(t, kv.Set(ctx, repo.AreaLocal, "channelName", []byte(`"other"`)))
			require.NoError(t, kv.Set(ctx, repo.AreaSync, "slackToken", []byte(`"xoxb"`)))

			all, err := kv.All(ctx, repo.AreaSync)
			require.NoError(t, err)
			assert.Equal(t, map[string][]byte{
				"channelName": []byte(`"deploys"`),
				"slackToken":  []byte(`"xoxb"`),
			}, all)
		})
	}
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	kv, err := NewSQLiteKV(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, repo.AreaLocal, "teamId", []byte(`"T1"`)))
	require.NoError(t, kv.Close())

	kv, err = NewSQLiteKV(path)
	require.NoError(t, err)
	defer kv.Close()
	v, ok, err := kv.Get(ctx, repo.AreaLocal, "teamId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"T1"`, string(v))
}
