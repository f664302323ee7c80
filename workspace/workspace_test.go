package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/relic/rel"
	"github.com/rlch/relic/workspace"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	team := rel.MustRelation([]string{"name", "rate"},
		rel.NewTuple(map[string]rel.Value{
			"name": rel.String("Alice"),
			"rate": rel.Dec(decimal.RequireFromString("1.50")),
		}),
	)

	env := rel.NewEnv()
	env.Set("Depts", rel.MustRelation([]string{"dept_id", "team"},
		rel.NewTuple(map[string]rel.Value{"dept_id": rel.Int(10), "team": rel.Rel(team)}),
	))
	env.Set("Flags", rel.MustRelation([]string{"on"},
		rel.NewTuple(map[string]rel.Value{"on": rel.Bool(true)}),
	))
	env.Set("Empty", rel.Empty([]string{"a", "b"}))

	path := filepath.Join(t.TempDir(), "session.relic")
	require.NoError(t, workspace.Save(env, path))

	loaded, err := workspace.Load(path)
	require.NoError(t, err)

	require.Equal(t, env.Names(), loaded.Names())

	for _, name := range env.Names() {
		want, _ := env.Get(name)
		got, _ := loaded.Get(name)
		assert.True(t, want.Equal(got), "relation %s", name)
	}

	// The empty relation still knows its schema after the roundtrip.
	empty, _ := loaded.Get("Empty")
	assert.Equal(t, []string{"a", "b"}, empty.Schema())
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.relic")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack"), 0o644))

	_, err := workspace.Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := workspace.Load(filepath.Join(t.TempDir(), "absent.relic"))
	require.Error(t, err)
}
