package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return l
}

func TestLocalSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	require.NoError(t, l.Save(ctx, "renders/abc.png", []byte("png-bytes")))

	data, err := l.Load(ctx, "renders/abc.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	require.NoError(t, l.Delete(ctx, "renders/abc.png"))
	_, err = l.Load(ctx, "renders/abc.png")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine.
	assert.NoError(t, l.Delete(ctx, "renders/abc.png"))
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	require.NoError(t, l.Save(ctx, "renders/a.png", []byte("a")))
	require.NoError(t, l.Save(ctx, "renders/deep/b.png", []byte("b")))
	require.NoError(t, l.Save(ctx, "results/r.json", []byte("{}")))

	keys, err := l.List(ctx, "renders/**/*.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"renders/a.png", "renders/deep/b.png"}, keys)

	keys, err = l.List(ctx, "**/*.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"results/r.json"}, keys)

	_, err = l.List(ctx, "renders/[")
	assert.Error(t, err)
}

func TestLocalKeyEscapesRejected(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	err := l.Save(ctx, "../outside.txt", []byte("x"))
	assert.Error(t, err)

	_, err = l.Load(ctx, "")
	assert.Error(t, err)
}
