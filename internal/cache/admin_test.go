package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultas-gateway/internal/blobstore"
)

func seedAdmin(t *testing.T) *blobstore.MemoryStore {
	s := blobstore.NewMemoryStore()
	put(t, s, "consultas/dni/dni_1_1.json", `{"a":1}`, nil)
	put(t, s, "consultas/dni/dni_2_2.json", `{"a":22}`, nil)
	put(t, s, "consultas/foto/media/dni_1_3.png", "png", nil)
	put(t, s, "consultas/stray.json", "{}", nil)
	put(t, s, "other/keep.json", "{}", nil)
	return s
}

func TestAdminStats(t *testing.T) {
	st, err := NewAdmin(seedAdmin(t)).Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Usage{Objects: 4, Bytes: 7 + 8 + 3 + 2}, st.Total)
	assert.Equal(t, EndpointStats{JSON: Usage{Objects: 2, Bytes: 15}}, st.Endpoints["dni"])
	assert.Equal(t, EndpointStats{Media: Usage{Objects: 1, Bytes: 3}}, st.Endpoints["foto"])
	assert.Equal(t, EndpointStats{JSON: Usage{Objects: 1, Bytes: 2}}, st.Endpoints["_other"])
	assert.Len(t, st.Endpoints, 3)
}

func TestAdminClear(t *testing.T) {
	s := seedAdmin(t)
	admin := NewAdmin(s)

	n, err := admin.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, s.Len(), "objects outside the consultas root survive")

	n, err = admin.Clear(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdminWithoutStore(t *testing.T) {
	admin := NewAdmin(nil)
	_, err := admin.Stats(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = admin.Clear(context.Background())
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestAdminStoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewAdmin(&brokenStore{listErr: boom}).Stats(context.Background())
	assert.ErrorIs(t, err, boom)
}
