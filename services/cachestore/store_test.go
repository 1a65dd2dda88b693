package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"streamvault/config"
	"streamvault/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.CacheStoreSettings{
		Enabled: true,
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Table:   "cache_records",
		TTLDays: 30,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetLowercasesKeys(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ok := s.UpsertOne(ctx, Record{
		Service:  "RealDebrid",
		Hash:     "ABCDEF0123456789ABCDEF0123456789ABCDEF01",
		FileName: "movie.mkv",
	})
	require.True(t, ok)

	rec, found := s.GetRecord(ctx, "realdebrid", "abcdef0123456789abcdef0123456789abcdef01")
	require.True(t, found)
	require.Equal(t, "realdebrid", rec.Service)
	require.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", rec.Hash)
	require.Equal(t, "movie.mkv", rec.FileName)

	// Mixed-case lookup resolves too.
	_, found = s.GetRecord(ctx, "REALDEBRID", "ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.True(t, found)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.True(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "aa11", FileName: "first.mkv"}))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.True(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "aa11", FileName: "second.mkv"}))

	rec, found := s.GetRecord(ctx, "realdebrid", "aa11")
	require.True(t, found)
	require.Equal(t, "second.mkv", rec.FileName)
	require.True(t, rec.CreatedAt.Equal(base), "createdAt must survive upserts, got %s", rec.CreatedAt)
	require.True(t, rec.UpdatedAt.After(rec.CreatedAt), "updatedAt must advance")
}

func TestUpsertManySkipsMalformed(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ok := s.UpsertMany(ctx, []Record{
		{Service: "realdebrid", Hash: "bb22"},
		{Service: "", Hash: "cc33"},       // malformed: no service
		{Service: "realdebrid", Hash: ""}, // malformed: no hash
		{Service: "realdebrid", Hash: "dd44"},
	})
	require.True(t, ok)

	known := s.KnownHashes(ctx, "realdebrid", []string{"bb22", "cc33", "dd44"})
	require.Len(t, known, 2)
	require.Contains(t, known, "bb22")
	require.Contains(t, known, "dd44")
}

func TestKnownHashesSubsetOfInput(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.True(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "ee55"}))
	require.True(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "ff66"}))

	known := s.KnownHashes(ctx, "realdebrid", []string{"EE55", "0000"})
	require.Len(t, known, 1)
	require.Contains(t, known, "ee55")

	require.Empty(t, s.KnownHashes(ctx, "realdebrid", nil))
}

func TestExpiredRecordsAreAbsent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.True(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "1177", ReleaseKey: "movie:tt1"}))

	// Jump past the 30 day TTL: the record is logically gone everywhere.
	s.now = func() time.Time { return base.Add(31 * 24 * time.Hour) }

	_, found := s.GetRecord(ctx, "realdebrid", "1177")
	require.False(t, found)
	require.Empty(t, s.KnownHashes(ctx, "realdebrid", []string{"1177"}))
	require.Zero(t, s.ReleaseCounts(ctx, "realdebrid", "movie:tt1").Total)

	// And physically removable.
	require.EqualValues(t, 1, s.purgeExpired(ctx))
}

func TestReleaseCountsAggregates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	recs := []Record{
		{Service: "realdebrid", Hash: "a001", ReleaseKey: "movie:tt9", Category: models.CategoryRemux, Resolution: models.Resolution2160p},
		{Service: "realdebrid", Hash: "a002", ReleaseKey: "movie:tt9", Category: models.CategoryRemux, Resolution: models.Resolution1080p},
		{Service: "realdebrid", Hash: "a003", ReleaseKey: "movie:tt9", Category: models.CategoryWeb, Resolution: models.Resolution1080p},
		{Service: "realdebrid", Hash: "a004", ReleaseKey: "movie:other", Category: models.CategoryWeb, Resolution: models.Resolution1080p},
	}
	require.True(t, s.UpsertMany(ctx, recs))

	counts := s.ReleaseCounts(ctx, "realdebrid", "movie:tt9")
	require.Equal(t, 3, counts.Total)
	require.Equal(t, 2, counts.ByCategory[models.CategoryRemux])
	require.Equal(t, 1, counts.At(models.CategoryRemux, models.Resolution2160p))
	require.Equal(t, 1, counts.At(models.CategoryWeb, models.Resolution1080p))
}

func TestDisabledStoreDegrades(t *testing.T) {
	s, err := Open(config.CacheStoreSettings{Enabled: false})
	require.NoError(t, err)
	ctx := context.Background()

	require.False(t, s.Enabled())
	require.False(t, s.UpsertOne(ctx, Record{Service: "realdebrid", Hash: "aa"}))
	require.Empty(t, s.KnownHashes(ctx, "realdebrid", []string{"aa"}))
	_, found := s.GetRecord(ctx, "realdebrid", "aa")
	require.False(t, found)
	require.Zero(t, s.ReleaseCounts(ctx, "realdebrid", "movie:tt1").Total)
	require.NoError(t, s.Close())
}
