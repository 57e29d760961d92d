package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/NgigiN/charity-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func clock() func() time.Time {
	now := time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestDatabaseLoadEmptyIsNotFound(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.Load()
	assert.ErrorIs(t, err, ledger.ErrStorageNotFound)

	l, err := ledger.Open(db)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
}

func TestDatabaseRoundTrip(t *testing.T) {
	db := newTestDatabase(t)

	l := ledger.New(ledger.WithClock(clock()))
	l.Append("Alice", "Zakat", 100)
	l.Append("Bob", "Sadaqah", 50.5)
	require.NoError(t, l.Save(db))

	loaded, err := ledger.Load(db)
	require.NoError(t, err)
	assert.Equal(t, l.Records(), loaded.Records())
	assert.True(t, loaded.Verify().Valid)
}

func TestDatabaseSaveReplacesPreviousChain(t *testing.T) {
	db := newTestDatabase(t)

	l := ledger.New(ledger.WithClock(clock()))
	l.Append("Alice", "Zakat", 100)
	require.NoError(t, l.Save(db))

	other := ledger.New(ledger.WithClock(clock()))
	require.NoError(t, other.Save(db))

	loaded, err := ledger.Load(db)
	require.NoError(t, err)
	assert.Equal(t, other.Records(), loaded.Records())
}

func TestDatabaseLoadRejectsIncompleteRow(t *testing.T) {
	db := newTestDatabase(t)

	l := ledger.New(ledger.WithClock(clock()))
	l.Append("Alice", "Zakat", 100)
	require.NoError(t, l.Save(db))

	require.NoError(t, db.db.Model(&RecordRow{}).Where("position = ?", 1).Update("hash", "").Error)

	_, err := ledger.Load(db)
	assert.ErrorIs(t, err, ledger.ErrStorageFormat)

	var formatErr *ledger.StorageFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 1, formatErr.Index)
}

func TestDatabaseTamperDetectedByVerify(t *testing.T) {
	db := newTestDatabase(t)

	l := ledger.New(ledger.WithClock(clock()))
	l.Append("Alice", "Zakat", 100)
	l.Append("Bob", "Sadaqah", 50)
	require.NoError(t, l.Save(db))

	require.NoError(t, db.db.Model(&RecordRow{}).Where("position = ?", 2).Update("amount", 5000).Error)

	loaded, err := ledger.Load(db)
	require.NoError(t, err)
	report := loaded.Verify()
	assert.False(t, report.Valid)
	assert.Equal(t, 2, report.FailedIndex)
}
