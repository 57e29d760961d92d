package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blockchain.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestJSONFileRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	l.Append("Alice", "Zakat", 100.0)
	l.Append("Bob", "Sadaqah", 50.75)

	store := NewJSONFile(filepath.Join(t.TempDir(), "nested", "blockchain.json"))
	require.NoError(t, l.Save(store))

	loaded, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, l.Records(), loaded.Records())
	assert.True(t, loaded.Verify().Valid)
}

func TestJSONFileFieldNames(t *testing.T) {
	l := newTestLedger(t)
	l.Append("Alice", "Zakat", 100)

	data, err := EncodeRecords(l.Records())
	require.NoError(t, err)

	for _, field := range []string{`"Index"`, `"Timestamp"`, `"Donor"`, `"Type"`, `"Amount"`, `"Previous Hash"`, `"Hash"`} {
		assert.Contains(t, string(data), field)
	}
}

func TestJSONFileLoadPreservesStoredValues(t *testing.T) {
	// Hashes are adopted verbatim, even ones that would fail verification.
	path := writeFile(t, `[
    {"Index": 0, "Timestamp": "2024-01-01 00:00:00", "Donor": "Genesis", "Type": "N/A", "Amount": 0, "Previous Hash": "0", "Hash": "aaaa"},
    {"Index": 1, "Timestamp": "2024-01-02 10:30:00", "Donor": "Alice", "Type": "Zakat", "Amount": 100.0, "Previous Hash": "aaaa", "Hash": "bbbb"}
]`)

	l, err := Load(NewJSONFile(path))
	require.NoError(t, err)

	chain := l.Records()
	require.Len(t, chain, 2)
	assert.Equal(t, "aaaa", chain[0].Hash)
	assert.Equal(t, "bbbb", chain[1].Hash)
	assert.Equal(t, "2024-01-02 10:30:00", chain[1].Timestamp)
	assert.Equal(t, "Zakat", chain[1].Category)

	report := l.Verify()
	assert.False(t, report.Valid)
	assert.Equal(t, 0, report.FailedIndex)
}

func TestJSONFileLoadMissingHash(t *testing.T) {
	path := writeFile(t, `[
    {"Index": 0, "Timestamp": "2024-01-01 00:00:00", "Donor": "Genesis", "Type": "N/A", "Amount": 0, "Previous Hash": "0"}
]`)

	_, err := Load(NewJSONFile(path))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFormat)

	var formatErr *StorageFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, 0, formatErr.Index)
	assert.Contains(t, err.Error(), "Hash")
}

func TestJSONFileLoadMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":         `{{{`,
		"object not array": `{"Index": 0}`,
		"null":             `null`,
		"empty array":      `[]`,
		"wrong type":       `[{"Index": "zero", "Timestamp": "t", "Donor": "d", "Type": "t", "Amount": 0, "Previous Hash": "0", "Hash": "h"}]`,
		"unknown field":    `[{"Index": 0, "Timestamp": "t", "Donor": "d", "Type": "t", "Amount": 0, "Previous Hash": "0", "Hash": "h", "Extra": 1}]`,
		"trailing content": `[] []`,
		"null record":      `[null]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(NewJSONFile(writeFile(t, content)))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStorageFormat)
			assert.NotErrorIs(t, err, ErrStorageNotFound)
		})
	}
}

func TestJSONFileLoadNotFound(t *testing.T) {
	store := NewJSONFile(filepath.Join(t.TempDir(), "missing.json"))

	_, err := Load(store)
	assert.ErrorIs(t, err, ErrStorageNotFound)

	l, err := Open(store)
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	assert.True(t, l.Records()[0].IsGenesis())
}

func TestOpenSurfacesCorruption(t *testing.T) {
	_, err := Open(NewJSONFile(writeFile(t, `[{"Index": 0}]`)))
	assert.ErrorIs(t, err, ErrStorageFormat)
}

func TestOpenThenAppendContinuesChain(t *testing.T) {
	store := NewJSONFile(filepath.Join(t.TempDir(), "blockchain.json"))
	first := newTestLedger(t)
	first.Append("Alice", "Zakat", 100)
	require.NoError(t, first.Save(store))

	second, err := Open(store)
	require.NoError(t, err)
	r := second.Append("Bob", "Sadaqah", 50)

	assert.Equal(t, 2, r.Index)
	assert.Equal(t, first.Last().Hash, r.PreviousHash)
	assert.True(t, second.Verify().Valid)
}

func TestJSONFileSaveOverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONFile(filepath.Join(dir, "blockchain.json"))

	l := newTestLedger(t)
	l.Append("Alice", "Zakat", 100)
	require.NoError(t, l.Save(store))
	l.Append("Bob", "Waqf", 5)
	require.NoError(t, l.Save(store))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blockchain.json", entries[0].Name())

	loaded, err := Load(store)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestJSONFileSaveFailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockchain.json")
	store := NewJSONFile(path)

	l := newTestLedger(t)
	require.NoError(t, l.Save(store))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// A regular file in place of the parent directory makes the write fail.
	bad := NewJSONFile(filepath.Join(path, "child.json"))
	require.Error(t, l.Save(bad))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
