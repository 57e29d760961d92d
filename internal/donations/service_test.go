package donations

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NgigiN/charity-ledger/internal/intake"
	"github.com/NgigiN/charity-ledger/internal/ledger"
	"github.com/NgigiN/charity-ledger/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Load() ([]ledger.Record, error) { return nil, ledger.ErrStorageNotFound }
func (failingStore) Save([]ledger.Record) error      { return errors.New("disk full") }
func (failingStore) String() string                 { return "failing" }

type errSource struct{ err error }

func (s errSource) Next() (intake.Donation, error) { return intake.Donation{}, s.err }

func testClock() ledger.Option {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return ledger.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
}

func newService(t *testing.T, store ledger.Store) (*Service, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	svc, err := Open(store, "json", metrics.NewMetrics(prometheus.NewRegistry()), zerolog.New(&logs), testClock())
	require.NoError(t, err)
	return svc, &logs
}

func TestOpenFreshStore(t *testing.T) {
	store := ledger.NewJSONFile(filepath.Join(t.TempDir(), "blockchain.json"))

	svc, logs := newService(t, store)

	assert.Equal(t, 1, svc.Ledger().Len())
	assert.Contains(t, logs.String(), "starting a new chain")
}

func TestOpenCorruptStoreFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockchain.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"Index": 0}]`), 0o644))

	_, err := Open(ledger.NewJSONFile(path), "json", nil, zerolog.Nop())
	assert.ErrorIs(t, err, ledger.ErrStorageFormat)
}

func TestRecordPersistReopen(t *testing.T) {
	store := ledger.NewJSONFile(filepath.Join(t.TempDir(), "blockchain.json"))
	svc, _ := newService(t, store)

	alice := svc.Record(intake.Donation{Donor: "Alice", Category: "Zakat", Amount: 100})
	bob := svc.Record(intake.Donation{Donor: "Bob", Category: "Sadaqah", Amount: 50})
	require.NoError(t, svc.Persist())

	assert.Equal(t, alice.Hash, bob.PreviousHash)
	assert.True(t, svc.Verify().Valid)

	reopened, _ := newService(t, store)
	assert.Equal(t, svc.Ledger().Records(), reopened.Ledger().Records())
}

func TestImportSkipsInvalidRows(t *testing.T) {
	store := ledger.NewJSONFile(filepath.Join(t.TempDir(), "blockchain.json"))
	svc, logs := newService(t, store)

	src := intake.NewCSVSource(strings.NewReader("Alice,zakat,100\n,waqf,5\nBob,sadaqah,-1\nCarol,waqf,7\n"))
	res, err := svc.Import(src, "csv")
	require.NoError(t, err)

	require.Len(t, res.Recorded, 2)
	assert.Equal(t, "Alice", res.Recorded[0].Donor)
	assert.Equal(t, "Carol", res.Recorded[1].Donor)
	assert.Len(t, res.Rejected, 2)
	assert.Equal(t, 3, svc.Ledger().Len())
	assert.True(t, svc.Verify().Valid)
	assert.Contains(t, logs.String(), "donation rejected")
}

func TestImportStopsOnReadError(t *testing.T) {
	svc, _ := newService(t, failingStore{})

	_, err := svc.Import(errSource{err: errors.New("broken pipe")}, "stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.Equal(t, 1, svc.Ledger().Len())
}

func TestPersistSurfacesStoreErrors(t *testing.T) {
	svc, logs := newService(t, failingStore{})
	svc.Record(intake.Donation{Donor: "Alice", Category: "Zakat", Amount: 1})

	err := svc.Persist()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, logs.String(), "failed to persist ledger")
}

func TestVerifyLogsBrokenChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockchain.json")
	store := ledger.NewJSONFile(path)
	svc, _ := newService(t, store)
	svc.Record(intake.Donation{Donor: "Alice", Category: "Zakat", Amount: 100})
	require.NoError(t, svc.Persist())

	records, err := store.Load()
	require.NoError(t, err)
	records[1].Amount = 1000
	require.NoError(t, store.Save(records))

	reopened, logs := newService(t, store)
	report := reopened.Verify()
	assert.False(t, report.Valid)
	assert.Equal(t, 1, report.FailedIndex)
	assert.Contains(t, logs.String(), "chain broken")
}

func TestSummary(t *testing.T) {
	svc, _ := newService(t, failingStore{})
	svc.Record(intake.Donation{Donor: "A", Category: "Zakat", Amount: 10})
	svc.Record(intake.Donation{Donor: "B", Category: "Waqf", Amount: 40})
	svc.Record(intake.Donation{Donor: "C", Category: "Zakat", Amount: 15})

	assert.Equal(t, []CategoryTotal{
		{Category: "Waqf", Count: 1, Amount: 40},
		{Category: "Zakat", Count: 2, Amount: 25},
	}, svc.Summary())
}

func TestConcurrentRecordAndPersist(t *testing.T) {
	const writers, perWriter = 6, 20
	store := ledger.NewJSONFile(filepath.Join(t.TempDir(), "blockchain.json"))
	svc, err := Open(store, "json", nil, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				svc.Record(intake.Donation{Donor: "Alice", Category: "Zakat", Amount: 1})
				if err := svc.Persist(); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// The last save to run saw every append made before it.
	stored, err := ledger.Load(store)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter+1, stored.Len())
	assert.Equal(t, svc.Ledger().Records(), stored.Records())
	assert.True(t, stored.Verify().Valid)
}
