package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is a durable home for a chain. Save must replace prior content
// atomically; Load returns records in chain order.
type Store interface {
	Load() ([]Record, error)
	Save(records []Record) error
	String() string
}

// Ledger is an append-only hash chain of donation records.
type Ledger struct {
	mu    sync.RWMutex
	chain []Record
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used for new timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func newLedger(opts []Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// New returns a ledger holding only a freshly minted genesis record.
func New(opts ...Option) *Ledger {
	l := newLedger(opts)
	l.chain = []Record{genesisRecord(l.now())}
	return l
}

// Load reads a chain from src and adopts it verbatim. Stored hashes and
// timestamps are kept as-is; call Verify to check them.
func Load(src Store, opts ...Option) (*Ledger, error) {
	records, err := src.Load()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &StorageFormatError{Source: src.String(), Index: -1, Err: errors.New("chain has no genesis record")}
	}
	l := newLedger(opts)
	l.chain = records
	return l, nil
}

// Open loads the chain stored in src, or starts a fresh chain when src holds
// none. A chain that exists but cannot be decoded is returned as an error.
func Open(src Store, opts ...Option) (*Ledger, error) {
	l, err := Load(src, opts...)
	if errors.Is(err, ErrStorageNotFound) {
		return New(opts...), nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Append links a new record to the end of the chain and returns it.
// Validation of donor and amount is the caller's job.
func (l *Ledger) Append(donor, category string, amount float64) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	last := l.chain[len(l.chain)-1]
	r := newRecord(len(l.chain), donor, category, amount, last.Hash, l.now().Format(TimestampLayout))
	l.chain = append(l.chain, r)
	return r
}

// Report is the outcome of Verify. FailedIndex is -1 when Valid.
type Report struct {
	Valid       bool
	FailedIndex int
	Reason      string
}

// Err returns nil for a valid report and an *IntegrityViolation otherwise.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &IntegrityViolation{Index: r.FailedIndex, Reason: r.Reason}
}

func broken(i int, format string, args ...any) Report {
	return Report{FailedIndex: i, Reason: fmt.Sprintf(format, args...)}
}

// Verify walks the chain and reports the first record whose position,
// linkage or digest does not hold. It never mutates the chain.
func (l *Ledger) Verify() Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	genesis := l.chain[0]
	if genesis.Index != 0 {
		return broken(0, "index %d, want 0", genesis.Index)
	}
	if genesis.PreviousHash != GenesisPreviousHash {
		return broken(0, "previous hash %q is not the genesis sentinel", genesis.PreviousHash)
	}
	if genesis.Hash != genesis.ComputeHash() {
		return broken(0, "stored hash does not match contents")
	}

	for i := 1; i < len(l.chain); i++ {
		cur, prev := l.chain[i], l.chain[i-1]
		if cur.Index != i {
			return broken(i, "index %d at position %d", cur.Index, i)
		}
		if cur.PreviousHash != prev.Hash {
			return broken(i, "previous hash does not match record %d", i-1)
		}
		if cur.Hash != cur.ComputeHash() {
			return broken(i, "stored hash does not match contents")
		}
	}
	return Report{Valid: true, FailedIndex: -1}
}

// Save writes the whole chain to dst.
func (l *Ledger) Save(dst Store) error {
	if err := dst.Save(l.Records()); err != nil {
		return fmt.Errorf("failed to save ledger to %s: %w", dst, err)
	}
	return nil
}

// Records returns a copy of the chain in order.
func (l *Ledger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, len(l.chain))
	copy(out, l.chain)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

func (l *Ledger) Last() Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}
