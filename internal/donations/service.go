package donations

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/NgigiN/charity-ledger/internal/intake"
	"github.com/NgigiN/charity-ledger/internal/ledger"
	"github.com/NgigiN/charity-ledger/internal/metrics"
	"github.com/rs/zerolog"
)

// Service owns a ledger together with the store it was opened from.
type Service struct {
	persistMu sync.Mutex

	ledger  *ledger.Ledger
	store   ledger.Store
	backend string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Open loads the chain held by store, starting a fresh one if the store is
// empty. backend labels the store in logs and metrics.
func Open(store ledger.Store, backend string, m *metrics.Metrics, logger zerolog.Logger, opts ...ledger.Option) (*Service, error) {
	logger = logger.With().Str("store", store.String()).Logger()

	start := time.Now()
	l, err := ledger.Load(store, opts...)
	m.ObserveStorage(backend, "load", time.Since(start), ignoreNotFound(err))
	switch {
	case errors.Is(err, ledger.ErrStorageNotFound):
		logger.Info().Msg("no stored ledger, starting a new chain")
		l = ledger.New(opts...)
	case err != nil:
		logger.Error().Err(err).Msg("stored ledger is unreadable")
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	default:
		logger.Info().Int("records", l.Len()).Msg("loaded ledger")
	}
	m.SetChainLength(l.Len())

	return &Service{ledger: l, store: store, backend: backend, metrics: m, logger: logger}, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ledger.ErrStorageNotFound) {
		return nil
	}
	return err
}

func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

// Record appends a validated donation. It does not persist.
func (s *Service) Record(d intake.Donation) ledger.Record {
	r := s.ledger.Append(d.Donor, d.Category, d.Amount)
	s.metrics.RecordAppend(r.Category, r.Amount, r.Index+1)
	s.logger.Info().
		Int("index", r.Index).
		Str("donor", r.Donor).
		Str("category", r.Category).
		Float64("amount", r.Amount).
		Str("hash", r.Hash).
		Msg("donation recorded")
	return r
}

// ImportResult summarises an Import run.
type ImportResult struct {
	Recorded []ledger.Record
	Rejected []error
}

// Import drains src, recording every valid donation and collecting rejected
// inputs. It stops early only on a non-input error from src.
func (s *Service) Import(src intake.Source, sourceName string) (ImportResult, error) {
	var res ImportResult
	for {
		d, err := src.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		var inputErr *intake.InvalidInputError
		if errors.As(err, &inputErr) {
			s.Reject(sourceName, err)
			res.Rejected = append(res.Rejected, err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("failed to read %s: %w", sourceName, err)
		}
		res.Recorded = append(res.Recorded, s.Record(d))
	}
}

// Reject notes an input that never reached the ledger.
func (s *Service) Reject(sourceName string, err error) {
	s.metrics.RecordRejected(sourceName)
	s.logger.Warn().Err(err).Str("source", sourceName).Msg("donation rejected")
}

// Verify checks the chain and logs a broken link.
func (s *Service) Verify() ledger.Report {
	report := s.ledger.Verify()
	s.metrics.RecordVerification(report.Valid)
	if report.Valid {
		s.logger.Info().Int("records", s.ledger.Len()).Msg("chain verified")
	} else {
		s.logger.Error().Int("index", report.FailedIndex).Str("reason", report.Reason).Msg("chain broken")
	}
	return report
}

// Persist saves the whole chain back to the service's store. Saves are
// serialized so an older snapshot never overwrites a newer one.
func (s *Service) Persist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	start := time.Now()
	err := s.ledger.Save(s.store)
	s.metrics.ObserveStorage(s.backend, "save", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to persist ledger")
		return err
	}
	s.logger.Debug().Int("records", s.ledger.Len()).Msg("ledger persisted")
	return nil
}

// CategoryTotal is one row of Summary.
type CategoryTotal struct {
	Category string
	Count    int
	Amount   float64
}

// Summary totals donations per category, largest amount first.
func (s *Service) Summary() []CategoryTotal {
	byCategory := make(map[string]*CategoryTotal)
	for _, r := range s.ledger.Records()[1:] {
		t, ok := byCategory[r.Category]
		if !ok {
			t = &CategoryTotal{Category: r.Category}
			byCategory[r.Category] = t
		}
		t.Count++
		t.Amount += r.Amount
	}

	out := make([]CategoryTotal, 0, len(byCategory))
	for _, t := range byCategory {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}
