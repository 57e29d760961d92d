package storage

import (
	"errors"
	"fmt"

	"github.com/NgigiN/charity-ledger/internal/ledger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is a sqlite-backed ledger.Store.
type Database struct {
	db   *gorm.DB
	path string
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&RecordRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Database{db: db, path: dbPath}, nil
}

func (d *Database) String() string { return "sqlite:" + d.path }

// Save replaces every stored row with records inside a single transaction.
func (d *Database) Save(records []ledger.Record) error {
	rows := make([]RecordRow, len(records))
	for i, r := range records {
		rows[i] = toRow(i, r)
	}

	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&RecordRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}
	return nil
}

// Load returns stored records ordered by position. An empty table means no
// chain was ever saved.
func (d *Database) Load() ([]ledger.Record, error) {
	var rows []RecordRow
	if err := d.db.Order("position asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", d, ledger.ErrStorageNotFound)
	}

	records := make([]ledger.Record, 0, len(rows))
	for i, row := range rows {
		if row.Position != i {
			return nil, &ledger.StorageFormatError{Source: d.String(), Index: i, Err: fmt.Errorf("position %d out of sequence", row.Position)}
		}
		if err := row.validate(); err != nil {
			return nil, &ledger.StorageFormatError{Source: d.String(), Index: i, Err: err}
		}
		records = append(records, row.record())
	}
	return records, nil
}

func (row RecordRow) validate() error {
	var errs []error
	if row.Timestamp == "" {
		errs = append(errs, errors.New("timestamp is empty"))
	}
	if row.PreviousHash == "" {
		errs = append(errs, errors.New("previous hash is empty"))
	}
	if row.Hash == "" {
		errs = append(errs, errors.New("hash is empty"))
	}
	return errors.Join(errs...)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
