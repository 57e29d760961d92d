package storage

import "github.com/NgigiN/charity-ledger/internal/ledger"

// RecordRow is a stored chain record. Position is the record's place in the
// saved chain and is what rows are ordered by on load.
type RecordRow struct {
	ID           uint   `gorm:"primaryKey"`
	Position     int    `gorm:"uniqueIndex;not null"`
	Index        int    `gorm:"column:record_index;not null"`
	Timestamp    string `gorm:"not null"`
	Donor        string `gorm:"not null"`
	Type         string `gorm:"not null"`
	Amount       float64
	PreviousHash string `gorm:"not null"`
	Hash         string `gorm:"not null"`
}

func (RecordRow) TableName() string { return "ledger_records" }

func toRow(position int, r ledger.Record) RecordRow {
	return RecordRow{
		Position:     position,
		Index:        r.Index,
		Timestamp:    r.Timestamp,
		Donor:        r.Donor,
		Type:         r.Category,
		Amount:       r.Amount,
		PreviousHash: r.PreviousHash,
		Hash:         r.Hash,
	}
}

func (row RecordRow) record() ledger.Record {
	return ledger.Record{
		Index:        row.Index,
		Timestamp:    row.Timestamp,
		Donor:        row.Donor,
		Category:     row.Type,
		Amount:       row.Amount,
		PreviousHash: row.PreviousHash,
		Hash:         row.Hash,
	}
}
