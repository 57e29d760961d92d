package ledger

import "time"

const (
	// TimestampLayout is the format used for record timestamps.
	TimestampLayout = "2006-01-02 15:04:05"

	// GenesisPreviousHash is the previous hash of the first record in every chain.
	GenesisPreviousHash = "0"

	genesisDonor    = "Genesis"
	genesisCategory = "N/A"
)

// Record is one donation committed into the chain.
type Record struct {
	Index        int
	Timestamp    string
	Donor        string
	Category     string
	Amount       float64
	PreviousHash string
	Hash         string
}

// newRecord builds a hashed record. An empty timestamp means now.
func newRecord(index int, donor, category string, amount float64, previousHash, timestamp string) Record {
	if timestamp == "" {
		timestamp = time.Now().Format(TimestampLayout)
	}
	r := Record{
		Index:        index,
		Timestamp:    timestamp,
		Donor:        donor,
		Category:     category,
		Amount:       amount,
		PreviousHash: previousHash,
	}
	r.Hash = r.ComputeHash()
	return r
}

func genesisRecord(now time.Time) Record {
	return newRecord(0, genesisDonor, genesisCategory, 0, GenesisPreviousHash, now.Format(TimestampLayout))
}

// ComputeHash recomputes the digest over the record's stored fields.
func (r Record) ComputeHash() string {
	return Digest(r.Index, r.Timestamp, r.Donor, r.Category, r.Amount, r.PreviousHash)
}

// IsGenesis reports whether r carries the genesis sentinel values.
func (r Record) IsGenesis() bool {
	return r.Index == 0 &&
		r.Donor == genesisDonor &&
		r.Category == genesisCategory &&
		r.Amount == 0 &&
		r.PreviousHash == GenesisPreviousHash
}
