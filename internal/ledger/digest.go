package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Digest returns the lowercase hex SHA-256 of the record fields.
//
// Each field is written as <byte length>:<text> in a fixed order, so no two
// distinct field tuples share an encoding.
func Digest(index int, timestamp, donor, category string, amount float64, previousHash string) string {
	var b strings.Builder
	writeField(&b, strconv.Itoa(index))
	writeField(&b, timestamp)
	writeField(&b, donor)
	writeField(&b, category)
	writeField(&b, FormatAmount(amount))
	writeField(&b, previousHash)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// FormatAmount renders an amount the way it is fed into the digest.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func writeField(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
