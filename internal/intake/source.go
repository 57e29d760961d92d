package intake

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Source yields donations one at a time. Next returns io.EOF once the
// stream is exhausted. A *InvalidInputError rejects only the current item;
// the source can still be read after it.
type Source interface {
	Next() (Donation, error)
}

// CSVSource reads donor,type,amount rows. A first row whose amount column
// reads "amount" is treated as a header.
type CSVSource struct {
	r *csv.Reader
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return &CSVSource{r: cr}
}

func (s *CSVSource) Next() (Donation, error) {
	for {
		fields, err := s.r.Read()
		if errors.Is(err, io.EOF) {
			return Donation{}, io.EOF
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return Donation{}, &InvalidInputError{Line: parseErr.Line, Field: "row", Reason: parseErr.Err.Error()}
			}
			return Donation{}, err
		}
		line, _ := s.r.FieldPos(0)

		if line == 1 && len(fields) == 3 && strings.EqualFold(strings.TrimSpace(fields[2]), "amount") {
			continue
		}
		if len(fields) != 3 {
			return Donation{}, &InvalidInputError{Line: line, Field: "row", Value: strings.Join(fields, ","), Reason: "want donor,type,amount"}
		}

		d, err := Validate(fields[0], fields[1], fields[2])
		if err != nil {
			var inputErr *InvalidInputError
			if errors.As(err, &inputErr) {
				inputErr.Line = line
			}
			return Donation{}, err
		}
		return d, nil
	}
}

// SliceSource serves donations from memory.
type SliceSource struct {
	items []Donation
}

func NewSliceSource(items ...Donation) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next() (Donation, error) {
	if len(s.items) == 0 {
		return Donation{}, io.EOF
	}
	d := s.items[0]
	s.items = s.items[1:]
	return d, nil
}
