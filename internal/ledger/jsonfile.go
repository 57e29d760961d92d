package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// JSONFile stores a chain as a JSON array of record objects.
type JSONFile struct {
	Path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{Path: path}
}

func (f *JSONFile) String() string { return f.Path }

// recordJSON is the on-disk shape. Pointers let Load tell a missing field
// from a zero value.
type recordJSON struct {
	Index        *int     `json:"Index"`
	Timestamp    *string  `json:"Timestamp"`
	Donor        *string  `json:"Donor"`
	Type         *string  `json:"Type"`
	Amount       *float64 `json:"Amount"`
	PreviousHash *string  `json:"Previous Hash"`
	Hash         *string  `json:"Hash"`
}

func toJSON(r Record) recordJSON {
	return recordJSON{
		Index:        &r.Index,
		Timestamp:    &r.Timestamp,
		Donor:        &r.Donor,
		Type:         &r.Category,
		Amount:       &r.Amount,
		PreviousHash: &r.PreviousHash,
		Hash:         &r.Hash,
	}
}

func (j recordJSON) record() (Record, error) {
	var missing []error
	check := func(ok bool, name string) {
		if !ok {
			missing = append(missing, fmt.Errorf("missing field %q", name))
		}
	}
	check(j.Index != nil, "Index")
	check(j.Timestamp != nil, "Timestamp")
	check(j.Donor != nil, "Donor")
	check(j.Type != nil, "Type")
	check(j.Amount != nil, "Amount")
	check(j.PreviousHash != nil, "Previous Hash")
	check(j.Hash != nil, "Hash")
	if len(missing) > 0 {
		return Record{}, errors.Join(missing...)
	}
	return Record{
		Index:        *j.Index,
		Timestamp:    *j.Timestamp,
		Donor:        *j.Donor,
		Category:     *j.Type,
		Amount:       *j.Amount,
		PreviousHash: *j.PreviousHash,
		Hash:         *j.Hash,
	}, nil
}

// Load decodes the file. A missing file yields ErrStorageNotFound; anything
// that is not an array of complete record objects yields *StorageFormatError.
func (f *JSONFile) Load() ([]Record, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", f.Path, ErrStorageNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	return DecodeRecords(f.Path, data)
}

// DecodeRecords parses a JSON record array as written by JSONFile.
func DecodeRecords(source string, data []byte) ([]Record, error) {
	formatErr := func(index int, err error) error {
		return &StorageFormatError{Source: source, Index: index, Err: err}
	}

	var raw []json.RawMessage
	if err := decodeStrict(data, &raw); err != nil {
		return nil, formatErr(-1, err)
	}
	if raw == nil {
		return nil, formatErr(-1, errors.New("expected an array of records"))
	}

	records := make([]Record, 0, len(raw))
	for i, msg := range raw {
		var rj recordJSON
		if err := decodeStrict(msg, &rj); err != nil {
			return nil, formatErr(i, err)
		}
		r, err := rj.record()
		if err != nil {
			return nil, formatErr(i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func decodeStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

// EncodeRecords renders records in the on-disk format.
func EncodeRecords(records []Record) ([]byte, error) {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = toJSON(r)
	}
	b, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Save replaces the file with the encoded chain. The new content is written
// to a temporary file in the same directory and renamed over the old one.
func (f *JSONFile) Save(records []Record) error {
	data, err := EncodeRecords(records)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return writeFileAtomic(f.Path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
