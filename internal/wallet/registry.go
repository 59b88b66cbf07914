package wallet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Header is the row written at the top of every persisted generation.
var Header = []string{"address", "privateKey"}

// Load reads a wallet file and returns its data rows in file order.
// The first row is always treated as a header. Both the two-column
// address,privateKey layout and the legacy id,address,privateKey,publicKey
// layout are accepted.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	addrCol, keyCol := columns(rows[0])
	need := keyCol + 1
	if addrCol >= need {
		need = addrCol + 1
	}
	out := make([]Record, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		if len(row) < need {
			return nil, &ParseError{Path: path, Line: i + 1, Fields: len(row)}
		}
		out = append(out, Record{
			Address:    strings.TrimSpace(row[addrCol]),
			PrivateKey: strings.TrimSpace(row[keyCol]),
		})
	}
	return out, nil
}

// columns picks the address and key columns from the header row.
func columns(header []string) (addrCol, keyCol int) {
	addrCol, keyCol = -1, -1
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case h == "address" || h == "钱包地址":
			addrCol = i
		case h == "privatekey" || h == "private_key" || h == "私钥":
			keyCol = i
		}
	}
	if addrCol >= 0 && keyCol >= 0 {
		return addrCol, keyCol
	}
	if len(header) >= 4 {
		return 1, 2
	}
	return 0, 1
}

// Persist writes the header and records to path, replacing any existing file.
// Data goes to a temporary file in the same directory which is renamed over
// path only after a successful flush, so a failed write leaves the old file intact.
func Persist(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Address, rec.PrivateKey}); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	ok = true
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
