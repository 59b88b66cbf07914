package wallet

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// RotationPlan describes one rotation step: where the current and retiring
// generations live, where retired files are archived, and the fresh records.
type RotationPlan struct {
	Current  string
	Retiring string
	Backup   string
	Fresh    []Record
	Now      time.Time
}

// RotationResult tells which moves a rotation actually performed.
type RotationResult struct {
	ArchivedTo string // empty when there was no retiring file
	Promoted   bool   // current generation became the retiring one
}

// Rotate archives the retiring generation, promotes the current one and
// writes fresh as the new current generation.
func Rotate(currentNewPath, currentOldPath, backupDir string, fresh []Record) (RotationResult, error) {
	return RotationPlan{
		Current:  currentNewPath,
		Retiring: currentOldPath,
		Backup:   backupDir,
		Fresh:    fresh,
		Now:      time.Now(),
	}.Execute()
}

// Execute runs the three steps in order and stops at the first failure.
// Steps 1 and 2 are renames, so no record is ever deleted.
func (p RotationPlan) Execute() (RotationResult, error) {
	var res RotationResult
	if err := Validate(p.Fresh); err != nil {
		return res, err
	}
	if filepath.Clean(p.Current) == filepath.Clean(p.Retiring) {
		return res, fmt.Errorf("%w: current and retiring paths are the same", ErrInvalidArgument)
	}

	if Exists(p.Retiring) {
		if err := os.MkdirAll(p.Backup, 0o700); err != nil {
			return res, &RotationError{Step: 1, Op: "mkdir", Path: p.Backup, Err: err}
		}
		dst, err := p.archiveName()
		if err != nil {
			return res, &RotationError{Step: 1, Op: "stat", Path: p.Backup, Err: err}
		}
		if err := moveFile(p.Retiring, dst); err != nil {
			return res, &RotationError{Step: 1, Op: "archive", Path: p.Retiring, Err: err}
		}
		res.ArchivedTo = dst
	}

	if Exists(p.Current) {
		if err := os.Rename(p.Current, p.Retiring); err != nil {
			return res, &RotationError{Step: 2, Op: "promote", Path: p.Current, Err: err}
		}
		res.Promoted = true
	}

	if err := Persist(p.Current, p.Fresh); err != nil {
		return res, &RotationError{Step: 3, Op: "write", Path: p.Current, Err: err}
	}
	return res, nil
}

// archiveName returns backup/<name>_<unix><ext>, adding a counter if that file
// already exists so an earlier archive is never overwritten.
func (p RotationPlan) archiveName() (string, error) {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	base := filepath.Base(p.Retiring)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ts := strconv.FormatInt(now.Unix(), 10)
	for n := 0; ; n++ {
		name := stem + "_" + ts + ext
		if n > 0 {
			name = stem + "_" + ts + "_" + strconv.Itoa(n) + ext
		}
		dst := filepath.Join(p.Backup, name)
		if _, err := os.Stat(dst); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return dst, nil
			}
			return "", err
		}
	}
}

// moveFile renames src to dst, falling back to copy+remove across devices.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var le *os.LinkError
	if !errors.As(err, &le) || !errors.Is(le.Err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
