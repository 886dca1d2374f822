package migrate

import (
	"bufio"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/pgkeeper/pkg/consts"
)

type (
	// SumFile guards the revision scripts against silent edits.
	//
	// Every script gets a chained hash: the first is SHA256(content), each
	// following one is SHA256(content + previous hash). The total hash is
	// SHA256 over all script hashes, so changing, adding, removing or
	// reordering a script changes it.
	SumFile struct {
		entries []sumEntry
	}

	sumEntry struct {
		name string
		hash []byte
	}
)

// NewSumFile creates an empty SumFile.
func NewSumFile() *SumFile {
	return &SumFile{}
}

// LoadSumFile reads a SumFile written by WriteTo:
//
//	h1:<base64 total hash>
//	<script name> h1:<base64 hash>
//	...
func LoadSumFile(r io.Reader) (*SumFile, string, error) {
	scanner := bufio.NewScanner(r)
	sf := NewSumFile()

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, "", errors.Wrap(err, "failed to read total hash line")
		}

		return sf, "", nil
	}

	total := strings.TrimSpace(scanner.Text())
	if total != "" && !strings.HasPrefix(total, "h1:") {
		return nil, "", errors.Errorf("invalid total hash format: %s", total)
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		name, h1, ok := strings.Cut(line, " ")
		if !ok || !strings.HasPrefix(h1, "h1:") {
			return nil, "", errors.Errorf("invalid sum entry: %s", line)
		}

		hash, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h1, "h1:"))
		if err != nil {
			return nil, "", errors.Wrapf(err, "failed to decode hash for %s", name)
		}

		sf.entries = append(sf.entries, sumEntry{name: name, hash: hash})
	}

	if err := scanner.Err(); err != nil {
		return nil, "", errors.Wrap(err, "error reading sum file")
	}

	return sf, total, nil
}

// Add hashes a script, chaining it onto the previous one.
func (s *SumFile) Add(name string, content []byte) {
	h := sha256.New()
	h.Write(content)

	if n := len(s.entries); n > 0 {
		h.Write(s.entries[n-1].hash)
	}

	s.entries = append(s.entries, sumEntry{name: name, hash: h.Sum(nil)})
}

// Len returns the number of hashed scripts.
func (s *SumFile) Len() int {
	return len(s.entries)
}

// Sum returns the total hash, or "" when there are no scripts.
func (s *SumFile) Sum() string {
	if len(s.entries) == 0 {
		return ""
	}

	h := sha256.New()
	for _, e := range s.entries {
		h.Write(e.hash)
	}

	return "h1:" + base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Mismatched returns the names of scripts whose hash differs from (or is
// missing in) other, in order.
func (s *SumFile) Mismatched(other *SumFile) []string {
	known := make(map[string]string, len(other.entries))
	for _, e := range other.entries {
		known[e.name] = base64.StdEncoding.EncodeToString(e.hash)
	}

	var out []string
	for _, e := range s.entries {
		if known[e.name] != base64.StdEncoding.EncodeToString(e.hash) {
			out = append(out, e.name)
		}
	}

	return out
}

// WriteTo implements io.WriterTo.
func (s *SumFile) WriteTo(w io.Writer) (int64, error) {
	var total int64

	n, err := fmt.Fprintf(w, "%s\n", s.Sum())
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, e := range s.entries {
		n, err := fmt.Fprintf(w, "%s h1:%s\n", e.name, base64.StdEncoding.EncodeToString(e.hash))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func sumFilePath(cfg *Config) string {
	return filepath.Join(cfg.ScriptLocation, consts.SumFileName)
}

// writeSumFile replaces migrate.sum with the hashes of the loaded scripts.
func writeSumFile(cfg *Config, dir *ScriptDirectory) error {
	path := sumFilePath(cfg)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, consts.ModeFile)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer func() { _ = f.Close() }()

	if _, err := dir.SumFile().WriteTo(f); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}

	return nil
}

// verifySumFile compares migrate.sum, when present, with the loaded scripts.
func verifySumFile(cfg *Config, dir *ScriptDirectory) error {
	path := sumFilePath(cfg)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer func() { _ = f.Close() }()

	stored, total, err := LoadSumFile(f)
	if err != nil {
		return errors.Wrapf(err, "failed to load %s", path)
	}

	current := dir.SumFile()
	if total == current.Sum() {
		return nil
	}

	changed := current.Mismatched(stored)
	if len(changed) == 0 {
		// Only removals (or reordering) are left.
		return errors.Errorf("%s does not match the revision scripts; run `db migrate rehash`", consts.SumFileName)
	}

	return errors.Errorf(
		"%s does not match the revision scripts (changed: %s); run `db migrate rehash`",
		consts.SumFileName,
		strings.Join(changed, ", "),
	)
}
