package migrate

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

const (
	headerRevision     = "Revision ID"
	headerRevises      = "Revises"
	headerCreateDate   = "Create Date"
	headerBranchLabels = "Branch Labels"
	headerDependsOn    = "Depends On"
	headerMessage      = "Message"

	directivePrefix = "-- +migrate"
)

// Script is a single revision script.
//
// Name is the script's file name and doubles as the sql-migrate migration id.
// sql-migrate sorts ids by their timestamp prefix, which does not have to
// follow the revision graph, so scripts are handed to it one at a time.
type Script struct {
	Revision      string
	DownRevisions []string
	Dependencies  []string
	BranchLabels  []string
	CreateDate    string
	Message       string

	// Name is the file name, Path the full path on disk
	Name string
	Path string

	// Migration holds the parsed Up/Down statements
	Migration *migrate.Migration

	content []byte
}

// ParseScript parses a revision script named name.
//
// The header is read from the leading `-- Key: value` comment lines and the
// body is handed to sql-migrate's parser. A script without a Revision ID is
// rejected.
func ParseScript(name string, content []byte) (*Script, error) {
	s := &Script{Name: name, content: content}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, directivePrefix) {
			break
		}

		if !strings.HasPrefix(line, "--") {
			continue
		}

		key, val, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
		if !ok {
			continue
		}

		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case headerRevision:
			s.Revision = val
		case headerRevises:
			s.DownRevisions = splitList(val)
		case headerCreateDate:
			s.CreateDate = val
		case headerBranchLabels:
			s.BranchLabels = splitList(val)
		case headerDependsOn:
			s.Dependencies = splitList(val)
		case headerMessage:
			s.Message = val
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read script: %s", name)
	}

	if s.Revision == "" {
		return nil, errors.Errorf("script %s has no Revision ID header", name)
	}

	m, err := migrate.ParseMigration(name, bytes.NewReader(content))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse script: %s", name)
	}

	s.Migration = m
	return s, nil
}

// IsBase reports whether the script has no down revisions.
func (s *Script) IsBase() bool {
	return len(s.DownRevisions) == 0
}

// IsMergePoint reports whether the script merges two or more revisions.
func (s *Script) IsMergePoint() bool {
	return len(s.DownRevisions) > 1
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
