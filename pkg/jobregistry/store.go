// Package jobregistry records crawl runs on disk so they can be listed and
// inspected after the process exits.
//
// Each job lives in its own directory:
//
//	<root>/<job_id>/job.json
package jobregistry

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"
)

const recordFile = "job.json"

var (
	// ErrJobNotFound is returned by Get for an unknown job id.
	ErrJobNotFound = errors.New("job not found")

	errNoRoot  = errors.New("job registry root dir is empty")
	errNoJobID = errors.New("job_id is required")
)

// Store persists and loads JobRecords under a root directory.
type Store struct {
	root  string
	alive func(pid int) bool
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root), alive: isProcessAlive}
}

func (s *Store) RootDir() string { return s.root }

func (s *Store) JobDir(jobID string) string { return filepath.Join(s.root, jobID) }

func (s *Store) JobPath(jobID string) string { return filepath.Join(s.root, jobID, recordFile) }

// Write stores record, replacing any previous version. Readers never see a
// partially written file.
func (s *Store) Write(record *JobRecord) error {
	if record == nil {
		return errors.New("job record is nil")
	}
	id, err := s.checkID(record.JobID)
	if err != nil {
		return err
	}

	dir := s.JobDir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job record: %w", err)
	}
	return replaceFile(dir, recordFile, append(data, '\n'))
}

// Get loads one record. A record left running by a process that no longer
// exists is rewritten as JobStateUnknown.
func (s *Store) Get(jobID string) (*JobRecord, error) {
	id, err := s.checkID(jobID)
	if err != nil {
		return nil, err
	}
	rec, err := readRecord(s.JobPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if rec.State == JobStateRunning && rec.PID > 0 && !s.alive(rec.PID) {
		rec.State = JobStateUnknown
		rec.PID = 0
		_ = s.Write(rec)
	}
	return rec, nil
}

// ListOptions narrows List. Zero values match everything.
type ListOptions struct {
	State  JobState
	Bucket string
	Limit  int
}

func (o ListOptions) match(r *JobRecord) bool {
	if o.State != "" && r.State != o.State {
		return false
	}
	return o.Bucket == "" || r.Bucket == o.Bucket
}

// List returns the readable records matching opts, newest first. Entries
// that cannot be read are skipped.
func (s *Store) List(opts ListOptions) ([]JobRecord, error) {
	ids, err := s.jobIDs()
	if err != nil {
		return nil, err
	}

	out := make([]JobRecord, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(id)
		if err != nil || !opts.match(r) {
			continue
		}
		out = append(out, *r)
	}

	slices.SortStableFunc(out, func(a, b JobRecord) int {
		return cmp.Compare(b.sortTime().UnixNano(), a.sortTime().UnixNano())
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Prune deletes finished jobs that ended before cutoff and returns their ids.
// Running and unknown jobs are kept.
func (s *Store) Prune(cutoff time.Time) ([]string, error) {
	recs, err := s.List(ListOptions{})
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, r := range recs {
		if !r.State.IsTerminal() || r.EndedAt == nil || !r.EndedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(s.JobDir(r.JobID)); err != nil {
			return removed, fmt.Errorf("remove job %s: %w", r.JobID, err)
		}
		removed = append(removed, r.JobID)
	}
	return removed, nil
}

func (s *Store) checkID(jobID string) (string, error) {
	if s.root == "" {
		return "", errNoRoot
	}
	id := strings.TrimSpace(jobID)
	if id == "" {
		return "", errNoJobID
	}
	if id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid job_id %q", jobID)
	}
	return id, nil
}

func (s *Store) jobIDs() ([]string, error) {
	if s.root == "" {
		return nil, errNoRoot
	}
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read jobs root: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (r *JobRecord) sortTime() time.Time {
	if r.StartedAt != nil {
		return *r.StartedAt
	}
	return r.CreatedAt
}

func readRecord(path string) (*JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rec, nil
}

// replaceFile writes data to dir/name through a temp file and rename.
func replaceFile(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks for existence without delivering anything.
	return p.Signal(syscall.Signal(0)) == nil
}
