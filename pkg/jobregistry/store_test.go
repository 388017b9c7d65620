package jobregistry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)

func at(h int) *time.Time {
	t := base.Add(time.Duration(h) * time.Hour)
	return &t
}

func seed(t *testing.T, s *Store, recs ...JobRecord) {
	t.Helper()
	for i := range recs {
		require.NoError(t, s.Write(&recs[i]))
	}
}

func ids(recs []JobRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.JobID)
	}
	return out
}

func TestStore_WriteGet(t *testing.T) {
	s := NewStore(t.TempDir())
	rec := &JobRecord{
		JobID:        "job-1",
		State:        JobStateRunning,
		ManifestPath: "/etc/ossxml/crawl.yaml",
		Bucket:       "app-logs",
		Endpoint:     "oss-cn-hangzhou.aliyuncs.com",
		Destination:  "stdout",
		CreatedAt:    base,
		StartedAt:    at(0),
	}
	require.NoError(t, s.Write(rec))

	got, err := s.Get(" job-1 ")
	require.NoError(t, err)
	assert.Equal(t, rec.JobID, got.JobID)
	assert.Equal(t, rec.Bucket, got.Bucket)
	assert.Equal(t, rec.Endpoint, got.Endpoint)
	assert.True(t, rec.StartedAt.Equal(*got.StartedAt))

	entries, err := os.ReadDir(s.JobDir("job-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
	assert.Equal(t, "job.json", entries[0].Name())
}

func TestStore_Rejects(t *testing.T) {
	s := NewStore(t.TempDir())

	assert.Error(t, s.Write(nil))
	assert.ErrorIs(t, s.Write(&JobRecord{JobID: "  "}), errNoJobID)
	assert.ErrorIs(t, NewStore("").Write(&JobRecord{JobID: "x"}), errNoRoot)
	assert.Error(t, s.Write(&JobRecord{JobID: "../escape"}))

	_, err := s.Get("..")
	assert.Error(t, err)
	_, err = NewStore(" ").List(ListOptions{})
	assert.ErrorIs(t, err, errNoRoot)
}

func TestStore_GetErrors(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, os.MkdirAll(s.JobDir("blank"), 0o755))
	require.NoError(t, os.WriteFile(s.JobPath("blank"), []byte("  \n"), 0o600))
	_, err = s.Get("blank")
	assert.ErrorContains(t, err, "is empty")

	require.NoError(t, os.MkdirAll(s.JobDir("garbled"), 0o755))
	require.NoError(t, os.WriteFile(s.JobPath("garbled"), []byte("{state"), 0o600))
	_, err = s.Get("garbled")
	assert.ErrorContains(t, err, "parse")
}

func TestStore_GetReconcilesDeadProcess(t *testing.T) {
	s := NewStore(t.TempDir())
	s.alive = func(pid int) bool { return pid == 7 }
	seed(t, s,
		JobRecord{JobID: "live", State: JobStateRunning, PID: 7, CreatedAt: base},
		JobRecord{JobID: "dead", State: JobStateRunning, PID: 8, CreatedAt: base},
	)

	live, err := s.Get("live")
	require.NoError(t, err)
	assert.Equal(t, JobStateRunning, live.State)
	assert.Equal(t, 7, live.PID)

	dead, err := s.Get("dead")
	require.NoError(t, err)
	assert.Equal(t, JobStateUnknown, dead.State)

	// Reconciliation is persisted.
	onDisk, err := readRecord(s.JobPath("dead"))
	require.NoError(t, err)
	assert.Equal(t, JobStateUnknown, onDisk.State)
	assert.Zero(t, onDisk.PID)
}

func TestStore_List(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	seed(t, s,
		JobRecord{JobID: "a", State: JobStateSuccess, Bucket: "app-logs", CreatedAt: base, StartedAt: at(1)},
		JobRecord{JobID: "b", State: JobStateFailed, Bucket: "app-logs", CreatedAt: base, StartedAt: at(3)},
		JobRecord{JobID: "c", State: JobStateSuccess, Bucket: "backups", CreatedAt: *at(2)},
	)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "junk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), nil, 0o600))

	cases := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"b", "c", "a"}},
		{"by state", ListOptions{State: JobStateSuccess}, []string{"c", "a"}},
		{"by bucket", ListOptions{Bucket: "app-logs"}, []string{"b", "a"}},
		{"limit", ListOptions{Limit: 1}, []string{"b"}},
		{"no match", ListOptions{Bucket: "nope"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.List(tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(got))
		})
	}
}

func TestStore_ListMissingRoot(t *testing.T) {
	got, err := NewStore(filepath.Join(t.TempDir(), "none")).List(ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_Prune(t *testing.T) {
	s := NewStore(t.TempDir())
	s.alive = func(int) bool { return true }
	seed(t, s,
		JobRecord{JobID: "old-ok", State: JobStateSuccess, CreatedAt: base, EndedAt: at(1)},
		JobRecord{JobID: "old-failed", State: JobStateFailed, CreatedAt: base, EndedAt: at(2)},
		JobRecord{JobID: "recent", State: JobStateSuccess, CreatedAt: base, EndedAt: at(10)},
		JobRecord{JobID: "running", State: JobStateRunning, PID: 1, CreatedAt: base},
		JobRecord{JobID: "unknown", State: JobStateUnknown, CreatedAt: base},
	)

	removed, err := s.Prune(*at(5))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old-ok", "old-failed"}, removed)

	left, err := s.List(ListOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recent", "running", "unknown"}, ids(left))
	_, err = os.Stat(s.JobDir("old-ok"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJobRecord_Finish(t *testing.T) {
	rec := &JobRecord{JobID: "job-1", State: JobStateRunning, PID: 42}
	end := time.Date(2026, 1, 19, 14, 0, 0, 0, time.FixedZone("CST", 8*3600))

	rec.Finish(JobStateFailed, &JobSummary{Errors: 1}, errors.New("access denied"), end)

	assert.Equal(t, JobStateFailed, rec.State)
	assert.True(t, rec.State.IsTerminal())
	require.NotNil(t, rec.EndedAt)
	assert.Equal(t, time.UTC, rec.EndedAt.Location())
	assert.Equal(t, "access denied", rec.Error)
	assert.Zero(t, rec.PID)
	assert.EqualValues(t, 1, rec.Summary.Errors)

	assert.False(t, JobStateRunning.IsTerminal())
	assert.False(t, JobStateUnknown.IsTerminal())
}
