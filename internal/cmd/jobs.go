package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/ossxml/internal/observability"
	"github.com/3leaps/ossxml/pkg/crawler"
	"github.com/3leaps/ossxml/pkg/jobregistry"
	"github.com/3leaps/ossxml/pkg/manifest"
)

const jobsDirEnv = "OSSXML_JOBS_DIR"

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "Show recorded crawl jobs",
	Long: `List crawl runs recorded with crawl --jobs-dir or --record, newest first,
or show one run in full.

Examples:
  ossxml jobs --jobs-dir ~/.ossxml/jobs
  ossxml jobs --state failed --bucket app-logs
  ossxml jobs 5f0c...e1 --format json
  ossxml jobs --prune 168h`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var (
	jobsDirFlag string
	jobsFormat  string
	jobsState   string
	jobsBucket  string
	jobsLimit   int
	jobsPrune   time.Duration
)

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVar(&jobsDirFlag, "jobs-dir", "", "Job registry directory (default $"+jobsDirEnv+" or the user data dir)")
	jobsCmd.Flags().StringVarP(&jobsFormat, "format", "f", formatTable, "Output format (table|json|yaml)")
	jobsCmd.Flags().StringVar(&jobsState, "state", "", "Only show jobs in this state")
	jobsCmd.Flags().StringVar(&jobsBucket, "bucket", "", "Only show jobs for this bucket")
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 0, "Show at most N jobs (0 = all)")
	jobsCmd.Flags().DurationVar(&jobsPrune, "prune", 0, "Delete finished jobs that ended longer ago than this")
}

// defaultJobsDir is the registry used when neither the flag nor the
// environment names one.
var defaultJobsDir = func() string {
	return filepath.Join(gfconfig.GetAppDataDir(binaryName), "jobs")
}

// jobsDir returns flag, or the environment default when flag is empty.
func jobsDir(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(jobsDirEnv)
}

// registryDir is jobsDir falling back to the per-user data directory.
func registryDir(flag string) string {
	if dir := jobsDir(flag); dir != "" {
		return dir
	}
	return defaultJobsDir()
}

func runJobs(cmd *cobra.Command, args []string) error {
	if err := validFormat(jobsFormat); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --format value", err)
	}
	dir := registryDir(jobsDirFlag)
	if dir == "" {
		return exitError(foundry.ExitInvalidArgument, "No job registry",
			fmt.Errorf("set --jobs-dir or %s", jobsDirEnv))
	}
	store := jobregistry.NewStore(dir)
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		rec, err := store.Get(args[0])
		if err != nil {
			if errors.Is(err, jobregistry.ErrJobNotFound) {
				return exitError(foundry.ExitFileNotFound, "Job not found", err)
			}
			return exitError(foundry.ExitFileReadError, "Failed to read job", err)
		}
		return render(w, jobsFormat, rec, func(tw *tabwriter.Writer) error {
			return jobDetail(tw, rec)
		})
	}

	if jobsPrune > 0 {
		return pruneJobs(w, store, time.Now().Add(-jobsPrune))
	}

	recs, err := store.List(jobregistry.ListOptions{
		State:  jobregistry.JobState(jobsState),
		Bucket: jobsBucket,
		Limit:  jobsLimit,
	})
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to list jobs", err)
	}
	return render(w, jobsFormat, recs, func(tw *tabwriter.Writer) error {
		if len(recs) == 0 {
			_, err := fmt.Fprintln(w, "No jobs recorded.")
			return err
		}
		return jobTable(tw, recs)
	})
}

func pruneJobs(w io.Writer, store *jobregistry.Store, cutoff time.Time) error {
	removed, err := store.Prune(cutoff)
	for _, id := range removed {
		if _, werr := fmt.Fprintln(w, "removed", id); werr != nil {
			return werr
		}
	}
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to prune jobs", err)
	}
	observability.CLILogger.Info("Pruned job registry",
		zap.String("dir", store.RootDir()),
		zap.Int("removed", len(removed)))
	return nil
}

func jobTable(tw *tabwriter.Writer, recs []jobregistry.JobRecord) error {
	if _, err := fmt.Fprintln(tw, "JOB\tSTATE\tBUCKET\tSTARTED\tMATCHED\tERRORS"); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range recs {
		started := "-"
		if r.StartedAt != nil {
			started = formatTime(*r.StartedAt)
		}
		matched, errs := "-", "-"
		if r.Summary != nil {
			matched = fmt.Sprint(r.Summary.ObjectsMatched)
			errs = fmt.Sprint(r.Summary.Errors)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.JobID, r.State, r.Bucket, started, matched, errs); err != nil {
			return fmt.Errorf("failed to write job: %w", err)
		}
	}
	return nil
}

func jobDetail(tw *tabwriter.Writer, r *jobregistry.JobRecord) error {
	rows := [][2]string{
		{"Job", r.JobID},
		{"State", string(r.State)},
		{"Manifest", r.ManifestPath},
		{"Bucket", r.Bucket},
		{"Endpoint", r.Endpoint},
		{"Output", r.Destination},
		{"Created", formatTime(r.CreatedAt)},
	}
	if r.EndedAt != nil {
		rows = append(rows, [2]string{"Ended", formatTime(*r.EndedAt)})
	}
	if s := r.Summary; s != nil {
		rows = append(rows,
			[2]string{"Objects", fmt.Sprintf("%d listed, %d matched", s.ObjectsListed, s.ObjectsMatched)},
			[2]string{"Size", formatSize(s.BytesTotal)},
			[2]string{"Prefixes", fmt.Sprint(s.PrefixesFound)},
			[2]string{"Errors", fmt.Sprint(s.Errors)},
			[2]string{"Duration", (time.Duration(s.DurationMS) * time.Millisecond).String()},
		)
	}
	if r.Error != "" {
		rows = append(rows, [2]string{"Error", r.Error})
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return nil
}

// jobRecorder writes the job record of one crawl. A recorder without a
// store does nothing. Write failures are logged and never fail the crawl.
type jobRecorder struct {
	store *jobregistry.Store
	rec   *jobregistry.JobRecord
	now   func() time.Time
}

func newJobRecorder(dir, jobID, manifestPath string, m *manifest.Manifest) *jobRecorder {
	r := &jobRecorder{now: time.Now}
	if dir == "" {
		return r
	}
	endpoint := m.Connection.Endpoint
	if m.Connection.EndpointURL != "" {
		endpoint = m.Connection.EndpointURL
	}
	r.store = jobregistry.NewStore(dir)
	r.rec = &jobregistry.JobRecord{
		JobID:        jobID,
		ManifestPath: manifestPath,
		Bucket:       m.Connection.Bucket,
		Endpoint:     endpoint,
		Destination:  m.Output.Destination,
	}
	return r
}

func (r *jobRecorder) start() {
	if r.store == nil {
		return
	}
	now := r.now().UTC()
	r.rec.State = jobregistry.JobStateRunning
	r.rec.PID = os.Getpid()
	r.rec.CreatedAt = now
	r.rec.StartedAt = &now
	r.write()
}

func (r *jobRecorder) finish(ctx context.Context, summary *crawler.Summary, err error) {
	if r.store == nil {
		return
	}
	var js *jobregistry.JobSummary
	if summary != nil {
		js = &jobregistry.JobSummary{
			ObjectsListed:  summary.ObjectsListed,
			ObjectsMatched: summary.ObjectsMatched,
			BytesTotal:     summary.BytesTotal,
			PrefixesFound:  summary.PrefixesFound,
			Pages:          summary.Pages,
			Errors:         summary.Errors,
			DurationMS:     summary.Duration.Milliseconds(),
		}
	}
	r.rec.Finish(jobState(ctx, summary, err), js, err, r.now())
	r.write()
}

func (r *jobRecorder) write() {
	if err := r.store.Write(r.rec); err != nil {
		observability.CLILogger.Warn("Failed to record job",
			zap.String("job_id", r.rec.JobID),
			zap.String("dir", r.store.RootDir()),
			zap.Error(err))
	}
}

// jobState maps a crawl outcome to its recorded state.
func jobState(ctx context.Context, summary *crawler.Summary, err error) jobregistry.JobState {
	switch {
	case err != nil && ctx.Err() != nil:
		return jobregistry.JobStateCancelled
	case err != nil:
		return jobregistry.JobStateFailed
	case summary != nil && summary.Errors > 0:
		return jobregistry.JobStatePartial
	}
	return jobregistry.JobStateSuccess
}
