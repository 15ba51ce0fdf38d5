package cli

import (
	"fmt"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/spf13/cobra"
)

var (
	jobsStatus string
	jobsLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect ingestion jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobsList,
}

func runJobsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	counts, err := db.CountJobsByStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pending %d  running %d  failed %d  dead %d  succeeded %d\n\n",
		counts[policy.StatusPending], counts[policy.StatusRunning], counts[policy.StatusFailed],
		counts[policy.StatusDead], counts[policy.StatusSucceeded])

	jobs, err := db.ListJobs(policy.Status(jobsStatus), jobsLimit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	for _, j := range jobs {
		fmt.Fprintf(out, "%s  %-9s %d/%d  %s", j.ID, j.Status, j.Attempts, j.MaxAttempts, j.Kind)
		if j.Status == policy.StatusFailed && j.AvailableAt != nil {
			fmt.Fprintf(out, "  retry at %s", time.UnixMilli(*j.AvailableAt).UTC().Format(time.RFC3339))
		}
		if j.LastError != "" {
			fmt.Fprintf(out, "  (%s)", j.LastError)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func init() {
	jobsListCmd.Flags().StringVarP(&jobsStatus, "status", "s", "", "Filter by status (pending, running, failed, dead, succeeded)")
	jobsListCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "Maximum number of jobs")
	jobsCmd.AddCommand(jobsListCmd)
}
