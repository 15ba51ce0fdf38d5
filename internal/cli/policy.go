package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dsvikstrand/bleu/internal/policy"
	"github.com/spf13/cobra"
)

// The policy commands run the decision core directly: no database, no server.

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Evaluate policy decisions without touching storage",
}

// --- policy select ---

var selectOwner []string

var policySelectCmd = &cobra.Command{
	Use:   "select [candidate...]",
	Short: "Pick the deterministic default among candidates",
	Long:  "Pick the default asset for an owner. Pass the owner parts with --owner in order, e.g. --owner nutrition --owner bp-1.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPolicySelect,
}

func runPolicySelect(cmd *cobra.Command, args []string) error {
	if len(selectOwner) == 0 {
		return fmt.Errorf("at least one --owner part is required")
	}
	url, err := policy.SelectDefaultParts(selectOwner, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}

// --- policy partition ---

var partitionCap int

var policyPartitionCmd = &cobra.Command{
	Use:   "partition [id@RFC3339...]",
	Short: "Split records into keep and demote sets",
	Long:  "Partition records by recency. Each record is given as id@created_at, e.g. 1@2026-02-18T10:00:00Z.",
	RunE:  runPolicyPartition,
}

func parseRecord(arg string) (policy.Record, error) {
	id, ts, ok := strings.Cut(arg, "@")
	if !ok || id == "" {
		return policy.Record{}, fmt.Errorf("record %q: want id@RFC3339", arg)
	}
	createdAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return policy.Record{}, fmt.Errorf("record %q: %w", arg, err)
	}
	return policy.Record{ID: id, CreatedAt: createdAt}, nil
}

func runPolicyPartition(cmd *cobra.Command, args []string) error {
	records := make([]policy.Record, 0, len(args))
	for _, a := range args {
		r, err := parseRecord(a)
		if err != nil {
			return err
		}
		records = append(records, r)
	}

	p, err := policy.PartitionByCap(records, partitionCap)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "keep:   %s\n", strings.Join(recordIDs(p.Keep), " "))
	fmt.Fprintf(out, "demote: %s\n", strings.Join(recordIDs(p.Demote), " "))
	return nil
}

func recordIDs(rs []policy.Record) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

// --- policy transition ---

var (
	transitionAttempts int
	transitionMax      int
	transitionNow      string
	transitionBase     time.Duration
	transitionCeiling  time.Duration
)

var policyTransitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Decide whether a failed job is retried or dead",
	RunE:  runPolicyTransition,
}

func runPolicyTransition(cmd *cobra.Command, args []string) error {
	now := time.Now().UTC()
	if transitionNow != "" {
		var err error
		now, err = time.Parse(time.RFC3339, transitionNow)
		if err != nil {
			return fmt.Errorf("--now: %w", err)
		}
	}

	p := policy.RetryPolicy{Base: transitionBase, Max: transitionCeiling}
	tr, err := p.FailureTransition(transitionAttempts, transitionMax, now)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tr.AvailableAt == nil {
		fmt.Fprintf(out, "%s\n", tr.Status)
		return nil
	}
	fmt.Fprintf(out, "%s available_at=%s (in %s)\n", tr.Status, tr.AvailableAt.Format(time.RFC3339), tr.AvailableAt.Sub(now))
	return nil
}

func init() {
	policySelectCmd.Flags().StringArrayVar(&selectOwner, "owner", nil, "Owner key part (repeatable, order matters)")

	policyPartitionCmd.Flags().IntVar(&partitionCap, "cap", 5, "Retention cap")

	policyTransitionCmd.Flags().IntVar(&transitionAttempts, "attempts", 1, "Attempts made so far, including the one that failed")
	policyTransitionCmd.Flags().IntVar(&transitionMax, "max", 3, "Maximum attempts")
	policyTransitionCmd.Flags().StringVar(&transitionNow, "now", "", "Decision time (RFC3339); defaults to the current time")
	policyTransitionCmd.Flags().DurationVar(&transitionBase, "base", policy.DefaultRetryPolicy.Base, "Backoff after the first failure")
	policyTransitionCmd.Flags().DurationVar(&transitionCeiling, "max-delay", policy.DefaultRetryPolicy.Max, "Backoff ceiling")

	policyCmd.AddCommand(policySelectCmd)
	policyCmd.AddCommand(policyPartitionCmd)
	policyCmd.AddCommand(policyTransitionCmd)
}
