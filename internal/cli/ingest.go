package cli

import (
	"fmt"
	"net/url"

	"github.com/dsvikstrand/bleu/internal/client"
	"github.com/spf13/cobra"
)

// The ingest commands are for workers that only talk to a running server.

var ingestServerURL string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Report ingestion events to a running server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !client.New(ingestServerURL).Healthy() {
			return fmt.Errorf("bleu server not reachable (set --server or BLEU_URL)")
		}
		return nil
	},
}

var ingestAssetCmd = &cobra.Command{
	Use:   "asset <channel> <blueprint> <url>",
	Short: "Record a new asset and enforce the retention cap",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.New(ingestServerURL).IngestAsset(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var ingestDefaultCmd = &cobra.Command{
	Use:   "default <channel> <blueprint> <candidate...>",
	Short: "Resolve the owner's default asset",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.New(ingestServerURL).AssignDefault(args[0], args[1], args[2:])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var ingestFailCmd = &cobra.Command{
	Use:   "fail <job-id> [reason]",
	Short: "Report a failed job attempt",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason := ""
		if len(args) > 1 {
			reason = args[1]
		}
		data, err := client.New(ingestServerURL).FailJob(args[0], reason)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var ingestCompleteCmd = &cobra.Command{
	Use:   "complete <job-id>",
	Short: "Report a job as succeeded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.New(ingestServerURL).CompleteJob(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var ingestStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a job's status and retry state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := client.New(ingestServerURL).Get("/api/jobs/" + url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	ingestCmd.PersistentFlags().StringVar(&ingestServerURL, "server", "", "Server URL (default $BLEU_URL or http://127.0.0.1:37778)")

	ingestCmd.AddCommand(ingestAssetCmd)
	ingestCmd.AddCommand(ingestDefaultCmd)
	ingestCmd.AddCommand(ingestFailCmd)
	ingestCmd.AddCommand(ingestCompleteCmd)
	ingestCmd.AddCommand(ingestStatusCmd)
}
