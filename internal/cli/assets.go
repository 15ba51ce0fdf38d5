package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var assetsAll bool

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Inspect stored assets",
}

var assetsListCmd = &cobra.Command{
	Use:   "list <channel> <blueprint>",
	Short: "List an owner's assets and default",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssetsList,
}

func runAssetsList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	channel, blueprint := args[0], args[1]
	out := cmd.OutOrStdout()

	d, err := db.GetDefaultAsset(channel, blueprint)
	if err != nil {
		return err
	}
	if d != nil {
		fmt.Fprintf(out, "default: %s (%s)\n\n", d.URL, d.PolicyVersion)
	} else {
		fmt.Fprintf(out, "default: none\n\n")
	}

	active, err := db.CountActiveAssets(channel, blueprint)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "active: %d (cap %d)\n\n", active, cfg.Retention.Cap)

	list := db.ListActiveAssets
	if assetsAll {
		list = db.ListAssets
	}
	assets, err := list(channel, blueprint)
	if err != nil {
		return err
	}
	if len(assets) == 0 {
		fmt.Fprintln(out, "No assets found.")
		return nil
	}

	for _, a := range assets {
		state := "active"
		if !a.Active {
			state = "demoted"
		}
		ts := time.UnixMilli(a.CreatedAt).UTC().Format("2006-01-02 15:04:05")
		fmt.Fprintf(out, "  %d  [%s] %s  %s\n", a.ID, ts, state, a.URL)
	}
	return nil
}

func init() {
	assetsListCmd.Flags().BoolVar(&assetsAll, "all", false, "Include demoted assets")
	assetsCmd.AddCommand(assetsListCmd)
}
