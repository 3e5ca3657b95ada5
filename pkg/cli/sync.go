package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/signal-engine/pkg/services"
)

var (
	syncFull          bool
	syncCompaniesOnly bool
	syncContactsOnly  bool
	syncBatchSize     int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync companies and contacts into the entity store",
	Long: `Pull companies and contacts from the CRM, embed their display text,
and upsert them into the pgvector store. Incremental by default: only
records modified since the last sync are pulled.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "resync every record, ignoring stored cursors")
	syncCmd.Flags().BoolVar(&syncCompaniesOnly, "companies-only", false, "sync only the company collection")
	syncCmd.Flags().BoolVar(&syncContactsOnly, "contacts-only", false, "sync only the contact collection")
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "records per embedding batch (0 uses the configured default)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncCompaniesOnly && syncContactsOnly {
		return fmt.Errorf("--companies-only and --contacts-only are mutually exclusive")
	}

	report, err := globalApp.syncer.SyncAll(cmd.Context(), services.SyncOptions{
		Full:          syncFull || globalApp.cfg.Sync.Full,
		CompaniesOnly: syncCompaniesOnly,
		ContactsOnly:  syncContactsOnly,
		BatchSize:     syncBatchSize,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Synced %d companies (%d skipped), %d contacts (%d skipped)\n",
		report.CompaniesSynced, report.CompaniesSkipped,
		report.ContactsSynced, report.ContactsSkipped)
	return nil
}
