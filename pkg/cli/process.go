package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/signal-engine/pkg/services"
)

var (
	processLimit  int
	processDryRun bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Match every unassociated signal",
	Long: `Fetch signals that have no company or contact associations yet and
run matching for each. A failure on one signal does not stop the rest.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 25, "maximum number of signals to process")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "evaluate candidates without writing associations or audit rows")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	report, err := globalApp.matcher.ProcessAll(cmd.Context(), processLimit, services.MatchOptions{
		DryRun: processDryRun,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d signals (%d failed), %d associations created\n",
		report.SignalsProcessed, report.SignalsFailed, report.AssociationsCreated)

	for _, outcome := range report.Outcomes {
		printOutcome(outcome)
	}
	return nil
}
