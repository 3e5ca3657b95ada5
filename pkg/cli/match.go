package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftline/signal-engine/pkg/models"
	"github.com/driftline/signal-engine/pkg/services"
)

var (
	matchDryRun    bool
	matchThreshold float64
	matchJSON      bool
)

var matchCmd = &cobra.Command{
	Use:   "match <signal-id>",
	Short: "Match one signal against the entity store",
	Long: `Embed the signal's description and search the synced entity
collections for semantically similar companies and contacts. Candidates at
or above the similarity floor are associated with the signal in the CRM.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().BoolVar(&matchDryRun, "dry-run", false, "evaluate candidates without writing associations or audit rows")
	matchCmd.Flags().Float64Var(&matchThreshold, "threshold", 0, "override the association similarity floor")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "print the outcome as JSON")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	outcome, err := globalApp.matcher.MatchSignal(cmd.Context(), args[0], services.MatchOptions{
		DryRun:        matchDryRun,
		FloorOverride: matchThreshold,
	})
	if err != nil {
		return err
	}

	if matchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	printOutcome(outcome)
	return nil
}

func printOutcome(outcome *models.MatchOutcome) {
	mode := ""
	if outcome.DryRun {
		mode = " (dry run)"
	}
	fmt.Printf("Signal %s%s: %d candidates, %d associations created\n",
		outcome.SignalID, mode, outcome.TotalCandidates(), outcome.AssociationsCreated)

	printCandidates("Companies", outcome.Companies)
	printCandidates("Contacts", outcome.Contacts)
}

func printCandidates(label string, results []models.CandidateResult) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("%s:\n", label)
	for _, r := range results {
		status := "below floor"
		switch {
		case r.Skipped:
			status = "already associated"
		case r.Error != "":
			status = "association failed"
		case r.AssociationCreated:
			status = "associated"
		}
		fmt.Printf("  %-12s %-30s %.4f  %s\n", r.Match.EntityID, r.Match.Name, r.Match.Similarity, status)
	}
}
