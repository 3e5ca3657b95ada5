package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var decisionsJSON bool

var decisionsCmd = &cobra.Command{
	Use:   "decisions <signal-id>",
	Short: "Show the match decision audit trail for a signal",
	Long: `List every recorded match decision for a signal: candidate entity,
similarity score, and whether an association was created.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecisions,
}

func init() {
	decisionsCmd.Flags().BoolVar(&decisionsJSON, "json", false, "print decisions as JSON")
	rootCmd.AddCommand(decisionsCmd)
}

func runDecisions(cmd *cobra.Command, args []string) error {
	decisions, err := globalApp.matchRepo.GetBySignal(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if decisionsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decisions)
	}

	if len(decisions) == 0 {
		fmt.Printf("No decisions recorded for signal %s\n", args[0])
		return nil
	}

	for _, d := range decisions {
		created := "no"
		if d.AssociationCreated {
			created = "yes"
		}
		fmt.Printf("%s  %-8s %-12s %.4f  associated=%s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.EntityType, d.EntityID, d.Similarity, created)
	}
	return nil
}
