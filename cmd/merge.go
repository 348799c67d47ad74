package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/claims"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge manually collected claims into enriched records",
	Long:  "Overlays hand-collected claims evidence onto records the automated fetch could not resolve, validating provenance and recording the manual source type.",
	RunE: func(cmd *cobra.Command, args []string) error {
		enrichedPath, _ := cmd.Flags().GetString("enriched")
		manualPath, _ := cmd.Flags().GetString("manual")
		output, _ := cmd.Flags().GetString("output")
		strict, _ := cmd.Flags().GetBool("strict")

		if output == "" {
			output = enrichedPath
		}

		records, err := claims.LoadEnriched(enrichedPath)
		if err != nil {
			return eris.Wrap(err, "load enriched records")
		}
		entries, err := claims.LoadManualEntries(manualPath)
		if err != nil {
			return eris.Wrap(err, "load manual entries")
		}

		report := claims.MergeManualClaims(records, entries, strict)
		for _, rej := range report.Rejected {
			zap.L().Error("manual entry rejected",
				zap.String("patent_number", rej.Entry.PatentNumber),
				zap.String("reason", rej.Reason),
			)
		}

		// Rejections never discard the valid merges; the written output
		// always carries every entry that passed validation.
		if err := claims.SaveCheckpoint(output, records); err != nil {
			return eris.Wrap(err, "save merged records")
		}

		zap.L().Info("manual merge complete",
			zap.Strings("merged", report.Merged),
			zap.Int("rejected", len(report.Rejected)),
			zap.Strings("unmatched", report.Unmatched),
			zap.String("output", output),
		)

		if strict && len(report.Rejected) > 0 {
			return eris.Errorf("merge: %d manual entries rejected under strict validation", len(report.Rejected))
		}
		return nil
	},
}

func init() {
	mergeCmd.Flags().String("enriched", "prior_art_enriched.json", "enriched records to update")
	mergeCmd.Flags().String("manual", "manual_claims.json", "manual claims entries")
	mergeCmd.Flags().String("output", "", "output path (default: overwrite --enriched)")
	mergeCmd.Flags().Bool("strict", false, "exit nonzero when any entry fails provenance validation")
	rootCmd.AddCommand(mergeCmd)
}
