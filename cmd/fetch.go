package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/claims"
	"github.com/sells-group/priorart-cli/internal/config"
	"github.com/sells-group/priorart-cli/internal/matrix"
	"github.com/sells-group/priorart-cli/internal/model"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch patent claims for recalled prior-art documents",
	Long:  "Selects the top-K most claimable documents from a recall file, routes each through jurisdiction-ordered portal backends with bounded retries and an evidence cache, and writes enriched records with a full fetch audit trail.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		fc := cfg.Fetch
		applyFetchFlags(cmd, &fc)

		records, err := claims.LoadPriorArt(input)
		if err != nil {
			return eris.Wrap(err, "load prior art")
		}
		if len(records) == 0 {
			return eris.Errorf("no prior-art records in %s", input)
		}

		existing := map[string]model.EnrichedRecord{}
		if fc.Resume && !fc.Force {
			existing, err = claims.LoadCheckpoint(output)
			if err != nil {
				return eris.Wrap(err, "load checkpoint")
			}
		}

		orch, err := initOrchestrator(fc)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, model.RunKindFetch)
		if err != nil {
			return err
		}

		result, err := orch.Run(ctx, records, existing)
		if err != nil {
			_ = st.CompleteRun(ctx, run.ID, model.RunStatusFailed, &model.RunSummary{Error: err.Error()})
			return eris.Wrap(err, "fetch claims")
		}

		// Manual claims overlay what the portals could not deliver, before
		// the checkpoint is written and the ok ratio is gated.
		if manualPath, _ := cmd.Flags().GetString("manual-claims"); manualPath != "" {
			entries, err := claims.LoadManualEntries(manualPath)
			if err != nil {
				return eris.Wrap(err, "load manual entries")
			}
			report := claims.MergeManualClaims(result.Records, entries, false)
			result.Tally()
			zap.L().Info("manual claims merged",
				zap.Strings("merged", report.Merged),
				zap.Int("rejected", len(report.Rejected)),
				zap.Strings("unmatched", report.Unmatched),
			)
		}

		if err := claims.SaveCheckpoint(output, result.Records); err != nil {
			return eris.Wrap(err, "save enriched records")
		}

		outcomes := make([]model.RecordOutcome, 0, len(result.Records))
		for _, rec := range result.Records {
			outcomes = append(outcomes, model.RecordOutcome{
				RunID:        run.ID,
				PatentNumber: rec.PatentNumber,
				Status:       rec.ClaimsStatus,
				Backend:      rec.ClaimsSource,
				Attempts:     len(rec.ClaimsFetchAttempts),
			})
		}
		if err := st.RecordOutcomes(ctx, run.ID, outcomes); err != nil {
			return err
		}

		summary := &model.RunSummary{
			Requested:     len(result.Records),
			ClaimsOK:      result.OKCount,
			ClaimsOKRatio: result.OKRatio,
			StatusCounts:  result.StatusCounts,
			OutputPath:    output,
		}

		gate := matrix.EvaluateGate(result.Records, fc.MinClaimsOKRatio)
		summary.GatePassed = &gate.Pass
		gateErr := matrix.EnforceGate(gate, fc.FailOnLowOK)

		status := model.RunStatusComplete
		if gateErr != nil {
			status = model.RunStatusFailed
			summary.Error = gateErr.Error()
		}
		if err := st.CompleteRun(ctx, run.ID, status, summary); err != nil {
			return err
		}

		zap.L().Info("claims fetch complete",
			zap.String("run_id", run.ID),
			zap.Int("records", len(result.Records)),
			zap.Int("rejected", len(result.Rejected)),
			zap.Int("claims_ok", result.OKCount),
			zap.Float64("claims_ok_ratio", result.OKRatio),
		)
		printStatusCounts(result.StatusCounts)

		return gateErr
	},
}

// applyFetchFlags layers explicit CLI flags over the loaded config.
func applyFetchFlags(cmd *cobra.Command, fc *config.FetchConfig) {
	if v, _ := cmd.Flags().GetInt("topk"); v > 0 {
		fc.TopK = v
	}
	if v, _ := cmd.Flags().GetInt("retries"); v > 0 {
		fc.Retries = v
	}
	if v, _ := cmd.Flags().GetString("claim-sources"); v != "" {
		fc.ClaimSources = v
	}
	if v, _ := cmd.Flags().GetBool("force"); v {
		fc.Force = true
	}
	if v, _ := cmd.Flags().GetBool("no-resume"); v {
		fc.Resume = false
	}
	if v, _ := cmd.Flags().GetBool("strict-sources"); v {
		fc.StrictSources = true
	}
	if v, _ := cmd.Flags().GetBool("fail-on-low-ok"); v {
		fc.FailOnLowOK = true
	}
	if v, _ := cmd.Flags().GetFloat64("min-ok-ratio"); v > 0 {
		fc.MinClaimsOKRatio = v
	}
}

func printStatusCounts(counts map[string]int) {
	for status, n := range counts {
		fmt.Fprintf(os.Stderr, "  %-28s %d\n", status, n)
	}
}

func init() {
	fetchCmd.Flags().String("input", "prior_art.json", "recall file with prior-art records")
	fetchCmd.Flags().String("output", "prior_art_enriched.json", "enriched output (doubles as resume checkpoint)")
	fetchCmd.Flags().Int("topk", 0, "number of documents to enrich (default from config)")
	fetchCmd.Flags().Int("retries", 0, "attempt budget per backend (default from config)")
	fetchCmd.Flags().String("claim-sources", "", "backend order: auto or comma list of google,espacenet,cnipa,lens")
	fetchCmd.Flags().String("manual-claims", "", "JSON file of manual claims to merge before gating")
	fetchCmd.Flags().Bool("force", false, "ignore checkpoint and evidence cache")
	fetchCmd.Flags().Bool("no-resume", false, "re-fetch records already in the checkpoint")
	fetchCmd.Flags().Bool("strict-sources", false, "reject records with suspect source markers")
	fetchCmd.Flags().Bool("fail-on-low-ok", false, "exit nonzero when claims_ok ratio is below the minimum")
	fetchCmd.Flags().Float64("min-ok-ratio", 0, "minimum claims_ok ratio (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
