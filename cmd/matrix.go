package main

import (
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

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Build the feature-by-document novelty matrix",
	Long:  "Scores each invention feature against the claims (and abstract fallback) of every enriched document, labels coverage, and surfaces novelty and pair-combination candidates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		profilePath, _ := cmd.Flags().GetString("profile")
		enrichedPath, _ := cmd.Flags().GetString("enriched")
		output, _ := cmd.Flags().GetString("output")
		failOnLow, _ := cmd.Flags().GetBool("fail-on-low-ok")
		minRatio, _ := cmd.Flags().GetFloat64("min-ok-ratio")

		mc := cfg.Matrix
		if minRatio > 0 {
			mc.MinClaimsOKRatio = minRatio
		}
		if failOnLow {
			mc.FailOnLowOK = true
		}

		profile, err := matrix.LoadProfile(profilePath)
		if err != nil {
			return eris.Wrap(err, "load invention profile")
		}
		docs, err := claims.LoadEnriched(enrichedPath)
		if err != nil {
			return eris.Wrap(err, "load enriched records")
		}
		if len(docs) == 0 {
			return matrix.ErrEmptyRecall
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, model.RunKindMatrix)
		if err != nil {
			return err
		}

		gate := matrix.EvaluateGate(docs, mc.MinClaimsOKRatio)
		if err := matrix.EnforceGate(gate, mc.FailOnLowOK); err != nil {
			_ = st.CompleteRun(ctx, run.ID, model.RunStatusFailed, &model.RunSummary{
				Documents:  len(docs),
				GatePassed: &gate.Pass,
				Error:      err.Error(),
			})
			return err
		}

		opts := matrixOptions(mc)
		out, err := matrix.Build(ctx, profile.KeyFeatures, docs, gate, opts)
		if err != nil {
			_ = st.CompleteRun(ctx, run.ID, model.RunStatusFailed, &model.RunSummary{Error: err.Error()})
			return eris.Wrap(err, "build matrix")
		}

		if err := matrix.Save(output, out); err != nil {
			return eris.Wrap(err, "save matrix")
		}

		summary := &model.RunSummary{
			Features:   len(out.Features),
			Documents:  len(out.Documents),
			GatePassed: &gate.Pass,
			OutputPath: output,
		}
		if err := st.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary); err != nil {
			return err
		}

		zap.L().Info("novelty matrix complete",
			zap.String("run_id", run.ID),
			zap.Int("features", len(out.Features)),
			zap.Int("documents", len(out.Documents)),
			zap.Int("novelty_candidates", len(out.NoveltyCandidates)),
			zap.Int("pair_candidates", len(out.PairCandidates)),
			zap.String("output", output),
		)
		return nil
	},
}

func matrixOptions(mc config.MatrixConfig) matrix.Options {
	return matrix.Options{
		MaxDocs:              mc.MaxDocs,
		MaxFeatures:          mc.MaxFeatures,
		YesThreshold:         mc.YesThreshold,
		PartialThreshold:     mc.PartialThreshold,
		SnippetWindow:        mc.SnippetWindow,
		MaxSnippets:          mc.MaxSnippets,
		MaxNoveltyCandidates: mc.MaxNovelty,
		MaxPairCandidates:    mc.MaxPairs,
		PairMinUnionRatio:    mc.UnionThreshold,
		PairMaxCoRatio:       mc.CoThreshold,
		Workers:              mc.Workers,
	}
}

func init() {
	matrixCmd.Flags().String("profile", "invention_profile.json", "invention profile with key features")
	matrixCmd.Flags().String("enriched", "prior_art_enriched.json", "enriched prior-art records")
	matrixCmd.Flags().String("output", "novelty_matrix.json", "matrix output path")
	matrixCmd.Flags().Bool("fail-on-low-ok", false, "halt when claims quality gate fails")
	matrixCmd.Flags().Float64("min-ok-ratio", 0, "minimum claims_ok ratio (default from config)")
	rootCmd.AddCommand(matrixCmd)
}
