package matrix

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/model"
)

// ErrQualityGate signals that claims coverage is below the configured
// minimum and the gate is fatal. Matrix construction must not proceed on
// data too sparse to support a defensible comparison.
var ErrQualityGate = eris.New("claims quality gate failed")

// ErrEmptyRecall signals an enriched record set with no documents at all.
var ErrEmptyRecall = eris.New("no enriched documents to compare")

// EvaluateGate computes the claims coverage ratio over the evaluated
// document set. The denominator is exactly the requested set, never the
// full recall set.
func EvaluateGate(docs []model.EnrichedRecord, minRatio float64) model.QualityGateReport {
	counts := map[string]int{}
	ok := 0
	for _, d := range docs {
		status := string(d.ClaimsStatus)
		if status == "" {
			status = "unknown"
		}
		counts[status]++
		if d.ClaimsStatus.Success() {
			ok++
		}
	}

	ratio := 0.0
	if len(docs) > 0 {
		ratio = float64(ok) / float64(len(docs))
	}
	if minRatio < 0 {
		minRatio = 0
	}

	return model.QualityGateReport{
		ClaimsOK:           ok,
		ClaimsTotal:        len(docs),
		ClaimsOKRatio:      round3(ratio),
		ClaimsStatusCounts: counts,
		MinClaimsOKRatio:   minRatio,
		Pass:               ratio >= minRatio,
	}
}

// EnforceGate returns ErrQualityGate when the gate failed and failOnLow is
// set; otherwise a failed gate is reported as a warning and the pipeline
// continues.
func EnforceGate(gate model.QualityGateReport, failOnLow bool) error {
	if gate.Pass {
		return nil
	}
	if failOnLow {
		return eris.Wrapf(ErrQualityGate, "%d/%d=%.3f < min %.3f",
			gate.ClaimsOK, gate.ClaimsTotal, gate.ClaimsOKRatio, gate.MinClaimsOKRatio)
	}
	zap.L().Warn("claims quality gate below threshold, continuing",
		zap.Int("claims_ok", gate.ClaimsOK),
		zap.Int("claims_total", gate.ClaimsTotal),
		zap.Float64("ratio", gate.ClaimsOKRatio),
		zap.Float64("min", gate.MinClaimsOKRatio),
	)
	return nil
}
