package claims

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/model"
)

// MergeReport accounts for every manual entry: merged, rejected, or
// unmatched. Rejections carry the validation failure; nothing is silently
// dropped.
type MergeReport struct {
	Merged    []string                    `json:"merged"`
	Rejected  []model.RejectedManualEntry `json:"rejected"`
	Unmatched []string                    `json:"unmatched"`
}

// MergeManualClaims merges externally supplied claims into the enriched
// record set by patent number. Under strict validation an entry must name
// its provenance: claims_source_url and a claims_source_type from the fixed
// enum. Merging is idempotent; records are modified in place.
func MergeManualClaims(records []model.EnrichedRecord, entries []model.ManualClaimsEntry, strict bool) *MergeReport {
	report := &MergeReport{}

	byPN := make(map[string]int, len(records))
	for i := range records {
		byPN[model.NormalizePatentNumber(records[i].PatentNumber)] = i
	}

	for _, entry := range entries {
		pn := model.NormalizePatentNumber(entry.PatentNumber)
		if pn == "" {
			report.Rejected = append(report.Rejected, model.RejectedManualEntry{
				Entry: entry, Reason: "missing patent_number",
			})
			continue
		}

		if strict {
			if reason := validateEntry(entry); reason != "" {
				zap.L().Warn("rejecting manual claims entry",
					zap.String("patent_number", pn),
					zap.String("reason", reason),
				)
				report.Rejected = append(report.Rejected, model.RejectedManualEntry{Entry: entry, Reason: reason})
				continue
			}
		}

		text, parsed := normalizeManualClaims(entry)
		if text == "" {
			report.Rejected = append(report.Rejected, model.RejectedManualEntry{
				Entry: entry, Reason: "entry has neither claims_text nor claims",
			})
			continue
		}

		idx, ok := byPN[pn]
		if !ok {
			report.Unmatched = append(report.Unmatched, pn)
			continue
		}

		rec := &records[idx]
		rec.ClaimsText = truncate(text, maxClaimsTextLen)
		rec.Claims = parsed
		rec.ClaimsStatus = model.ClaimsStatusManualOK
		rec.ClaimsSource = "manual"
		rec.ClaimsPageURL = entry.ClaimsSourceURL
		rec.ClaimsError = ""
		report.Merged = append(report.Merged, pn)
	}

	return report
}

func validateEntry(entry model.ManualClaimsEntry) string {
	if strings.TrimSpace(entry.ClaimsSourceURL) == "" {
		return "missing claims_source_url"
	}
	if !entry.ClaimsSourceType.Valid() {
		return fmt.Sprintf("invalid claims_source_type %q", entry.ClaimsSourceType)
	}
	return ""
}

// normalizeManualClaims produces (claims_text, claims) from whichever form
// the entry supplies. A claims list is joined back into numbered text so
// both representations stay consistent.
func normalizeManualClaims(entry model.ManualClaimsEntry) (string, []model.Claim) {
	if text := strings.TrimSpace(entry.ClaimsText); text != "" {
		return text, SplitClaims(text)
	}

	var parts []string
	var claims []model.Claim
	for i, c := range entry.Claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		num := strings.TrimSpace(c.Num)
		if num == "" {
			num = fmt.Sprintf("%d", i+1)
		}
		claims = append(claims, model.Claim{Num: num, Text: text})
		parts = append(parts, num+". "+text)
	}
	if len(claims) == 0 {
		return "", nil
	}
	return strings.Join(parts, "\n"), claims
}
