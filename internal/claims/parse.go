package claims

import (
	"html"
	"regexp"
	"strings"

	"github.com/sells-group/priorart-cli/internal/model"
)

const (
	maxClaimsTextLen = 200000
	maxClaims        = 60
	fallbackWindow   = 40000
)

// ParseResult distinguishes where on the page the claims were found.
type ParseResult string

const (
	ParseOK              ParseResult = "ok"          // designated claims section
	ParseOKFallback      ParseResult = "ok_fallback" // claims located in flattened page text
	ParseSectionNotFound ParseResult = "claims_section_not_found"
)

var (
	claimsSectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<section[^>]*itemprop="claims"[^>]*>(.*?)</section>`),
		regexp.MustCompile(`(?is)<section[^>]*id="claims"[^>]*>(.*?)</section>`),
		regexp.MustCompile(`(?is)<section[^>]*class="[^"]*claims[^"]*"[^>]*>(.*?)</section>`),
	}

	brRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	closePRe   = regexp.MustCompile(`(?i)</p\s*>`)
	closeDivRe = regexp.MustCompile(`(?i)</div\s*>`)
	closeLiRe  = regexp.MustCompile(`(?i)</li\s*>`)
	openLiRe   = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	scriptRe   = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]+>`)
	hspaceRe   = regexp.MustCompile(`[ \t\r\f\v]+`)
	multiNLRe  = regexp.MustCompile(`\n\s*\n\s*\n+`)

	claimNumBreakRe = regexp.MustCompile(`(\s)(\d{1,3})\.`)
	claimSplitRe    = regexp.MustCompile(`\n\s*(\d{1,3})\.`)
)

// stripTags flattens HTML to text, converting structural tags to newlines
// so claim boundaries survive.
func stripTags(h string) string {
	h = brRe.ReplaceAllString(h, "\n")
	h = closePRe.ReplaceAllString(h, "\n")
	h = closeDivRe.ReplaceAllString(h, "\n")
	h = closeLiRe.ReplaceAllString(h, "\n")
	h = openLiRe.ReplaceAllString(h, "- ")
	h = scriptRe.ReplaceAllString(h, " ")
	h = styleRe.ReplaceAllString(h, " ")
	text := tagRe.ReplaceAllString(h, " ")
	text = html.UnescapeString(text)
	text = hspaceRe.ReplaceAllString(text, " ")
	text = multiNLRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// extractClaimsSection locates the designated claims markup on a patent
// page, or "" when absent.
func extractClaimsSection(page string) string {
	for _, re := range claimsSectionRes {
		if m := re.FindStringSubmatch(page); m != nil {
			return m[1]
		}
	}
	return ""
}

// fallbackFromText scans flattened page text for a claims heading (English
// or Chinese) and returns a bounded window starting there.
func fallbackFromText(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	start := -1
	for _, kw := range []string{"\nclaims", "\nclaim", "权利要求书", "权利要求"} {
		if i := strings.Index(lower, kw); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return ""
	}
	end := min(len(text), start+fallbackWindow)
	return strings.TrimSpace(text[start:end])
}

// SplitClaims splits claims text on leading "N." numbering. When no
// numbering is present, the whole block becomes one unnumbered claim.
func SplitClaims(text string) []model.Claim {
	t := "\n" + claimNumBreakRe.ReplaceAllString(text, "\n$2.")
	parts := claimSplitRe.Split(t, -1)
	nums := claimSplitRe.FindAllStringSubmatch(t, -1)
	if len(nums) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []model.Claim{{Text: trimmed}}
	}

	var out []model.Claim
	for i, m := range nums {
		body := strings.TrimSpace(parts[i+1])
		if body == "" {
			continue
		}
		out = append(out, model.Claim{Num: m[1], Text: body})
		if len(out) >= maxClaims {
			break
		}
	}
	if len(out) == 0 {
		if prefix := strings.TrimSpace(parts[0]); prefix != "" {
			out = append(out, model.Claim{Text: prefix})
		}
	}
	return out
}

// ParsePage extracts claims from a fetched portal page. The designated
// claims section is authoritative; the flattened-text fallback covers
// portals whose pages carry claims outside structured markup.
func ParsePage(page string) (string, []model.Claim, ParseResult) {
	if sec := extractClaimsSection(page); sec != "" {
		text := stripTags(sec)
		if text != "" {
			return truncate(text, maxClaimsTextLen), SplitClaims(text), ParseOK
		}
	}

	flat := stripTags(page)
	if fb := fallbackFromText(flat); fb != "" {
		return truncate(fb, maxClaimsTextLen), SplitClaims(fb), ParseOKFallback
	}

	return "", nil, ParseSectionNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
