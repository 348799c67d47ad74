package model

import (
	"regexp"
	"strings"
	"time"
)

// ClaimsStatus describes the outcome of claims enrichment for one record.
type ClaimsStatus string

const (
	ClaimsStatusOK              ClaimsStatus = "ok"
	ClaimsStatusOKFallback      ClaimsStatus = "ok_fallback"
	ClaimsStatusManualOK        ClaimsStatus = "manual_ok"
	ClaimsStatusSectionNotFound ClaimsStatus = "claims_section_not_found"
	ClaimsStatusTimeout         ClaimsStatus = "fetch_timeout"
	ClaimsStatusFetchFailed     ClaimsStatus = "fetch_failed"
	ClaimsStatusMissingIdentity ClaimsStatus = "missing_patent_number_or_url"
	ClaimsStatusRejectedSource  ClaimsStatus = "rejected_source"
)

// BlockedStatus returns the status for an anti-automation HTTP code
// (403, 412, 503), e.g. "fetch_blocked_403".
func BlockedStatus(code int) ClaimsStatus {
	switch code {
	case 403:
		return ClaimsStatus("fetch_blocked_403")
	case 412:
		return ClaimsStatus("fetch_blocked_412")
	case 503:
		return ClaimsStatus("fetch_blocked_503")
	}
	return ClaimsStatusFetchFailed
}

// Success reports whether the status is a terminal success: the record has
// usable claims text and must not be re-fetched on resume.
func (s ClaimsStatus) Success() bool {
	switch s {
	case ClaimsStatusOK, ClaimsStatusOKFallback, ClaimsStatusManualOK:
		return true
	}
	return false
}

// Blocked reports whether the status records an anti-automation block.
func (s ClaimsStatus) Blocked() bool {
	return strings.HasPrefix(string(s), "fetch_blocked_")
}

// PriorArtRecord is one candidate document from the recall step.
// Read-only input to the enrichment pipeline.
type PriorArtRecord struct {
	Source          string  `json:"source"`
	PatentNumber    string  `json:"patent_number"`
	Title           string  `json:"title"`
	Abstract        string  `json:"abstract"`
	URL             string  `json:"url"`
	Query           string  `json:"query,omitempty"`
	QueryIndex      int     `json:"query_index,omitempty"`
	SimilarityScore float64 `json:"similarity_score,omitempty"`
}

// Claim is one numbered claim. Num is empty when the claims block could not
// be split by numbering.
type Claim struct {
	Num  string `json:"num"`
	Text string `json:"text"`
}

// ClaimsFetchAttempt records one try against one backend. Attempts are
// append-only and ordered by attempt time; together they form the audit
// trail for a record.
type ClaimsFetchAttempt struct {
	Source      string `json:"source"`
	URL         string `json:"url"`
	Result      string `json:"result"`
	FromCache   bool   `json:"from_cache,omitempty"`
	ClaimsCount int    `json:"claims_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

// EnrichedRecord is a PriorArtRecord plus claims enrichment state.
type EnrichedRecord struct {
	PriorArtRecord

	ClaimsStatus        ClaimsStatus         `json:"claims_status"`
	ClaimsError         string               `json:"claims_error"`
	ClaimsText          string               `json:"claims_text"`
	Claims              []Claim              `json:"claims"`
	ClaimsSource        string               `json:"claims_source"`
	ClaimsPageURL       string               `json:"claims_page_url"`
	ClaimsFetchAttempts []ClaimsFetchAttempt `json:"claims_fetch_attempts"`
	FetchedAt           time.Time            `json:"fetched_at"`
}

var patentCountryRe = regexp.MustCompile(`^([A-Z]{2})`)

// NormalizePatentNumber canonicalizes a patent number for use as the unique
// record key.
func NormalizePatentNumber(pn string) string {
	return strings.ToUpper(strings.TrimSpace(pn))
}

// CountryCode returns the two-letter jurisdiction prefix of a patent number,
// or "" when the number does not start with one.
func CountryCode(pn string) string {
	m := patentCountryRe.FindStringSubmatch(NormalizePatentNumber(pn))
	if m == nil {
		return ""
	}
	return m[1]
}
