package model

// ManualSourceType identifies where manually supplied claims text came from.
type ManualSourceType string

const (
	ManualSourceGooglePatents     ManualSourceType = "google_patents"
	ManualSourceOfficePortal      ManualSourceType = "office_portal"
	ManualSourcePDFCopy           ManualSourceType = "pdf_copy"
	ManualSourceFreePatentsOnline ManualSourceType = "freepatentsonline"
)

// Valid reports whether the source type is a member of the fixed enum.
func (t ManualSourceType) Valid() bool {
	switch t {
	case ManualSourceGooglePatents, ManualSourceOfficePortal, ManualSourcePDFCopy, ManualSourceFreePatentsOnline:
		return true
	}
	return false
}

// ManualClaimsEntry is an externally supplied remediation for a record the
// orchestrator could not resolve. Either ClaimsText or Claims must be set.
type ManualClaimsEntry struct {
	PatentNumber     string           `json:"patent_number"`
	ClaimsText       string           `json:"claims_text,omitempty"`
	Claims           []Claim          `json:"claims,omitempty"`
	ClaimsSourceURL  string           `json:"claims_source_url"`
	ClaimsSourceType ManualSourceType `json:"claims_source_type"`
}

// RejectedManualEntry pairs a rejected entry with the validation failure.
// Rejections are reported, never silently dropped.
type RejectedManualEntry struct {
	Entry  ManualClaimsEntry `json:"entry"`
	Reason string            `json:"reason"`
}
