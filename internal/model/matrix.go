package model

// MatrixLabel classifies how strongly a feature is disclosed by a document.
type MatrixLabel string

const (
	LabelYes     MatrixLabel = "YES"
	LabelPartial MatrixLabel = "PARTIAL"
	LabelNo      MatrixLabel = "NO"
)

// MatrixCell is the comparison result for one (feature, document) pair.
type MatrixCell struct {
	FeatureID        string      `json:"feature_id"`
	Feature          string      `json:"feature"`
	Tokens           []string    `json:"tokens,omitempty"`
	ScoreClaims      float64     `json:"score_claims"`
	ScoreAbstract    float64     `json:"score_abstract"`
	ScoreBest        float64     `json:"score_best"`
	Label            MatrixLabel `json:"label"`
	EvidenceSnippets []string    `json:"evidence_snippets"`
}

// DocumentSummary is the per-document header carried in the matrix output.
type DocumentSummary struct {
	Source       string       `json:"source"`
	PatentNumber string       `json:"patent_number"`
	Title        string       `json:"title"`
	URL          string       `json:"url"`
	Abstract     string       `json:"abstract"`
	ClaimsStatus ClaimsStatus `json:"claims_status"`
}

// TopPriorArt ranks a document by its aggregate match strength across all
// features.
type TopPriorArt struct {
	DocumentSummary
	OverallMatch float64 `json:"overall_match"`
}

// NoveltyCandidate is a single feature rarely disclosed across the compared
// documents.
type NoveltyCandidate struct {
	FeatureID    string   `json:"feature_id"`
	Feature      string   `json:"feature"`
	NoRatio      float64  `json:"no_ratio"`
	PartialRatio float64  `json:"partial_ratio"`
	YesCount     int      `json:"yes_count"`
	PartialCount int      `json:"partial_count"`
	NoCount      int      `json:"no_count"`
	Tokens       []string `json:"tokens,omitempty"`
}

// PairCandidate is a pair of features that each appear in the art but rarely
// appear together in the same document.
type PairCandidate struct {
	Pair       [2]string `json:"pair"`
	Features   [2]string `json:"features"`
	UnionRatio float64   `json:"union_ratio"`
	CoRatio    float64   `json:"co_ratio"`
	Note       string    `json:"note,omitempty"`
}

// QualityGateReport summarizes claims coverage over the requested document
// set and whether matrix construction may proceed.
type QualityGateReport struct {
	ClaimsOK           int            `json:"claims_ok"`
	ClaimsTotal        int            `json:"claims_total"`
	ClaimsOKRatio      float64        `json:"claims_ok_ratio"`
	ClaimsStatusCounts map[string]int `json:"claims_status_counts"`
	MinClaimsOKRatio   float64        `json:"min_claims_ok_ratio"`
	Pass               bool           `json:"pass"`
}

// MatrixOutput is the full structured result consumed by downstream
// narrative drafting.
type MatrixOutput struct {
	FeatureIDs        []string           `json:"feature_ids"`
	Features          []string           `json:"features"`
	Documents         []DocumentSummary  `json:"documents"`
	QualityGate       QualityGateReport  `json:"quality_gate"`
	TopPriorArt       []TopPriorArt      `json:"top_prior_art"`
	Matrix            [][]MatrixCell     `json:"matrix"`
	NoveltyCandidates []NoveltyCandidate `json:"novelty_candidates"`
	PairCandidates    []PairCandidate    `json:"pair_candidates"`
	Note              string             `json:"note"`
}
