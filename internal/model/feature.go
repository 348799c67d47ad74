package model

// InventionFeature is one named technical feature of the invention under
// analysis. EvidenceIDs link into upstream evidence extraction and are
// opaque here.
type InventionFeature struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// InventionProfile is the feature list input to the matrix builder.
type InventionProfile struct {
	Title       string             `json:"title,omitempty"`
	KeyFeatures []InventionFeature `json:"key_features"`
}
