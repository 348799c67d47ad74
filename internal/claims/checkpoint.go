package claims

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priorart-cli/internal/model"
)

// LoadPriorArt reads the recall output: a JSON list of prior-art records.
func LoadPriorArt(path string) ([]model.PriorArtRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "claims: read prior art %s", path)
	}
	var records []model.PriorArtRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "claims: parse prior art %s", path)
	}
	return records, nil
}

// LoadCheckpoint reads a prior run's enriched output, keyed by normalized
// patent number. A missing file is an empty checkpoint, not an error: first
// runs and resumed runs share one code path.
func LoadCheckpoint(path string) (map[string]model.EnrichedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.EnrichedRecord{}, nil
		}
		return nil, eris.Wrapf(err, "claims: read checkpoint %s", path)
	}

	var records []model.EnrichedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "claims: parse checkpoint %s", path)
	}

	out := make(map[string]model.EnrichedRecord, len(records))
	for _, rec := range records {
		pn := model.NormalizePatentNumber(rec.PatentNumber)
		if pn == "" {
			continue
		}
		out[pn] = rec
	}
	return out, nil
}

// SaveCheckpoint writes enriched records atomically so an interrupted run
// never leaves a truncated checkpoint behind.
func SaveCheckpoint(path string, records []model.EnrichedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "claims: marshal checkpoint")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "claims: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return eris.Wrap(err, "claims: create temp checkpoint")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "claims: write checkpoint")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "claims: close checkpoint")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "claims: rename checkpoint to %s", path)
	}
	return nil
}

// LoadEnriched reads an enriched record list preserving input order, for
// matrix construction and the standalone merge operation.
func LoadEnriched(path string) ([]model.EnrichedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "claims: read enriched %s", path)
	}
	var records []model.EnrichedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "claims: parse enriched %s", path)
	}
	return records, nil
}

// LoadManualEntries reads a manual claims file: either a bare JSON list or
// an object with an "items" list.
func LoadManualEntries(path string) ([]model.ManualClaimsEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "claims: read manual claims %s", path)
	}

	var entries []model.ManualClaimsEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapper struct {
		Items []model.ManualClaimsEntry `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "claims: parse manual claims %s", path)
	}
	return wrapper.Items, nil
}
