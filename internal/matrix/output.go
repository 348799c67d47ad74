package matrix

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priorart-cli/internal/model"
)

// Save writes the matrix output as indented JSON.
func Save(path string, out *model.MatrixOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return eris.Wrap(err, "matrix: marshal output")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "matrix: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "matrix: write %s", path)
	}
	return nil
}
