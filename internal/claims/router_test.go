package claims

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/priorart-cli/internal/model"
)

func rec(pn string) model.PriorArtRecord {
	return model.PriorArtRecord{PatentNumber: pn}
}

func TestRouter_Order_Jurisdictions(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		pn    string
		first Backend
	}{
		{"CN114523273B", BackendCNIPA},
		{"EP3266895A1", BackendEspacenet},
		{"WO2020123456A1", BackendEspacenet},
		{"US10123456B2", BackendGoogle},
		{"JP2020123456A", BackendGoogle},
		{"KR1020200123456A", BackendGoogle},
		{"DE102020123456A1", BackendGoogle},
	}

	for _, tt := range tests {
		order := r.Order(rec(tt.pn), "auto")
		require.NotEmpty(t, order, tt.pn)
		assert.Equal(t, tt.first, order[0], "first backend for %s", tt.pn)
		assert.Len(t, order, 4, "every jurisdiction tries all backends: %s", tt.pn)
	}
}

func TestRouter_Order_UnknownJurisdictionUsesFallback(t *testing.T) {
	r := NewRouter()

	order := r.Order(rec("BR102020123456A2"), "auto")
	assert.Equal(t, []Backend{BackendGoogle, BackendEspacenet, BackendCNIPA, BackendLens}, order)
}

func TestRouter_Order_ExplicitSelection(t *testing.T) {
	r := NewRouter()

	order := r.Order(rec("US10123456B2"), "lens, espacenet")
	assert.Equal(t, []Backend{BackendLens, BackendEspacenet}, order)

	// Unknown names drop; duplicates collapse.
	order = r.Order(rec("US10123456B2"), "google,bogus,google")
	assert.Equal(t, []Backend{BackendGoogle}, order)

	// A selection with no valid backend defaults to google.
	order = r.Order(rec("US10123456B2"), "bogus")
	assert.Equal(t, []Backend{BackendGoogle}, order)
}

func TestRouter_LoadTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jurisdictions:
  US: [espacenet, google]
  CN: [bogus]
default: [lens]
`), 0o644))

	r := NewRouter()
	require.NoError(t, r.LoadTable(path))

	assert.Equal(t, []Backend{BackendEspacenet, BackendGoogle}, r.Order(rec("US1B2"), "auto"))
	// Invalid override keeps the built-in CN ordering.
	assert.Equal(t, BackendCNIPA, r.Order(rec("CN1A"), "auto")[0])
	// New fallback applies to unknown jurisdictions.
	assert.Equal(t, []Backend{BackendLens}, r.Order(rec("BR1A2"), "auto"))
}

func TestRouter_LoadTable_MissingFile(t *testing.T) {
	r := NewRouter()
	assert.Error(t, r.LoadTable(filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestCandidates_Google(t *testing.T) {
	urls := Candidates(BackendGoogle, model.PriorArtRecord{
		PatentNumber: "us10123456b2",
		URL:          "https://patents.google.com/patent/US10123456B2/en",
	})

	require.NotEmpty(t, urls)
	assert.Equal(t, "https://patents.google.com/patent/US10123456B2/en", urls[0])
	assert.Contains(t, urls, "https://patents.google.com/patent/US10123456B2")
	// The record URL duplicates one of the constructed forms; dedup keeps one.
	counts := map[string]int{}
	for _, u := range urls {
		counts[u]++
	}
	for u, n := range counts {
		assert.Equal(t, 1, n, "duplicate candidate %s", u)
	}
}

func TestCandidates_ForeignURLIgnored(t *testing.T) {
	urls := Candidates(BackendGoogle, model.PriorArtRecord{
		PatentNumber: "US1",
		URL:          "https://example.com/some-page",
	})
	for _, u := range urls {
		assert.NotContains(t, u, "example.com")
	}
}

func TestCandidates_NoPatentNumber(t *testing.T) {
	assert.Empty(t, Candidates(BackendEspacenet, model.PriorArtRecord{}))
	assert.Empty(t, Candidates(BackendCNIPA, model.PriorArtRecord{}))
	assert.Empty(t, Candidates(BackendLens, model.PriorArtRecord{}))
}

func TestCandidates_EscapesQuery(t *testing.T) {
	urls := Candidates(BackendEspacenet, rec("EP 3266895"))
	require.NotEmpty(t, urls)
	assert.NotContains(t, urls[0], " ")
}
