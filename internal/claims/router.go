// Package claims enriches prior-art records with their legal claims text:
// routing each record to an ordered list of fetch backends by jurisdiction,
// fetching with bounded retries and caching, parsing the claims section,
// and merging manually supplied claims for records no backend could resolve.
package claims

import (
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/priorart-cli/internal/model"
)

// Backend names a claims fetch source.
type Backend string

const (
	BackendGoogle    Backend = "google"
	BackendEspacenet Backend = "espacenet"
	BackendCNIPA     Backend = "cnipa"
	BackendLens      Backend = "lens"
)

// SupportedBackends is the fixed set of fetchable sources.
var SupportedBackends = map[Backend]bool{
	BackendGoogle:    true,
	BackendEspacenet: true,
	BackendCNIPA:     true,
	BackendLens:      true,
}

// Router maps a jurisdiction code to an ordered preference list of backends.
// The ordering encodes per-jurisdiction availability: CNIPA is the only
// reliable source for CN publications, while Google's mirror blocks far less
// often for US/EP family members.
type Router struct {
	table    map[string][]Backend
	fallback []Backend
}

// defaultTable is the built-in jurisdiction dispatch table.
func defaultTable() map[string][]Backend {
	googleFirst := []Backend{BackendGoogle, BackendEspacenet, BackendLens, BackendCNIPA}
	espacenetFirst := []Backend{BackendEspacenet, BackendGoogle, BackendLens, BackendCNIPA}

	t := map[string][]Backend{
		"CN": {BackendCNIPA, BackendGoogle, BackendEspacenet, BackendLens},
		"EP": espacenetFirst,
		"WO": espacenetFirst,
	}
	for _, cc := range []string{"US", "JP", "KR", "DE", "FR", "GB"} {
		t[cc] = googleFirst
	}
	return t
}

// NewRouter returns a router with the built-in dispatch table.
func NewRouter() *Router {
	return &Router{
		table:    defaultTable(),
		fallback: []Backend{BackendGoogle, BackendEspacenet, BackendCNIPA, BackendLens},
	}
}

// routerTableFile is the YAML shape of a dispatch-table override.
type routerTableFile struct {
	Jurisdictions map[string][]string `yaml:"jurisdictions"`
	Default       []string            `yaml:"default"`
}

// LoadTable replaces table entries from a YAML override file. Unknown
// backend names are dropped with a warning; a jurisdiction whose list
// becomes empty keeps the built-in ordering.
func (r *Router) LoadTable(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "router: read table %s", path)
	}

	var file routerTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return eris.Wrapf(err, "router: parse table %s", path)
	}

	for cc, names := range file.Jurisdictions {
		order := parseBackendList(strings.Join(names, ","))
		if len(order) == 0 {
			zap.L().Warn("router: override has no valid backends, keeping default",
				zap.String("jurisdiction", cc),
			)
			continue
		}
		r.table[strings.ToUpper(strings.TrimSpace(cc))] = order
	}
	if order := parseBackendList(strings.Join(file.Default, ",")); len(order) > 0 {
		r.fallback = order
	}
	return nil
}

// Order returns the backend preference list for a record. When selection is
// "auto" the jurisdiction table keyed on the patent number prefix applies;
// otherwise selection is treated as an explicit comma-separated list.
func (r *Router) Order(rec model.PriorArtRecord, selection string) []Backend {
	sel := strings.ToLower(strings.TrimSpace(selection))
	if sel != "" && sel != "auto" {
		if order := parseBackendList(sel); len(order) > 0 {
			return order
		}
		return []Backend{BackendGoogle}
	}

	cc := model.CountryCode(rec.PatentNumber)
	if order, ok := r.table[cc]; ok {
		return order
	}
	return r.fallback
}

func parseBackendList(s string) []Backend {
	var out []Backend
	seen := map[Backend]bool{}
	for _, part := range strings.Split(s, ",") {
		b := Backend(strings.ToLower(strings.TrimSpace(part)))
		if b == "" || !SupportedBackends[b] || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Candidates returns the URL candidates to try for a record on a backend,
// deduplicated preserving order.
func Candidates(b Backend, rec model.PriorArtRecord) []string {
	pn := model.NormalizePatentNumber(rec.PatentNumber)

	var out []string
	switch b {
	case BackendGoogle:
		if u := strings.TrimSpace(rec.URL); strings.HasPrefix(u, "https://patents.google.com/") {
			out = append(out, u)
		}
		if pn != "" {
			out = append(out,
				"https://patents.google.com/patent/"+pn,
				"https://patents.google.com/patent/"+pn+"/en",
				"https://patents.google.com/patent/"+pn+"?oq="+pn,
			)
		}
	case BackendEspacenet:
		if pn != "" {
			q := url.QueryEscape("pn=" + pn)
			out = append(out,
				"https://worldwide.espacenet.com/patent/search?q="+q,
				"https://worldwide.espacenet.com/patent/search/publication/"+pn,
			)
		}
	case BackendCNIPA:
		if pn != "" {
			q := url.QueryEscape(pn)
			out = append(out,
				"https://pss-system.cponline.cnipa.gov.cn/conventionalSearch?searchWord="+q,
				"https://pss-system.cponline.cnipa.gov.cn/seniorSearch?searchWord="+q,
			)
		}
	case BackendLens:
		if pn != "" {
			q := url.QueryEscape(pn)
			out = append(out,
				"https://www.lens.org/lens/search/patent/list?q="+q,
				"https://www.lens.org/search/patent/list?q="+q,
			)
		}
	}

	seen := map[string]bool{}
	uniq := out[:0]
	for _, u := range out {
		if seen[u] {
			continue
		}
		seen[u] = true
		uniq = append(uniq, u)
	}
	return uniq
}
