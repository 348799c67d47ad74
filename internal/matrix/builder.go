package matrix

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/priorart-cli/internal/model"
)

// Options configures matrix construction and candidate thresholds.
type Options struct {
	MaxDocs     int
	MaxFeatures int

	// Label thresholds on the token-overlap score.
	YesThreshold     float64
	PartialThreshold float64

	// Snippet extraction bounds.
	SnippetWindow int
	MaxSnippets   int

	// Candidate thresholds.
	MaxNoveltyCandidates int
	MaxPairCandidates    int
	PairMinUnionRatio    float64
	PairMaxCoRatio       float64

	// Concurrency for per-document row computation.
	Workers int
}

// DefaultOptions mirrors the established heuristic: YES at 60% token
// coverage, PARTIAL at 25%, three 90-char-window snippets per cell.
func DefaultOptions() Options {
	return Options{
		MaxDocs:              10,
		MaxFeatures:          12,
		YesThreshold:         0.6,
		PartialThreshold:     0.25,
		SnippetWindow:        90,
		MaxSnippets:          3,
		MaxNoveltyCandidates: 10,
		MaxPairCandidates:    12,
		PairMinUnionRatio:    0.3,
		PairMaxCoRatio:       0.2,
		Workers:              4,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxDocs <= 0 {
		o.MaxDocs = def.MaxDocs
	}
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = def.MaxFeatures
	}
	if o.YesThreshold <= 0 {
		o.YesThreshold = def.YesThreshold
	}
	if o.PartialThreshold <= 0 {
		o.PartialThreshold = def.PartialThreshold
	}
	if o.SnippetWindow <= 0 {
		o.SnippetWindow = def.SnippetWindow
	}
	if o.MaxSnippets <= 0 {
		o.MaxSnippets = def.MaxSnippets
	}
	if o.MaxNoveltyCandidates <= 0 {
		o.MaxNoveltyCandidates = def.MaxNoveltyCandidates
	}
	if o.MaxPairCandidates <= 0 {
		o.MaxPairCandidates = def.MaxPairCandidates
	}
	if o.PairMinUnionRatio <= 0 {
		o.PairMinUnionRatio = def.PairMinUnionRatio
	}
	if o.PairMaxCoRatio <= 0 {
		o.PairMaxCoRatio = def.PairMaxCoRatio
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	return o
}

// LoadProfile reads the invention profile. Features may be objects or bare
// strings; missing ids are assigned positionally (F1, F2, ...).
func LoadProfile(path string) (*model.InventionProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "matrix: read profile %s", path)
	}

	var raw struct {
		Title       string            `json:"title"`
		KeyFeatures []json.RawMessage `json:"key_features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "matrix: parse profile %s", path)
	}

	profile := &model.InventionProfile{Title: raw.Title}
	for i, rawFeat := range raw.KeyFeatures {
		var feat model.InventionFeature
		if err := json.Unmarshal(rawFeat, &feat); err != nil {
			var text string
			if err := json.Unmarshal(rawFeat, &text); err != nil {
				return nil, eris.Wrapf(err, "matrix: feature %d is neither object nor string", i+1)
			}
			feat = model.InventionFeature{Text: text}
		}
		feat.Text = strings.TrimSpace(feat.Text)
		if feat.Text == "" {
			continue
		}
		if strings.TrimSpace(feat.ID) == "" {
			feat.ID = "F" + strconv.Itoa(len(profile.KeyFeatures)+1)
		}
		profile.KeyFeatures = append(profile.KeyFeatures, feat)
	}

	if len(profile.KeyFeatures) < 3 {
		return nil, eris.Errorf("matrix: profile needs at least 3 features, got %d", len(profile.KeyFeatures))
	}
	return profile, nil
}

// Build computes the full comparison matrix plus candidate rankings.
// Document rows are independent and computed concurrently.
func Build(ctx context.Context, features []model.InventionFeature, docs []model.EnrichedRecord, gate model.QualityGateReport, opts Options) (*model.MatrixOutput, error) {
	opts = opts.withDefaults()

	if len(features) > opts.MaxFeatures {
		features = features[:opts.MaxFeatures]
	}
	if len(docs) > opts.MaxDocs {
		docs = docs[:opts.MaxDocs]
	}

	featureIDs := make([]string, len(features))
	featureTexts := make([]string, len(features))
	featureTokens := make([][]string, len(features))
	for i, f := range features {
		featureIDs[i] = f.ID
		featureTexts[i] = f.Text
		featureTokens[i] = Tokenize(f.Text)
	}

	rows := make([][]model.MatrixCell, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for di := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[di] = buildRow(docs[di], features, featureTokens, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "matrix: build rows")
	}

	out := &model.MatrixOutput{
		FeatureIDs:  featureIDs,
		Features:    featureTexts,
		QualityGate: gate,
		Matrix:      rows,
		Note:        "Heuristic claims-first matrix for preliminary comparison; not a legal novelty conclusion.",
	}

	for _, d := range docs {
		out.Documents = append(out.Documents, summarize(d))
	}

	out.TopPriorArt = rankDocuments(out.Documents, rows, 5)
	out.NoveltyCandidates = noveltyCandidates(features, featureTokens, rows, len(docs), opts)
	out.PairCandidates = pairCandidates(featureIDs, featureTexts, rows, len(docs), opts)

	return out, nil
}

// buildRow computes all feature cells for one document.
func buildRow(doc model.EnrichedRecord, features []model.InventionFeature, tokens [][]string, opts Options) []model.MatrixCell {
	claimsLower := strings.ToLower(doc.ClaimsText)
	absLower := strings.ToLower(doc.Abstract)

	row := make([]model.MatrixCell, len(features))
	for fi, f := range features {
		toks := tokens[fi]

		// Claims first: they define legal scope. The abstract is weaker,
		// informational-only evidence used when claims are absent or match
		// less.
		scoreClaims := scoreTokens(toks, claimsLower)
		scoreAbs := scoreTokens(toks, absLower)
		best := math.Max(scoreClaims, scoreAbs)

		label := model.LabelNo
		switch {
		case best >= opts.YesThreshold:
			label = model.LabelYes
		case best >= opts.PartialThreshold:
			label = model.LabelPartial
		}

		cell := model.MatrixCell{
			FeatureID:        f.ID,
			Feature:          f.Text,
			Tokens:           capTokens(toks, 12),
			ScoreClaims:      round3(scoreClaims),
			ScoreAbstract:    round3(scoreAbs),
			ScoreBest:        round3(best),
			Label:            label,
			EvidenceSnippets: []string{},
		}

		if label != model.LabelNo {
			source := doc.ClaimsText
			if source == "" {
				source = doc.Abstract
			}
			cell.EvidenceSnippets = ExtractSnippets(source, toks, opts.MaxSnippets, opts.SnippetWindow)
		}

		row[fi] = cell
	}
	return row
}

var snippetSpaceRe = regexp.MustCompile(`\s{2,}`)

// ExtractSnippets returns up to maxSnips bounded windows around token
// matches so a reviewer can verify a label without re-reading the document.
func ExtractSnippets(text string, tokens []string, maxSnips, window int) []string {
	snippets := []string{}
	if text == "" {
		return snippets
	}
	lower := strings.ToLower(text)

	for _, tok := range tokens {
		from := 0
		for {
			i := strings.Index(lower[from:], tok)
			if i < 0 {
				break
			}
			start := from + i
			s := max(0, start-window)
			e := min(len(text), start+len(tok)+window)
			snip := strings.TrimSpace(strings.ReplaceAll(text[s:e], "\n", " "))
			snip = snippetSpaceRe.ReplaceAllString(snip, " ")
			if snip != "" && !contains(snippets, snip) {
				snippets = append(snippets, snip)
			}
			if len(snippets) >= maxSnips {
				return snippets
			}
			from = start + len(tok)
		}
	}
	return snippets
}

// rankDocuments orders documents by aggregate best score across features.
func rankDocuments(docs []model.DocumentSummary, rows [][]model.MatrixCell, top int) []model.TopPriorArt {
	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(rows))
	for di, row := range rows {
		sum := 0.0
		for _, cell := range row {
			sum += cell.ScoreBest
		}
		scores[di] = ranked{idx: di, score: sum}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if top > len(scores) {
		top = len(scores)
	}
	out := make([]model.TopPriorArt, 0, top)
	for _, r := range scores[:top] {
		out = append(out, model.TopPriorArt{
			DocumentSummary: docs[r.idx],
			OverallMatch:    round3(r.score),
		})
	}
	return out
}

func summarize(d model.EnrichedRecord) model.DocumentSummary {
	return model.DocumentSummary{
		Source:       d.Source,
		PatentNumber: d.PatentNumber,
		Title:        d.Title,
		URL:          d.URL,
		Abstract:     d.Abstract,
		ClaimsStatus: d.ClaimsStatus,
	}
}

func capTokens(toks []string, n int) []string {
	if len(toks) > n {
		return toks[:n]
	}
	return toks
}

func contains(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
