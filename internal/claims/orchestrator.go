package claims

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/priorart-cli/internal/cache"
	"github.com/sells-group/priorart-cli/internal/model"
	"github.com/sells-group/priorart-cli/internal/resilience"
)

// Fetcher performs one page fetch per call. One call is one attempt; retry
// policy lives in the orchestrator.
type Fetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// Config holds the fetch policy for a run.
type Config struct {
	TopK int

	// Retries is the total attempt budget per backend (including the
	// first try).
	Retries           int
	BackoffInitial    time.Duration
	BackoffMultiplier float64
	JitterFraction    float64

	// Resume reuses checkpoint records whose status is a terminal success.
	// Force ignores both the checkpoint and the evidence cache.
	Resume bool
	Force  bool

	// StrictSources rejects records whose declared source indicates a
	// fabricated, synthetic, or test origin. Such records only enter the
	// pipeline through the manual merge path, which demands provenance.
	StrictSources bool

	// Selection is "auto" (jurisdiction routing) or an explicit
	// comma-separated backend list.
	Selection string
}

// RejectedRecord reports a record refused by strict source validation.
type RejectedRecord struct {
	Record model.PriorArtRecord `json:"record"`
	Reason string               `json:"reason"`
}

// Result is the outcome of one orchestrator run.
type Result struct {
	Records      []model.EnrichedRecord
	Rejected     []RejectedRecord
	StatusCounts map[string]int
	OKCount      int
	OKRatio      float64
}

// Orchestrator walks each record through the router's backend order,
// consulting the evidence cache and issuing bounded retried fetches, and
// records every attempt in the record's audit trail.
type Orchestrator struct {
	cfg     Config
	router  *Router
	cache   *cache.EvidenceCache
	fetcher Fetcher

	// candidates is injectable for tests.
	candidates func(Backend, model.PriorArtRecord) []string
	now        func() time.Time
}

// NewOrchestrator creates an orchestrator with the given policy.
func NewOrchestrator(cfg Config, router *Router, evCache *cache.EvidenceCache, fetcher Fetcher) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 4
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 1.8
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = time.Second
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	if cfg.Selection == "" {
		cfg.Selection = "auto"
	}
	return &Orchestrator{
		cfg:        cfg,
		router:     router,
		cache:      evCache,
		fetcher:    fetcher,
		candidates: Candidates,
		now:        time.Now,
	}
}

// WithCandidates overrides URL candidate construction, for tests.
func (o *Orchestrator) WithCandidates(fn func(Backend, model.PriorArtRecord) []string) *Orchestrator {
	o.candidates = fn
	return o
}

// suspectSourceMarkers flag recall entries whose origin is not a real search
// backend. Claims for such documents must come through the manual merge
// path, which requires provenance.
var suspectSourceMarkers = []string{"manual", "synthetic", "fabricated", "placeholder", "dummy", "test"}

func suspectSource(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	for _, marker := range suspectSourceMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// SelectTopK dedupes records by identity key, orders them by claim
// eligibility (patent number, direct patent URL, google source), and keeps
// the first k.
func SelectTopK(records []model.PriorArtRecord, k int) []model.PriorArtRecord {
	seen := map[string]bool{}
	var items []model.PriorArtRecord
	for _, rec := range records {
		pn := model.NormalizePatentNumber(rec.PatentNumber)
		key := pn
		if key == "" {
			key = strings.TrimSpace(rec.URL)
		}
		if key != "" {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		items = append(items, rec)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return claimability(items[i]) > claimability(items[j])
	})

	if k < 1 {
		k = 1
	}
	if len(items) > k {
		items = items[:k]
	}
	return items
}

func claimability(rec model.PriorArtRecord) int {
	score := 0
	if model.NormalizePatentNumber(rec.PatentNumber) != "" {
		score += 4
	}
	if strings.TrimSpace(rec.URL) != "" {
		score++
	}
	if strings.Contains(strings.ToLower(rec.URL), "patents.google.com/patent/") {
		score += 2
	}
	if strings.EqualFold(strings.TrimSpace(rec.Source), "google patents") {
		score++
	}
	return score
}

// Run enriches the top-K subset of records. existing holds checkpoint
// records from a prior run, keyed by normalized patent number; with resume
// enabled, terminal-success records are reused untouched.
func (o *Orchestrator) Run(ctx context.Context, records []model.PriorArtRecord, existing map[string]model.EnrichedRecord) (*Result, error) {
	items := SelectTopK(records, o.cfg.TopK)

	res := &Result{StatusCounts: map[string]int{}}
	for _, rec := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		pn := model.NormalizePatentNumber(rec.PatentNumber)

		if o.cfg.StrictSources && suspectSource(rec.Source) {
			reason := fmt.Sprintf("source %q indicates a non-search origin; use the manual claims path", rec.Source)
			zap.L().Warn("rejecting record under strict source validation",
				zap.String("patent_number", pn),
				zap.String("source", rec.Source),
			)
			res.Rejected = append(res.Rejected, RejectedRecord{Record: rec, Reason: reason})
			res.Records = append(res.Records, model.EnrichedRecord{
				PriorArtRecord: rec,
				ClaimsStatus:   model.ClaimsStatusRejectedSource,
				ClaimsError:    reason,
				FetchedAt:      o.now().UTC(),
			})
			continue
		}

		if prev, ok := existing[pn]; ok && o.cfg.Resume && !o.cfg.Force && prev.ClaimsStatus.Success() {
			res.Records = append(res.Records, prev)
			continue
		}

		enriched := o.enrich(ctx, rec)
		res.Records = append(res.Records, enriched)
	}

	res.Tally()
	return res, nil
}

// Tally recomputes the status counts and ok ratio from the current records.
// Callers that mutate Records after the run, such as a manual claims merge,
// call it again so the ratio reflects the final statuses.
func (r *Result) Tally() {
	r.StatusCounts = map[string]int{}
	r.OKCount = 0
	r.OKRatio = 0
	for _, rec := range r.Records {
		r.StatusCounts[string(rec.ClaimsStatus)]++
		if rec.ClaimsStatus.Success() {
			r.OKCount++
		}
	}
	if len(r.Records) > 0 {
		r.OKRatio = float64(r.OKCount) / float64(len(r.Records))
	}
}

// enrich walks the backend order for one record, stopping at the first
// backend whose page yields claims.
func (o *Orchestrator) enrich(ctx context.Context, rec model.PriorArtRecord) model.EnrichedRecord {
	out := model.EnrichedRecord{
		PriorArtRecord:      rec,
		Claims:              []model.Claim{},
		ClaimsFetchAttempts: []model.ClaimsFetchAttempt{},
	}

	order := o.router.Order(rec, o.cfg.Selection)
	anyCandidate := false
	hadFetchSuccess := false
	lastStatus := model.ClaimsStatus("")
	lastErr := ""

	for _, backend := range order {
		cands := o.candidates(backend, rec)
		if len(cands) == 0 {
			continue
		}
		anyCandidate = true

		budget := o.cfg.Retries
		blocked := false

		for _, cand := range cands {
			if blocked || budget <= 0 {
				break
			}

			page, fromCache, used, err := o.fetchPage(ctx, backend, cand, budget, &out)
			budget -= used
			if err != nil {
				status, msg := classifyFetchError(err)
				lastStatus, lastErr = status, msg
				if status.Blocked() {
					// A blocking portal stays blocked; hammering it
					// risks a longer ban. Move to the next backend.
					blocked = true
				}
				continue
			}
			hadFetchSuccess = true

			text, parsed, parseRes := ParsePage(page)
			out.ClaimsFetchAttempts = append(out.ClaimsFetchAttempts, model.ClaimsFetchAttempt{
				Source:      string(backend),
				URL:         cand,
				Result:      string(parseRes),
				FromCache:   fromCache,
				ClaimsCount: len(parsed),
			})

			if text != "" {
				out.ClaimsText = text
				out.Claims = parsed
				out.ClaimsStatus = model.ClaimsStatus(parseRes)
				out.ClaimsSource = string(backend)
				out.ClaimsPageURL = cand
				out.FetchedAt = o.now().UTC()
				zap.L().Info("claims fetched",
					zap.String("patent_number", rec.PatentNumber),
					zap.String("backend", string(backend)),
					zap.String("status", string(out.ClaimsStatus)),
					zap.Int("claims", len(parsed)),
				)
				return out
			}
			lastStatus = model.ClaimsStatusSectionNotFound
		}
	}

	out.FetchedAt = o.now().UTC()
	switch {
	case !anyCandidate:
		out.ClaimsStatus = model.ClaimsStatusMissingIdentity
		out.ClaimsError = "no patent number or url available for claim source routing"
	case hadFetchSuccess && lastStatus == model.ClaimsStatusSectionNotFound:
		out.ClaimsStatus = model.ClaimsStatusSectionNotFound
		out.ClaimsError = "no claims found in fetched pages"
		if lastErr != "" {
			out.ClaimsError += "; last fetch error: " + lastErr
		}
	case lastStatus != "":
		out.ClaimsStatus = lastStatus
		out.ClaimsError = lastErr
	default:
		out.ClaimsStatus = model.ClaimsStatusFetchFailed
		out.ClaimsError = "unknown claims fetch failure"
	}
	zap.L().Warn("claims not resolved",
		zap.String("patent_number", rec.PatentNumber),
		zap.String("status", string(out.ClaimsStatus)),
	)
	return out
}

// fetchPage returns the page for one candidate URL, serving from the
// evidence cache when possible. used reports how many network attempts were
// consumed from the backend budget; every network try appends an attempt
// record.
func (o *Orchestrator) fetchPage(ctx context.Context, backend Backend, url string, budget int, out *model.EnrichedRecord) (page string, fromCache bool, used int, err error) {
	if !o.cfg.Force {
		if body, ok := o.cache.Get(string(backend), url); ok {
			return body, true, 0, nil
		}
	}

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    budget,
		InitialBackoff: o.cfg.BackoffInitial,
		Multiplier:     o.cfg.BackoffMultiplier,
		JitterFraction: o.cfg.JitterFraction,
		OnRetry:        resilience.RetryLogger(string(backend), url),
	}

	body, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (string, error) {
		used++
		b, ferr := o.fetcher.Get(ctx, url)
		if ferr != nil {
			status, msg := classifyFetchError(ferr)
			out.ClaimsFetchAttempts = append(out.ClaimsFetchAttempts, model.ClaimsFetchAttempt{
				Source: string(backend),
				URL:    url,
				Result: string(status),
				Error:  msg,
			})
			return "", ferr
		}
		return b, nil
	})
	if err != nil {
		return "", false, used, err
	}

	if cerr := o.cache.Put(string(backend), url, body); cerr != nil {
		zap.L().Warn("evidence cache write failed", zap.String("url", url), zap.Error(cerr))
	}
	return body, false, used, nil
}

// classifyFetchError maps a fetch failure to its terminal status tag.
func classifyFetchError(err error) (model.ClaimsStatus, string) {
	if code, ok := resilience.IsBlocked(err); ok {
		return model.BlockedStatus(code), err.Error()
	}
	if resilience.IsTimeout(err) {
		return model.ClaimsStatusTimeout, err.Error()
	}
	if code := resilience.StatusCode(err); code != 0 {
		return model.ClaimsStatus(fmt.Sprintf("fetch_failed_http_%d", code)), err.Error()
	}
	return model.ClaimsStatusFetchFailed, err.Error()
}
