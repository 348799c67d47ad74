package claims

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/priorart-cli/internal/cache"
	"github.com/sells-group/priorart-cli/internal/fetcher"
	"github.com/sells-group/priorart-cli/internal/model"
	"github.com/sells-group/priorart-cli/internal/resilience"
)

const claimsBody = `<section itemprop="claims"><p>1. A system with a cache.</p><p>2. The system of claim 1 with retries.</p></section>`

func fastOrchestratorConfig() Config {
	return Config{
		TopK:           10,
		Retries:        2,
		BackoffInitial: time.Millisecond,
		Selection:      "google",
	}
}

func newTestOrchestrator(t *testing.T, cfg Config, srvURL string) *Orchestrator {
	t.Helper()
	f := fetcher.New(fetcher.Options{Timeout: 5 * time.Second})
	o := NewOrchestrator(cfg, NewRouter(), cache.New(t.TempDir()), f)
	o.WithCandidates(func(b Backend, rec model.PriorArtRecord) []string {
		if model.NormalizePatentNumber(rec.PatentNumber) == "" {
			return nil
		}
		return []string{srvURL + "/" + string(b) + "/" + model.NormalizePatentNumber(rec.PatentNumber)}
	})
	return o
}

func TestOrchestrator_FetchAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsBody))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, fastOrchestratorConfig(), srv.URL)

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, model.ClaimsStatusOK, rec.ClaimsStatus)
	assert.Equal(t, "google", rec.ClaimsSource)
	assert.Len(t, rec.Claims, 2)
	assert.Equal(t, 1, res.OKCount)
	assert.InDelta(t, 1.0, res.OKRatio, 1e-9)
}

func TestOrchestrator_RetryBudgetPerBackend(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := fastOrchestratorConfig()
	cfg.Retries = 3
	cfg.Selection = "google,espacenet"
	o := newTestOrchestrator(t, cfg, srv.URL)

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.False(t, rec.ClaimsStatus.Success())
	// retries-per-backend attempts on each of the two backends tried.
	assert.EqualValues(t, 6, hits.Load())
	assert.Len(t, rec.ClaimsFetchAttempts, 6)
	for _, a := range rec.ClaimsFetchAttempts {
		assert.Equal(t, "fetch_failed_http_500", a.Result)
	}
}

func TestOrchestrator_BlockedMovesToNextBackend(t *testing.T) {
	var googleHits, espacenetHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/google/US1B2":
			googleHits.Add(1)
			w.WriteHeader(http.StatusForbidden)
		default:
			espacenetHits.Add(1)
			_, _ = w.Write([]byte(claimsBody))
		}
	}))
	defer srv.Close()

	cfg := fastOrchestratorConfig()
	cfg.Retries = 4
	cfg.Selection = "google,espacenet"
	o := newTestOrchestrator(t, cfg, srv.URL)

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)

	rec := res.Records[0]
	assert.Equal(t, model.ClaimsStatusOK, rec.ClaimsStatus)
	assert.Equal(t, "espacenet", rec.ClaimsSource)
	// A 403 is terminal for its backend: exactly one try, no retries.
	assert.EqualValues(t, 1, googleHits.Load())
	assert.EqualValues(t, 1, espacenetHits.Load())
}

func TestOrchestrator_BlockedAllBackendsReportsBlockedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, fastOrchestratorConfig(), srv.URL)

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimsStatus("fetch_blocked_403"), res.Records[0].ClaimsStatus)
}

func TestOrchestrator_CacheHitAvoidsRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(claimsBody))
	}))
	defer srv.Close()

	f := fetcher.New(fetcher.Options{Timeout: 5 * time.Second})
	evCache := cache.New(t.TempDir())
	mkOrch := func() *Orchestrator {
		return NewOrchestrator(fastOrchestratorConfig(), NewRouter(), evCache, f).
			WithCandidates(func(b Backend, rec model.PriorArtRecord) []string {
				return []string{srv.URL + "/" + rec.PatentNumber}
			})
	}

	_, err := mkOrch().Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, hits.Load())

	// Second run without checkpoint: page served from the evidence cache.
	res, err := mkOrch().Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	rec := res.Records[0]
	require.Len(t, rec.ClaimsFetchAttempts, 1)
	assert.True(t, rec.ClaimsFetchAttempts[0].FromCache)
}

func TestOrchestrator_ResumeReusesCheckpoint(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(claimsBody))
	}))
	defer srv.Close()

	cfg := fastOrchestratorConfig()
	cfg.Resume = true
	o := newTestOrchestrator(t, cfg, srv.URL)

	existing := map[string]model.EnrichedRecord{
		"US1B2": {
			PriorArtRecord: model.PriorArtRecord{PatentNumber: "US1B2"},
			ClaimsStatus:   model.ClaimsStatusOK,
			ClaimsText:     "1. Cached claim.",
		},
	}

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, existing)
	require.NoError(t, err)
	assert.EqualValues(t, 0, hits.Load(), "resumed record must not refetch")
	assert.Equal(t, "1. Cached claim.", res.Records[0].ClaimsText)
}

func TestOrchestrator_ResumeSkipsFailedCheckpointEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsBody))
	}))
	defer srv.Close()

	cfg := fastOrchestratorConfig()
	cfg.Resume = true
	o := newTestOrchestrator(t, cfg, srv.URL)

	existing := map[string]model.EnrichedRecord{
		"US1B2": {
			PriorArtRecord: model.PriorArtRecord{PatentNumber: "US1B2"},
			ClaimsStatus:   model.ClaimsStatusFetchFailed,
		},
	}

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, existing)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimsStatusOK, res.Records[0].ClaimsStatus, "failed checkpoint entries are refetched")
}

func TestOrchestrator_StrictSourcesRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(claimsBody))
	}))
	defer srv.Close()

	cfg := fastOrchestratorConfig()
	cfg.StrictSources = true
	o := newTestOrchestrator(t, cfg, srv.URL)

	records := []model.PriorArtRecord{
		{PatentNumber: "US1B2", Source: "Google Patents"},
		{PatentNumber: "US2B2", Source: "synthetic-fixture"},
	}

	res, err := o.Run(context.Background(), records, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	require.Len(t, res.Rejected, 1)

	assert.Equal(t, "US2B2", res.Rejected[0].Record.PatentNumber)

	var rejected *model.EnrichedRecord
	for i := range res.Records {
		if res.Records[i].PatentNumber == "US2B2" {
			rejected = &res.Records[i]
		}
	}
	require.NotNil(t, rejected)
	assert.Equal(t, model.ClaimsStatusRejectedSource, rejected.ClaimsStatus)
	assert.Empty(t, rejected.ClaimsText)
}

func TestOrchestrator_MissingIdentity(t *testing.T) {
	o := newTestOrchestrator(t, fastOrchestratorConfig(), "http://unreachable.invalid")

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{Title: "No number, no URL"}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, model.ClaimsStatusMissingIdentity, res.Records[0].ClaimsStatus)
}

func TestOrchestrator_SectionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>A captcha page.</p></body></html>`))
	}))
	defer srv.Close()

	o := newTestOrchestrator(t, fastOrchestratorConfig(), srv.URL)

	res, err := o.Run(context.Background(), []model.PriorArtRecord{{PatentNumber: "US1B2"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimsStatusSectionNotFound, res.Records[0].ClaimsStatus)
}

func TestSelectTopK(t *testing.T) {
	records := []model.PriorArtRecord{
		{Title: "no identity"},
		{PatentNumber: "US1B2", URL: "https://patents.google.com/patent/US1B2/en", Source: "Google Patents"},
		{PatentNumber: "US1B2"}, // duplicate
		{URL: "https://example.com/paper"},
		{PatentNumber: "EP1A1"},
	}

	top := SelectTopK(records, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "US1B2", top[0].PatentNumber)
	assert.Equal(t, "EP1A1", top[1].PatentNumber)
	assert.Equal(t, "https://example.com/paper", top[2].URL)
}

func TestSelectTopK_KeepsIdentityless(t *testing.T) {
	top := SelectTopK([]model.PriorArtRecord{{Title: "only a title"}}, 5)
	require.Len(t, top, 1)
}

func TestResultTally_ManualMergeLiftsOKRatio(t *testing.T) {
	res := &Result{Records: []model.EnrichedRecord{
		{PriorArtRecord: model.PriorArtRecord{PatentNumber: "US1"}, ClaimsStatus: model.ClaimsStatusOK},
		{PriorArtRecord: model.PriorArtRecord{PatentNumber: "US2"}, ClaimsStatus: model.ClaimsStatusSectionNotFound},
	}}
	res.Tally()
	assert.Equal(t, 1, res.OKCount)
	assert.InDelta(t, 0.5, res.OKRatio, 1e-9)

	MergeManualClaims(res.Records, []model.ManualClaimsEntry{
		{PatentNumber: "US2", ClaimsText: "1. A flux capacitor."},
	}, false)
	res.Tally()

	assert.Equal(t, 2, res.OKCount)
	assert.InDelta(t, 1.0, res.OKRatio, 1e-9)
	assert.Equal(t, map[string]int{"ok": 1, "manual_ok": 1}, res.StatusCounts)
}

func TestClassifyFetchError(t *testing.T) {
	status, _ := classifyFetchError(&resilience.StatusError{Code: 403, URL: "u"})
	assert.Equal(t, model.ClaimsStatus("fetch_blocked_403"), status)

	status, _ = classifyFetchError(&resilience.StatusError{Code: 404, URL: "u"})
	assert.Equal(t, model.ClaimsStatus("fetch_failed_http_404"), status)

	status, _ = classifyFetchError(context.DeadlineExceeded)
	assert.Equal(t, model.ClaimsStatusTimeout, status)
}
