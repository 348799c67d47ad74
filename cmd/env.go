package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/priorart-cli/internal/cache"
	"github.com/sells-group/priorart-cli/internal/claims"
	"github.com/sells-group/priorart-cli/internal/config"
	"github.com/sells-group/priorart-cli/internal/fetcher"
	"github.com/sells-group/priorart-cli/internal/store"
)

func initStore(ctx context.Context) (*store.RunStore, error) {
	dsn := cfg.Store.Path
	if dsn == "" {
		dsn = "priorart.db"
	}
	st, err := store.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initRouter() (*claims.Router, error) {
	router := claims.NewRouter()
	if cfg.Router.TablePath != "" {
		if err := router.LoadTable(cfg.Router.TablePath); err != nil {
			return nil, eris.Wrap(err, "load router table")
		}
	}
	return router, nil
}

func initOrchestrator(fc config.FetchConfig) (*claims.Orchestrator, error) {
	router, err := initRouter()
	if err != nil {
		return nil, err
	}

	pages := fetcher.New(fetcher.Options{
		UserAgent:    fc.UserAgent,
		Timeout:      fc.Timeout(),
		MinDelay:     fc.Sleep(),
		DelayJitter:  fc.SleepJitterFrac,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})

	evCache := cache.New(cfg.Cache.Dir)

	return claims.NewOrchestrator(claims.Config{
		TopK:              fc.TopK,
		Retries:           fc.Retries,
		BackoffInitial:    fc.Backoff(),
		BackoffMultiplier: fc.BackoffMult,
		JitterFraction:    fc.JitterFraction,
		Resume:            fc.Resume,
		Force:             fc.Force,
		StrictSources:     fc.StrictSources,
		Selection:         fc.ClaimSources,
	}, router, evCache, pages), nil
}
