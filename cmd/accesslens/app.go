package main

import (
	"fmt"

	"github.com/joshsymonds/accesslens/internal/ciem"
	"github.com/joshsymonds/accesslens/internal/client"
	"github.com/joshsymonds/accesslens/internal/config"
	"github.com/joshsymonds/accesslens/internal/database"
	"github.com/joshsymonds/accesslens/internal/enrichment"
	"github.com/joshsymonds/accesslens/internal/identity"
	"github.com/joshsymonds/accesslens/internal/report"
	"github.com/joshsymonds/accesslens/pkg/logger"
	"github.com/joshsymonds/accesslens/pkg/pathutil"
)

// app holds the wired dependency graph for one CLI invocation.
type app struct {
	Config   *config.Config
	API      *client.Client
	CiemAPI  *client.Client
	Identity *identity.Client
	CIEM     *ciem.Client
	Service  *report.Service
	DB       *database.DB
}

// aggregateCalls sums the call counters of every platform client so the run
// summary covers both endpoints.
type aggregateCalls []report.APICallCounter

func (a aggregateCalls) Calls() int64 {
	var total int64
	for _, c := range a {
		total += c.Calls()
	}
	return total
}

// newApp loads configuration and wires the full pipeline. The CIEM endpoint
// gets its own HTTP client when it lives at a different base URL.
func newApp(configPath string) (*app, error) {
	validPath, err := pathutil.ValidateConfigPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	cfg, err := config.LoadConfig(validPath)
	if err != nil {
		return nil, err
	}
	log := logger.GetGlobalLogger()

	api := client.New(client.Config{
		BaseURL:      cfg.Tenant.BaseURL,
		TokenURL:     cfg.Tenant.TokenURL,
		ClientID:     cfg.Tenant.ClientID,
		ClientSecret: cfg.Tenant.ClientSecret,
		Logger:       log,
	})
	ciemAPI := api
	if cfg.Tenant.CiemBaseURL != cfg.Tenant.BaseURL {
		ciemAPI = client.New(client.Config{
			BaseURL:      cfg.Tenant.CiemBaseURL,
			TokenURL:     cfg.Tenant.TokenURL,
			ClientID:     cfg.Tenant.ClientID,
			ClientSecret: cfg.Tenant.ClientSecret,
			Logger:       log,
		})
	}
	identityClient := identity.NewClient(api, log)
	ciemClient := ciem.NewClient(ciemAPI, cfg.AccessPaths.PathSeparator, cfg.AccessPaths.StepSeparator, log)

	correlator := enrichment.NewCorrelator(identityClient, cfg.IncludedIdentityAttributes, cfg.AccountChunkSize, log)
	resolver := enrichment.NewResolver(ciemClient, log)
	extender := enrichment.NewExtender(correlator, resolver, ciemClient, log)

	db, err := database.New(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}

	calls := aggregateCalls{api}
	if ciemAPI != api {
		calls = append(calls, ciemAPI)
	}

	return &app{
		Config:   cfg,
		API:      api,
		CiemAPI:  ciemAPI,
		Identity: identityClient,
		CIEM:     ciemClient,
		Service:  report.NewService(cfg, extender, calls, db, log),
		DB:       db,
	}, nil
}

// Close releases held resources.
func (a *app) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			logger.Error("closing run history", "error", err)
		}
	}
}
