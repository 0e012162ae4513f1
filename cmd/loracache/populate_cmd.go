package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	lc "github.com/os2mo/loracache"
	"github.com/os2mo/loracache/dar"
	"github.com/os2mo/loracache/engine"
)

type populateOutput struct {
	Engine        string         `json:"engine"`
	Configuration string         `json:"configuration"`
	DurationMS    int64          `json:"duration_ms"`
	Kinds         map[string]int `json:"kinds"`
}

func newPopulateCmd(a *app) *cobra.Command {
	var (
		historic      bool
		noHistoric    bool
		skipPast      bool
		resolveDAR    bool
		noResolveDAR  bool
		readFromCache bool
		newCache      bool
	)

	cmd := &cobra.Command{
		Use:   "populate",
		Short: "Populate the cache and persist it to the work dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)

			if noHistoric {
				historic = false
			}
			if noResolveDAR {
				resolveDAR = false
			}
			if skipPast && !historic {
				return withCode(exitUsage, errors.New("--skip-past requires --historic"))
			}

			settings := a.cfg.Settings()
			if cmd.Flags().Changed("new-cache") {
				settings.UseNewCache = newCache
			}
			temporal := lc.Temporal{FullHistory: historic, SkipPast: skipPast}

			persistence, err := a.cfg.Persistence()
			if err != nil {
				return withCode(exitUsage, err)
			}

			httpClient := a.cfg.HTTPClient(ctx)
			opts := []engine.Option{
				engine.WithHTTPClient(httpClient),
				engine.WithPersistence(persistence),
			}
			if resolveDAR {
				resolver, err := dar.NewResolver(a.cfg.DARURL, nil, dar.WithRetryPolicy(settings.Retry))
				if err != nil {
					return withCode(exitUsage, err)
				}
				opts = append(opts, engine.WithDARResolver(resolver))
			}

			cache, err := engine.GetCache(settings, temporal, opts...)
			if err != nil {
				return withCode(exitUsage, err)
			}

			start := time.Now()
			if err := cache.Populate(ctx, lc.PopulateOptions{ResolveDAR: resolveDAR, ReadFromCache: readFromCache}); err != nil {
				return classify(err)
			}
			if err := cache.CalculatePrimaryEngagements(ctx); err != nil {
				return classify(err)
			}
			if err := cache.CalculateDerivedUnitData(ctx); err != nil {
				return classify(err)
			}

			out := populateOutput{
				Engine:        cache.Engine(),
				Configuration: temporal.Name(),
				DurationMS:    time.Since(start).Milliseconds(),
				Kinds:         map[string]int{},
			}
			for _, kind := range lc.PersistedKinds {
				out.Kinds[kind.String()] = len(cache.Store().Entities(kind))
			}

			logger.Info().Int64("duration_ms", out.DurationMS).Msg("populate done")
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&historic, "historic", false, "Fetch the full history instead of the actual state")
	cmd.Flags().BoolVar(&noHistoric, "no-historic", false, "Fetch the actual state only")
	cmd.Flags().BoolVar(&skipPast, "skip-past", false, "With --historic, drop validities that ended before today")
	cmd.Flags().BoolVar(&resolveDAR, "resolve-dar", true, "Resolve DAR addresses through the DAR service")
	cmd.Flags().BoolVar(&noResolveDAR, "no-resolve-dar", false, "Leave DAR addresses unresolved")
	cmd.Flags().BoolVar(&readFromCache, "read-from-cache", false, "Load the persisted snapshot of a previous run instead of fetching")
	cmd.Flags().BoolVar(&newCache, "new-cache", false, "Use the GraphQL engine (overrides USE_NEW_CACHE)")
	cmd.MarkFlagsMutuallyExclusive("historic", "no-historic")
	cmd.MarkFlagsMutuallyExclusive("resolve-dar", "no-resolve-dar")
	return cmd
}
