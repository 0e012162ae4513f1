package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	lc "github.com/os2mo/loracache"
	"github.com/os2mo/loracache/compare"
)

func (a *app) newComparator(ctx context.Context, ignoreFile string) (*compare.Comparator, error) {
	policy, err := compare.LoadIgnorePolicy(ignoreFile)
	if err != nil {
		return nil, err
	}

	sink := compare.NopSink()
	if a.cfg.PushURL != "" {
		sink = compare.NewPrometheusSink(a.cfg.PushURL)
	}

	return compare.NewComparator(a.cfg.Settings(), policy, sink, a.cfg.HTTPClient(ctx),
		compare.WithPopulateOptions(lc.PopulateOptions{}),
	), nil
}

func newCompareCmd(a *app) *cobra.Command {
	var (
		ignoreFile string
		details    bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the legacy and GraphQL caches for every configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			comparator, err := a.newComparator(ctx, ignoreFile)
			if err != nil {
				return withCode(exitUsage, err)
			}

			reports, runErr := comparator.Run(ctx)

			if !details {
				for i := range reports {
					for j := range reports[i].Kinds {
						reports[i].Kinds[j].Divergences = nil
					}
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}

			if runErr != nil {
				return classify(runErr)
			}
			for _, r := range reports {
				if !r.Equivalent {
					return withCode(exitDivergence, errors.Errorf("%s: divergent kinds %v", r.Configuration, r.Divergent()))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ignoreFile, "ignore-file", "", "YAML file extending the ignored fields per kind")
	cmd.Flags().BoolVar(&details, "details", false, "Include the divergent rows and patches in the output")
	return cmd
}
