package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ahrav/treadpick/internal/application"
	"github.com/ahrav/treadpick/internal/domain"
)

func rankCmd(load configLoader) *cobra.Command {
	var (
		wet, width, dataset string
		asJSON              bool
	)
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank the dataset for a pair of preferences and print the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wetPref, err := domain.ParseWetPreference(wet)
			if err != nil {
				return err
			}
			widthPref, err := domain.ParseWidthPreference(width)
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			if dataset != "" {
				cfg.Source = application.SourceConfig{Kind: "file", Path: dataset}
			}

			a, err := buildApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.recommender.Recommend(cmd.Context(), application.Request{Wet: wetPref, Width: widthPref})
			if err != nil {
				// The HTTP API hides fetch failures; the CLI reports them.
				return fmt.Errorf("ranking: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			return printRecommendation(out, rec)
		},
	}
	cmd.Flags().StringVar(&wet, "wet", string(domain.WetNormal), "wet-grip importance: very, normal, not")
	cmd.Flags().StringVar(&width, "width", string(domain.WidthNarrow), "preferred width: narrow (28mm) or wide (30/32mm)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "read candidates from this YAML file instead of the configured source")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result view as JSON")
	return cmd
}

func printRecommendation(w io.Writer, rec application.Recommendation) error {
	if len(rec.Results) == 0 {
		_, err := fmt.Fprintln(w, "no eligible tires")
		return err
	}
	for i, r := range rec.Results {
		width := "?"
		if r.WidthSpecMM != nil {
			width = fmt.Sprintf("%dmm", *r.WidthSpecMM)
		}
		if _, err := fmt.Fprintf(w, "%d. %s (%s)  score %.1f  wet grip %.1f  rolling resistance %.1f W\n   %s\n",
			i+1, r.DisplayName(), width, r.Score, r.WG, r.RR, r.Explanation); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d of %d candidates eligible, wet=%s width=%s\n",
		rec.Meta.Eligible, rec.Meta.Candidates, rec.Meta.WetPref, rec.Meta.WidthPref)
	return err
}
