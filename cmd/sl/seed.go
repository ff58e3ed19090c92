package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"staffline/internal/app"
	"staffline/internal/calendar"
	"staffline/internal/engine"
)

func seedCmd() *cobra.Command {
	sd := &cobra.Command{Use: "seed", Short: "Populate the workspace with sample data"}
	var name, start string
	var seed int64
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Create a fully planned demo release with a fake team",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.DemoOptions{ReleaseName: name, Seed: seed, ActorID: actorID()}
			if strings.TrimSpace(start) != "" {
				d, err := calendar.ParseDate(start)
				if err != nil {
					return err
				}
				opts.Start = d
			}
			if seed == 0 {
				opts.Seed = time.Now().UnixNano()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := app.SeedDemo(ctx, e, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("release %d %q: %d resources, %d estimates, %d allocations (%d shortfalls)\n",
					res.Release.ID, res.Release.Name, len(res.Resources), res.Estimates, res.Generation.Inserted, len(res.Generation.Shortfalls))
				return nil
			})
		},
	}
	demo.Flags().StringVar(&name, "release", "", "release name (random when empty)")
	demo.Flags().StringVar(&start, "start", "", "first Monday of the plan YYYY-MM-DD (default next week)")
	demo.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	sd.AddCommand(demo)
	return sd
}
