package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"staffline/internal/app"
	"staffline/internal/calendar"
	"staffline/internal/config"
	"staffline/internal/db"
	"staffline/internal/domain"
	"staffline/internal/engine"
	"staffline/internal/migrate"
	"staffline/internal/repo"
)

func releaseCmd() *cobra.Command {
	rel := &cobra.Command{Use: "release", Short: "Manage releases"}
	rel.AddCommand(releaseCreateCmd())
	rel.AddCommand(releaseListCmd())
	rel.AddCommand(releaseShowCmd())
	rel.AddCommand(releaseStatusCmd())
	return rel
}

func printReleases(items []domain.Release) error {
	return render(items, table.Row{"ID", "Name", "Status", "Created"}, func(tw table.Writer) {
		for _, r := range items {
			tw.AppendRow(table.Row{r.ID, r.Name, r.Status, r.CreatedAt})
		}
	})
}

func releaseCreateCmd() *cobra.Command {
	var name, status string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create release",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rel, err := e.CreateRelease(ctx, engine.ReleaseCreateOptions{Name: name, Status: status, ActorID: actorID()})
				if err != nil {
					return err
				}
				return printReleases([]domain.Release{rel})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "release name")
	cmd.Flags().StringVar(&status, "status", "planned", "planned|active|closed")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func releaseListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListReleases(ctx, status)
				if err != nil {
					return err
				}
				return printReleases(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func releaseShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <release-id>",
		Short: "Show release with its phases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rel, err := e.Repo.GetRelease(ctx, id)
				if err != nil {
					return err
				}
				phases, err := e.Phases(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"release": rel, "phases": phases})
				}
				fmt.Printf("%d  %s  [%s]\n", rel.ID, rel.Name, rel.Status)
				return printPhases(phases)
			})
		},
	}
}

func releaseStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <release-id> <planned|active|closed>",
		Short: "Change release status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rel, err := e.SetReleaseStatus(ctx, id, args[1], actorID())
				if err != nil {
					return err
				}
				return printReleases([]domain.Release{rel})
			})
		},
	}
}

func phaseCmd() *cobra.Command {
	ph := &cobra.Command{Use: "phase", Short: "Manage release phases"}
	ph.AddCommand(phaseSetCmd())
	ph.AddCommand(phaseListCmd())
	return ph
}

func printPhases(items []domain.Phase) error {
	return render(items, table.Row{"Phase", "Start", "End", "Working days"}, func(tw table.Writer) {
		for _, p := range items {
			tw.AppendRow(table.Row{p.Type, calendar.Format(p.StartDate), calendar.Format(p.EndDate), calendar.WorkingDays(p.StartDate, p.EndDate)})
		}
	})
}

func phaseSetCmd() *cobra.Command {
	var opts engine.PhaseOptions
	var release string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the window of a phase (dates YYYY-MM-DD, inclusive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", release)
			if err != nil {
				return err
			}
			opts.ReleaseID = id
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SetPhase(ctx, opts)
				if err != nil {
					return err
				}
				return printPhases([]domain.Phase{p})
			})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "release id")
	cmd.Flags().StringVar(&opts.Type, "type", "", "phase type")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date")
	cmd.Flags().StringVar(&opts.EndDate, "end", "", "end date")
	for _, f := range []string{"release", "type", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func phaseListCmd() *cobra.Command {
	var release string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List phases of a release",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", release)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Phases(ctx, id)
				if err != nil {
					return err
				}
				return printPhases(items)
			})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "release id")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func resourceCmd() *cobra.Command {
	res := &cobra.Command{Use: "resource", Short: "Manage the resource pool"}
	res.AddCommand(resourceAddCmd())
	res.AddCommand(resourceListCmd())
	res.AddCommand(resourceStatusCmd())
	return res
}

func printResources(items []domain.Resource) error {
	return render(items, table.Row{"ID", "Name", "Skill", "Sub-function", "Status"}, func(tw table.Writer) {
		for _, r := range items {
			tw.AppendRow(table.Row{r.ID, r.Name, r.SkillFunction, r.SubFunction, r.Status})
		}
	})
}

func resourceAddCmd() *cobra.Command {
	var opts engine.ResourceCreateOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CreateResource(ctx, opts)
				if err != nil {
					return err
				}
				return printResources([]domain.Resource{r})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "resource name")
	cmd.Flags().StringVar(&opts.SkillFunction, "skill", "", "functional_design|technical_design|build|test")
	cmd.Flags().StringVar(&opts.SubFunction, "sub", "", "skill sub-function (e.g. Java, Manual)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("skill")
	return cmd
}

func resourceListCmd() *cobra.Command {
	var skill string
	var f repo.ResourceFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.SkillFunction = domain.SkillFunction(skill)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListResources(ctx, f)
				if err != nil {
					return err
				}
				return printResources(items)
			})
		},
	}
	cmd.Flags().StringVar(&skill, "skill", "", "skill filter")
	cmd.Flags().StringVar(&f.SubFunction, "sub", "", "sub-function filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "active|inactive")
	return cmd
}

func resourceStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <resource-id> <active|inactive>",
		Short: "Activate or deactivate a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("resource", args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.SetResourceStatus(ctx, id, args[1], actorID())
				if err != nil {
					return err
				}
				return printResources([]domain.Resource{r})
			})
		},
	}
}

func scopeCmd() *cobra.Command {
	sc := &cobra.Command{Use: "scope", Short: "Manage release scope items"}
	var release, name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a scope item to a release",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", release)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.CreateScopeItem(ctx, id, name, actorID())
				if err != nil {
					return err
				}
				return render(item, table.Row{"ID", "Release", "Name"}, func(tw table.Writer) {
					tw.AppendRow(table.Row{item.ID, item.ReleaseID, item.Name})
				})
			})
		},
	}
	add.Flags().StringVar(&release, "release", "", "release id")
	add.Flags().StringVar(&name, "name", "", "scope item name")
	_ = add.MarkFlagRequired("release")
	_ = add.MarkFlagRequired("name")
	sc.AddCommand(add)
	return sc
}

func estimateCmd() *cobra.Command {
	est := &cobra.Command{Use: "estimate", Short: "Manage effort estimates"}
	est.AddCommand(estimateAddCmd())
	est.AddCommand(estimateListCmd())
	return est
}

func printEstimates(items []domain.EffortEstimate) error {
	return render(items, table.Row{"ID", "Scope item", "Phase", "Skill", "Sub-function", "Days"}, func(tw table.Writer) {
		total := 0.0
		for _, e := range items {
			tw.AppendRow(table.Row{e.ID, e.ScopeItemID, e.PhaseType, e.SkillFunction, e.SubFunction, days(e.EffortDays)})
			total += e.EffortDays
		}
		tw.AppendFooter(table.Row{"", "", "", "", "Total", days(total)})
	})
}

func estimateAddCmd() *cobra.Command {
	var opts engine.EstimateOptions
	var scope string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record effort days for a scope item",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("scope item", scope)
			if err != nil {
				return err
			}
			opts.ScopeItemID = id
			opts.ActorID = actorID()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				est, err := e.AddEstimate(ctx, opts)
				if err != nil {
					return err
				}
				return printEstimates([]domain.EffortEstimate{est})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope item id")
	cmd.Flags().StringVar(&opts.PhaseType, "phase", "", "phase type (not uat or smoke_testing)")
	cmd.Flags().StringVar(&opts.SkillFunction, "skill", "", "skill function")
	cmd.Flags().StringVar(&opts.SubFunction, "sub", "", "skill sub-function")
	cmd.Flags().Float64Var(&opts.EffortDays, "days", 0, "effort days")
	for _, f := range []string{"scope", "phase", "skill", "days"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func estimateListCmd() *cobra.Command {
	var release string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List estimates of a release",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", release)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Estimates(ctx, id)
				if err != nil {
					return err
				}
				return printEstimates(items)
			})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "release id")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the audit log"}
	var n int
	var evtType, entityKind, entityID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return render(items, table.Row{"ID", "Time", "Type", "Entity", "Actor", "Payload"}, func(tw table.Writer) {
					for _, evt := range items {
						tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID, evt.Payload})
					}
				})
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "event type filter")
	tail.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	tail.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	lg.AddCommand(tail)
	return lg
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.ResolveConfig(viper.GetString("workspace"), viper.GetString("config"))
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(c)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default staffline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfg.AddCommand(initCmd)
	return cfg
}

func dbCmd() *cobra.Command {
	d := &cobra.Command{Use: "db", Short: "Workspace database"}
	d.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show schema version without migrating",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			st, err := migrate.CurrentStatus(cmd.Context(), conn)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"path": db.Path(workspace), "current": st.Current, "latest": st.Latest, "pending": st.Pending})
			}
			fmt.Printf("%s\nschema %d of %d, %d pending\n", db.Path(workspace), st.Current, st.Latest, len(st.Pending))
			return nil
		},
	})
	return d
}
