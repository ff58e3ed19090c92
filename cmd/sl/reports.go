package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"staffline/internal/calendar"
	"staffline/internal/domain"
	"staffline/internal/engine"
)

func allocateCmd() *cobra.Command {
	al := &cobra.Command{Use: "allocate", Short: "Generate and inspect allocations"}
	al.AddCommand(allocateGenerateCmd())
	al.AddCommand(allocateListCmd())
	return al
}

func allocateGenerateCmd() *cobra.Command {
	var release string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Replace the allocations of a release with a fresh plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("release", release)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.GenerateAllocation(ctx, id, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("release %d: removed %d, inserted %d allocations\n", sum.ReleaseID, sum.Removed, sum.Inserted)
				if len(sum.Shortfalls) == 0 {
					return nil
				}
				tw := newTable(table.Row{"Phase", "Skill", "Sub-function", "Effort", "Covered", "Reason"})
				tw.SetTitle("Uncovered effort")
				for _, s := range sum.Shortfalls {
					tw.AppendRow(table.Row{s.PhaseType, s.SkillFunction, s.SubFunction, days(s.EffortDays), days(s.CoveredDays), s.Reason})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "release id")
	_ = cmd.MarkFlagRequired("release")
	return cmd
}

func allocateListCmd() *cobra.Command {
	var release, resource string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored allocations of a release or a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			var q engine.AllocationQuery
			var err error
			if release != "" {
				if q.ReleaseID, err = parseID("release", release); err != nil {
					return err
				}
			}
			if resource != "" {
				if q.ResourceID, err = parseID("resource", resource); err != nil {
					return err
				}
			}
			if q.ReleaseID == 0 && q.ResourceID == 0 {
				return fmt.Errorf("--release or --resource required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Allocations(ctx, q)
				if err != nil {
					return err
				}
				return printAllocations(items)
			})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", "release id")
	cmd.Flags().StringVar(&resource, "resource", "", "resource id")
	return cmd
}

func printAllocations(items []domain.Allocation) error {
	return render(items, table.Row{"Release", "Phase", "Resource", "Sub-function", "Start", "End", "Factor", "Days"}, func(tw table.Writer) {
		total := 0.0
		for _, a := range items {
			tw.AppendRow(table.Row{
				a.ReleaseID, a.PhaseType, fmt.Sprintf("%d %s", a.ResourceID, a.ResourceName), a.SubFunction,
				calendar.Format(a.StartDate), calendar.Format(a.EndDate), days(a.Factor), days(a.Days),
			})
			total += a.Days
		}
		tw.AppendFooter(table.Row{"", "", "", "", "", "", "Total", days(total)})
	})
}

func conflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Resources booked above weekly capacity across all releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Conflicts(ctx)
				if err != nil {
					return err
				}
				return render(items, table.Row{"Resource", "Week", "Booked", "Capacity", "Excess"}, func(tw table.Writer) {
					for _, c := range items {
						for _, w := range c.Weeks {
							tw.AppendRow(table.Row{fmt.Sprintf("%d %s", c.ResourceID, c.ResourceName), calendar.Format(w.WeekStart), days(w.TotalAllocation), days(w.Threshold), days(w.Excess)})
						}
					}
				})
			})
		},
	}
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Weekly utilization and capacity reports"}
	rep.AddCommand(reportUtilizationCmd())
	rep.AddCommand(reportCapacityCmd())
	rep.AddCommand(reportSkillCapacityCmd())
	return rep
}

func addRangeFlags(cmd *cobra.Command, q *engine.ReportQuery) {
	cmd.Flags().StringVar(&q.From, "from", "", "first day YYYY-MM-DD")
	cmd.Flags().StringVar(&q.To, "to", "", "last day YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
}

func addSkillFlags(cmd *cobra.Command, q *engine.ReportQuery) {
	cmd.Flags().StringVar(&q.SkillFunction, "skill", "", "skill function filter")
	cmd.Flags().StringVar(&q.SubFunction, "sub", "", "sub-function filter")
}

func reportUtilizationCmd() *cobra.Command {
	var q engine.ReportQuery
	var ids string
	cmd := &cobra.Command{
		Use:   "utilization",
		Short: "Weekly booked days against capacity per resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range strings.Split(ids, ",") {
				if strings.TrimSpace(raw) == "" {
					continue
				}
				id, err := parseID("resource", raw)
				if err != nil {
					return err
				}
				q.ResourceIDs = append(q.ResourceIDs, id)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.Utilization(ctx, q)
				if err != nil {
					return err
				}
				return render(rows, table.Row{"Resource", "Week", "Booked", "Capacity", "Utilization %"}, func(tw table.Writer) {
					for _, r := range rows {
						tw.AppendRow(table.Row{fmt.Sprintf("%d %s", r.ResourceID, r.ResourceName), calendar.Format(r.WeekStart), days(r.AllocatedDays), days(r.CapacityDays), days(r.UtilizationPercent)})
					}
				})
			})
		},
	}
	addRangeFlags(cmd, &q)
	cmd.Flags().StringVar(&ids, "resources", "", "comma separated resource ids (any status)")
	return cmd
}

func reportCapacityCmd() *cobra.Command {
	var q engine.ReportQuery
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Weekly available days per active resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.CapacityForecast(ctx, q)
				if err != nil {
					return err
				}
				return render(rows, table.Row{"Resource", "Skill", "Sub-function", "Week", "Booked", "Capacity", "Available"}, func(tw table.Writer) {
					for _, r := range rows {
						tw.AppendRow(table.Row{fmt.Sprintf("%d %s", r.ResourceID, r.ResourceName), r.SkillFunction, r.SubFunction, calendar.Format(r.WeekStart), days(r.AllocatedDays), days(r.CapacityDays), days(r.AvailableDays)})
					}
				})
			})
		},
	}
	addRangeFlags(cmd, &q)
	addSkillFlags(cmd, &q)
	return cmd
}

func reportSkillCapacityCmd() *cobra.Command {
	var q engine.ReportQuery
	cmd := &cobra.Command{
		Use:   "skill-capacity",
		Short: "Weekly available days per skill",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rows, err := e.SkillCapacityForecast(ctx, q)
				if err != nil {
					return err
				}
				return render(rows, table.Row{"Skill", "Sub-function", "Week", "Headcount", "Booked", "Capacity", "Available"}, func(tw table.Writer) {
					for _, r := range rows {
						tw.AppendRow(table.Row{r.SkillFunction, r.SubFunction, calendar.Format(r.WeekStart), r.Headcount, days(r.AllocatedDays), days(r.CapacityDays), days(r.AvailableDays)})
					}
				})
			})
		},
	}
	addRangeFlags(cmd, &q)
	addSkillFlags(cmd, &q)
	return cmd
}
