package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"staffline/internal/app"
	"staffline/internal/db"
	"staffline/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Staffline CLI",
	Long: `Staffline staffs software releases from effort estimates.
- Release: a delivery with dated phases (functional_design, technical_design, build, sit, uat, smoke_testing, ...).
- Resource: a person with a skill function (functional_design, technical_design, build, test) and an optional sub-function.
- Estimate: effort days for one skill in one phase of a scope item.
- Allocation: a resource booked on a phase window for a fraction of each working day; 'sl allocate generate' rebuilds them.
- Reports: conflicts over weekly capacity, utilization, and remaining capacity per resource or skill.
- Event log: audit of every change, view with 'sl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STAFFLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/staffline.yml or staffline.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(releaseCmd())
	rootCmd.AddCommand(phaseCmd())
	rootCmd.AddCommand(resourceCmd())
	rootCmd.AddCommand(scopeCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(allocateCmd())
	rootCmd.AddCommand(conflictsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- helpers ---

func actorID() string { return viper.GetString("actor-id") }

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	e, conn, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, e)
}

func openEngine(ctx context.Context) (engine.Engine, *sql.DB, error) {
	return app.NewEngine(ctx, app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
	})
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

// render prints v as JSON when --json is set, otherwise calls rows to fill a table.
func render(v any, header table.Row, rows func(tw table.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tw := newTable(header)
	rows(tw)
	tw.Render()
	return nil
}

func days(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
