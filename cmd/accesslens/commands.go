package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshsymonds/accesslens/internal/database"
	"github.com/joshsymonds/accesslens/internal/enrichment"
	"github.com/joshsymonds/accesslens/internal/identity"
	"github.com/joshsymonds/accesslens/internal/report"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		logFormat  string
	)

	root := &cobra.Command{
		Use:          "accesslens",
		Short:        "Enrich cloud resource-access reports with identity context",
		Version:      fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupLogger(debug, logFormat)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "accesslens.yaml", "Path to configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	root.AddCommand(newExtendCmd(&configPath))
	root.AddCommand(newCustomCmd(&configPath))
	root.AddCommand(newRunsCmd(&configPath))
	root.AddCommand(newEntitlementsCmd(&configPath))
	return root
}

func newExtendCmd(configPath *string) *cobra.Command {
	var (
		accessPaths bool
		parallel    bool
	)

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Extend every report in the input tree with identity context",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Service.ExtendAll(cmd.Context(), enrichment.Options{
				IncludeAccessPaths: accessPaths,
				Parallel:           parallel,
			})
			if err != nil {
				return fmt.Errorf("extending reports: %w", err)
			}
			fmt.Println(summary.Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&accessPaths, "access-paths", false, "Expand records into one row per access path")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Expand access paths concurrently")
	return cmd
}

func newCustomCmd(configPath *string) *cobra.Command {
	var (
		name        string
		filterExpr  string
		csp         string
		service     string
		accessPaths bool
		parallel    bool
	)

	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Build a filtered custom report from the resource-access reports",
		Example: `  accesslens custom --name admin-access \
    --filter 'AccessLevel contains "Admin" && ResourceType == "Bucket"' \
    --csp aws --service s3 --access-paths`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			summary, err := app.Service.CreateCustomReport(cmd.Context(), name, filterExpr, csp, service, enrichment.Options{
				IncludeAccessPaths: accessPaths,
				Parallel:           parallel,
			})
			if err != nil {
				return fmt.Errorf("creating custom report: %w", err)
			}
			fmt.Println(summary.Render())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "custom-report", "Output report name")
	cmd.Flags().StringVar(&filterExpr, "filter", "", `Filter expression, e.g. 'AccessLevel contains "Admin"'`)
	cmd.Flags().StringVar(&csp, "csp", "", "Cloud provider selector (aws, gcp, azure; empty or * for all)")
	cmd.Flags().StringVar(&service, "service", "", "Service selector (empty for all)")
	cmd.Flags().BoolVar(&accessPaths, "access-paths", false, "Expand records into one row per access path")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Expand access paths concurrently")
	return cmd
}

func newRunsCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded enrichment runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			runs, err := app.DB.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if len(runs) == 0 {
				logger.Info("No runs recorded yet")
				return nil
			}
			return displayRuns(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func newEntitlementsCmd(configPath *string) *cobra.Command {
	var (
		accountID    string
		cloudOnly    bool
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "entitlements",
		Short: "List the entitlements granted to one account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if accountID == "" {
				return fmt.Errorf("--account-id is required")
			}
			app, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			entitlements, err := app.Identity.ListEntitlementsForAccount(cmd.Context(), accountID)
			if err != nil {
				return fmt.Errorf("listing entitlements: %w", err)
			}
			if cloudOnly {
				entitlements = identity.FilterCloudGoverned(entitlements)
			}
			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entitlements)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tATTRIBUTE\tVALUE\tCLOUD")
			fmt.Fprintln(w, strings.Repeat("-", 70))
			for _, e := range entitlements {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", e.ID, e.Name, e.Attribute, e.Value, e.CloudGoverned)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account-id", "", "Account internal id")
	cmd.Flags().BoolVar(&cloudOnly, "cloud-only", false, "Show only cloud-governed entitlements")
	cmd.Flags().StringVar(&outputFormat, "format", "table", "Output format (table, json)")
	return cmd
}

func displayRuns(runs []database.Run) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tREPORT\tIN\tOUT\tAPI CALLS\tERRORS\tDURATION\tSTARTED")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.ID, run.Kind, run.Report,
			run.RecordsIn, run.RecordsOut, run.APICalls, run.Errors,
			report.FormatDuration(run.CompletedAt.Sub(run.StartedAt)),
			run.StartedAt.Format(time.RFC3339),
		)
	}
	return w.Flush()
}
