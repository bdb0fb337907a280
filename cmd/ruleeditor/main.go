// Package main provides the rule editor CLI. It validates, lays out and
// inspects linking rules offline, using the same catalog and editor as the
// server.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/flowgraph/ruleeditor/internal/app/editor"
	"github.com/flowgraph/ruleeditor/internal/app/usecases"
	"github.com/flowgraph/ruleeditor/internal/core/operator"
	"github.com/flowgraph/ruleeditor/internal/infrastructure/config"
	"github.com/flowgraph/ruleeditor/pkg/ruletree"
	"github.com/spf13/cobra"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errInvalidRule makes the process exit non-zero after the report is printed
var errInvalidRule = errors.New("rule is invalid")

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath  string
	logLevel    string
	catalogFile string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   "ruleeditor",
		Short: "Linking rule editor tools",
		Long: `Ruleeditor works on linking rules stored as rule tree JSON.

It provides:
- validate: check a rule against the graph invariants
- layout: recompute the node layout of a rule
- operators: list or search the operator catalog`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := config.ParseLevel(flags.logLevel)
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.catalogFile, "catalog", "", "Plugin descriptor file (overrides catalog.file)")

	cmd.AddCommand(validateCmd(&flags), layoutCmd(&flags), operatorsCmd(&flags))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "RuleEditor %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		},
	})

	return cmd
}

// loadCatalog resolves the catalog file from the flag, then the config.
func loadCatalog(flags *globalFlags) (*operator.Catalog, error) {
	path := flags.catalogFile
	if path == "" && flags.configPath != "" {
		cfg, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.Catalog.File
	}
	return usecases.LoadCatalogFile(path, slog.Default())
}

func readRule(path string) (*ruletree.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule: %w", err)
	}
	return ruletree.Unmarshal(data)
}

func validateCmd(flags *globalFlags) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <rule.json>",
		Short: "Validate a rule tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(flags)
			if err != nil {
				return err
			}
			r, err := readRule(args[0])
			if err != nil {
				return err
			}

			var opts []usecases.ServiceOption
			if strict {
				opts = append(opts, usecases.WithEditorOptions(editor.WithStrictValidation()))
			}
			svc := usecases.NewRuleService(nil, catalog, opts...)
			res := svc.ValidateRule(cmd.Context(), r)

			out := cmd.OutOrStdout()
			if res.Valid {
				fmt.Fprintln(out, "rule is valid")
				return nil
			}
			fmt.Fprintf(out, "rule is invalid: %s\n", res.Message)
			for _, ne := range res.NodeErrors {
				if ne.Message != "" {
					fmt.Fprintf(out, "  %s: %s\n", ne.NodeID, ne.Message)
				} else {
					fmt.Fprintf(out, "  %s\n", ne.NodeID)
				}
			}
			return errInvalidRule
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Also check connections and parameter values")
	return cmd
}

func layoutCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "layout <rule.json>",
		Short: "Recompute the layout of a rule and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(flags)
			if err != nil {
				return err
			}
			r, err := readRule(args[0])
			if err != nil {
				return err
			}

			ed := editor.New(catalog)
			if err := ed.LoadRule(r); err != nil {
				return err
			}
			if err := ed.AutoLayout(); err != nil {
				return err
			}
			laidOut, err := ed.ToExternal()
			if err != nil {
				return err
			}
			data, err := ruletree.Marshal(laidOut)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, data, "", "  "); err != nil {
				return err
			}
			buf.WriteByte('\n')

			if output == "" || output == "-" {
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			}
			return os.WriteFile(output, buf.Bytes(), 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the rule to a file instead of stdout")
	return cmd
}

func operatorsCmd(flags *globalFlags) *cobra.Command {
	var tab string

	cmd := &cobra.Command{
		Use:   "operators [query]",
		Short: "List or search the operator catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(flags)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return printSearch(cmd.OutOrStdout(), catalog.Search(args[0]))
			}
			for _, t := range operator.SidebarTabs() {
				if t.ID == tab {
					return printOperators(cmd.OutOrStdout(), t.FilterAndSort(catalog.Operators()))
				}
			}
			return fmt.Errorf("unknown tab %q", tab)
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "all", "Sidebar tab (all, transform, comparison, aggregation)")
	return cmd
}

func printOperators(w io.Writer, ops []operator.RuleOperator) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tLABEL")
	for _, op := range ops {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", op.PluginID, op.PluginType, op.Label)
	}
	return tw.Flush()
}

func printSearch(w io.Writer, results []operator.SearchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tMATCH")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Operator.PluginID, r.Operator.Label, r.Snippet)
	}
	return tw.Flush()
}
