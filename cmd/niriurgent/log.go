package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/niriurgent/internal/adapter/output"
	"github.com/jmylchreest/niriurgent/internal/config"
	"github.com/jmylchreest/niriurgent/internal/core"
	"github.com/jmylchreest/niriurgent/internal/model"
	"github.com/jmylchreest/niriurgent/internal/store"
)

var logOpts struct {
	since    string
	app      string
	strategy string
	matched  bool
	filter   string
	search   string
	limit    int

	sortBy    string
	sortOrder string

	format   string
	field    string
	template string
	stats    bool
}

var logCmd = &cobra.Command{
	Use:   "log [index|id]",
	Short: "Show the attribution log",
	Long: `Show which windows past notifications were attributed to.

With an index (1-based, after filtering and sorting) or record ID argument,
shows that single record.

Examples:
  # Last ten attributions
  niriurgent log -n 10

  # Only notifications that fell through to desktop-entry matching
  niriurgent log --strategy desktop-entry

  # Unmatched notifications from the last day, as YAML
  niriurgent log --filter "matched=false" --since 1d --format yaml

  # Window ids of the newest record
  niriurgent log 1 --field windows`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().StringVar(&logOpts.since, "since", "",
		"Show records from the last duration (e.g., 1h, 7d, 1w)")
	logCmd.Flags().StringVar(&logOpts.app, "app", "",
		"Filter by application name (exact match)")
	logCmd.Flags().StringVar(&logOpts.strategy, "strategy", "",
		"Filter by strategy (pid, desktop-entry, fuzzy, none)")
	logCmd.Flags().BoolVar(&logOpts.matched, "matched", false,
		"Only show records that marked a window")
	logCmd.Flags().StringVar(&logOpts.filter, "filter", "",
		`Filter expression (e.g., "app=firefox,pid>1000")`)
	logCmd.Flags().StringVarP(&logOpts.search, "search", "s", "",
		"Search in app name, summary and desktop entry")
	logCmd.Flags().IntVarP(&logOpts.limit, "limit", "n", 0,
		"Maximum number of records to show (0=unlimited)")

	logCmd.Flags().StringVar(&logOpts.sortBy, "sort", "timestamp",
		"Sort by field (timestamp, app, strategy)")
	logCmd.Flags().StringVar(&logOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	logCmd.Flags().StringVarP(&logOpts.format, "format", "f", "plain",
		"Output format (plain, json, yaml, ids)")
	logCmd.Flags().StringVar(&logOpts.field, "field", "",
		"Output a single field of one record (id, app, summary, entry, sender, pid, strategy, windows)")
	logCmd.Flags().StringVar(&logOpts.template, "template", "",
		"Custom Go template for plain output")
	logCmd.Flags().BoolVar(&logOpts.stats, "stats", false,
		"Print a match-rate summary instead of records")
}

func runLog(cmd *cobra.Command, args []string) error {
	records, err := store.ReadLog(config.AttributionLogPath())
	if err != nil {
		return fmt.Errorf("failed to read attribution log: %w", err)
	}
	logger.Debug("loaded attribution log", "count", len(records))

	records, err = applyLogFilters(records)
	if err != nil {
		return err
	}
	applyLogSort(records)

	if logOpts.stats {
		return printLogStats(records)
	}

	if len(args) > 0 {
		return showRecord(records, args[0])
	}

	if logOpts.limit > 0 && len(records) > logOpts.limit {
		records = records[:logOpts.limit]
	}
	return newLogFormatter().Format(os.Stdout, records)
}

func applyLogFilters(records []model.AttributionRecord) ([]model.AttributionRecord, error) {
	opts := core.FilterOptions{
		App:         logOpts.app,
		MatchedOnly: logOpts.matched,
	}

	if logOpts.since != "" {
		d, err := core.ParseDuration(logOpts.since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}

	if logOpts.strategy != "" {
		s, err := core.ParseStrategy(logOpts.strategy)
		if err != nil {
			return nil, err
		}
		opts.Strategy = &s
	}

	records = core.Filter(records, opts)

	if logOpts.filter != "" {
		expr, err := core.ParseFilter(logOpts.filter)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter: %w", err)
		}
		records = core.FilterWithExpr(records, expr)
	}

	if logOpts.search != "" {
		records = core.Search(records, logOpts.search)
	}
	return records, nil
}

func applyLogSort(records []model.AttributionRecord) {
	field, _ := core.ParseSortField(logOpts.sortBy)
	order, _ := core.ParseSortOrder(logOpts.sortOrder)
	core.Sort(records, core.SortOptions{Field: field, Order: order})
}

// showRecord prints the record selected by a 1-based index or an ID prefix.
func showRecord(records []model.AttributionRecord, arg string) error {
	var r *model.AttributionRecord
	if idx, err := strconv.Atoi(arg); err == nil && idx > 0 {
		r = core.LookupByIndex(records, idx)
	} else {
		r = core.LookupByID(records, arg)
	}
	if r == nil {
		return fmt.Errorf("record %q not found", arg)
	}

	if logOpts.field != "" {
		fmt.Println(output.FormatField(r, logOpts.field))
		return nil
	}
	if logOpts.format == string(output.FormatPlain) {
		return output.NewJSONFormatter(output.FormatterOptions{}).FormatSingle(os.Stdout, r)
	}
	return newLogFormatter().Format(os.Stdout, []model.AttributionRecord{*r})
}

func printLogStats(records []model.AttributionRecord) error {
	apps := core.UniqueApps(records)
	fmt.Printf("records:    %d\n", len(records))
	fmt.Printf("match rate: %.0f%%\n", core.MatchRate(records)*100)
	fmt.Printf("apps (%d):  %s\n", len(apps), strings.Join(apps, ", "))
	return nil
}

func newLogFormatter() output.Formatter {
	opts := output.DefaultFormatterOptions()
	opts.Template = logOpts.template
	return output.NewFormatter(output.FormatType(strings.ToLower(logOpts.format)), opts)
}
