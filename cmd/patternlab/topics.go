package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rendis/patternlab/pkg/schema"
)

func topicsCmd(a *app) *cobra.Command {
	var (
		query   string
		asJSON  bool
		noColor bool
	)
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List topics and their modes",
		Example: `  patternlab topics
  patternlab topics --query 'any(.modes[]; .steps > 4)'
  patternlab topics --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}
			topics, err := cat.Query(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(topics)
			}
			printTopics(out, topics, noColor)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "jq filter over topic summaries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors")
	return cmd
}

func printTopics(w io.Writer, topics []schema.TopicSummary, noColor bool) {
	dim := color.New(color.Faint)
	if noColor {
		dim.DisableColor()
	}
	for _, t := range topics {
		accent := topicColor(t.Color)
		if noColor {
			accent.DisableColor()
		}
		fmt.Fprintf(w, "%s  %s\n", accent.Sprint(t.ID), t.Title)
		for _, m := range t.Modes {
			fmt.Fprintf(w, "    %-14s %s\n", m.ID, dim.Sprintf("%s, %d steps", m.Label, m.Steps))
		}
	}
	fmt.Fprintln(w, dim.Sprintf("%d topics", len(topics)))
}

// topicColor maps a #rrggbb accent to a terminal color, bold cyan when
// the value can't be parsed.
func topicColor(hex string) *color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 6 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return color.RGB(int(v>>16&0xff), int(v>>8&0xff), int(v&0xff)).Add(color.Bold)
		}
	}
	return color.New(color.FgCyan, color.Bold)
}
