package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hsindex/internal/hierarchy"
	"hsindex/internal/hscode"
	"hsindex/internal/index"
	"hsindex/internal/resolver"
	"hsindex/internal/search"
	"hsindex/internal/service"
	"hsindex/internal/tui"
)

func newBuildCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the heading cache and vector index from the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := rt.engine.Build(cmd.Context(), true)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "build %s: %d units in %s\n", rep.BuildID, rep.Units, rep.Took.Round(time.Millisecond))
			fmt.Fprintf(out, "extraction rows kept=%d dropped=%d backfilled=%d\n",
				rep.Extraction.Kept, rep.Extraction.Dropped, rep.Extraction.Backfilled)
			if rep.Orphans > 0 {
				fmt.Fprintf(out, "%d sub-codes have no parent code\n", rep.Orphans)
			}
			for _, name := range sortedKeys(rep.Failures) {
				fmt.Fprintf(out, "not loaded: %s: %s\n", name, rep.Failures[name])
			}
			return nil
		},
	}
}

func newLookupCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <code>",
		Short: "Resolve a heading or code, e.g. 3502, 35.02 or 350211",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			res, err := rt.engine.Lookup(args[0])
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printLookup(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newSearchCmd(rt *runtime) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find the code families closest to a product description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			results, err := rt.engine.Search(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of neighbours to aggregate (default from config)")
	return cmd
}

func newNearestCmd(rt *runtime) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "nearest <text>",
		Short: "List the raw nearest index units",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			hits, err := rt.engine.Nearest(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), hits)
			}
			printNeighbors(cmd.OutOrStdout(), hits)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of neighbours (default from config)")
	return cmd
}

func newTreeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <code>",
		Short: "Show the heading containing a code with all its sub-codes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			node, err := rt.engine.Subtree(args[0])
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), node)
			}
			printNode(cmd.OutOrStdout(), node, 0)
			return nil
		},
	}
}

func newHeadingsCmd(rt *runtime) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "headings <text>",
		Short: "Show the heading subtrees closest to a product description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			trees, err := rt.engine.Headings(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), trees)
			}
			for _, t := range trees {
				fmt.Fprintf(cmd.OutOrStdout(), "score=%.3f\n", t.Score)
				printNode(cmd.OutOrStdout(), t.Node, 1)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of neighbours to consider (default from config)")
	return cmd
}

func newStatsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Describe the loaded corpus and index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.ready(cmd.Context()); err != nil {
				return err
			}
			st, err := rt.engine.Stats()
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			printStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newTUICmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse lookups and searches interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := rt.engine.Build(cmd.Context(), false)
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d units, build %s", rep.Units, rep.BuildID)
			_, err = tea.NewProgram(tui.New(rt.engine, rt.cfg.Search.TopK, summary), tea.WithAltScreen()).Run()
			return err
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printLookup(w io.Writer, res resolver.Result) {
	switch r := res.(type) {
	case resolver.HeadingResult:
		fmt.Fprintln(w, r.Heading)
		for _, l := range r.RelatedCodes {
			fmt.Fprintln(w, "  "+l)
		}
	case resolver.CodeResult:
		fmt.Fprintf(w, "%s  %s\n", r.Code, r.Description)
	case resolver.NotFound:
		fmt.Fprintln(w, r.Error)
	}
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no code family matched")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s  %.3f  %s\n", i+1, r.Code, r.Score, r.Description)
		fmt.Fprintf(w, "   %s (%s)\n", r.File, r.Category)
		for _, g := range r.SubCodes {
			for _, rec := range g.Records {
				fmt.Fprintf(w, "   [%s] %s  %s  %s\n", g.Suffix, rec.Code, rec.Description, rec.File)
			}
		}
	}
}

func printNeighbors(w io.Writer, hits []index.Neighbor) {
	for _, h := range hits {
		label := h.Unit.Code
		if label == "" {
			label = h.Unit.Heading
		}
		fmt.Fprintf(w, "%5d  sim=%.3f  d=%.3f  %-10s  %s\n", h.Unit.Slot, h.Similarity, h.Distance, h.Unit.Source, label)
		fmt.Fprintf(w, "       %s\n", h.Unit.Text)
	}
}

func printNode(w io.Writer, n *hierarchy.Node, depth int) {
	if n == nil {
		return
	}
	name := n.Name
	if n.Placeholder() {
		name = "(no description)"
	}
	fmt.Fprintf(w, "%s%s  %s\n", strings.Repeat("  ", depth), n.Code, name)
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}

func printStats(w io.Writer, st service.Stats) {
	fmt.Fprintf(w, "build      %s (%d units, dim %d, %s/%s)\n",
		st.Index.BuildID, st.Index.Units, st.Index.Dimension, st.Index.Embedder, st.Index.Metric)
	for _, name := range sortedKeys(st.Tables) {
		fmt.Fprintf(w, "table      %s: %d rows\n", name, st.Tables[name])
	}
	fmt.Fprintf(w, "contents   %d documents\n", st.Contents)
	fmt.Fprintf(w, "headings   %d (%d code lines)\n", st.Headings, st.Lines)
	for _, l := range []hscode.Level{hscode.LevelChapter, hscode.LevelHeading, hscode.LevelCode, hscode.LevelSubCode} {
		fmt.Fprintf(w, "hierarchy  %s: %d\n", l, st.Levels[l])
	}
	fmt.Fprintf(w, "flat codes %d, orphans %d\n", st.FlatCodes, len(st.Orphans))
	for _, ext := range sortedKeys(st.Documents) {
		fmt.Fprintf(w, "files      .%s: %d\n", ext, st.Documents[ext])
	}
	for _, name := range sortedKeys(st.DataErrors) {
		fmt.Fprintf(w, "error      %s: %s\n", name, st.DataErrors[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
