package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/artforge-backend/internal/app"
	types "github.com/yungbote/artforge-backend/internal/domain"
	"github.com/yungbote/artforge-backend/internal/preference"
	"github.com/yungbote/artforge-backend/internal/selector"
)

var (
	outputJSON bool
	clearYes   bool
)

func init() {
	historyCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	preferencesCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	clearHistoryCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished generation tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			tasks, err := a.Services.Runner.History(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			return printHistory(cmd.OutOrStdout(), tasks)
		})
	},
}

var preferencesCmd = &cobra.Command{
	Use:   "preferences",
	Short: "Show learned style and theme ratings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			snap := map[types.PreferenceCategory][]preference.Entry{}
			for _, cat := range types.Categories {
				snap[cat] = a.Services.Preferences.Snapshot(cat)
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			return printPreferences(cmd.OutOrStdout(), snap)
		})
	},
}

var clearHistoryCmd = &cobra.Command{
	Use:   "clear-history",
	Short: "Delete the task history (learned preferences are kept)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear history without --yes")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Services.Runner.ClearHistory(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
			return nil
		})
	},
}

func printHistory(out io.Writer, tasks []*types.GenerationTask) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tSTATUS\tSTYLE\tTHEME\tSTARTED\tRECORD / ERROR")
	for _, t := range tasks {
		res := t.Result.Data()
		detail := res.RecordID
		if t.Status != types.TaskCompleted {
			detail = res.Error
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Seq, t.Status, t.SelectedStyle, t.SelectedTheme, t.StartedAt.Format(time.RFC3339), detail)
	}
	return w.Flush()
}

func printPreferences(out io.Writer, snap map[types.PreferenceCategory][]preference.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, cat := range types.Categories {
		entries := snap[cat]
		fmt.Fprintf(w, "%s (best: %s)\n", cat, selector.Best(entries))
		fmt.Fprintln(w, "KEY\tUSED\tSUCCESS\tRATING")
		for _, e := range byRating(entries) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%.3f\n", e.Key, e.UsedCount, e.SuccessCount, e.Rating())
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// byRating orders a copy of entries by rating, highest first, then by key.
func byRating(entries []preference.Entry) []preference.Entry {
	out := append([]preference.Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rating(), out[j].Rating()
		if ri != rj {
			return ri > rj
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
