package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var (
	historyClear  bool
	historyRemove string
	historyPath   bool
	historyLimit  int
)

// shortIDLen is how much of an entry ID the table shows; --remove accepts it.
const shortIDLen = 8

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the documents written by convert and fetch",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := dataDir()
		if err != nil {
			return err
		}
		store := openHistory()
		if store == nil {
			return fmt.Errorf("history unavailable in %s", dir)
		}

		if historyPath {
			fmt.Fprintln(cmd.OutOrStdout(), store.Path())
			return nil
		}

		if historyRemove != "" {
			removed, err := store.Remove(historyRemove)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from history.\n", removed.OutputPath)
			return nil
		}

		if historyClear {
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		}

		entries := store.List()
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No history yet.")
			return nil
		}
		if historyLimit > 0 && len(entries) > historyLimit {
			entries = entries[:historyLimit]
		}

		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"ID", "When", "Document", "Language", "Offset", "Cues", "Source"})
		for _, e := range entries {
			id := e.ID
			if len(id) > shortIDLen {
				id = id[:shortIDLen]
			}
			tw.AppendRow(table.Row{
				id,
				e.CreatedAt.Local().Format("2006-01-02 15:04"),
				e.OutputPath,
				e.Language,
				e.Offset.String(),
				strconv.Itoa(e.Cues),
				e.Source,
			})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
			{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		})
		fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Remove all history entries")
	historyCmd.Flags().StringVar(&historyRemove, "remove", "", "Remove the entry with this ID (or unique ID prefix)")
	historyCmd.Flags().BoolVar(&historyPath, "path", false, "Print the history file location")
	historyCmd.MarkFlagsMutuallyExclusive("clear", "remove", "path")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many entries (0 for all)")
}
