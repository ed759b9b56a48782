package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/angelospk/osdfxp/pkg/processor"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var searchContent contentFlags

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for subtitles on OpenSubtitles",
	Long: `Searches OpenSubtitles for subtitles that can be converted and lists them
with pinned languages (config key subtitles.pinned_languages) first. Use the
File ID column with "fetch --file-id".

Examples:
  osdfxp search --query "Inception" --year 2010 --lang en,el
  osdfxp search --query "The Show" --season 2 --episode 5
  osdfxp search --release The.Show.S02E05.720p.WEB-DL
  osdfxp search --video ~/Videos/Inception.2010.1080p.mkv`,
	Annotations: map[string]string{annotationNeedsAPIKey: "true"},
	RunE:        runSearch,
}

func init() {
	RootCmd.AddCommand(searchCmd)
	searchContent.register(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	client, err := newOSClient()
	if err != nil {
		return err
	}
	p := processor.NewProcessor(client, logger)

	info, err := searchContent.resolve(p)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	candidates, err := p.Search(ctx, info, searchContent.languages())
	if err != nil {
		return fmt.Errorf("subtitle search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(out, "No subtitles found matching the criteria.")
		return nil
	}

	pinned := pinnedLanguages()
	processor.SortCandidates(candidates, pinned)

	fmt.Fprintf(out, "Found %d subtitles for %s:\n", len(candidates), info.ContentName())
	fmt.Fprintln(out, renderCandidates(candidates, pinned))
	return nil
}

func renderCandidates(candidates []processor.Candidate, pinned []string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "File ID", "Language", "File", "Release", "Downloads", "HI"})

	for _, c := range candidates {
		pin, hi := "", ""
		if c.IsPinned(pinned) {
			pin = "*"
		}
		if c.HearingImpaired {
			hi = "yes"
		}
		tw.AppendRow(table.Row{pin, strconv.Itoa(c.FileID), c.LanguageName, c.FileName, c.Release, strconv.Itoa(c.Downloads), hi})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 48},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
