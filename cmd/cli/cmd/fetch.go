package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	coreErrors "github.com/angelospk/osdfxp/pkg/core/errors"
	"github.com/angelospk/osdfxp/pkg/core/history"
	"github.com/angelospk/osdfxp/pkg/processor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	fetchContent  contentFlags
	fetchFileID   int
	fetchPin      string
	fetchResync   string
	fetchOutDir   string
	fetchName     string
	fetchFormat   string
	fetchEncoding string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a subtitle from OpenSubtitles and convert it to DFXP",
	Long: `Searches OpenSubtitles, picks a subtitle and writes it as a DFXP document
named "<title> - <language>.dfxp" (or "<series> - SxxEyy - <language>.dfxp").

A subtitle is picked automatically when --file-id is given or when exactly one
result is in a pinned language (--pin, or config key subtitles.pinned_languages).
Otherwise the candidates are listed so one can be chosen with --file-id.

Examples:
  osdfxp fetch --query "Inception" --year 2010 --pin el
  osdfxp fetch --release The.Show.S02E05.720p.WEB-DL --lang en --resync -0.5
  osdfxp fetch --query "Inception" --file-id 1234567`,
	Annotations: map[string]string{annotationNeedsAPIKey: "true"},
	RunE:        runFetch,
}

func init() {
	RootCmd.AddCommand(fetchCmd)

	fetchContent.register(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchFileID, "file-id", 0, "File ID to download (from search)")
	fetchCmd.Flags().StringVar(&fetchPin, "pin", "", "Pinned languages, overrides subtitles.pinned_languages")
	fetchCmd.Flags().StringVar(&fetchResync, "resync", "", "Shift every cue by this offset: seconds (-0.3) or a duration (1500ms)")
	fetchCmd.Flags().StringVarP(&fetchOutDir, "out", "o", "", "Output directory (default from output.dir)")
	fetchCmd.Flags().StringVar(&fetchName, "name", "", "Output file name")
	fetchCmd.Flags().StringVarP(&fetchFormat, "format", "f", formatDFXP, "Output format: dfxp or srt")
	fetchCmd.Flags().StringVar(&fetchEncoding, "encoding", "", "Character set of the download, detected when empty")
}

func runFetch(cmd *cobra.Command, args []string) error {
	offset, err := parseOffset(fetchResync)
	if err != nil {
		return err
	}
	client, err := newOSClient()
	if err != nil {
		return err
	}
	p := processor.NewProcessor(client, logger)

	info, err := fetchContent.resolve(p)
	if err != nil {
		return err
	}

	pinned := pinnedLanguages()
	if fetchPin != "" {
		pinned = strings.Split(fetchPin, ",")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := p.FetchForContent(ctx, info, processor.FetchOptions{
		Languages:       fetchContent.languages(),
		PinnedLanguages: pinned,
		FileID:          fetchFileID,
		Username:        viper.GetString(CfgKeyOSUsername),
		Password:        viper.GetString(CfgKeyOSPassword),
		EncodingHint:    fetchEncoding,
	})
	var selErr *processor.SelectionError
	if errors.As(err, &selErr) && errors.Is(err, coreErrors.ErrAmbiguousSubtitle) {
		// Show the choices, then fail so scripts notice nothing was written.
		fmt.Fprintln(cmd.OutOrStdout(), renderCandidates(selErr.Candidates, pinned))
		return fmt.Errorf("%w; pick one with --file-id", err)
	}
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	outDir := fetchOutDir
	if outDir == "" {
		outDir = viper.GetString(CfgKeyOutputDir)
	}
	path, err := writeResult(result, offset, outDir, fetchName, fetchFormat)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d cues, %s)\n", path, len(result.Cues), result.Encoding)

	recordHistory(openHistory(), history.Entry{
		Source:     result.Source,
		Language:   result.Language,
		Filename:   result.Filename,
		OutputPath: path,
		Offset:     offset,
		Cues:       len(result.Cues),
	})
	return nil
}
