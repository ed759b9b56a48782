package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/angelospk/osdfxp/pkg/core/history"
	"github.com/angelospk/osdfxp/pkg/processor"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	convertResync    string
	convertOutDir    string
	convertName      string
	convertFormat    string
	convertEncoding  string
	convertRecursive bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.srt|dir>...",
	Short: "Convert local SRT files into DFXP documents",
	Long: `Converts SubRip files on disk into DFXP caption documents. Each output is
named after its input with ".srt" replaced by ".dfxp" and written to --out
(config key output.dir). Directories are scanned for .srt files.

Examples:
  osdfxp convert Movie.2010.en.srt
  osdfxp convert --resync 1.5 --out ~/captions Movie.2010.en.srt
  osdfxp convert --recursive --encoding windows-1253 ./Season1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	RootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertResync, "resync", "", "Shift every cue by this offset: seconds (-0.3) or a duration (1500ms)")
	convertCmd.Flags().StringVarP(&convertOutDir, "out", "o", "", "Output directory (default from output.dir)")
	convertCmd.Flags().StringVar(&convertName, "name", "", "Output file name (single input only)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", formatDFXP, "Output format: dfxp or srt")
	convertCmd.Flags().StringVar(&convertEncoding, "encoding", "", "Character set of the input, detected when empty")
	convertCmd.Flags().BoolVarP(&convertRecursive, "recursive", "r", false, "Descend into subdirectories")
}

func runConvert(cmd *cobra.Command, args []string) error {
	offset, err := parseOffset(convertResync)
	if err != nil {
		return err
	}
	outDir := convertOutDir
	if outDir == "" {
		outDir = viper.GetString(CfgKeyOutputDir)
	}

	p := processor.NewProcessor(nil, logger)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var files []string
	for _, arg := range args {
		stat, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !stat.IsDir() {
			files = append(files, arg)
			continue
		}
		found, err := p.ScanDirectory(ctx, arg, convertRecursive)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No SRT files found.")
		return nil
	}
	if convertName != "" && len(files) > 1 {
		return fmt.Errorf("--name can only be used with a single input file")
	}

	store := openHistory()
	failed := 0
	for _, file := range files {
		result, err := p.LoadLocalFile(file, convertEncoding)
		if err != nil {
			logger.WithError(err).WithField("file", file).Error("Conversion failed")
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed: %s: %v\n", file, err)
			failed++
			continue
		}
		path, err := writeResult(result, offset, outDir, convertName, convertFormat)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{"source": file, "output": path, "offset": offset}).Debug("Converted subtitle")
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d cues)\n", path, len(result.Cues))

		recordHistory(store, history.Entry{
			Source:     result.Source,
			Language:   result.Language,
			Filename:   result.Filename,
			OutputPath: path,
			Offset:     offset,
			Cues:       len(result.Cues),
		})
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to convert", failed, len(files))
	}
	return nil
}
