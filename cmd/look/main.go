package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamkz007/look-sub000/internal/config"
	"github.com/adamkz007/look-sub000/internal/epub"
	"github.com/adamkz007/look-sub000/internal/importer"
	"github.com/adamkz007/look-sub000/internal/thumbnail"
)

// cliOptions holds the settings shared by every subcommand.
type cliOptions struct {
	Config *config.Config
	Logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "look",
		Short: "Inspect EPUB files",
		Long: `look reads EPUB archives: it unpacks them, resolves the reading
order and chapter titles, and extracts metadata and cover images.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default from config: info)")
	flags.String("log-format", "", "Log format: text, json (default from config: text)")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	rootCmd.AddCommand(newParseCmd(), newMetadataCmd(), newCoverCmd(), newImportCmd())
	return rootCmd
}

// readCLIOptions loads the configuration and applies flag overrides.
func readCLIOptions(cmd *cobra.Command) (*cliOptions, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid --log-level/--log-format: %w", err)
	}

	return &cliOptions{
		Config: cfg,
		Logger: buildLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format),
	}, nil
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <epub>",
		Short: "Unpack an EPUB and print its reading order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			dest, _ := cmd.Flags().GetString("out")
			if dest == "" {
				dest, err = os.MkdirTemp("", "look-*")
				if err != nil {
					return fmt.Errorf("failed to create extraction directory: %w", err)
				}
			}

			parser := epub.NewParser(epub.WithLogger(opts.Logger))
			book, err := parser.Parse(args[0], dest)
			if err != nil {
				return fmt.Errorf("parse failed: %w", err)
			}
			opts.Logger.Info("parsed book", "path", args[0], "dest", dest, "chapters", len(book.Spine))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n", book.Metadata.Title)
			fmt.Fprintf(out, "Extracted to: %s\n", book.ExtractedRoot)
			for _, item := range book.Spine {
				fmt.Fprintf(out, "%d\t%s\t%s\n", item.Index, item.Title, book.ResolvedPath(item.Href))
			}
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "Extraction directory (default: new temporary directory)")
	return cmd
}

func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata <epub>",
		Short: "Print EPUB metadata as JSON without unpacking the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			parser := epub.NewParser(epub.WithLogger(opts.Logger))
			md, err := parser.ExtractMetadata(args[0])
			if err != nil {
				return fmt.Errorf("metadata extraction failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}
}

func newCoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover <epub>",
		Short: "Extract the cover image, optionally as a thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}
			outputPath, _ := cmd.Flags().GetString("output")
			asThumbnail, _ := cmd.Flags().GetBool("thumbnail")

			parser := epub.NewParser(epub.WithLogger(opts.Logger))
			cover, err := parser.ExtractCover(args[0])
			if err != nil {
				// A broken cover is the same as no cover for thumbnails.
				if !asThumbnail {
					return fmt.Errorf("cover extraction failed: %w", err)
				}
				opts.Logger.Warn("cover extraction failed", "path", args[0], "error", err)
			}

			var data []byte
			ext := ".jpg"
			switch {
			case asThumbnail:
				gen := thumbnail.NewGenerator(opts.Config.Thumbnail.Width, opts.Config.Thumbnail.Height,
					opts.Config.Thumbnail.Quality, opts.Logger)
				var src []byte
				if cover != nil {
					src = cover.Data
				}
				thumb, err := gen.Generate(src)
				if err != nil {
					return fmt.Errorf("thumbnail failed: %w", err)
				}
				if thumb.Fallback {
					opts.Logger.Info("no usable cover, wrote placeholder", "reason", thumb.Warning)
				}
				data = thumb.Data
			case cover == nil:
				fmt.Fprintln(cmd.OutOrStdout(), "no cover image")
				return nil
			default:
				data = cover.Data
				ext = filepath.Ext(cover.Path)
			}

			if outputPath == "" {
				outputPath = defaultOutputPath(args[0], ext)
			}
			if err := os.WriteFile(outputPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outputPath)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output file path (default: input name with the cover extension)")
	cmd.Flags().Bool("thumbnail", false, "Write a JPEG thumbnail instead of the original image")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <epub>...",
		Short: "Read metadata for many files, falling back to file names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd)
			if err != nil {
				return err
			}

			parser := epub.NewParser(epub.WithLogger(opts.Logger))
			imp := importer.New(parser,
				importer.WithWorkers(opts.Config.Import.Workers),
				importer.WithLogger(opts.Logger))

			records, err := imp.Run(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range records {
				source := "metadata"
				if r.FromFilename {
					source = "filename"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", r.Path, r.Metadata.Title, strings.Join(r.Metadata.Authors, ", "), source)
			}
			return nil
		},
	}
}

// defaultOutputPath replaces the extension of inputPath with ext.
func defaultOutputPath(inputPath, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".cover" + ext
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
