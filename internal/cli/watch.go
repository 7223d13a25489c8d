package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/desflat/internal/logging"
)

// DefaultDebounce is how long watch waits after the last change before
// elaborating again.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls Build once and again after every burst of changes to the
// model files. Each build starts from scratch.
type Watcher struct {
	Paths    []string
	Debounce time.Duration
	Build    func(ctx context.Context) error
	Logger   zerolog.Logger
}

// Run watches until ctx is done. Build errors are logged and do not stop
// the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	files, dirs, err := w.targets()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Directories are watched so that editors replacing a file by rename
	// are still seen.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.Logger.Info().Int("dirs", len(dirs)).Msg("watcher started")

	w.build(ctx)

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info().Msg("watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.relevant(event.Name, files, dirs) {
				continue
			}
			w.Logger.Debug().
				Str(logging.FieldPath, event.Name).
				Str("op", event.Op.String()).
				Msg("model changed")
			timer.Reset(debounce)

		case <-timer.C:
			w.build(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) build(ctx context.Context) {
	if err := w.Build(ctx); err != nil {
		w.Logger.Warn().Err(err).Msg("elaboration failed")
	}
}

// targets splits the watched paths into explicit files and the directories
// to register. A directory argument maps to true: every model file in it
// counts.
func (w *Watcher) targets() (map[string]bool, map[string]bool, error) {
	if len(w.Paths) == 0 {
		return nil, nil, &LoadError{Code: ErrCodeNoFiles, Message: "no model files given"}
	}
	files := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range w.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("model path not found: %s", p), Err: err}
		}
		if info.IsDir() {
			dirs[abs] = true
			continue
		}
		files[abs] = true
		if _, ok := dirs[filepath.Dir(abs)]; !ok {
			dirs[filepath.Dir(abs)] = false
		}
	}
	return files, dirs, nil
}

func (w *Watcher) relevant(name string, files, dirs map[string]bool) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	if files[abs] {
		return true
	}
	return dirs[filepath.Dir(abs)] && modelExtensions[strings.ToLower(filepath.Ext(abs))]
}

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	GroupingOptions
	Output   string
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <model>...",
		Short: "Elaborate again whenever a model file changes",
		Long: `Elaborate the model, then watch its files and elaborate again from scratch
after every change. Output goes to stdout or --output and is only rewritten
when the flattened text changes. Errors are reported and watching continues.

Stop with Ctrl-C.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period before elaborating again")
	opts.addFlags(cmd)

	return cmd
}

func runWatch(opts *WatchOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := logging.WithComponent("watch")

	grouper, err := opts.grouper(opts.Project)
	if err != nil {
		return reportError(formatter, err)
	}

	var last []byte
	w := &Watcher{
		Paths:    paths,
		Debounce: opts.Debounce,
		Logger:   logger,
		Build: func(context.Context) error {
			flat, err := flatten(paths, grouper, logger)
			if err != nil {
				_ = reportError(formatter, err)
				return err
			}
			if last != nil && bytes.Equal(last, flat.Text) {
				formatter.VerboseLog("unchanged (%s)", shortDigest(flat.Digest))
				return nil
			}
			last = flat.Text
			return writeWatchOutput(formatter, opts.Output, flat)
		},
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.Run(ctx); err != nil {
		return reportError(formatter, err)
	}
	return nil
}

func writeWatchOutput(formatter *OutputFormatter, output string, flat *Flattened) error {
	if output == "" {
		if formatter.Format == "json" {
			return formatter.Success(ElaborationResult{
				Source: flat.Load.Source(),
				Files:  flat.Load.Files,
				Digest: flat.Digest,
				Output: string(flat.Text),
			})
		}
		_, err := formatter.Writer.Write(flat.Text)
		return err
	}
	if err := writeFileAtomic(output, flat.Text); err != nil {
		return err
	}
	fmt.Fprintf(formatter.GetErrWriter(), "✓ Wrote %s (digest %s)\n", output, shortDigest(flat.Digest))
	return nil
}
