package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/book-expert/read-aloud/internal/bookmark"
	"github.com/book-expert/read-aloud/internal/player"
	"github.com/book-expert/read-aloud/internal/speech"
	"github.com/book-expert/read-aloud/internal/textload"
	"github.com/book-expert/read-aloud/internal/tracking"
	"github.com/book-expert/read-aloud/internal/watch"
	"github.com/spf13/cobra"
)

// ReadOptions holds the flags of the read command.
type ReadOptions struct {
	Start    int
	NoResume bool
	NoAuto   bool
	NoWatch  bool
	Tracking string
}

func newReadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReadOptions{}

	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Read a text file aloud",
		Long: `Read a text file aloud, one unit at a time.

Commands are read from standard input, one per line; type "help" for the list.
The position reached is saved and restored the next time the same text is read.

While reading, the text and rules files are checked for changes. A changed
text is split again and reading continues where the tracking mode says:
"backward" goes back to the first change before the current unit, "forward"
goes to the first change anywhere, "restart" starts again from the first unit
and "none" stays put.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Start, "start", "n", 0, "unit to start from (default: saved position or 1)")
	cmd.Flags().BoolVar(&opts.NoResume, "no-resume", false, "ignore and do not save the reading position")
	cmd.Flags().BoolVar(&opts.NoAuto, "no-auto", false, "stop after each unit instead of continuing")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "do not reload the text and rules when they change on disk")
	cmd.Flags().StringVar(&opts.Tracking, "tracking", "", "where to continue after the text changes: none, backward, forward or restart")

	return cmd
}

func runRead(cmd *cobra.Command, rootOpts *RootOptions, opts *ReadOptions, path string) error {
	ctx := cmd.Context()

	application, err := newApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer application.Close()

	mode, err := application.trackingMode(opts.Tracking)
	if err != nil {
		return err
	}

	text, err := textload.Loader{Encoding: application.cfg.Input.Encoding}.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	segmenter, err := application.pipeline()
	if err != nil {
		return err
	}

	doc := segmenter.Segment(text.Content)
	application.log.Info("Split %s into %d units", path, doc.Len())

	updates := make(chan player.Update)
	playerOpts := player.Options{
		StartAt:     opts.Start,
		AutoAdvance: !opts.NoAuto,
		OnPosition:  nil,
		Tracking:    mode,
		Updates:     updates,
	}

	var current atomic.Pointer[textload.Text]

	current.Store(text)

	if !opts.NoResume {
		store := application.openBookmarks()
		if store != nil {
			defer store.Close()

			if opts.Start == 0 {
				playerOpts.StartAt = application.resumePosition(ctx, store, text)
			}

			playerOpts.OnPosition = func(index int) {
				reading := current.Load()

				saveErr := store.Save(ctx, reading.Path, reading.Fingerprint, index)
				if saveErr != nil {
					application.log.Warn("Failed to save position %d for %s: %v", index, reading.Path, saveErr)
				}
			}
		}
	}

	speaker := speech.New(application.cfg.SpeechSettings(), application.log)
	reader := player.New(doc, segmenter.Substitution, speaker, application.log, application.out, playerOpts)

	watchCtx, stopWatching := context.WithCancel(ctx)
	watching := make(chan struct{})

	go func() {
		defer close(watching)

		if !opts.NoWatch {
			application.followChanges(watchCtx, path, &current, updates)
		}
	}()

	err = reader.Run(ctx, cmd.InOrStdin())

	stopWatching()
	<-watching

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("playback failed: %w", err)
	}

	return nil
}

// openBookmarks opens the position store. Reading continues without it.
func (a *app) openBookmarks() *bookmark.Store {
	store, err := bookmark.Open(a.cfg.Paths.StateDB)
	if err != nil {
		a.log.Warn("Reading positions will not be saved: %v", err)

		return nil
	}

	return store
}

func (a *app) resumePosition(ctx context.Context, store *bookmark.Store, text *textload.Text) int {
	position, err := store.Load(ctx, text.Path, text.Fingerprint)

	switch {
	case err == nil:
		fmt.Fprintf(a.out, "Resuming at unit %d.\n", position.Unit)

		return position.Unit
	case errors.Is(err, bookmark.ErrStaleBookmark):
		fmt.Fprintf(a.out, "The text changed since it was last read; starting from the beginning.\n")
	case errors.Is(err, bookmark.ErrNoBookmark):
	default:
		a.log.Warn("Failed to load the reading position for %s: %v", text.Path, err)
	}

	return 1
}

func (a *app) trackingMode(flag string) (tracking.Mode, error) {
	if flag == "" {
		return a.cfg.TrackingMode()
	}

	mode, err := tracking.ParseMode(flag)
	if err != nil {
		return "", fmt.Errorf("%w: --tracking: %w", ErrInvalidFlag, err)
	}

	return mode, nil
}

// followChanges reloads the text and the rules whenever one of their files
// changes and hands the result to the player. A reload that fails keeps the
// previous text.
func (a *app) followChanges(ctx context.Context, path string, current *atomic.Pointer[textload.Text], updates chan<- player.Update) {
	period, err := a.cfg.WatchPeriod()
	if err != nil || period == 0 {
		return
	}

	watcher := watch.New(period, a.log, path, a.cfg.Rules.TransformationFile, a.cfg.Rules.SubstitutionFile)

	watcher.Run(ctx, func(ctx context.Context, changed []string) {
		update, text, reloadErr := a.reload(path, changed)
		if reloadErr != nil {
			a.log.Warn("Reload failed: %v", reloadErr)
			fmt.Fprintf(a.errw, "Warning: %v; keeping the previous text.\n", reloadErr)

			return
		}

		current.Store(text)

		select {
		case updates <- update:
		case <-ctx.Done():
		}
	})
}

func (a *app) reload(path string, changed []string) (player.Update, *textload.Text, error) {
	text, err := textload.Loader{Encoding: a.cfg.Input.Encoding}.LoadFile(path)
	if err != nil {
		return player.Update{}, nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	segmenter, err := a.pipeline()
	if err != nil {
		return player.Update{}, nil, err
	}

	update := player.Update{Doc: segmenter.Segment(text.Content), Subst: nil}

	substFile := a.cfg.Rules.SubstitutionFile
	if substFile != "" && slices.Contains(changed, substFile) {
		update.Subst = segmenter.Substitution
	}

	a.log.Info("Reloaded %s into %d units", path, update.Doc.Len())

	return update, text, nil
}
