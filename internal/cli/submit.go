package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/read-aloud/internal/worker"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// ErrSegmentationFailed is returned when the service replies with an error.
var ErrSegmentationFailed = errors.New("segmentation service reported an error")

const (
	defaultSubmitTimeout = 30 * time.Second
	outputFilePerm       = 0o644
)

// SubmitOptions holds the flags of the submit command.
type SubmitOptions struct {
	Output  string
	Timeout time.Duration
	Keep    bool
}

func newSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{}

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Segment a text through a running segmentation service",
		Long: `Upload a text to the object store, ask the segmentation service to split
it and print the resulting units as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the units to this file instead of standard output")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", defaultSubmitTimeout, "how long to wait for the service")
	cmd.Flags().BoolVar(&opts.Keep, "keep", false, "leave the uploaded text and units in the bucket")

	return cmd
}

func runSubmit(cmd *cobra.Command, rootOpts *RootOptions, opts *SubmitOptions, path string) error {
	application, err := newApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer application.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	natsConnection, store, err := application.connect()
	if err != nil {
		return err
	}
	defer natsConnection.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	textKey := uuid.NewString() + "-" + filepath.Base(path)

	err = store.Upload(ctx, textKey, data)
	if err != nil {
		return err
	}

	if !opts.Keep {
		defer func() {
			deleteErr := store.Delete(context.WithoutCancel(ctx), textKey)
			if deleteErr != nil {
				application.log.Warn("Failed to delete uploaded text %s: %v", textKey, deleteErr)
			}
		}()
	}

	reply, err := application.request(ctx, natsConnection, textKey)
	if err != nil {
		return err
	}

	units, err := store.Download(ctx, reply.UnitsKey)
	if err != nil {
		return err
	}

	if !opts.Keep {
		deleteErr := store.Delete(ctx, reply.UnitsKey)
		if deleteErr != nil {
			application.log.Warn("Failed to delete units %s: %v", reply.UnitsKey, deleteErr)
		}
	}

	application.log.Info("Received %d units for %s", reply.UnitCount, path)

	if opts.Output == "" {
		_, err = application.out.Write(append(units, '\n'))
		if err != nil {
			return fmt.Errorf("failed to write units: %w", err)
		}

		return nil
	}

	err = os.WriteFile(opts.Output, units, outputFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write units to %s: %w", opts.Output, err)
	}

	fmt.Fprintf(application.out, "Wrote %d units to %s\n", reply.UnitCount, opts.Output)

	return nil
}

// request publishes a segmentation request and waits for the reply.
func (a *app) request(ctx context.Context, natsConnection *nats.Conn, textKey string) (*worker.UnitsCreatedEvent, error) {
	event := events.TextProcessedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     os.Getenv("USER"),
			TenantID:   "",
		},
		TextKey:           textKey,
		PNGKey:            "",
		PageNumber:        0,
		TotalPages:        0,
		Voice:             a.cfg.Speech.Voice,
		Seed:              0,
		NGL:               0,
		TopP:              0,
		RepetitionPenalty: 0,
		Temperature:       0,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := natsConnection.RequestWithContext(ctx, a.cfg.NATS.Subject, payload)
	if err != nil {
		return nil, fmt.Errorf("no reply from segmentation service on %s: %w", a.cfg.NATS.Subject, err)
	}

	var reply worker.UnitsCreatedEvent

	err = json.Unmarshal(msg.Data, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrSegmentationFailed, reply.Error)
	}

	return &reply, nil
}
