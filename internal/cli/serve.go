package cli

import (
	"fmt"

	"github.com/book-expert/read-aloud/internal/objectstore"
	"github.com/book-expert/read-aloud/internal/textload"
	"github.com/book-expert/read-aloud/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

func newServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the NATS segmentation service",
		Long: `Listen for segmentation requests on the configured NATS subject.

Each request names a text in the object store bucket. The service splits it
into units with the configured rules, stores the units as JSON in the same
bucket and replies with their key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, rootOpts *RootOptions) error {
	application, err := newApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer application.Close()

	segmenter, err := application.pipeline()
	if err != nil {
		return err
	}

	natsConnection, store, err := application.connect()
	if err != nil {
		return err
	}
	defer natsConnection.Close()

	segmentWorker := worker.NewNatsWorker(
		natsConnection,
		application.cfg.NATS.Subject,
		store,
		segmenter,
		textload.Loader{Encoding: application.cfg.Input.Encoding},
		application.log,
	)

	application.log.System("read-aloud segmentation service listening on subject: %s", application.cfg.NATS.Subject)

	err = segmentWorker.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("segmentation service failed: %w", err)
	}

	application.log.System("read-aloud segmentation service stopped.")

	return nil
}

// connect opens the NATS connection and the configured object store bucket.
func (a *app) connect() (*nats.Conn, *objectstore.NatsObjectStore, error) {
	natsConnection, err := nats.Connect(a.cfg.NATS.URL, nats.Name("read-aloud"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", a.cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, a.cfg.NATS.ObjectStoreBucket)
	if err != nil {
		natsConnection.Close()

		return nil, nil, err
	}

	a.log.Info("Connected to NATS at %s, bucket %s", a.cfg.NATS.URL, store.Bucket())

	return natsConnection, store, nil
}
