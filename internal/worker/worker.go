// Package worker provides a NATS worker that segments texts on request.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/read-aloud/internal/core"
	"github.com/book-expert/read-aloud/internal/pipeline"
	"github.com/book-expert/read-aloud/internal/textload"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	handleMessageTimeout = 30 * time.Second
	unitsKeySuffix       = ".units.json"
)

var (
	// ErrTextKeyEmpty indicates that a request named no text to segment.
	ErrTextKeyEmpty = errors.New("text key cannot be empty")
	// ErrWorkflowIDEmpty indicates that a request carried no workflow ID.
	ErrWorkflowIDEmpty = errors.New("workflow ID cannot be empty")
)

// UnitsCreatedEvent is the reply to a segmentation request.
type UnitsCreatedEvent struct {
	Header    events.EventHeader `json:"header"`
	TextKey   string             `json:"text_key"`
	UnitsKey  string             `json:"units_key,omitempty"`
	UnitCount int                `json:"unit_count"`
	Error     string             `json:"error,omitempty"`
}

// NatsWorker listens for segmentation requests on a NATS subject. Each request
// names a text in the object store; the worker stores the resulting units as
// JSON next to it and replies with their key.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	pipeline       *pipeline.Pipeline
	loader         textload.Loader
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	segmenter *pipeline.Pipeline,
	loader textload.Loader,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		pipeline:       segmenter,
		loader:         loader,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for segmentation requests on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)
		w.reply(msg, &UnitsCreatedEvent{
			Header:    replyHeader(events.EventHeader{}),
			TextKey:   "",
			UnitsKey:  "",
			UnitCount: 0,
			Error:     err.Error(),
		})

		return
	}

	reply := &UnitsCreatedEvent{
		Header:    replyHeader(event.Header),
		TextKey:   event.TextKey,
		UnitsKey:  "",
		UnitCount: 0,
		Error:     "",
	}

	unitsKey, count, err := w.segment(ctx, event)
	if err != nil {
		w.log.Error("Failed to segment text for workflow %s: %v", event.Header.WorkflowID, err)
		reply.Error = err.Error()
	} else {
		w.log.Info("Segmented %s into %d units for workflow %s", event.TextKey, count, event.Header.WorkflowID)
		reply.UnitsKey = unitsKey
		reply.UnitCount = count
	}

	w.reply(msg, reply)
}

// segment downloads the text, splits it into units and uploads the result.
func (w *NatsWorker) segment(ctx context.Context, event *events.TextProcessedEvent) (string, int, error) {
	data, err := w.store.Download(ctx, event.TextKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to download text for key '%s': %w", event.TextKey, err)
	}

	text, err := w.loader.Load(bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode text for key '%s': %w", event.TextKey, err)
	}

	doc := w.pipeline.Segment(text.Content)
	exported := w.pipeline.Export(event.TextKey, text.Fingerprint, doc)

	payload, err := json.Marshal(exported)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal units: %w", err)
	}

	unitsKey := uuid.NewString() + unitsKeySuffix

	err = w.store.Upload(ctx, unitsKey, payload)
	if err != nil {
		return "", 0, fmt.Errorf("failed to upload units for key '%s': %w", unitsKey, err)
	}

	return unitsKey, doc.Len(), nil
}

func replyHeader(request events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: request.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}

func (w *NatsWorker) reply(msg *nats.Msg, event *UnitsCreatedEvent) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.TextKey == "" {
		return nil, ErrTextKeyEmpty
	}

	if event.Header.WorkflowID == "" {
		return nil, ErrWorkflowIDEmpty
	}

	return &event, nil
}
