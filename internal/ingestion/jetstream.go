package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/opsdeck/automation-engine/internal/apperrors"
	"github.com/opsdeck/automation-engine/internal/config"
	"github.com/opsdeck/automation-engine/internal/model"
	"github.com/opsdeck/automation-engine/internal/observer"
	"github.com/opsdeck/automation-engine/internal/tenant"
	"github.com/opsdeck/automation-engine/pkg/logger"
	"github.com/opsdeck/automation-engine/pkg/utils"
)

const consumerType = "jetstream"

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck      AckNakAction = iota // Message processed successfully, ACK it
	ActionNakDelay                     // Retryable error with attempts left, NAK with delay
	ActionTerm                         // Fatal error or max retries reached, terminate delivery
)

// Consumer subscribes the automation engine to the workspace event stream.
// One consumer serves one workspace: stream subjects carry a trailing
// workspace wildcard and the durable consumer filters on this workspace's
// suffix.
type Consumer struct {
	nc          *nats.Conn
	js          nats.JetStreamContext
	router      *Router
	workspaceID string
	cfg         config.Config

	sub    *nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
}

// NewConsumer connects to NATS and prepares a consumer bound to the router.
func NewConsumer(cfg *config.Config, router *Router) (*Consumer, error) {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("automation-engine-"+cfg.Workspace.ID),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	scoped := logger.Log.With(zap.String("workspace_id", cfg.Workspace.ID))
	ctx = logger.WithLogger(ctx, scoped)
	ctx = tenant.WithWorkspaceID(ctx, cfg.Workspace.ID)

	return &Consumer{
		nc:          nc,
		js:          js,
		router:      router,
		workspaceID: cfg.Workspace.ID,
		cfg:         *cfg,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// subjects returns the stream subjects (workspace wildcard) and this
// consumer's filter subjects (workspace suffix).
func (c *Consumer) subjects() (streamSubjects, filterSubjects []string) {
	for _, subject := range c.cfg.NATS.SubjectList {
		streamSubjects = append(streamSubjects, subject+".*")
		filterSubjects = append(filterSubjects, fmt.Sprintf("%s.%s", subject, c.workspaceID))
	}
	return streamSubjects, filterSubjects
}

// Setup creates or updates the stream and the durable consumer.
func (c *Consumer) Setup() error {
	log := logger.FromContext(c.ctx)
	streamSubjects, filterSubjects := c.subjects()

	streamCfg := &nats.StreamConfig{
		Name:      c.cfg.NATS.Stream,
		Subjects:  streamSubjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    time.Duration(c.cfg.NATS.MaxAgeDays*24) * time.Hour,
	}
	if _, err := c.js.AddStream(streamCfg); err != nil {
		if _, updateErr := c.js.UpdateStream(streamCfg); updateErr != nil {
			log.Error("Failed to setup stream", zap.Error(err), zap.String("stream", c.cfg.NATS.Stream))
			return fmt.Errorf("failed to setup stream %q: %w", c.cfg.NATS.Stream, err)
		}
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.NATS.Consumer,
		DeliverGroup:   c.cfg.NATS.QueueGroup,
		DeliverSubject: nats.NewInbox(),
		FilterSubjects: filterSubjects,
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        30 * time.Second,
		MaxDeliver:     c.cfg.NATS.MaxDeliver,
		MaxAckPending:  1000,
		ReplayPolicy:   nats.ReplayInstantPolicy,
	}
	if _, err := c.js.AddConsumer(c.cfg.NATS.Stream, consumerCfg); err != nil {
		if _, updateErr := c.js.UpdateConsumer(c.cfg.NATS.Stream, consumerCfg); updateErr != nil {
			log.Error("Failed to setup consumer", zap.Error(err), zap.String("consumer", c.cfg.NATS.Consumer))
			return fmt.Errorf("failed to setup consumer %q: %w", c.cfg.NATS.Consumer, err)
		}
	}

	log.Info("JetStream consumer setup complete",
		zap.String("stream", c.cfg.NATS.Stream),
		zap.String("consumer", c.cfg.NATS.Consumer),
		zap.Strings("filter_subjects", filterSubjects))
	return nil
}

// Start subscribes to the durable consumer's delivery group.
func (c *Consumer) Start() error {
	log := logger.FromContext(c.ctx)

	sub, err := c.js.QueueSubscribe("", c.cfg.NATS.QueueGroup, c.handleMessage,
		nats.Bind(c.cfg.NATS.Stream, c.cfg.NATS.Consumer),
		nats.ManualAck(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe consumer %q: %w", c.cfg.NATS.Consumer, err)
	}
	c.sub = sub
	log.Info("JetStream consumer subscribed",
		zap.String("stream", c.cfg.NATS.Stream),
		zap.String("group", c.cfg.NATS.QueueGroup))
	return nil
}

// determineAckNakAction decides the fate of a message based on the
// processing result and delivery metadata.
func determineAckNakAction(processingErr error, numDelivered uint64, maxDeliver int, nakBaseDelay, nakMaxDelay time.Duration) (AckNakAction, time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	if numDelivered >= uint64(maxDeliver) || !apperrors.IsRetryable(processingErr) {
		return ActionTerm, 0
	}

	delay := nakBaseDelay
	if numDelivered > 1 {
		delay = nakBaseDelay * (1 << (numDelivered - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// handleMessage is the per-message processing loop body.
func (c *Consumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()
	log := logger.FromContext(c.ctx)

	defer func() {
		eventType, _ := model.MapToBaseEventType(msg.Subject)
		observer.ObserveEventProcessingDuration(string(eventType), c.workspaceID, consumerType, time.Since(startTime))
		if r := recover(); r != nil {
			log.Error("Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Stack("stack"))
			observer.IncEventsFailed(string(eventType), c.workspaceID, consumerType)
			observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	eventType, found := model.MapToBaseEventType(msg.Subject)
	if !found {
		log.Warn("Unknown event subject, terminating delivery", zap.String("subject", msg.Subject))
		observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "term_unknown_type", "unknown_event_type")
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to TERM message with unknown subject", zap.Error(termErr))
		}
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err))
		observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "nak_metadata_error", "metadata")
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		return
	}

	msgID := msg.Header.Get("Nats-Msg-Id")
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
		WorkspaceID:      c.workspaceID,
	}

	observer.IncEventsReceived(string(eventType), c.workspaceID, consumerType)

	msgCtx := logger.WithLogger(c.ctx, log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
		zap.String("subject", msg.Subject),
	))

	processingErr := c.router.Route(msgCtx, internalMetadata, msg.Data)

	enhancedLog := logger.FromContext(msgCtx)
	action, nakDelay := determineAckNakAction(processingErr, metadata.NumDelivered,
		c.cfg.NATS.MaxDeliver, c.cfg.NATS.NakBaseDelay, c.cfg.NATS.NakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}

	switch action {
	case ActionAck:
		enhancedLog.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(string(eventType), c.workspaceID, consumerType)
		observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNakDelay:
		enhancedLog.Info("NAKing message with delay for redelivery (retryable error)",
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.NATS.MaxDeliver),
			zap.Duration("nak_delay", nakDelay))
		observer.IncEventsFailed(string(eventType), c.workspaceID, consumerType)
		observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionTerm:
		reason := "max delivery attempts reached"
		if !apperrors.IsRetryable(processingErr) {
			reason = "fatal error encountered"
		}
		enhancedLog.Warn("Terminating message delivery: "+reason,
			zap.Error(processingErr),
			zap.Uint64("num_delivered", metadata.NumDelivered),
			zap.Int("max_deliver", c.cfg.NATS.MaxDeliver))
		observer.IncEventsFailed(string(eventType), c.workspaceID, consumerType)
		observer.IncEventProcessingAction(string(eventType), c.workspaceID, consumerType, "term", errorType)
		if termErr := msg.Term(); termErr != nil {
			enhancedLog.Error("Failed to TERM message", zap.Error(termErr))
		}
	}
}

// Stop drains the subscription and closes the NATS connection.
func (c *Consumer) Stop() {
	log := logger.FromContext(c.ctx)
	log.Info("Stopping JetStream consumer")
	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.nc != nil {
		c.nc.Close()
	}
	log.Info("JetStream consumer stopped")
}
