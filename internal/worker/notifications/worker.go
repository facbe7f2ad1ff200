// Package notifications consumes problem notification events from the
// queue and runs them through the assistant as system-triggered turns.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/argus-ai/argus/internal/assistant"
	"github.com/argus-ai/argus/internal/intents/problemdetails"
	"github.com/argus-ai/argus/internal/nlu"
	"github.com/argus-ai/argus/internal/webchat"
	"github.com/argus-ai/argus/pkg/logging"
)

// Source identifies notification turns in exchange records.
const Source = "notification"

// Notification is the event payload the monitoring platform publishes
// when a problem opens.
type Notification struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	ProblemID string `json:"problemId"`
}

// Interactor runs one pre-analysed assistant turn.
type Interactor interface {
	InteractAnalysed(ctx context.Context, user assistant.User, text, source string, analysed nlu.Analysed) (*assistant.Exchange, error)
}

// Pusher delivers a proactive message to a connected session.
type Pusher interface {
	SendToSession(userID string, msg webchat.OutboundMessage)
}

// Config tunes the worker pool.
type Config struct {
	Workers          int
	ReceiveBatchSize int
	ReceiveWaitSecs  int
}

// Worker polls the notification queue and turns events into assistant
// turns.
type Worker struct {
	queue   Queue
	service Interactor
	pusher  Pusher
	cfg     Config
	logger  *logging.Logger
	wg      sync.WaitGroup
}

// New builds the notification worker.
func New(queue Queue, service Interactor, pusher Pusher, cfg Config, logger *logging.Logger) *Worker {
	if queue == nil {
		panic("notifications: queue cannot be nil")
	}
	if service == nil {
		panic("notifications: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ReceiveBatchSize < 1 {
		cfg.ReceiveBatchSize = 5
	}
	if cfg.ReceiveWaitSecs < 1 {
		cfg.ReceiveWaitSecs = 10
	}
	return &Worker{queue: queue, service: service, pusher: pusher, cfg: cfg, logger: logger.Component("notifications")}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("notification worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("notification worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.ReceiveBatchSize, w.cfg.ReceiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive notifications", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var event Notification
	if err := json.Unmarshal([]byte(msg.Body), &event); err != nil {
		// Malformed events can never succeed; drop them.
		w.logger.Error("failed to decode notification", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	if strings.TrimSpace(event.UserID) == "" {
		w.logger.Error("notification carries no user ID", "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	ex, err := w.process(ctx, event)
	if err != nil {
		var timeout *assistant.TimeoutError
		if errors.As(err, &timeout) {
			// Leave the message on the queue; redelivery retries the turn.
			w.logger.Warn("notification turn timed out, leaving for redelivery",
				"error", err, "user_id", event.UserID, "problem_id", event.ProblemID)
			return
		}
		w.logger.Error("notification turn failed", "error", err, "user_id", event.UserID, "problem_id", event.ProblemID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if w.pusher != nil && ex != nil {
		w.pusher.SendToSession(event.UserID, webchat.OutboundMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      ex.VisualText(),
			Say:       ex.AudibleResponse(),
			Show:      ex.VisualResponse(),
			Finished:  ex.ShouldConversationEnd(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

// process runs the notification as a pre-analysed turn. A persistence
// failure still yields the in-memory response for delivery.
func (w *Worker) process(ctx context.Context, event Notification) (*assistant.Exchange, error) {
	user := assistant.User{
		ID:       event.UserID,
		Email:    event.Email,
		Name:     assistant.Name{First: event.FirstName, Last: event.LastName},
		Timezone: event.Timezone,
	}
	analysed := nlu.Analysed{
		"intent":       problemdetails.IntentName,
		"notification": true,
	}
	if event.ProblemID != "" {
		analysed["problemId"] = event.ProblemID
	}

	text := "problem notification"
	if event.ProblemID != "" {
		text = "problem notification " + event.ProblemID
	}

	ex, err := w.service.InteractAnalysed(ctx, user, text, Source, analysed)
	if err != nil && ex == nil {
		return nil, err
	}
	return ex, nil
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete notification", "error", err)
	}
}
