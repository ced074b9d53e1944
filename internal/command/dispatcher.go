// Package command maps inbound chat messages to gateway replies.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wabot/internal/domain"
	"wabot/internal/metrics"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Commands []Command
	Gateway  domain.Gateway
	Journal  domain.Journal // optional
	Logger   *slog.Logger
}

// Dispatcher evaluates commands in order against each message and issues
// the first match's request. Gateway failures are logged and dropped.
type Dispatcher struct {
	commands []Command
	gateway  domain.Gateway
	journal  domain.Journal
	logger   *slog.Logger
}

// BatchResult summarizes one HandleBatch call.
type BatchResult struct {
	Seen       int
	Skipped    int
	Dispatched int
	Failed     int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		commands: cfg.Commands,
		gateway:  cfg.Gateway,
		journal:  cfg.Journal,
		logger:   logger,
	}
}

// Match returns the first command whose predicate accepts body.
func (d *Dispatcher) Match(body string) (Command, bool) {
	for _, c := range d.commands {
		if c.Match(body) {
			return c, true
		}
	}
	return Command{}, false
}

// HandleBatch processes msgs sequentially, awaiting each gateway call
// before moving on. Messages sent by the bot itself are skipped.
func (d *Dispatcher) HandleBatch(ctx context.Context, requestID string, msgs []domain.InboundMessage) BatchResult {
	var res BatchResult
	for _, msg := range msgs {
		res.Seen++
		metrics.MessagesTotal.Inc()
		if msg.FromMe {
			res.Skipped++
			metrics.MessagesSkipped.Inc()
			continue
		}

		dispatched, err := d.Dispatch(ctx, requestID, msg)
		if !dispatched {
			continue
		}
		res.Dispatched++
		if err != nil {
			res.Failed++
		}
	}
	return res
}

// Dispatch handles a single message. It reports whether a command matched
// and the gateway error, if any. A panic inside a command is recovered and
// returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, requestID string, msg domain.InboundMessage) (dispatched bool, err error) {
	cmd, ok := d.Match(msg.Body)
	if !ok {
		d.logger.Debug("no command matched", "request_id", requestID, "chat", msg.ChatID)
		return false, nil
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.Inc()
			d.logger.Error("command panicked", "request_id", requestID, "command", cmd.Name, "panic", r)
			dispatched, err = true, fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()

	req := cmd.Build(msg)
	metrics.Default.CommandCounter(cmd.Name).Inc()

	start := time.Now()
	_, err = d.gateway.Call(ctx, req.Method, req.Params)
	elapsed := time.Since(start)
	metrics.APILatency.Observe(elapsed.Seconds())

	entry := domain.JournalEntry{
		RequestID: requestID,
		ChatID:    msg.ChatID,
		Author:    msg.Author,
		Command:   cmd.Name,
		Method:    req.Method,
		Status:    domain.StatusOK,
		Duration:  elapsed,
	}
	if err != nil {
		metrics.APIErrors.Inc()
		entry.Status = domain.StatusFailed
		entry.Error = err.Error()
		d.logger.Warn("gateway call failed",
			"request_id", requestID, "command", cmd.Name, "method", req.Method, "chat", msg.ChatID, "err", err)
	} else {
		d.logger.Info("command dispatched",
			"request_id", requestID, "command", cmd.Name, "method", req.Method, "chat", msg.ChatID,
			"duration", elapsed.Round(time.Millisecond))
	}

	if d.journal != nil {
		if jerr := d.journal.Record(ctx, entry); jerr != nil {
			d.logger.Warn("journal write failed", "request_id", requestID, "err", jerr)
		}
	}

	return true, err
}
