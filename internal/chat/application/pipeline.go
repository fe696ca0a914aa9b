package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/chat/domain"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"

	// MaxLineSize bounds a single SSE line.
	MaxLineSize = 1 << 20

	stopTimeout = 5 * time.Second
)

// ChatAPI is the remote chat service.
type ChatAPI interface {
	// StartChat submits the conversation and returns the task id.
	StartChat(ctx context.Context, messages []domain.Message) (string, error)
	// OpenStream returns the SSE body for a task.
	OpenStream(ctx context.Context, taskID string) (io.ReadCloser, error)
	StopChat(ctx context.Context, taskID string) error
}

// ScheduleCreator persists schedules requested by the model.
type ScheduleCreator interface {
	Handle(ctx context.Context, cmd commands.CreateScheduleCommand) (*calendarDomain.Schedule, error)
}

// Pipeline turns a chat task's SSE stream into text fragments and runs the
// tool calls it carries.
type Pipeline struct {
	api     ChatAPI
	creator ScheduleCreator
	tools   *ToolArgsParser
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewPipeline creates a pipeline. Tool timestamps are read in loc.
func NewPipeline(api ChatAPI, creator ScheduleCreator, loc *time.Location, logger *slog.Logger, metrics observability.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Pipeline{
		api:     api,
		creator: creator,
		tools:   NewToolArgsParser(loc, time.Now),
		logger:  logger,
		metrics: metrics,
	}
}

// WithClock overrides the clock used for a missing tool start time.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.tools.now = now
	return p
}

// SendMessageStream sends message after history and streams the reply.
// The channel is closed when the reply ends, fails or ctx is cancelled.
// Failures arrive as a final "\n[error] ..." fragment instead of an error.
// Each call starts one goroutine; the channel has a single consumer.
func (p *Pipeline) SendMessageStream(ctx context.Context, message string, history []domain.Message) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		emit := func(fragment string) bool {
			select {
			case out <- fragment:
				return true
			case <-ctx.Done():
				return false
			}
		}
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("chat stream panicked", "panic", r)
				emit(errorFragment(fmt.Errorf("internal error: %v", r)))
			}
		}()

		start := time.Now()
		err := p.run(ctx, message, history, emit)
		status := "ok"
		switch {
		case ctx.Err() != nil:
			status = "cancelled"
		case err != nil:
			status = "error"
			p.logger.Warn("chat stream failed", "error", err)
			emit(errorFragment(err))
		}
		p.metrics.Timing("chat.stream.duration", time.Since(start), observability.T("status", status))
	}()
	return out
}

func errorFragment(err error) string {
	return "\n[error] " + err.Error()
}

func (p *Pipeline) run(ctx context.Context, message string, history []domain.Message, emit func(string) bool) error {
	messages := make([]domain.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, domain.UserMessage(message))

	taskID, err := p.api.StartChat(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to start chat: %w", err)
	}
	logger := p.logger.With("task_id", taskID)

	body, err := p.api.OpenStream(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to open chat stream: %w", err)
	}
	defer body.Close()
	stopClosing := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stopClosing()

	if err := p.consume(ctx, body, emit, logger); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := p.api.StopChat(stopCtx, taskID); err != nil {
		logger.Warn("failed to stop chat task", "error", err)
	}
	return nil
}

var errStreamDone = errors.New("stream done")

// consume reads body line by line until [DONE], EOF or a failed emit.
func (p *Pipeline) consume(ctx context.Context, body io.Reader, emit func(string) bool, logger *slog.Logger) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for scanner.Scan() {
		err := p.handleLine(ctx, scanner.Text(), emit, logger)
		if errors.Is(err, errStreamDone) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read chat stream: %w", err)
	}
	return nil
}

func (p *Pipeline) handleLine(ctx context.Context, line string, emit func(string) bool, logger *slog.Logger) error {
	switch {
	case strings.HasPrefix(line, dataPrefix):
		return p.handleData(ctx, line[len(dataPrefix):], emit, logger)
	case line == "":
		return emitted(emit("\n"))
	default:
		return emitted(emit(line))
	}
}

func (p *Pipeline) handleData(ctx context.Context, payload string, emit func(string) bool, logger *slog.Logger) error {
	if payload == doneMarker {
		return errStreamDone
	}
	resp, err := domain.DecodeStreamResponse([]byte(payload))
	if err != nil {
		if payload == "" {
			return nil
		}
		return emitted(emit(payload))
	}

	if delta := resp.Delta(); delta != "" {
		if err := emitted(emit(delta)); err != nil {
			return err
		}
	}
	if !resp.IsToolRequest() {
		return nil
	}
	for _, call := range resp.ToolCalls() {
		if call.Name != domain.ToolCreateSchedule {
			logger.Debug("ignoring unsupported tool call", "tool", call.Name)
			continue
		}
		if err := emitted(emit(p.createSchedule(ctx, call, logger))); err != nil {
			return err
		}
	}
	return nil
}

// createSchedule runs a create_schedule call and returns the confirmation
// fragment.
func (p *Pipeline) createSchedule(ctx context.Context, call domain.ToolCall, logger *slog.Logger) string {
	cmd, err := p.tools.CreateScheduleCommand(call)
	if err == nil {
		var sched *calendarDomain.Schedule
		sched, err = p.creator.Handle(ctx, cmd)
		if err == nil {
			p.metrics.Counter("chat.tool_calls", 1, observability.T("tool", call.Name), observability.T("status", "ok"))
			logger.Info("created schedule from tool call", "schedule_id", sched.ID(), "title", sched.Title())
			return "\n[schedule created] " + sched.Title()
		}
	}
	p.metrics.Counter("chat.tool_calls", 1, observability.T("tool", call.Name), observability.T("status", "failed"))
	logger.Warn("create_schedule tool call failed", "arguments", call.Keys(), "error", err)
	return "\n[schedule not created] " + err.Error()
}

// emitted maps a failed emit, which only happens on cancellation, to
// context.Canceled so the read loop stops.
func emitted(ok bool) error {
	if ok {
		return nil
	}
	return context.Canceled
}
