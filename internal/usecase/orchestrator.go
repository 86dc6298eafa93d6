package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/signal_trader/internal/domain"
	"go.uber.org/zap"
)

// Orchestrator is the per-message control loop: extract candidate signals,
// filter by confidence, execute each in order, forward every outcome to the
// notification sink.
type Orchestrator struct {
	extractor   domain.SignalExtractor
	coordinator *ExecutionCoordinator
	notifier    domain.Notifier
	log         *zap.Logger
}

func NewOrchestrator(
	extractor domain.SignalExtractor,
	coordinator *ExecutionCoordinator,
	notifier domain.Notifier,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		coordinator: coordinator,
		notifier:    notifier,
		log:         log,
	}
}

// HandleMessage processes one inbound message end to end. Nothing escaping
// this method may crash the process: failures are logged and forwarded to the
// notification sink with a context label.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg domain.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Failed to handle new message", zap.Any("panic", r))
			if err := o.notifier.SendErrorNotification(ctx, fmt.Sprint(r), "Message Processing"); err != nil {
				o.log.Error("Failed to send error notification", zap.Error(err))
			}
		}
	}()

	o.log.Info("Received message",
		zap.Int64("chat_id", msg.ChatID),
		zap.String("text", msg.Text))

	signals := o.extractor.ExtractSignals(ctx, msg)
	if len(signals) == 0 {
		o.log.Info("Message has no valid trading signal")
		return
	}

	o.log.Info("Found signals in message", zap.Int("count", len(signals)))

	for i, signal := range signals {
		if !signal.Executable() {
			o.log.Info("Signal has low confidence",
				zap.Int("index", i+1),
				zap.Int("total", len(signals)),
				zap.Float64("confidence", signal.Confidence))
			continue
		}

		o.log.Info("Valid signal",
			zap.Int("index", i+1),
			zap.Int("total", len(signals)),
			zap.String("action", string(signal.Action)),
			zap.String("symbol", signal.Symbol))

		// One signal's failure never blocks its siblings.
		o.handleSignal(ctx, domain.ExecutionResult{
			Signal:       signal,
			SourceChatID: msg.ChatID,
			RawMessage:   msg.Text,
		})
	}
}

func (o *Orchestrator) handleSignal(ctx context.Context, result domain.ExecutionResult) {
	signal := result.Signal

	// A panic here must not unwind past this signal; siblings from the same
	// message still execute, and this signal still gets its result.
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Failed to execute signal",
				zap.String("symbol", signal.Symbol),
				zap.Any("panic", r))
			result.IsSuccess = false
			result.Details = "Order execution failed"
			if err := o.notifier.SendSignalResult(ctx, result); err != nil {
				o.log.Error("Failed to send signal result", zap.Error(err))
			}
		}
	}()

	o.log.Info("Executing signal",
		zap.String("action", string(signal.Action)),
		zap.String("symbol", signal.Symbol),
		zap.Float64("price", signal.Price))

	result.IsSuccess = o.coordinator.ExecuteSignal(ctx, signal)
	if result.IsSuccess {
		o.log.Info("Successfully executed signal",
			zap.String("action", string(signal.Action)),
			zap.String("symbol", signal.Symbol))
	} else {
		result.Details = "Order execution failed"
		o.log.Info("Signal execution failed",
			zap.String("action", string(signal.Action)),
			zap.String("symbol", signal.Symbol))
	}

	if err := o.notifier.SendSignalResult(ctx, result); err != nil {
		o.log.Error("Failed to send signal result", zap.Error(err))
	}
}
