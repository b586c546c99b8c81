package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/quizchain/internal/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("url", evt.URL),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageStepDone:
			fields = append(fields,
				zap.Int("step", evt.Step),
				zap.String("outcome", string(evt.Outcome)),
				zap.Int("status_code", evt.StatusCode),
			)
			if evt.Correct != nil {
				fields = append(fields, zap.Bool("correct", *evt.Correct))
			}
		case progress.StageRunDone:
			fields = append(fields, zap.String("reason", evt.Reason), zap.Int("steps", evt.Step))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
