package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/scene-tracker/internal/generation"
	"github.com/jwebster45206/scene-tracker/internal/logger"
	queuePkg "github.com/jwebster45206/scene-tracker/pkg/queue"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

// TrackerProcessor turns queued requests into generation cycles.
type TrackerProcessor struct {
	generator *generation.Generator
	logger    *slog.Logger
}

// NewTrackerProcessor creates a new tracker processor
func NewTrackerProcessor(generator *generation.Generator, logger *slog.Logger) *TrackerProcessor {
	return &TrackerProcessor{
		generator: generator,
		logger:    logger,
	}
}

// Process runs one request. Skipped automatic requests and superseded
// cycles are not errors.
func (p *TrackerProcessor) Process(ctx context.Context, req *queuePkg.Request) error {
	log := logger.WithChat(logger.WithRequestID(p.logger, req.RequestID), req.ChatID.String(), req.MessageIndex)

	switch req.Type {
	case queuePkg.RequestTypeGenerate:
		include, err := tracker.ParseInclude(req.Include)
		if err != nil {
			return err
		}
		_, err = p.generator.Generate(ctx, generation.Request{
			RequestID: req.RequestID,
			ChatID:    req.ChatID,
			Target:    req.MessageIndex,
			Anchor:    req.Anchor,
			Include:   include,
		})
		if errors.Is(err, generation.ErrSuperseded) {
			return nil
		}
		return err

	case queuePkg.RequestTypeAuto:
		_, err := p.generator.Auto(ctx, req.ChatID, req.MessageIndex, req.RequestID)
		switch {
		case errors.Is(err, generation.ErrSkipped):
			log.Debug("Automatic tracker skipped")
			return nil
		case errors.Is(err, generation.ErrSuperseded):
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown request type: %s", req.Type)
}
