package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aradilov/boundedring"
)

// DemoResult is what the demo consumer observed.
type DemoResult struct {
	RunID    string
	Consumed []int
	Stats    boundedring.Stats
}

// Demo runs one producer writing 0..cfg.Items-1 and one consumer reading the
// same number of items, each paced by its own limiter. If either side fails
// the other is cancelled.
func Demo(ctx context.Context, ch *boundedring.Channel[int], cfg DemoConfig, logger *slog.Logger) (DemoResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	res := DemoResult{RunID: uuid.NewString()}
	logger = logger.With("run_id", res.RunID)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pctx := boundedring.WithActor(gctx, "producer-1")
		pace := limiter(cfg.ProduceEvery)
		for i := 0; i < cfg.Items; i++ {
			if err := pace.Wait(pctx); err != nil {
				logger.Warn("producer interrupted", "error", err)
				return err
			}
			if err := ch.Produce(pctx, i); err != nil {
				logger.Warn("producer interrupted", "error", err)
				return err
			}
		}
		return nil
	})

	consumed := make([]int, 0, cfg.Items)
	g.Go(func() error {
		cctx := boundedring.WithActor(gctx, "consumer-1")
		pace := limiter(cfg.ConsumeEvery)
		for i := 0; i < cfg.Items; i++ {
			if err := pace.Wait(cctx); err != nil {
				logger.Warn("consumer interrupted", "error", err)
				return err
			}
			v, err := ch.Consume(cctx)
			if err != nil {
				logger.Warn("consumer interrupted", "error", err)
				return err
			}
			logger.Info("consumer took item", "item", v)
			consumed = append(consumed, v)
		}
		return nil
	})

	err := g.Wait()
	res.Consumed = consumed
	res.Stats = ch.Stats()
	return res, err
}

// limiter allows one event per every, the first one immediately.
func limiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}
