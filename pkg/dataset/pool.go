package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"
)

// Source produces examples by number.
type Source interface {
	Len() int
	Example(ctx context.Context, i int, rng *rand.Rand) (*Tuple, error)
}

// ProduceOptions configures Produce.
type ProduceOptions struct {
	// Workers is the number of concurrent goroutines. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int

	// Seed is combined with each example number to seed that example's
	// random stream.
	Seed uint64

	// Timeout bounds the synthesis of one example. Zero means no limit.
	Timeout time.Duration

	Logger *slog.Logger
}

// Produce synthesizes the examples listed in indices on a worker pool and
// calls fn with each result. Calls to fn are serialized but arrive in
// completion order. The first error cancels the remaining work and is
// returned.
func Produce(ctx context.Context, src Source, indices []int, opts ProduceOptions, fn func(i int, t *Tuple) error) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(indices))
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				start := time.Now()
				t, err := produceOne(ctx, src, i, opts)
				if err != nil {
					fail(fmt.Errorf("dataset: example %d: %w", i, err))
					continue
				}
				logger.Debug("example produced", "index", i, "elapsed", time.Since(start))

				mu.Lock()
				if firstErr == nil {
					if err := fn(i, t); err != nil {
						firstErr = err
						cancel()
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, i := range indices {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func produceOne(ctx context.Context, src Source, i int, opts ProduceOptions) (*Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	rng := rand.New(rand.NewPCG(opts.Seed, uint64(i)))
	t, err := src.Example(ctx, i, rng)
	if err != nil {
		return nil, err
	}
	// Synthesis does not poll ctx; report an overrun after the fact.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
