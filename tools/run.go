package tools

import (
	"context"
	"errors"
	"os/exec"
	"sync"

	"github.com/carbocation/colotools/gate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent invocations of an adapter that sets
// neither Workers nor Throttle.
const DefaultWorkers = 4

// Locate fails with a NotFound ToolError when binary is not on $PATH.
func Locate(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return &ToolError{Tool: binary, Kind: NotFound, Err: err}
	}

	return nil
}

// RunPairs materializes, runs and parses every pair with adapter a. A pair
// that fails is logged and contributes no result. A missing binary stops the
// whole batch and is returned.
func RunPairs(ctx context.Context, log *logrus.Entry, root string, a Adapter, src Sources, pairs []gate.Pair) ([]Result, error) {
	log = log.WithField("tool", a.Name)

	if len(pairs) == 0 {
		return []Result{}, nil
	}
	if err := Locate(a.Binary); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make([]Result, 0, len(pairs))

	runOne := func(ctx context.Context, pair gate.Pair) error {
		res, err := runPair(ctx, log, root, a, src, pair)
		plog := log.WithField("lead", pair.Cluster.Lead).WithField("phenotype", pair.Signal.Phenotype)
		if IsNotFound(err) {
			return err
		} else if errors.Is(err, ErrNoSharedVariants) || errors.Is(err, ErrTooFewSharedVariants) {
			plog.WithError(err).Infoln("Pair skipped")
			return nil
		} else if err != nil {
			plog.WithError(err).Warnln("Pair produced no result")
			return nil
		}

		mu.Lock()
		results = append(results, res)
		mu.Unlock()

		return nil
	}

	var err error
	if a.Throttle > 0 {
		err = throttled(ctx, int64(a.Throttle), pairs, runOne)
	} else {
		err = pooled(ctx, a.Workers, pairs, runOne)
	}
	if err != nil {
		return nil, err
	}

	SortResults(results)
	log.Infof("%d of %d pairs produced a result", len(results), len(pairs))

	return results, nil
}

// pooled runs at most workers pairs at once and stops at the first error.
func pooled(ctx context.Context, workers int, pairs []gate.Pair, fn func(context.Context, gate.Pair) error) error {
	if workers < 1 {
		workers = DefaultWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			return fn(ctx, pair)
		})
	}

	return g.Wait()
}

// throttled admits at most limit concurrent pairs through a weighted
// semaphore, queueing the rest in order.
func throttled(ctx context.Context, limit int64, pairs []gate.Pair, fn func(context.Context, gate.Pair) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(limit)

	var once sync.Once
	var firstErr error
	var wg sync.WaitGroup

	for _, pair := range pairs {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(pair gate.Pair) {
			defer wg.Done()
			defer sem.Release(1)

			if err := fn(ctx, pair); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(pair)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	return ctx.Err()
}

func runPair(ctx context.Context, log *logrus.Entry, root string, a Adapter, src Sources, pair gate.Pair) (Result, error) {
	job, err := Materialize(ctx, log, root, a, src, pair)
	if err != nil {
		return Result{}, err
	}

	args, err := a.RenderArgs(job.Tags)
	if err != nil {
		return Result{}, err
	}

	output := job.Output(a)
	runner := Runner{Log: log}
	if err := runner.Invoke(ctx, a.Binary, args, output); err != nil {
		return Result{}, err
	}

	score, err := ParseReport(output, a.ScoreColumn, a.LowerIsBetter)
	if err != nil {
		return Result{}, &ToolError{Tool: a.Name, Kind: EmptyOutput, Output: output, Err: err}
	}

	return Result{
		Tool:       a.Name,
		Chrom:      pair.Cluster.Chrom,
		Lead:       pair.Cluster.Lead,
		Phenotype:  pair.Signal.Phenotype,
		Gene:       pair.Signal.Gene,
		NSNPs:      job.NSNPs,
		Score:      score.Value,
		ScoreName:  a.ScoreColumn,
		OutputFile: output,
	}, nil
}
