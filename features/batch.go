package features

import (
	"context"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/sonido-frontend/logging"
	"github.com/RyanBlaney/sonido-frontend/tensor"
)

// ForwardBatch runs the pipeline over independent utterances with at most
// workers goroutines (GOMAXPROCS when workers <= 0). Each utterance is a
// waveform tensor accepted by Forward, typically 1×S.
//
// When rc.Rand is set, one child generator per utterance is seeded from it
// before any work starts, so the output does not depend on scheduling.
// The first failure cancels the remaining work.
func (pl *Pipeline) ForwardBatch(ctx context.Context, rc RunContext, utts []*tensor.Tensor, workers int) ([]*tensor.Tensor, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rngs := make([]*rand.Rand, len(utts))
	if rc.Rand != nil {
		for i := range rngs {
			rngs[i] = rand.New(rand.NewPCG(rc.Rand.Uint64(), rc.Rand.Uint64()))
		}
	}

	out := make([]*tensor.Tensor, len(utts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, utt := range utts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			feats, _, err := pl.forward(gctx, RunContext{Training: rc.Training, Rand: rngs[i]}, utt, nil)
			if err != nil {
				pl.logger.WithContext(logging.ContextWithFields(gctx, logging.Fields{"utterance": i})).
					Error(err, "Batch utterance failed")
				return err
			}
			out[i] = feats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
