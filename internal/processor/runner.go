package processor

import (
	"context"

	"github.com/solomatovs/gauss/internal/logging"
	"github.com/solomatovs/gauss/internal/perr"
	"github.com/solomatovs/gauss/internal/topic"
)

// Runner drives one Processor's subscription loop. Construct it, then call
// Run in its own goroutine; Run returns once the subscription ends (topic
// shutdown) or ctx is cancelled.
type Runner struct {
	Name         string
	SourceTopic  string
	Subscription *topic.Subscription
	Processor    Processor
	Ctx          Context
}

// Run loops: on each received record, invoke Process; on error, log and
// continue — a processor error is never fatal to the engine. Cancelling ctx
// breaks the loop and closes the subscription; the processor is then
// closed.
func (r *Runner) Run(ctx context.Context) {
	log := logging.Component("processor").With().Str("processor", r.Name).Str("trigger", r.SourceTopic).Logger()
	defer func() {
		r.Subscription.Close()
		if err := r.Processor.Close(); err != nil {
			log.Warn().Err(err).Msg("processor close failed")
		}
	}()

	records := r.Subscription.Records()
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			if err := r.Processor.Process(ctx, r.Ctx, r.SourceTopic, rec); err != nil {
				log.Warn().Err(err).Str("error_kind", string(perr.KindOf(err))).Msg("processor error, continuing")
			}
		}
	}
}
