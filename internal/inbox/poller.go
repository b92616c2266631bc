package inbox

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 15 * time.Second

// PollSink is where a poll tick delivers its findings. Both methods must
// be safe to call from the poller goroutine; the service implementation
// forwards them onto the dispatch goroutine.
type PollSink interface {
	HandleInbound(msg ChatMessage)
	RequestRefresh(reason string)
}

// PollScheduler asks the upstream "what changed since cursor" on a fixed
// interval. The delta is a change signal, not the payload applied to the
// list: each message goes through the reconciler for low-latency transcript
// updates, and any non-empty delta additionally triggers a full list
// refresh so conversation metadata always comes from the list endpoint.
type PollScheduler struct {
	upstream Upstream
	sink     PollSink
	interval time.Duration
	cursor   string
	log      *zap.Logger
}

func NewPollScheduler(upstream Upstream, sink PollSink, interval time.Duration, log *zap.Logger) *PollScheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollScheduler{
		upstream: upstream,
		sink:     sink,
		interval: interval,
		log:      log,
	}
}

// Run ticks until ctx is cancelled. Failures are logged and swallowed; the
// next tick retries unconditionally, with no backoff. A transient poll
// failure is expected and invisible to the user.
func (p *PollScheduler) Run(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

func (p *PollScheduler) tick(ctx context.Context) {
	res, err := p.upstream.Poll(ctx, p.cursor)
	if err != nil {
		p.log.Warn("poll failed", zap.Error(err))
		return
	}

	// The cursor advances to the server-reported now even on an empty
	// delta, otherwise clock skew lets it drift.
	p.cursor = res.Now

	if len(res.New) == 0 && len(res.Updated) == 0 {
		return
	}

	for _, m := range res.New {
		p.sink.HandleInbound(m)
	}
	for _, m := range res.Updated {
		p.sink.HandleInbound(m)
	}
	p.sink.RequestRefresh("poll delta")
}
