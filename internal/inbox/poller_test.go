package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingSink struct {
	inbound  []ChatMessage
	refreshn int
}

func (s *recordingSink) HandleInbound(msg ChatMessage) { s.inbound = append(s.inbound, msg) }
func (s *recordingSink) RequestRefresh(string)         { s.refreshn++ }

func TestTickAdvancesCursorOnEmptyDelta(t *testing.T) {
	up := &fakeUpstream{
		pollFn: func(ctx context.Context, since string) (*PollResult, error) {
			return &PollResult{Success: true, Now: "2026-08-31T10:00:00Z"}, nil
		},
	}
	sink := &recordingSink{}
	p := NewPollScheduler(up, sink, time.Second, zap.NewNop())

	p.tick(context.Background())

	assert.Equal(t, "2026-08-31T10:00:00Z", p.cursor)
	assert.Empty(t, sink.inbound)
	assert.Zero(t, sink.refreshn)
}

func TestTickPassesCursorToUpstream(t *testing.T) {
	var got string
	up := &fakeUpstream{
		pollFn: func(ctx context.Context, since string) (*PollResult, error) {
			got = since
			return &PollResult{Success: true, Now: "t2"}, nil
		},
	}
	p := NewPollScheduler(up, &recordingSink{}, time.Second, zap.NewNop())
	p.cursor = "t1"

	p.tick(context.Background())

	assert.Equal(t, "t1", got)
	assert.Equal(t, "t2", p.cursor)
}

func TestTickRoutesDeltaAndTriggersRefresh(t *testing.T) {
	up := &fakeUpstream{
		pollFn: func(ctx context.Context, since string) (*PollResult, error) {
			return &PollResult{
				Success: true,
				Now:     "t1",
				New:     []ChatMessage{{ID: "m1", SessionID: "sess-1"}},
				Updated: []ChatMessage{{ID: "m2", SessionID: "sess-1"}},
			}, nil
		},
	}
	sink := &recordingSink{}
	p := NewPollScheduler(up, sink, time.Second, zap.NewNop())

	p.tick(context.Background())

	assert.Len(t, sink.inbound, 2)
	assert.Equal(t, 1, sink.refreshn)
}

func TestTickKeepsCursorOnFailure(t *testing.T) {
	up := &fakeUpstream{
		pollFn: func(ctx context.Context, since string) (*PollResult, error) {
			return nil, errors.New("network down")
		},
	}
	p := NewPollScheduler(up, &recordingSink{}, time.Second, zap.NewNop())
	p.cursor = "t1"

	p.tick(context.Background())

	assert.Equal(t, "t1", p.cursor)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	up := &fakeUpstream{}
	p := NewPollScheduler(up, &recordingSink{}, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
