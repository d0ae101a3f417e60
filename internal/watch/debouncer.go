package watch

import (
	"context"
	"time"

	ferrors "git.home.luguber.info/inful/docmeld/internal/foundation/errors"
)

// DebouncerConfig controls how bursts of change events collapse into builds.
type DebouncerConfig struct {
	// QuietWindow is how long no new request must arrive before a batch fires.
	QuietWindow time.Duration
	// MaxDelay caps how long a steady stream of requests can postpone a batch.
	MaxDelay time.Duration
}

// Batch describes the requests one emit covers.
type Batch struct {
	Count      int
	LastReason string
	First      time.Time
	Last       time.Time
	// Cause is "quiet" or "max_delay".
	Cause string
}

// Debouncer coalesces bursts of rebuild requests into single emits.
// Emits run on the Run goroutine, so a request arriving while an emit is in
// progress produces exactly one follow-up batch.
type Debouncer struct {
	cfg      DebouncerConfig
	requests chan string
}

// NewDebouncer validates cfg.
func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	return &Debouncer{cfg: cfg, requests: make(chan string, 64)}, nil
}

// Request asks for a rebuild. It never blocks; when the buffer is full a
// batch is already pending and the request is folded into it.
func (d *Debouncer) Request(reason string) {
	select {
	case d.requests <- reason:
	default:
	}
}

// Run emits batches until ctx is done.
func (d *Debouncer) Run(ctx context.Context, emit func(context.Context, Batch)) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}

	quietTimer := stoppedTimer()
	maxTimer := stoppedTimer()
	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
		batch  Batch
	)

	fire := func(cause string) {
		quietTimer.Stop()
		maxTimer.Stop()
		quietC, maxC = nil, nil
		b := batch
		b.Cause = cause
		batch = Batch{}
		emit(ctx, b)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-d.requests:
			now := time.Now()
			if batch.Count == 0 {
				batch.First = now
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}
			batch.Count++
			batch.Last = now
			batch.LastReason = reason
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
		case <-quietC:
			fire("quiet")
		case <-maxC:
			fire("max_delay")
		}
	}
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
