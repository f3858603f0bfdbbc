package integrity

import (
	"context"
	"fmt"
)

// RemoteStatus is what the webcam monitor reports on each poll.
type RemoteStatus struct {
	Warn      bool `json:"warn"`
	Terminate bool `json:"terminate"`
}

type StatusFunc func(ctx context.Context) (RemoteStatus, error)

// ApplyRemoteStatus feeds one monitor answer: terminate ends the session, warn counts a violation.
func (t *Tracker) ApplyRemoteStatus(rs RemoteStatus) {
	if rs.Terminate {
		t.mu.Lock()
		if t.released || t.terminated {
			t.mu.Unlock()
			return
		}
		t.terminate(ReasonMonitor)
		o := outcome{kind: KindMonitor, terminated: true, state: t.snapshot()}
		t.mu.Unlock()

		t.notify(o)
		return
	}
	if rs.Warn {
		t.RecordViolation(KindMonitor)
	}
}

// poll asks the monitor for its status on every tick. A failed poll is logged and
// ignored until the next tick; there is no retry.
func (t *Tracker) poll(ticker Ticker) {
	defer t.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C():
			rs, err := t.opts.Status(t.ctx)
			if err != nil {
				if t.ctx.Err() == nil {
					t.opts.Logger.Warn(fmt.Sprintf("monitor status poll: %v", err), err)
				}
				continue
			}
			t.ApplyRemoteStatus(rs)
		}
	}
}
