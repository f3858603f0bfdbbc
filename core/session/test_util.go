package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/evaledge/core"
	"github.com/trezcool/evaledge/core/integrity"
)

// MonitorMock answers the status polls from a script; once it is exhausted every poll is a quiet status.
type MonitorMock struct {
	Down     bool
	ResetErr error

	mu       sync.Mutex
	script   []integrity.RemoteStatus
	Resets   int
	Polls    int
	Sessions []string // session id of every status/reset call
}

var _ Monitor = (*MonitorMock)(nil)

// Queue appends statuses to be returned by the next polls.
func (m *MonitorMock) Queue(rs ...integrity.RemoteStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, rs...)
}

func (m *MonitorMock) Status(ctx context.Context) (integrity.RemoteStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Down {
		return integrity.RemoteStatus{}, errors.New("connection refused")
	}
	m.Polls++
	m.Sessions = append(m.Sessions, core.SessionIDFrom(ctx))
	if len(m.script) == 0 {
		return integrity.RemoteStatus{}, nil
	}
	rs := m.script[0]
	m.script = m.script[1:]
	return rs, nil
}

func (m *MonitorMock) Ready(context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.Down
}

func (m *MonitorMock) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetErr != nil {
		return m.ResetErr
	}
	m.Resets++
	m.Sessions = append(m.Sessions, core.SessionIDFrom(ctx))
	return nil
}

func (m *MonitorMock) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Sessions...)
}

func (m *MonitorMock) Counts() (resets, polls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Resets, m.Polls
}

// VerifierMock matches the images listed in People.
type VerifierMock struct {
	People map[string]VerifyResult // {image: result}
	Err    error
}

var _ Verifier = (*VerifierMock)(nil)

func (v *VerifierMock) Verify(_ context.Context, image string) (VerifyResult, error) {
	if v.Err != nil {
		return VerifyResult{}, v.Err
	}
	if res, ok := v.People[image]; ok {
		return res, nil
	}
	return VerifyResult{OK: false, Msg: "No match", Closest: "Unknown"}, nil
}
