package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chatrelay/internal/protocol"

	"github.com/stretchr/testify/require"
)

type mockMember struct {
	id      string
	name    string
	auth    bool
	sendErr error

	mu      sync.Mutex
	frames  [][]byte
	closed  chan struct{}
	closeMu sync.Once
	reason  string
	onClose func(*mockMember)
}

func newMockMember(id, name string) *mockMember {
	return &mockMember{id: id, name: name, auth: true, closed: make(chan struct{})}
}

func (m *mockMember) ID() string          { return m.id }
func (m *mockMember) DisplayName() string { return m.name }
func (m *mockMember) Authenticated() bool { return m.auth }

func (m *mockMember) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, frame)
	return nil
}

func (m *mockMember) Close(reason string) error {
	m.closeMu.Do(func() {
		m.mu.Lock()
		m.reason = reason
		m.mu.Unlock()
		close(m.closed)
		if m.onClose != nil {
			m.onClose(m)
		}
	})
	return nil
}

func (m *mockMember) received() []protocol.RawFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]protocol.RawFrame, 0, len(m.frames))
	for _, data := range m.frames {
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			panic(err)
		}
		out = append(out, f)
	}
	return out
}

func (m *mockMember) framesOfType(typ string) []protocol.RawFrame {
	var out []protocol.RawFrame
	for _, f := range m.received() {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockMember) messages(t *testing.T) []protocol.MessageData {
	t.Helper()
	var out []protocol.MessageData
	for _, f := range m.framesOfType(protocol.TypeMsg) {
		var data protocol.MessageData
		require.NoError(t, json.Unmarshal(f.Data, &data))
		out = append(out, data)
	}
	return out
}

func stringData(t *testing.T, f protocol.RawFrame) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(f.Data, &s))
	return s
}

func membersData(t *testing.T, f protocol.RawFrame) []string {
	t.Helper()
	var s []string
	require.NoError(t, json.Unmarshal(f.Data, &s))
	return s
}

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}
