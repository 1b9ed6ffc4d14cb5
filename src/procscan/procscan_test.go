package procscan

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	mu      sync.Mutex
	records []Record
	alive   map[int32]int // remaining Exists calls that report true
	err     error
}

func (f *fakeTable) Snapshot(ctx context.Context) ([]Record, error) {
	return f.records, f.err
}

func (f *fakeTable) Terminate(ctx context.Context, pid int32) error { return nil }

func (f *fakeTable) Exists(ctx context.Context, pid int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alive[pid] > 0 {
		f.alive[pid]--
		return true, nil
	}
	return false, nil
}

func TestTagMatcher(t *testing.T) {
	m := TagMatcher{Tag: "gemini-assistant"}
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{"equals form", []string{"/opt/gemini-assistant", "--instance-tag=gemini-assistant"}, true},
		{"separate value", []string{"app", "--instance-tag", "gemini-assistant"}, true},
		{"other tag", []string{"app", "--instance-tag=other"}, false},
		{"no flag", []string{"/opt/gemini-assistant"}, false},
		{"executable only", []string{"--instance-tag=gemini-assistant"}, false},
		{"dangling flag", []string{"app", "--instance-tag"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.args))
		})
	}
	assert.False(t, TagMatcher{}.Match([]string{"app", "--instance-tag="}))
}

func TestTagArgsRoundTrip(t *testing.T) {
	args := append([]string{"/usr/bin/gemini-assistant"}, TagArgs("x")...)
	assert.True(t, TagMatcher{Tag: "x"}.Match(args))
}

func TestSubstringMatcher(t *testing.T) {
	m := SubstringMatcher{Identifier: "gemini_desktop_app.py"}
	assert.True(t, m.Match([]string{"python.exe", `C:\Chatbot\gemini_desktop_app.py`}))
	assert.False(t, m.Match([]string{"python.exe", `C:\Chatbot\GEMINI_DESKTOP_APP.PY`}), "matching is case-sensitive")
	assert.False(t, m.Match([]string{"python.exe", "other.py"}))
	assert.False(t, SubstringMatcher{}.Match([]string{"anything"}))
}

func TestScanSkipsSelfAndNonMatches(t *testing.T) {
	table := &fakeTable{records: []Record{
		{PID: 10, Args: []string{"app", "--instance-tag=t"}},
		{PID: 11, Args: []string{"bash"}},
		{PID: 12, Args: []string{"app", "--instance-tag=t"}},
		{PID: 99, Args: []string{"app", "--instance-tag=t"}},
	}}
	got, err := Scan(context.Background(), table, TagMatcher{Tag: "t"}, 99)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int32(10), got[0].PID)
	assert.Equal(t, int32(12), got[1].PID)
}

func TestScanPropagatesSnapshotError(t *testing.T) {
	table := &fakeTable{err: errors.New("boom")}
	_, err := Scan(context.Background(), table, TagMatcher{Tag: "t"}, 0)
	assert.Error(t, err)
}

func TestWaitGone(t *testing.T) {
	table := &fakeTable{alive: map[int32]int{1: 2, 2: 0}}
	remaining, err := WaitGone(context.Background(), table, []int32{1, 2}, time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestWaitGoneTimeout(t *testing.T) {
	table := &fakeTable{alive: map[int32]int{7: 1 << 30}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	remaining, err := WaitGone(ctx, table, []int32{7}, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrStillRunning)
	assert.Equal(t, []int32{7}, remaining)
}

func TestOSTableSeesCurrentProcess(t *testing.T) {
	table := NewTable()
	ctx := context.Background()

	ok, err := table.Exists(ctx, int32(os.Getpid()))
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := table.Snapshot(ctx)
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}
	found := false
	for _, r := range records {
		if r.PID == int32(os.Getpid()) {
			found = true
			break
		}
	}
	assert.True(t, found, "snapshot should include the test process")
}
