// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

// 🧪 mockSource hands out a channel the test writes events into
type mockSource struct {
	mock.Mock
	events chan Event
}

func newMockSource(subscribeErr error) *mockSource {
	m := &mockSource{events: make(chan Event, 16)}
	m.On("Subscribe", mock.Anything).Return(subscribeErr)
	m.On("Close").Return(nil).Maybe()
	return m
}

func (m *mockSource) Subscribe(ctx context.Context, root string) (<-chan Event, error) {
	if err := m.Called(root).Error(0); err != nil {
		return nil, err
	}
	return m.events, nil
}

func (m *mockSource) Close() error {
	return m.Called().Error(0)
}

// 🧪 rescanSource is a mockSource whose filter admits new directories
type rescanSource struct {
	*mockSource
}

func (r *rescanSource) Rescan(ctx context.Context) ([]string, error) {
	args := r.Called()
	added, _ := args.Get(0).([]string)
	return added, args.Error(1)
}

// 🧪 recorder is a SyncFunc that counts passes and can hold the first one open
type recorder struct {
	mu      sync.Mutex
	reasons []string
	hold    chan struct{}
}

func (r *recorder) sync(ctx context.Context, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	hold := r.hold
	r.hold = nil
	r.mu.Unlock()

	if hold != nil {
		<-hold
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func runWatcher(t *testing.T, opts Options) (*Watcher, context.CancelFunc, func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(testContext(t))
	w := New(opts)

	var runErr error
	finished := make(chan struct{})
	go func() {
		runErr = w.Run(ctx)
		close(finished)
	}()
	t.Cleanup(func() {
		cancel()
		<-finished
	})

	wait := func() error {
		select {
		case <-finished:
			return runErr
		case <-time.After(waitFor):
			t.Fatal("watcher did not stop")
			return nil
		}
	}
	return w, cancel, wait
}

const (
	debounce = 40 * time.Millisecond
	settle   = 4 * debounce
	waitFor  = 2 * time.Second
	tick     = 5 * time.Millisecond
)

func TestWatcherDebouncesBursts(t *testing.T) {
	src := newMockSource(nil)
	rec := &recorder{}
	runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync})

	for i := 0; i < 5; i++ {
		src.events <- Event{Path: "a.txt", Op: OpWrite}
	}

	assert.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 1, rec.count(), "a burst inside the quiet window is one pass")
}

func TestWatcherSyncOnStart(t *testing.T) {
	src := newMockSource(nil)
	rec := &recorder{}
	runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync, SyncOnStart: true})

	assert.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 1, rec.count(), "startup is one pass without any event")
	rec.mu.Lock()
	assert.Equal(t, []string{"startup"}, rec.reasons)
	rec.mu.Unlock()
	src.AssertCalled(t, "Subscribe", "/p")
}

func TestWatcherSyncOnStartCoalescesEarlyEvents(t *testing.T) {
	src := newMockSource(nil)
	release := make(chan struct{})
	rec := &recorder{hold: release}
	w, _, _ := runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync, SyncOnStart: true})

	require.Eventually(t, func() bool { return w.State() == StateSyncing }, waitFor, tick)
	src.events <- Event{Path: "a.txt", Op: OpWrite}
	src.events <- Event{Path: "b.txt", Op: OpWrite}
	close(release)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 2, rec.count(), "events during the startup pass queue one rerun")
}

func TestWatcherCoalescesDuringSync(t *testing.T) {
	src := newMockSource(nil)
	release := make(chan struct{})
	rec := &recorder{hold: release}
	w, _, _ := runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync})

	src.events <- Event{Path: "a.txt", Op: OpWrite}
	require.Eventually(t, func() bool { return w.State() == StateSyncing }, waitFor, tick)

	for i := 0; i < 3; i++ {
		src.events <- Event{Path: "b.txt", Op: OpWrite}
	}
	time.Sleep(settle)
	assert.Equal(t, 1, rec.count(), "no second pass while one is running")

	close(release)

	assert.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 2, rec.count(), "at most one follow-up pass")
	assert.Equal(t, StateIdle, w.State())
}

func TestWatcherTrigger(t *testing.T) {
	src := newMockSource(nil)
	rec := &recorder{}
	w, _, _ := runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync})

	w.Trigger()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	assert.Equal(t, "manual", rec.reasons[0])
}

func TestWatcherFallsBackOnSetupError(t *testing.T) {
	native := newMockSource(&SetupError{Path: "/p", Err: errors.New("too many open files")})
	poll := newMockSource(nil)
	rec := &recorder{}
	runWatcher(t, Options{
		Root:     "/p",
		Source:   native,
		Fallback: func() Source { return poll },
		Debounce: debounce,
		Sync:     rec.sync,
	})

	poll.events <- Event{Path: "a.txt", Op: OpCreate}

	assert.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick)
	poll.AssertCalled(t, "Subscribe", "/p")
}

func TestWatcherFallsBackOnRuntimeError(t *testing.T) {
	native := newMockSource(nil)
	poll := newMockSource(nil)
	rec := &recorder{}
	runWatcher(t, Options{
		Root:     "/p",
		Source:   native,
		Fallback: func() Source { return poll },
		Debounce: debounce,
		Sync:     rec.sync,
	})

	native.events <- Event{Err: errors.New("event queue overflow")}

	assert.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, tick, "switching sources triggers a pass")

	poll.events <- Event{Path: "b.txt", Op: OpWrite}
	assert.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, tick)
	native.AssertCalled(t, "Close")
}

func TestWatcherReturnsOtherSubscribeErrors(t *testing.T) {
	boom := errors.New("boom")
	src := newMockSource(boom)

	err := New(Options{Root: "/p", Source: src, Fallback: func() Source { return newMockSource(nil) }, Debounce: debounce, Sync: (&recorder{}).sync}).
		Run(testContext(t))

	assert.ErrorIs(t, err, boom)
}

func TestWatcherStopsOnCancel(t *testing.T) {
	src := newMockSource(nil)
	_, cancel, wait := runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: (&recorder{}).sync})

	cancel()

	assert.ErrorIs(t, wait(), context.Canceled)
}

func TestWatcherRescansAfterPass(t *testing.T) {
	src := &rescanSource{mockSource: newMockSource(nil)}
	src.On("Rescan").Return([]string{"build"}, nil).Once()
	src.On("Rescan").Return(nil, nil)
	rec := &recorder{}
	runWatcher(t, Options{Root: "/p", Source: src, Debounce: debounce, Sync: rec.sync})

	src.events <- Event{Path: ".ignore", Op: OpWrite}

	assert.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 2, rec.count(), "a newly watched directory gets one follow-up pass")
	rec.mu.Lock()
	assert.Equal(t, "watching build", rec.reasons[1])
	rec.mu.Unlock()
}
