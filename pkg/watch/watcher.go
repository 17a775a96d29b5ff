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
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🚦 State is where the watcher is in its sync cycle
type State int

const (
	StateIdle    State = iota // nothing to do
	StatePending              // changes seen, waiting for the quiet window
	StateSyncing              // a sync pass is running
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// SyncFunc runs one sync pass. reason says what triggered it.
type SyncFunc func(ctx context.Context, reason string) error

// 🔧 Options configures a Watcher
type Options struct {
	Root     string
	Source   Source
	Fallback func() Source // used when Source fails, optional
	Debounce time.Duration
	Sync     SyncFunc

	// SyncOnStart runs a pass as soon as the source is subscribed, so changes
	// made before watching began are not lost.
	SyncOnStart bool
}

// 👀 Watcher turns change events into debounced, single-flight sync passes.
//
//	Idle ──event──▶ Pending ──quiet window──▶ Syncing ──done──▶ Idle
//	                  ▲ event resets timer       │ event sets rerun
//	                  └──────────── rerun ───────┘
type Watcher struct {
	opts    Options
	trigger chan struct{}

	mu     sync.Mutex
	state  State
	rerun  bool
	passes int
}

// 🏭 New creates a watcher
func New(opts Options) *Watcher {
	return &Watcher{
		opts:    opts,
		trigger: make(chan struct{}, 1),
	}
}

// 🔄 Trigger asks for a sync pass as if a change had been seen
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// State is the current state
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Passes is how many sync passes have started
func (w *Watcher) Passes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.passes
}

func (w *Watcher) subscribe(ctx context.Context) (Source, <-chan Event, error) {
	logger := zerolog.Ctx(ctx)

	events, err := w.opts.Source.Subscribe(ctx, w.opts.Root)
	if err == nil {
		return w.opts.Source, events, nil
	}
	if w.opts.Fallback == nil || !errors.Is(err, ErrWatchSetup) {
		return nil, nil, err
	}

	logger.Warn().Err(err).Msg("native watching unavailable, falling back to polling")
	fallback := w.opts.Fallback()
	events, err = fallback.Subscribe(ctx, w.opts.Root)
	if err != nil {
		return nil, nil, errors.Errorf("starting fallback watcher: %w", err)
	}
	return fallback, events, nil
}

// ▶️ Run watches until ctx is done. A running sync pass is allowed to finish first.
func (w *Watcher) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	src, events, err := w.subscribe(ctx)
	if err != nil {
		return err
	}
	usingFallback := src != w.opts.Source
	defer func() { src.Close() }()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	var timerC <-chan time.Time

	syncDone := make(chan error, 1)
	reason := ""

	// poke moves Idle and Pending to Pending with a fresh quiet window, and marks a rerun while Syncing
	poke := func(why string) {
		w.mu.Lock()
		defer w.mu.Unlock()
		reason = why
		if w.state == StateSyncing {
			w.rerun = true
			return
		}
		w.state = StatePending
		timer.Stop()
		select {
		case <-timer.C:
		default:
		}
		timer.Reset(w.opts.Debounce)
		timerC = timer.C
	}

	start := func() {
		w.mu.Lock()
		w.state = StateSyncing
		w.passes++
		why := reason
		w.mu.Unlock()

		go func() {
			syncDone <- w.opts.Sync(ctx, why)
		}()
	}

	if w.opts.SyncOnStart {
		reason = "startup"
		start()
	}

	for {
		select {
		case <-ctx.Done():
			if w.State() == StateSyncing {
				<-syncDone
			}
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				events = nil
				if ctx.Err() == nil {
					logger.Warn().Msg("watch source closed")
				}
				continue
			}
			if ev.Err != nil {
				if usingFallback || w.opts.Fallback == nil {
					logger.Warn().Err(ev.Err).Msg("watch source error")
					continue
				}
				logger.Warn().Err(ev.Err).Msg("native watcher failed, falling back to polling")
				src.Close()
				src = w.opts.Fallback()
				usingFallback = true
				if events, err = src.Subscribe(ctx, w.opts.Root); err != nil {
					return errors.Errorf("starting fallback watcher: %w", err)
				}
				poke("watcher fallback")
				continue
			}
			logger.Trace().Str("path", ev.Path).Stringer("op", ev.Op).Msg("change seen")
			poke(ev.Op.String() + " " + ev.Path)

		case <-w.trigger:
			poke("manual")

		case <-timerC:
			timerC = nil
			start()

		case err := <-syncDone:
			if err != nil {
				logger.Error().Err(err).Msg("sync pass failed")
			}
			w.mu.Lock()
			w.state = StateIdle
			rerun := w.rerun
			w.rerun = false
			w.mu.Unlock()
			if rerun {
				poke(reason)
			}
			// a pass may have reloaded the rules; watch what they now admit
			if r, ok := src.(Rescanner); ok {
				added, err := r.Rescan(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("rescanning watched directories")
				}
				if len(added) > 0 {
					logger.Debug().Strs("dirs", added).Msg("watching newly admitted directories")
					poke("watching " + added[0])
				}
			}
		}
	}
}
