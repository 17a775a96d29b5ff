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
package operation

import (
	"sort"
	"sync"
	"time"

	"github.com/walteh/stagerc/pkg/log"
	"github.com/walteh/stagerc/pkg/scope"
	"github.com/walteh/stagerc/pkg/status"
)

// 🔧 Kind is what an Op does to the staging dir
type Kind int

const (
	KindCreate Kind = iota // path is in scope but not staged
	KindUpdate             // path is staged but its signature or name changed
	KindDelete             // path is staged but no longer in scope
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// 🎯 Op is one planned change to the staging dir
type Op struct {
	Kind  Kind
	Path  string           // relative source path
	Entry scope.Entry      // current entry, zero for deletes
	Prev  status.Signature // manifest entry, zero for creates
}

// 📋 Plan compares the manifest with a snapshot and returns the ops needed to
// make the staging dir match it, sorted by path. A path whose size, mtime and
// staging name are unchanged produces no op.
func Plan(prev status.Manifest, snap *scope.Snapshot) []Op {
	var ops []Op

	for _, e := range snap.Entries {
		sig, ok := prev[e.RelPath]
		switch {
		case !ok:
			ops = append(ops, Op{Kind: KindCreate, Path: e.RelPath, Entry: e})
		case sig.StagingName != e.StagingName || !sig.SameStat(e):
			ops = append(ops, Op{Kind: KindUpdate, Path: e.RelPath, Entry: e, Prev: sig})
		}
	}

	for _, p := range prev.Paths() {
		if _, ok := snap.Get(p); !ok {
			ops = append(ops, Op{Kind: KindDelete, Path: p, Prev: prev[p]})
		}
	}

	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
	return ops
}

// ❌ Failure is one op that did not complete
type Failure struct {
	Path string
	Kind Kind
	Err  error
}

// 📊 Report is the outcome of one sync pass
type Report struct {
	mu sync.Mutex

	Selected   int // entries in the snapshot
	Created    int
	Updated    int
	Deleted    int
	Transcoded int // created or updated under a rewritten name
	Unchanged  int // includes touched files whose content hash still matched
	Swept      int // orphans removed from the staging dir
	Failures   []Failure

	Megafile        bool     // megafile was rewritten this pass
	MegafileSkipped []string // paths left out of the megafile
	Duration        time.Duration
}

// Applied is the number of ops that changed the staging dir
func (r *Report) Applied() int {
	return r.Created + r.Updated + r.Deleted
}

// Failed is the number of failed ops
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Summary converts the report for console output
func (r *Report) Summary() log.Summary {
	return log.Summary{
		Selected:   r.Selected,
		Created:    r.Created,
		Updated:    r.Updated,
		Deleted:    r.Deleted,
		Transcoded: r.Transcoded,
		Unchanged:  r.Unchanged,
		Failed:     r.Failed(),
		Duration:   r.Duration,
	}
}

func (r *Report) record(fn func(r *Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *Report) fail(op Op, err error) {
	r.record(func(r *Report) {
		r.Failures = append(r.Failures, Failure{Path: op.Path, Kind: op.Kind, Err: err})
	})
}

func (r *Report) sortFailures() {
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].Path < r.Failures[j].Path })
}
