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
	"context"
	"time"

	"gitlab.com/tozd/go/errors"
)

// 🏃 OperationRunner executes one file operation under a deadline
type OperationRunner struct {
	timeout time.Duration
}

// 🏗️ NewRunner creates a new runner. A zero timeout means no deadline.
func NewRunner(timeout time.Duration) *OperationRunner {
	return &OperationRunner{timeout: timeout}
}

// 🏃 Run executes task and waits for it or for the deadline, whichever comes first.
// On timeout the task's context is cancelled and its result is discarded.
func (r *OperationRunner) Run(ctx context.Context, task func(ctx context.Context) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		err = task(ctx)
	}()

	select {
	case <-ctx.Done():
		return errors.Errorf("operation cancelled: %w", ctx.Err())
	case <-done:
		return err
	}
}
