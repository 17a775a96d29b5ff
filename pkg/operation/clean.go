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

	"github.com/walteh/stagerc/pkg/status"
	"gitlab.com/tozd/go/errors"
)

// 🧹 Clean removes every staged file and then the staging dir itself.
// It returns how many files were removed.
func Clean(ctx context.Context, files status.FileManager, reporter status.StatusReporter) (int, error) {
	names, err := files.List(ctx)
	if err != nil {
		return 0, errors.Errorf("listing staging dir: %w", err)
	}

	if reporter != nil {
		reporter.StartOperation(ctx, len(names))
		defer reporter.FinishOperation(ctx)
	}

	for i, name := range names {
		if err := files.DeleteFile(ctx, name); err != nil {
			if reporter != nil {
				reporter.TrackFile(ctx, status.FileInfo{Path: name, StagingName: name, Status: status.StatusFailed, Error: err})
			}
			return i, errors.Errorf("cleaning file %s: %w", name, err)
		}
		if reporter != nil {
			reporter.TrackFile(ctx, status.FileInfo{Path: name, StagingName: name, Status: status.StatusDeleted})
			reporter.UpdateProgress(ctx, i+1)
		}
	}

	if err := files.RemoveDir(ctx); err != nil {
		return len(names), errors.Errorf("removing staging dir: %w", err)
	}

	return len(names), nil
}
