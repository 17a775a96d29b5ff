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

package status

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for source path
	stagedWidth = 35 // Width for staging name
)

// 🎯 FormatFileOperation formats one staged file for console display
func FormatFileOperation(path, stagingName string, status FileStatus) string {
	// Determine prefix symbol
	var prefix string
	switch status {
	case StatusNew:
		prefix = color.GreenString("✓")
	case StatusModified:
		prefix = color.YellowString("⟳")
	case StatusDeleted:
		prefix = color.RedString("✗")
	case StatusFailed:
		prefix = color.New(color.FgRed, color.Bold).Sprint("!")
	default:
		prefix = color.HiBlackString("-")
	}

	target := stagingName
	if target == "" || target == path {
		target = ""
	} else {
		target = "→ " + target
	}

	// Format parts with padding
	namePart := fmt.Sprintf("%-*s", nameWidth, path)
	stagedPart := fmt.Sprintf("%-*s", stagedWidth, target)

	// Build final string with indentation
	return strings.TrimRight(fmt.Sprintf("%s%s %s %s %s",
		strings.Repeat(" ", fileIndent),
		prefix,
		namePart,
		stagedPart,
		color.HiBlackString(status.String()),
	), " ")
}
