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

package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/status"
	"golang.org/x/term"
)

// 🎯 FileOperation represents one staged file for logging
type FileOperation struct {
	Path        string            // Relative source path
	StagingName string            // Flat name in the staging dir
	Status      status.FileStatus // Outcome
	Error       error             // Set when Status is StatusFailed
}

// 📦 Pass describes one sync pass for logging
type Pass struct {
	Root       string // Project root
	StagingDir string // Staging directory
	Trigger    string // What started the pass (startup, watch, manual)
}

// 📊 Summary is the tally printed when a pass ends
type Summary struct {
	Selected   int
	Created    int
	Updated    int
	Deleted    int
	Transcoded int
	Unchanged  int
	Failed     int
	Duration   time.Duration
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *Pass
	operations []FileOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = os.Stderr
	})).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

// 🖥️ IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// 🎨 DisableColor turns off color and styling for all console output
func DisableColor() {
	color.NoColor = true
	pterm.DisableStyling()
}

// 📝 LogFileOperation logs a file operation
func (l *Logger) LogFileOperation(ctx context.Context, op FileOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations = append(l.operations, op)

	fmt.Fprintln(l.console, status.FormatFileOperation(op.Path, op.StagingName, op.Status))
	if op.Error != nil {
		fmt.Fprintf(l.console, "      %s\n", color.RedString(op.Error.Error()))
	}

	ev := l.zlog.Info()
	if op.Error != nil {
		ev = l.zlog.Warn().Err(op.Error)
	}
	ev.Str("file", op.Path).
		Str("staging_name", op.StagingName).
		Str("status", op.Status.String()).
		Msg("file operation")
}

// 📝 StartPass starts a new sync pass
func (l *Logger) StartPass(ctx context.Context, p Pass) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &p
	l.operations = nil

	fmt.Fprintf(l.console, "[syncing %s]\n", color.New(color.FgCyan).Sprint(p.Root))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(p.StagingDir),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(p.Trigger))

	l.zlog.Info().
		Str("root", p.Root).
		Str("staging_dir", p.StagingDir).
		Str("trigger", p.Trigger).
		Msg("starting sync pass")
}

// 📝 EndPass ends the current pass and prints its summary
func (l *Logger) EndPass(ctx context.Context, s Summary) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return
	}

	counts := fmt.Sprintf("%d selected, %d created, %d updated, %d deleted, %d transcoded, %d unchanged",
		s.Selected, s.Created, s.Updated, s.Deleted, s.Transcoded, s.Unchanged)

	switch {
	case s.Failed > 0:
		pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).WithWriter(l.console).
			Println(fmt.Sprintf("%s, %d failed", counts, s.Failed))
	case s.Created+s.Updated+s.Deleted == 0:
		pterm.Info.WithPrefix(pterm.Prefix{Text: "👍"}).WithWriter(l.console).
			Println("up to date: " + counts)
	default:
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).WithWriter(l.console).
			Println(counts)
	}

	l.zlog.Info().
		Str("root", l.currentOp.Root).
		Int("files", len(l.operations)).
		Int("failed", s.Failed).
		Dur("duration", s.Duration).
		Msg("sync pass complete")

	l.currentOp = nil
	l.operations = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("stagerc")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
