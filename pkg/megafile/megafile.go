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

package megafile

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/stagerc/pkg/scope"
	"gitlab.com/tozd/go/errors"
)

const (
	bannerOpen  = "===== "
	bannerClose = " ====="
)

var bannerLine = regexp.MustCompile(`^===== (.+) =====\n$`)

// Banner returns the header line that starts a file's block
func Banner(relPath string) string {
	return bannerOpen + relPath + bannerClose + "\n"
}

// 📄 Result describes one composed megafile
type Result struct {
	Content []byte   // Set by Compose, empty for WriteTo
	Written int64    // Bytes written
	Paths   []string // Paths that made it into the megafile, in order
	Skipped []string // Paths that could not be read
}

// 🧩 Composer concatenates every file in a snapshot into one text artifact
type Composer struct {
	readFile func(path string) ([]byte, error)
}

// 🏭 NewComposer creates a composer reading from the local filesystem
func NewComposer() *Composer {
	return &Composer{readFile: os.ReadFile}
}

// 📝 Compose renders the megafile for snap into memory
func (c *Composer) Compose(ctx context.Context, snap *scope.Snapshot) (*Result, error) {
	var buf bytes.Buffer
	res, err := c.WriteTo(ctx, &buf, snap)
	if err != nil {
		return nil, err
	}
	res.Content = buf.Bytes()
	return res, nil
}

// 🖨️ WriteTo streams the megafile for snap into w.
// Entries are emitted sorted by relative path no matter how the snapshot was built.
// An unreadable file is left out and listed in Skipped; a failing w aborts.
func (c *Composer) WriteTo(ctx context.Context, w io.Writer, snap *scope.Snapshot) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	entries := append([]scope.Entry(nil), snap.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })

	res := &Result{}
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.Errorf("composing megafile: %w", err)
		}

		content, err := c.readFile(e.AbsPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", e.RelPath).Msg("skipping unreadable file in megafile")
			res.Skipped = append(res.Skipped, e.RelPath)
			continue
		}

		for _, chunk := range [][]byte{[]byte(Banner(e.RelPath)), content, {'\n'}} {
			n, err := bw.Write(chunk)
			res.Written += int64(n)
			if err != nil {
				return nil, errors.Errorf("writing megafile block %s: %w", e.RelPath, err)
			}
		}
		res.Paths = append(res.Paths, e.RelPath)
	}

	if err := bw.Flush(); err != nil {
		return nil, errors.Errorf("flushing megafile: %w", err)
	}

	logger.Debug().
		Int("files", len(res.Paths)).
		Int("skipped", len(res.Skipped)).
		Int64("bytes", res.Written).
		Msg("composed megafile")

	return res, nil
}

// 📦 Block is one file recovered from a megafile
type Block struct {
	Path    string
	Content []byte
}

// 🔍 Parse splits a megafile back into its blocks.
// A line that looks like a banner always starts a new block.
func Parse(r io.Reader) ([]Block, error) {
	br := bufio.NewReader(r)

	var (
		blocks  []Block
		current *Block
		body    bytes.Buffer
	)

	flush := func() {
		if current == nil {
			return
		}
		content := bytes.TrimSuffix(body.Bytes(), []byte{'\n'})
		current.Content = append([]byte(nil), content...)
		blocks = append(blocks, *current)
		body.Reset()
	}

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			if m := bannerLine.FindStringSubmatch(line); m != nil {
				flush()
				current = &Block{Path: m[1]}
			} else if current == nil {
				return nil, errors.Errorf("megafile does not start with a banner: %q", line)
			} else {
				body.WriteString(line)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Errorf("reading megafile: %w", err)
		}
	}
	flush()

	return blocks, nil
}
