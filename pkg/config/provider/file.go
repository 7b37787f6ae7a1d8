// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	settleDelay     = 100 * time.Millisecond
	reappearPoll    = 500 * time.Millisecond
	reappearRetries = 10
)

// FileProvider reads config from a local file. Watch observes the parent
// directory so atomic saves (write temp, rename over) are seen, and only
// signals when the file content actually differs from the last read.
type FileProvider struct {
	path string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	digest  []byte
	closed  bool
}

func NewFileProvider(path string) (*FileProvider, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}
	return &FileProvider{path: abs}, nil
}

func (p *FileProvider) Type() Type {
	return TypeFile
}

func (p *FileProvider) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", p.path, err)
	}
	sum := sha256.Sum256(data)
	p.mu.Lock()
	p.digest = sum[:]
	p.mu.Unlock()
	return data, nil
}

func (p *FileProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("file provider is closed")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	p.watcher = w

	// Left open on exit: a pending settle timer may still fire.
	changes := make(chan struct{}, 1)
	go p.run(ctx, w, changes)

	slog.Info("Watching config file", "path", p.path)
	return changes, nil
}

func (p *FileProvider) run(ctx context.Context, w *fsnotify.Watcher, changes chan<- struct{}) {
	defer w.Close()

	name := filepath.Base(p.path)
	var settle *time.Timer
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}

			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
				if settle != nil {
					settle.Stop()
				}
				settle = time.AfterFunc(settleDelay, func() {
					if p.changed() {
						slog.Debug("Config file changed", "path", p.path)
						signal(changes)
					}
				})
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				slog.Warn("Config file disappeared", "path", p.path)
				go p.awaitReappear(ctx, w, changes)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Error("Config file watcher error", "path", p.path, "error", err)
		}
	}
}

// changed reports whether the file content differs from the last Load.
// Unreadable files count as unchanged; the next event retries.
func (p *FileProvider) changed() bool {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return false
	}
	sum := sha256.Sum256(data)

	p.mu.Lock()
	defer p.mu.Unlock()
	return !bytes.Equal(p.digest, sum[:])
}

func (p *FileProvider) awaitReappear(ctx context.Context, w *fsnotify.Watcher, changes chan<- struct{}) {
	for range reappearRetries {
		if !sleepContext(ctx, reappearPoll) {
			return
		}
		if _, err := os.Stat(p.path); err != nil {
			continue
		}
		if err := w.Add(filepath.Dir(p.path)); err == nil {
			slog.Info("Config file is back", "path", p.path)
			if p.changed() {
				signal(changes)
			}
			return
		}
	}
	slog.Warn("Config file did not reappear", "path", p.path)
}

func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	p.watcher = nil
	return err
}

var _ Provider = (*FileProvider)(nil)
