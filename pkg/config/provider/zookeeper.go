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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-zookeeper/zk"
)

const (
	zkSessionTimeout = 10 * time.Second
	zkRetryBackoff   = 2 * time.Second
)

// ZookeeperProvider reads config from a znode and watches it with data
// watches. Watches are one-shot, so each event re-arms the next one.
type ZookeeperProvider struct {
	conn *zk.Conn
	path string
}

func NewZookeeperProvider(endpoints []string, path string) (*ZookeeperProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("zookeeper endpoints are required")
	}

	conn, _, err := zk.Connect(endpoints, zkSessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to zookeeper: %w", err)
	}

	return &ZookeeperProvider{conn: conn, path: path}, nil
}

func (p *ZookeeperProvider) Type() Type {
	return TypeZookeeper
}

func (p *ZookeeperProvider) Load(ctx context.Context) ([]byte, error) {
	data, _, err := p.conn.Get(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zookeeper path %s: %w", p.path, err)
	}
	return data, nil
}

func (p *ZookeeperProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go p.watchLoop(ctx, ch)
	slog.Info("Watching zookeeper path", "path", p.path)
	return ch, nil
}

func (p *ZookeeperProvider) watchLoop(ctx context.Context, ch chan<- struct{}) {
	for {
		events, err := p.arm()
		if err != nil {
			slog.Warn("Zookeeper watch failed", "path", p.path, "error", err)
			if !sleepContext(ctx, zkRetryBackoff) {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Type {
			case zk.EventNodeDataChanged, zk.EventNodeCreated:
				slog.Debug("Zookeeper node changed", "path", p.path)
				signal(ch)
			case zk.EventNodeDeleted:
				slog.Warn("Zookeeper config node was deleted", "path", p.path)
			case zk.EventNotWatching:
				slog.Warn("Zookeeper watch lost, re-arming", "path", p.path, "error", ev.Err)
			}
		}
	}
}

// arm sets a data watch, or an existence watch while the node is missing.
func (p *ZookeeperProvider) arm() (<-chan zk.Event, error) {
	_, _, events, err := p.conn.GetW(p.path)
	if errors.Is(err, zk.ErrNoNode) {
		_, _, events, err = p.conn.ExistsW(p.path)
	}
	return events, err
}

func (p *ZookeeperProvider) Close() error {
	p.conn.Close()
	return nil
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf(format, args...), "component", "zookeeper")
}

var _ Provider = (*ZookeeperProvider)(nil)
