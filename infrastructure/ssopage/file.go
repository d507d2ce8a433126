package ssopage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"bit-backend/application/ports"
)

const reloadDebounce = 250 * time.Millisecond

// FileProvider serves a page read from disk and reloads it when the file changes.
type FileProvider struct {
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	html    string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

var _ ports.SsoPageProvider = (*FileProvider)(nil)

// NewFileProvider reads path and, when watch is set, keeps it fresh until Close.
func NewFileProvider(path string, watch bool, logger *zap.Logger) (*FileProvider, error) {
	p := &FileProvider{
		path:   path,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if err := p.reload(); err != nil {
		return nil, err
	}

	if !watch {
		close(p.doneCh)
		return p, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}
	p.watcher = watcher

	go p.watchLoop()

	logger.Info("Watching SSO page for changes", zap.String("path", path))
	return p, nil
}

func (p *FileProvider) GetSsoPage(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.html, nil
}

func (p *FileProvider) reload() error {
	content, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read SSO page: %w", err)
	}

	p.mu.Lock()
	p.html = string(content)
	p.mu.Unlock()
	return nil
}

func (p *FileProvider) watchLoop() {
	defer close(p.doneCh)
	defer p.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	target := filepath.Clean(p.path)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				if err := p.reload(); err != nil {
					p.logger.Error("Failed to reload SSO page, keeping previous version",
						zap.String("path", p.path),
						zap.Error(err),
					)
					return
				}
				p.logger.Info("SSO page reloaded", zap.String("path", p.path))
			})

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("File watcher error", zap.Error(err))

		case <-p.stopCh:
			return
		}
	}
}

// Close stops watching the file
func (p *FileProvider) Close() error {
	p.once.Do(func() {
		close(p.stopCh)
	})
	<-p.doneCh
	return nil
}
