// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// FileTokenSource serves a bearer token stored in a file.
type FileTokenSource struct {
	path string
	log  *zap.Logger

	mu    sync.RWMutex
	token string

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileTokenSource reads path once. With watch set, the file's directory
// is watched and the token reloaded whenever the file is written, created or
// renamed into place. Call Close to stop watching.
func NewFileTokenSource(path string, watch bool, log *zap.Logger) (*FileTokenSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("token file path: %w", err)
	}
	s := &FileTokenSource{path: abs, log: log.Named("auth")}
	if err := s.reload(); err != nil {
		return nil, err
	}
	if !watch {
		return s, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create token watcher: %w", err)
	}
	// Watch the directory: editors and login helpers replace the file by
	// rename, which drops a watch on the file itself.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch token directory: %w", err)
	}
	s.watcher = w
	s.done = make(chan struct{})
	s.wg.Add(1)
	go s.watch()
	return s, nil
}

// Token implements oauth2.TokenSource.
func (s *FileTokenSource) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return nil, ErrNoCredential
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

// Close stops watching.
func (s *FileTokenSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.wg.Wait()
	s.watcher = nil
	return err
}

func (s *FileTokenSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))

	s.mu.Lock()
	changed := token != s.token
	s.token = token
	s.mu.Unlock()

	if changed {
		s.log.Info("credential loaded", zap.String("fingerprint", Fingerprint(token)))
	}
	return nil
}

func (s *FileTokenSource) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				// The file may be mid-replace; the next event reloads it.
				s.log.Debug("token reload skipped", zap.Error(err))
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("token watcher error", zap.Error(err))
		}
	}
}
