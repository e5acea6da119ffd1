// Copyright (C) 2026 Tessellate AI (oss@tessellate.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lock

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// PROJECT GUARD
// =============================================================================

// Guard provides exclusive project ownership for recovery sessions.
//
// Description:
//
//	One guard instance serves one process; it can hold locks on several
//	projects at once (one per concurrent session). The guard file lives
//	at <project>/.mend.lock, is flocked for the lifetime of the session,
//	and carries JSON holder metadata so a competing invocation can report
//	who owns the project. Crashed holders are detected via PID liveness
//	and TTL expiry and their guard files reclaimed.
//
// Thread Safety: All public methods are safe for concurrent use.
type Guard struct {
	ttl     time.Duration
	locker  fileLocker
	mu      sync.Mutex
	held    map[string]*heldLock
	watcher *fsnotify.Watcher

	cbMu      sync.Mutex
	callbacks map[string][]func(ExternalChange)
	suspended map[string]int
}

// tempArtifactPrefix marks scratch files of the engine's atomic writes
// (write to .tmp-*, then rename over the target); events on them are
// never external.
const tempArtifactPrefix = ".tmp-"

type heldLock struct {
	file *os.File
	info *Info
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTTL overrides the default one hour lock TTL.
func WithTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// NewGuard creates a project guard.
//
// Outputs:
//
//	*Guard - Ready-to-use guard
//	error - Non-nil if the change watcher cannot be created
func NewGuard(opts ...GuardOption) (*Guard, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating change watcher: %w", err)
	}

	g := &Guard{
		ttl:       time.Hour,
		locker:    newFileLocker(),
		held:      make(map[string]*heldLock),
		watcher:   watcher,
		callbacks: make(map[string][]func(ExternalChange)),
		suspended: make(map[string]int),
	}
	for _, opt := range opts {
		opt(g)
	}

	go g.watchLoop()
	return g, nil
}

// Acquire takes exclusive ownership of a project for a session.
//
// Description:
//
//	Non-blocking. If the guard file is flocked by a live process the
//	call fails with a HeldError wrapping ErrProjectLocked. A guard file
//	whose holder is dead or expired is reclaimed in place: flock on the
//	same file succeeds once the old holder's descriptor is gone, so the
//	metadata is simply overwritten.
//
// Inputs:
//
//	projectPath - Project root directory
//	sessionID - Owning session identifier
//
// Outputs:
//
//	error - nil on success; HeldError on conflict
func (g *Guard) Acquire(projectPath, sessionID string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path %s: %w", projectPath, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[absPath]; ok {
		// Re-acquire by the same process is a no-op.
		return nil
	}

	lockPath := filepath.Join(absPath, LockFileName)
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("opening guard file %s: %w", lockPath, err)
	}

	if err := g.locker.Lock(f); err != nil {
		holder := readInfo(lockPath)
		_ = f.Close()
		if err == ErrProjectLocked {
			return &HeldError{Path: absPath, Holder: holder, Err: ErrProjectLocked}
		}
		return fmt.Errorf("locking project %s: %w", absPath, err)
	}

	// Flock succeeded; any metadata left behind belongs to a dead or
	// released holder and can be overwritten.
	if stale := readInfo(lockPath); stale != nil && stale.SessionID != sessionID {
		slog.Info("reclaiming stale project lock",
			slog.String("project", absPath),
			slog.Int("old_pid", stale.PID),
			slog.Bool("expired", stale.IsExpired()))
	}

	now := time.Now()
	info := &Info{
		ProjectPath: absPath,
		PID:         os.Getpid(),
		SessionID:   sessionID,
		LockedAt:    now,
		ExpiresAt:   now.Add(g.ttl),
	}
	if err := writeInfo(f, info); err != nil {
		_ = g.locker.Unlock(f)
		_ = f.Close()
		return fmt.Errorf("writing guard metadata: %w", err)
	}

	g.held[absPath] = &heldLock{file: f, info: info}

	slog.Debug("acquired project lock",
		slog.String("project", absPath),
		slog.String("session_id", sessionID),
		slog.Time("expires_at", info.ExpiresAt))
	return nil
}

// Release gives up ownership of a project.
//
// Outputs:
//
//	error - ErrLockNotHeld if this guard does not own the project
func (g *Guard) Release(projectPath string) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path %s: %w", projectPath, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.held[absPath]
	if !ok {
		return ErrLockNotHeld
	}
	return g.release(absPath, entry)
}

// release drops one held lock. Caller must hold g.mu.
func (g *Guard) release(absPath string, entry *heldLock) error {
	g.Unwatch(absPath)

	if err := g.locker.Unlock(entry.file); err != nil {
		slog.Warn("failed to unlock guard file",
			slog.String("project", absPath),
			slog.String("error", err.Error()))
	}
	_ = entry.file.Close()

	lockPath := filepath.Join(absPath, LockFileName)
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove guard file",
			slog.String("path", lockPath),
			slog.String("error", err.Error()))
	}

	delete(g.held, absPath)
	slog.Debug("released project lock", slog.String("project", absPath))
	return nil
}

// Holder reports whether a project is locked and by whom.
//
// Description:
//
//	Checks this guard's own locks first, then the on-disk guard file.
//	A guard file whose holder is dead or expired reports unlocked.
//
// Outputs:
//
//	bool - True when a live session owns the project
//	*Info - The holder's metadata (nil when unlocked)
func (g *Guard) Holder(projectPath string) (bool, *Info) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return false, nil
	}

	g.mu.Lock()
	if entry, ok := g.held[absPath]; ok {
		g.mu.Unlock()
		return true, entry.info
	}
	g.mu.Unlock()

	info := readInfo(filepath.Join(absPath, LockFileName))
	if info == nil {
		return false, nil
	}
	if info.IsExpired() || !IsProcessAlive(info.PID) {
		return false, nil
	}
	return true, info
}

// Watch registers a callback for external edits under a held project.
//
// Description:
//
//	Watches the project root and its immediate subdirectories. Edits to
//	the guard file itself are ignored. fsnotify does not recurse, so
//	deeply nested external edits can go unnoticed; the watch is a
//	tripwire, not an audit trail.
func (g *Guard) Watch(projectPath string, callback func(ExternalChange)) error {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return fmt.Errorf("resolving project path %s: %w", projectPath, err)
	}

	g.cbMu.Lock()
	g.callbacks[absPath] = append(g.callbacks[absPath], callback)
	g.cbMu.Unlock()

	if err := g.watcher.Add(absPath); err != nil {
		return fmt.Errorf("watching %s: %w", absPath, err)
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			_ = g.watcher.Add(filepath.Join(absPath, entry.Name()))
		}
	}
	return nil
}

// Suspend masks external-change callbacks for a project while the
// session performs its own writes.
//
// Description:
//
//	The watch cannot tell the session's mutator and commands apart from
//	an outside editor, so the session brackets its own write phases with
//	Suspend/Resume. Calls nest; each Suspend needs a matching Resume.
//	Event delivery is asynchronous, so a write issued just before Resume
//	may still slip through; the tripwire is best-effort by nature.
func (g *Guard) Suspend(projectPath string) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return
	}
	g.cbMu.Lock()
	g.suspended[absPath]++
	g.cbMu.Unlock()
}

// Resume unwinds one Suspend level for a project.
func (g *Guard) Resume(projectPath string) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return
	}
	g.cbMu.Lock()
	if g.suspended[absPath] > 0 {
		g.suspended[absPath]--
		if g.suspended[absPath] == 0 {
			delete(g.suspended, absPath)
		}
	}
	g.cbMu.Unlock()
}

// Unwatch removes the project's watches and callbacks.
func (g *Guard) Unwatch(projectPath string) {
	absPath, err := filepath.Abs(projectPath)
	if err != nil {
		return
	}
	g.cbMu.Lock()
	delete(g.callbacks, absPath)
	delete(g.suspended, absPath)
	g.cbMu.Unlock()
	_ = g.watcher.Remove(absPath)
}

// Close releases all held locks and stops the watcher.
func (g *Guard) Close() error {
	g.mu.Lock()
	for path, entry := range g.held {
		_ = g.release(path, entry)
	}
	g.mu.Unlock()
	return g.watcher.Close()
}

// =============================================================================
// INTERNAL
// =============================================================================

// watchLoop dispatches fsnotify events to project callbacks.
func (g *Guard) watchLoop() {
	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			g.handleEvent(event)
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("project watcher error", slog.String("error", err.Error()))
		}
	}
}

func (g *Guard) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if base == LockFileName || strings.HasPrefix(base, tempArtifactPrefix) {
		return
	}

	var changeType ChangeType
	switch {
	case event.Op&fsnotify.Write != 0:
		changeType = ChangeWrite
	case event.Op&fsnotify.Remove != 0:
		changeType = ChangeDelete
	case event.Op&fsnotify.Rename != 0:
		changeType = ChangeRename
	default:
		return
	}

	absPath, _ := filepath.Abs(event.Name)

	g.cbMu.Lock()
	var matched []func(ExternalChange)
	for root, cbs := range g.callbacks {
		if absPath != root && !strings.HasPrefix(absPath, root+string(filepath.Separator)) {
			continue
		}
		if g.suspended[root] > 0 {
			// The session is writing; this change is self-inflicted.
			continue
		}
		matched = append(matched, cbs...)
	}
	g.cbMu.Unlock()

	if len(matched) == 0 {
		return
	}

	slog.Warn("external change in guarded project",
		slog.String("path", absPath),
		slog.String("change", changeType.String()))

	change := ExternalChange{Path: absPath, Type: changeType}
	for _, cb := range matched {
		cb(change)
	}
}

// writeInfo rewrites the guard file in place through the locked handle.
func writeInfo(f *os.File, info *Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return err
	}
	return f.Sync()
}

// readInfo reads guard metadata; nil on any failure.
func readInfo(lockPath string) *Info {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return nil
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil
	}
	return &info
}
