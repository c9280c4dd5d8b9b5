// Package command implements the Command Surface: a session-keyed façade
// over workspace.Workspace that a shell (CLI, desktop app, or any other
// front end) drives through labeled sessions, one open workspace per
// label, matching the label-to-session map cuemby-warren's client package
// keeps for its own server connections.
package command

import (
	"context"
	"sync"

	"github.com/careck/krillnotes/internal/krillerr"
	"github.com/careck/krillnotes/internal/oplog"
	"github.com/careck/krillnotes/internal/workspace"
)

type session struct {
	workspace *workspace.Workspace
	path      string
}

// Surface is the process-wide façade: label -> open workspace. Concurrent
// calls for the same label serialize inside workspace.Workspace's own
// mutex; calls across distinct labels proceed in parallel.
type Surface struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// New returns an empty Surface with no open sessions.
func New() *Surface {
	return &Surface{sessions: make(map[string]*session)}
}

func (s *Surface) get(label string) (*workspace.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[label]
	if !ok {
		return nil, krillerr.New(krillerr.InvalidWorkspace, "no open session for label "+label)
	}
	return sess.workspace, nil
}

func (s *Surface) put(label, path string, w *workspace.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[label] = &session{workspace: w, path: path}
}

func (s *Surface) drop(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, label)
}

// CreateWorkspace opens a brand-new workspace file at path under label.
func (s *Surface) CreateWorkspace(ctx context.Context, label, path string, purgeKeep int) error {
	w, err := workspace.Create(ctx, path, oplog.LocalOnly{KeepLast: purgeKeep})
	if err != nil {
		return err
	}
	s.put(label, path, w)
	return nil
}

// OpenWorkspace opens an existing workspace file at path under label.
func (s *Surface) OpenWorkspace(ctx context.Context, label, path string, purgeKeep int) error {
	w, err := workspace.Open(ctx, path, oplog.LocalOnly{KeepLast: purgeKeep})
	if err != nil {
		return err
	}
	s.put(label, path, w)
	return nil
}

// CloseWorkspace releases label's session, closing its database handle.
func (s *Surface) CloseWorkspace(label string) error {
	w, err := s.get(label)
	if err != nil {
		return err
	}
	defer s.drop(label)
	return w.Close()
}

// WorkspaceInfo is get_workspace_info's return shape.
type WorkspaceInfo struct {
	Path         string
	ScriptErrors int
}

// GetWorkspaceInfo reports label's backing file path and pending script
// error count.
func (s *Surface) GetWorkspaceInfo(label string) (WorkspaceInfo, error) {
	s.mu.Lock()
	sess, ok := s.sessions[label]
	s.mu.Unlock()
	if !ok {
		return WorkspaceInfo{}, krillerr.New(krillerr.InvalidWorkspace, "no open session for label "+label)
	}
	return WorkspaceInfo{Path: sess.path, ScriptErrors: len(sess.workspace.ScriptErrors())}, nil
}
