// Package cmd implements the bd command-line interface: a thin collaborator
// over the workspace/store/depgraph/sync core, responsible for flag
// parsing, actor/owner resolution, and rendering.
package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"beads/internal/config"
	"beads/internal/depgraph"
	"beads/internal/store"
	"beads/internal/sync"
	"beads/internal/workspace"
)

// App holds the state shared across commands for a single invocation: the
// opened workspace, the writers commands render to, and the injected clock
// every command reads for the timestamps it records (id generation in
// create still seeds its hash from time.Now).
type App struct {
	WS   *workspace.Workspace
	Out  io.Writer
	Err  io.Writer
	JSON bool
	Now  func() int64
}

// Store returns the live issue store bound to the open workspace.
func (a *App) Store() *store.Store { return a.WS.Store() }

// Graph builds a fresh dependency view over the current store state.
func (a *App) Graph() *depgraph.Graph { return a.WS.Graph() }

// Flush runs a flush_only sync pass; Close uses it for the auto-flush on
// close. The `sync` command calls sync.Run itself.
func (a *App) Flush() error {
	_, err := sync.Run(a.Store(), sync.ModeFlushOnly, sync.Options{
		SnapshotPath: a.WS.Paths().Snapshot,
		WAL:          a.WS.WAL(),
		Now:          a.Now,
	})
	return err
}

// Close flushes (if dirty and enabled) and releases the workspace lock.
func (a *App) Close() error {
	return a.WS.Close(a.Flush)
}

// IsColor reports whether colorized output should be used: NO_COLOR
// disables it unconditionally; otherwise it follows the output.color
// config key (defaulting to true), since this build has no terminal
// detection dependency to consult.
func (a *App) IsColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return a.WS.Config().ColorOutput()
}

// Colorize wraps s in the given ANSI code if color is enabled.
func (a *App) Colorize(s, code string) string {
	if !a.IsColor() {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (a *App) SuccessColor(s string) string { return a.Colorize(s, "32") }
func (a *App) WarnColor(s string) string    { return a.Colorize(s, "38;5;214") }
func (a *App) ErrorColor(s string) string   { return a.Colorize(s, "31") }

// AppProvider opens the workspace on first use and remembers it for the
// lifetime of one CLI invocation.
type AppProvider struct {
	app *App
	err error

	JSONOutput bool
	Silent     bool
	Out        io.Writer
	Err        io.Writer

	// ctx is the root command's context, threaded through to lock
	// acquisition so a caller can bound how long Open waits.
	ctx context.Context
}

// Get returns the App, opening the workspace on first call.
func (p *AppProvider) Get() (*App, error) {
	if p.app == nil && p.err == nil {
		p.app, p.err = p.init()
	}
	return p.app, p.err
}

func (p *AppProvider) init() (*App, error) {
	root, err := resolveWorkspaceRoot()
	if err != nil {
		return nil, err
	}

	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ws, err := workspace.Open(ctx, root, nowUnix)
	if err != nil {
		return nil, err
	}

	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	errOut := p.Err
	if errOut == nil {
		errOut = os.Stderr
	}
	if p.Silent {
		// Errors still reach the caller via the returned error; the silent
		// flag only suppresses success rendering.
		out = io.Discard
	}

	return &App{WS: ws, Out: out, Err: errOut, JSON: p.JSONOutput, Now: nowUnix}, nil
}

func nowUnix() int64 { return time.Now().Unix() }

// resolveWorkspaceRoot resolves the workspace directory: BEADS_DIR env var
// if set, otherwise a ".beads" directory under the current working
// directory.
func resolveWorkspaceRoot() (string, error) {
	if dir := os.Getenv(config.EnvBeadsDir); dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, ".beads"), nil
}
