package navd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codenav/internal/config"
	"codenav/internal/core/proc"
	"codenav/internal/core/query"
	"codenav/internal/core/regex"
	"codenav/internal/core/watch"
	"codenav/internal/index/gtags"
	"codenav/internal/index/registry"
	"codenav/internal/model"
)

type workspace struct {
	id    string
	root  string
	store *gtags.Store

	mu      sync.Mutex
	watcher *watch.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

type HandlerOptions struct {
	Config   *config.Config
	Registry registry.Registry
	Runner   *proc.Runner
	Logger   *slog.Logger
}

// Handlers owns one IndexStore per workspace.
type Handlers struct {
	cfg        config.Config
	registry   registry.Registry
	runner     *proc.Runner
	log        *slog.Logger
	translator *regex.Translator

	mu         sync.RWMutex
	workspaces map[string]*workspace
}

func NewHandlers(opts HandlerOptions) *Handlers {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Nop{}
	}
	return &Handlers{
		cfg:        *cfg,
		registry:   reg,
		runner:     opts.Runner,
		log:        log,
		translator: regex.NewTranslator(256),
		workspaces: map[string]*workspace{},
	}
}

func (h *Handlers) WorkspaceAdd(p WorkspaceAddParams) (string, error) {
	if h == nil {
		return "", fmt.Errorf("handlers is nil")
	}
	root := strings.TrimSpace(p.Root)
	if root == "" {
		return "", fmt.Errorf("root is required")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	st, err := os.Stat(rootAbs)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("root is not a directory")
	}

	cfg := h.cfg
	if s := strings.TrimSpace(p.Storage); s != "" {
		cfg.Storage = s
	}
	opts, err := gtags.OptionsFromConfig(&cfg)
	if err != nil {
		return "", err
	}
	opts.Registry = h.registry
	opts.Runner = h.runner
	opts.Translator = h.translator
	opts.Logger = h.log.With("workspace", rootAbs)
	opts.Workdir = model.WorkdirFunc(func() (string, error) { return rootAbs, nil })

	wsid := uuid.NewString()
	ws := &workspace{id: wsid, root: rootAbs, store: gtags.New(opts)}

	h.mu.Lock()
	h.workspaces[wsid] = ws
	h.mu.Unlock()

	h.log.Info("workspace added", "id", wsid, "root", rootAbs)
	return wsid, nil
}

type jumpRecorder struct{ loc *model.Location }

func (j *jumpRecorder) Jump(loc model.Location) error {
	j.loc = &loc
	return nil
}

func (h *Handlers) Query(ctx context.Context, p QueryParams) (QueryResult, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return QueryResult{}, err
	}
	kind, err := query.ParseKind(p.Kind)
	if err != nil {
		return QueryResult{}, err
	}
	var format model.Format
	if p.Result != "" {
		if format, err = model.ParseFormat(p.Result); err != nil {
			return QueryResult{}, err
		}
	}

	req := gtags.Request{
		Request: query.Request{
			Kind:       kind,
			Pattern:    p.Pattern,
			Files:      p.Files,
			Line:       p.Line,
			File:       p.File,
			IgnoreCase: p.IgnoreCase,
			Literal:    p.Literal,
			PathStyle:  p.PathStyle,
			Scope:      p.Scope,
			Result:     format,
			AutoJump:   p.AutoJump,
			Append:     p.Append,
		},
		Target: p.Target,
	}

	jump := &jumpRecorder{}
	locs, err := ws.store.Navigate(ctx, req, jump)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{
		Locations:  locs,
		Jump:       jump.loc,
		Highlights: ws.store.Highlights(),
	}, nil
}

func (h *Handlers) Update(ctx context.Context, p UpdateParams) (UpdateResult, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return UpdateResult{}, err
	}
	path := p.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(ws.root, path)
	}
	if err := ws.store.ScheduleUpdate(path, p.Single, p.Auto); err != nil {
		return UpdateResult{}, err
	}
	if p.Wait {
		if err := ws.store.Flush(ctx); err != nil {
			return UpdateResult{}, err
		}
	}
	return UpdateResult{Pending: ws.store.Pending()}, nil
}

func (h *Handlers) Remove(ctx context.Context, p RemoveParams) (bool, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return false, err
	}
	confirmed := model.ConfirmFunc(func(string) (bool, error) { return p.Confirm, nil })
	if err := ws.store.Remove(ctx, p.Path, confirmed); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Handlers) Translate(p TranslateParams) (string, error) {
	if p.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	return h.translator.Translate(p.Pattern, p.Perl), nil
}

func (h *Handlers) Highlights(p HighlightsParams) ([]regex.Pattern, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return ws.store.Highlights(), nil
}

func (h *Handlers) WatchStart(p WatchStartParams) (WatchStatusResult, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.watcher != nil {
		return ws.statusLocked(), nil
	}

	w, err := watch.New(ws.root, ws.store, watch.Options{
		Debounce: time.Duration(p.DebounceMS) * time.Millisecond,
		DBPath:   ws.store.Locate(ws.root),
		Logger:   h.log,
	})
	if err != nil {
		return WatchStatusResult{}, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			h.log.Warn("watcher stopped", "root", ws.root, "err", err)
		}
	}()
	ws.watcher, ws.cancel, ws.done = w, cancel, done
	return ws.statusLocked(), nil
}

func (h *Handlers) WatchStop(p WatchStopParams) (WatchStatusResult, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	ws.stopWatch()
	return WatchStatusResult{Running: false, Root: ws.root}, nil
}

func (h *Handlers) WatchStatus(p WatchStatusParams) (WatchStatusResult, error) {
	ws, err := h.getWorkspace(p.WorkspaceID)
	if err != nil {
		return WatchStatusResult{}, err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.statusLocked(), nil
}

// Close stops every watcher and store.
func (h *Handlers) Close() error {
	h.mu.Lock()
	all := make([]*workspace, 0, len(h.workspaces))
	for _, ws := range h.workspaces {
		all = append(all, ws)
	}
	h.workspaces = map[string]*workspace{}
	h.mu.Unlock()

	var errs []error
	for _, ws := range all {
		ws.stopWatch()
		errs = append(errs, ws.store.Close())
	}
	return errors.Join(errs...)
}

func (ws *workspace) statusLocked() WatchStatusResult {
	st := WatchStatusResult{Running: ws.watcher != nil, Root: ws.root}
	if ws.watcher != nil {
		st.Scheduled = ws.watcher.Scheduled()
	}
	return st
}

func (ws *workspace) stopWatch() {
	ws.mu.Lock()
	w, cancel, done := ws.watcher, ws.cancel, ws.done
	ws.watcher, ws.cancel, ws.done = nil, nil, nil
	ws.mu.Unlock()

	if w == nil {
		return
	}
	cancel()
	_ = w.Close()
	<-done
}

var errWorkspaceNotFound = errors.New("workspace not found")

func (h *Handlers) getWorkspace(workspaceID string) (*workspace, error) {
	if h == nil {
		return nil, fmt.Errorf("handlers is nil")
	}
	h.mu.RLock()
	ws, ok := h.workspaces[strings.TrimSpace(workspaceID)]
	h.mu.RUnlock()
	if !ok {
		return nil, errWorkspaceNotFound
	}
	return ws, nil
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, gtags.ErrCancelled):
		return codeCancelled
	case errors.Is(err, fs.ErrNotExist):
		return codeNoDatabase
	default:
		return codeServer
	}
}
