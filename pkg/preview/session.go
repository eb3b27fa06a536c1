package preview

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/modgraph/pkg/archive"
	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/messenger"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/protocol"
	"github.com/matzehuels/modgraph/pkg/render"
	"github.com/matzehuels/modgraph/pkg/scheduler"
)

// DefaultSerializeTimeout bounds how long Close waits for the page's state.
const DefaultSerializeTimeout = 2 * time.Second

// Options configures the sessions created by a [Manager].
type Options struct {
	Scanner  modgraph.Scanner // Defaults to `go mod graph`
	Render   render.Func      // Defaults to render.Graphviz
	Exporter Exporter         // Nil disables export
	Notifier Notifier         // Defaults to a LogNotifier on Logger

	Archives         archive.Store // Nil disables state persistence
	ArchiveTTL       time.Duration
	SerializeTimeout time.Duration

	MaxNodes      int           // All-modules node cap; zero uses modgraph.MaxAllModulesNodes
	CancelTimeout time.Duration // See scheduler.WithCancelTimeout

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.Scanner == nil {
		o.Scanner = modgraph.NewGoModGraph("")
	}
	if o.Render == nil {
		o.Render = render.Graphviz
	}
	if o.Notifier == nil {
		o.Notifier = NewLogNotifier(o.Logger)
	}
	if o.SerializeTimeout <= 0 {
		o.SerializeTimeout = DefaultSerializeTimeout
	}
	return o
}

// Session is the live preview of one document.
type Session struct {
	id   string
	dir  string
	opts Options
	log  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}

	scheduler *scheduler.Scheduler

	closeOnce    sync.Once
	teardownOnce sync.Once

	// attachMu orders page channel swaps against the session ending.
	attachMu sync.Mutex
	submitMu sync.Mutex

	mu         sync.Mutex
	messenger  *messenger.Messenger
	graph      *modgraph.Graph
	mods       []string
	selection  string
	view       modgraph.View
	submitted  map[string]submission
	lastSource string
}

// submission is what the page is told about a source once it is rendered.
type submission struct {
	mod  string
	mods []string
}

func newSession(dir string, opts Options) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		dir:       dir,
		opts:      opts,
		log:       opts.Logger.With("session", id[:8]),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		selection: modgraph.AllModules,
		submitted: make(map[string]submission),
	}
	s.scheduler = scheduler.New(s.render, s.onSuccess, s.onFailure,
		scheduler.WithLogger(s.log),
		scheduler.WithCancelTimeout(opts.CancelTimeout),
	)
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// DocumentID returns the absolute directory the session previews.
func (s *Session) DocumentID() string { return s.dir }

// Done is closed when the session has stopped, either through Close or
// because the page went away.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Selection returns the selected module, or modgraph.AllModules.
func (s *Session) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Modules returns the selectable modules of the last successful scan.
func (s *Session) Modules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mods
}

// Graph returns the last scanned graph, or nil if no scan succeeded yet.
func (s *Session) Graph() *modgraph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// start connects the session to its page and shows the first render.
func (s *Session) start(ctx context.Context, port messenger.Port) {
	defer close(s.ready)

	s.attachMu.Lock()
	m := s.connect(port)
	s.attachMu.Unlock()

	s.log.Info("opening preview", "dir", s.dir)
	g, scanErr := modgraph.Load(ctx, s.opts.Scanner, s.dir)
	if scanErr == nil {
		s.mu.Lock()
		s.setGraph(g)
		s.mu.Unlock()
	}

	if err := s.greet(ctx, m); err != nil {
		s.log.Warn("preview did not initialize", "error", err)
		return
	}

	if scanErr != nil {
		s.scanFailed(scanErr)
		return
	}
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	s.submit(v)
}

// connect runs a messenger on port and makes it the page channel, closing
// the one it replaces. The session ends when its current page channel
// closes. Callers hold s.attachMu.
func (s *Session) connect(port messenger.Port) *messenger.Messenger {
	m := messenger.New(port, s.handle, messenger.WithLogger(s.log))

	s.mu.Lock()
	old := s.messenger
	s.messenger = m
	s.mu.Unlock()

	go func() {
		if err := m.Run(s.ctx); err != nil {
			s.log.Warn("preview channel failed", "error", err)
		}
		s.attachMu.Lock()
		defer s.attachMu.Unlock()
		if s.channel() == m {
			s.teardown()
		}
	}()

	if old != nil {
		_ = old.Close()
	}
	return m
}

// reattach moves the session to a new page, typically a reload or a second
// tab. It reports false when the session has already ended.
func (s *Session) reattach(ctx context.Context, port messenger.Port) bool {
	s.attachMu.Lock()
	if s.ctx.Err() != nil {
		s.attachMu.Unlock()
		return false
	}
	m := s.connect(port)
	s.attachMu.Unlock()

	s.log.Info("preview moved to a new page", "dir", s.dir)
	if _, err := m.Send(ctx, protocol.Initialize{}); err != nil {
		s.log.Warn("preview did not initialize", "error", err)
		return true
	}
	if err := s.Visible(ctx); err != nil {
		s.log.Debug("reveal preview", "error", err)
	}
	return true
}

func (s *Session) channel() *messenger.Messenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messenger
}

// greet sends restore when an archived state exists and initialize
// otherwise. A restored page keeps its module selection.
func (s *Session) greet(ctx context.Context, m *messenger.Messenger) error {
	if s.opts.Archives != nil {
		a, err := s.opts.Archives.Load(ctx, s.dir)
		if err != nil {
			s.log.Warn("load archive", "error", err)
		}
		if a != nil {
			s.log.Debug("restoring view state", "saved", a.SavedAt)
			s.restoreSelection(a.State)
			_, err := m.Send(ctx, protocol.Restore{Archive: a.State})
			return err
		}
	}
	_, err := m.Send(ctx, protocol.Initialize{})
	return err
}

// restoreSelection selects the module recorded in archived page state. A
// module that is no longer in the graph falls back to all modules.
func (s *Session) restoreSelection(state json.RawMessage) {
	var page struct {
		Mod string `json:"mod"`
	}
	if err := json.Unmarshal(state, &page); err != nil || page.Mod == "" {
		return
	}
	if err := errors.ValidateModuleName(page.Mod); err != nil {
		s.log.Debug("ignoring archived selection", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = page.Mod
	if s.graph != nil {
		s.setGraph(s.graph)
	}
}

// setGraph installs a freshly scanned graph. The selection survives when the
// module is still in the graph. Callers hold s.mu.
func (s *Session) setGraph(g *modgraph.Graph) {
	s.graph = g
	s.mods = g.Modules()
	if s.selection != modgraph.AllModules && !g.HasNode(s.selection) {
		s.selection = modgraph.AllModules
	}
	s.view = g.Text(s.selection, s.opts.MaxNodes)
}

// =============================================================================
// Operations
// =============================================================================

// Visible re-renders the current selection, typically because the preview
// was revealed again. Without a graph it rescans first.
func (s *Session) Visible(ctx context.Context) error {
	s.mu.Lock()
	g, v := s.graph, s.view
	s.mu.Unlock()

	if g == nil {
		return s.Rescan(ctx)
	}
	s.submit(v)
	return nil
}

// Rescan runs the scanner again and renders the result.
func (s *Session) Rescan(ctx context.Context) error {
	g, err := modgraph.Load(ctx, s.opts.Scanner, s.dir)
	if err != nil {
		s.scanFailed(err)
		return err
	}

	s.mu.Lock()
	s.setGraph(g)
	v := s.view
	s.mu.Unlock()

	s.submit(v)
	return nil
}

// SelectModule shows the modules that depend on mod, or the whole graph for
// modgraph.AllModules. Every successful call submits exactly one render.
func (s *Session) SelectModule(mod string) error {
	if err := errors.ValidateModuleName(mod); err != nil {
		return err
	}

	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return errors.New(errors.ErrCodeNotFound, "%s", modgraph.NeedScanNotice)
	}
	s.selection = mod
	s.view = s.graph.Text(mod, s.opts.MaxNodes)
	v := s.view
	s.mu.Unlock()

	s.log.Debug("module selected", "mod", mod, "edges", v.Edges)
	s.submit(v)
	return nil
}

// Export hands the current graph and image to the exporter.
func (s *Session) Export(ctx context.Context, image []byte) error {
	if s.opts.Exporter == nil {
		return errors.New(errors.ErrCodeUnsupported, "export is not configured")
	}
	s.mu.Lock()
	source := s.view.Source
	s.mu.Unlock()

	if err := s.opts.Exporter.Export(ctx, source, image, s.dir); err != nil {
		return err
	}
	return nil
}

// Close asks the page for its view state, archives it and stops the
// session. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		select {
		case <-s.ready:
			err = s.archive(ctx)
		case <-ctx.Done():
		}
		s.teardown()
	})
	return err
}

func (s *Session) archive(ctx context.Context) error {
	if s.opts.Archives == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.SerializeTimeout)
	defer cancel()

	resp, err := s.channel().Send(ctx, protocol.Serialize{})
	if err != nil {
		s.log.Debug("view state not saved", "error", err)
		return nil
	}
	r, ok := resp.(protocol.SerializeResponse)
	if !ok || len(r.Result) == 0 || string(r.Result) == "null" {
		return nil
	}
	if err := s.opts.Archives.Save(ctx, archive.New(s.dir, r.Result, s.opts.ArchiveTTL)); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "save view state for %s", s.dir)
	}
	return nil
}

func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.scheduler.Close()
		if m := s.channel(); m != nil {
			_ = m.Close()
		}
		s.cancel()
		s.log.Info("preview closed", "dir", s.dir)
	})
}

// =============================================================================
// Page requests and render results
// =============================================================================

func (s *Session) handle(ctx context.Context, req protocol.Message) (protocol.Message, error) {
	var err error
	switch m := req.(type) {
	case protocol.Export:
		err = s.Export(ctx, []byte(m.Image))
	case protocol.Mod:
		err = s.SelectModule(m.Mod)
	default:
		return nil, errors.New(errors.ErrCodeUnknownMessage, "unexpected %s request", req.Type())
	}
	if err != nil {
		s.report(err)
	}
	return nil, err
}

// submit queues v for rendering and remembers which selection it shows.
func (s *Session) submit(v modgraph.View) {
	if v.Warning != "" {
		s.opts.Notifier.Warn(v.Warning)
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.mu.Lock()
	s.submitted[v.Source] = submission{mod: v.Selection, mods: s.mods}
	s.lastSource = v.Source
	s.mu.Unlock()
	s.scheduler.Submit(v.Source)
}

func (s *Session) render(ctx context.Context, source string) ([]byte, error) {
	if source == modgraph.EmptyDigraph {
		return nil, nil
	}
	return s.opts.Render(ctx, source)
}

func (s *Session) onSuccess(source string, img []byte) {
	s.mu.Lock()
	sub, ok := s.submitted[source]
	if !ok {
		sub = submission{mod: s.selection, mods: s.mods}
	}
	// Only the newest source can still be rendered.
	for src := range s.submitted {
		if src != s.lastSource {
			delete(s.submitted, src)
		}
	}
	s.mu.Unlock()

	s.post(protocol.Success{Image: string(img), Mods: sub.mods, Mod: sub.mod})
}

func (s *Session) onFailure(_ string, err error) {
	s.post(protocol.Failure{Message: errors.UserMessage(err)})
}

func (s *Session) scanFailed(err error) {
	s.log.Error("scan failed", "dir", s.dir, "error", err)
	s.opts.Notifier.Error(modgraph.NeedScanNotice)
	s.post(protocol.Failure{Message: modgraph.NeedScanNotice + "\n" + errors.UserMessage(err)})
}

// report surfaces a failed page request to both the user and the page.
func (s *Session) report(err error) {
	msg := errors.UserMessage(err)
	s.opts.Notifier.Error(msg)
	s.post(protocol.Failure{Message: msg})
}

func (s *Session) post(msg protocol.Message) {
	m := s.channel()
	if m == nil {
		return
	}
	if _, err := m.Send(s.ctx, msg); err != nil && !errors.Is(err, errors.ErrCodeChannelClosed) && s.ctx.Err() == nil {
		s.log.Warn("send to preview", "type", msg.Type(), "error", err)
	}
}
