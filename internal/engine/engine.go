// Package engine keeps a mutating document dark. It paints a placeholder
// scheme, sweeps what already exists once the body is ready, then handles
// every later mutation as a task on a single-threaded loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/jmylchreest/umbra/internal/dom"
	"github.com/jmylchreest/umbra/internal/prefs"
	"github.com/jmylchreest/umbra/internal/rewrite"
	"github.com/jmylchreest/umbra/internal/stylesheet"
)

// Placeholder colours painted before the sweep completes.
const (
	PlaceholderColor      = "rgb(235, 235, 235)"
	PlaceholderBackground = "rgb(30, 30, 30)"
)

// PlaceholderCSS is the stylesheet injected during the initial paint.
const PlaceholderCSS = "html, body { color: " + PlaceholderColor + " !important; background-color: " +
	PlaceholderBackground + " !important; }"

// Attributes written on elements the engine creates.
const (
	AttrPlaceholder = "data-umbra-placeholder"
	AttrSource      = "data-umbra-source"
)

// FetchErrorPrefix opens the body of a stylesheet synthesised for a link whose
// text could not be fetched.
const FetchErrorPrefix = "umbra:fetch-error"

// Default timings.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultReadyTimeout = 3 * time.Second
)

// State is the engine lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitialPaint
	StateInitialSweep
	StateSteady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialPaint:
		return "initial-paint"
	case StateInitialSweep:
		return "initial-sweep"
	case StateSteady:
		return "steady"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Fetcher retrieves the text of a remote stylesheet.
type Fetcher interface {
	FetchCSS(ctx context.Context, url string) (string, error)
}

// Options configures an Engine.
type Options struct {
	Prefs   prefs.Preferences
	Table   rewrite.Table // nil means rewrite.DefaultTable()
	Fetcher Fetcher       // nil disables linked stylesheets
	Logger  hclog.Logger

	PollInterval time.Duration
	ReadyTimeout time.Duration
}

// Stats counts what an engine has done.
type Stats struct {
	Elements       int `json:"elements"`
	Sheets         int `json:"sheets"`
	FetchedSheets  int `json:"fetchedSheets"`
	FetchFailures  int `json:"fetchFailures"`
	DimmedImages   int `json:"dimmedImages"`
	IgnoredEchoes  int `json:"ignoredEchoes"`
	Retransformed  int `json:"retransformed"`
	PlaceholderTry int `json:"placeholderTries"`
}

type mark struct {
	// style is the style attribute text the engine last wrote, if any.
	style   string
	written bool
}

// Engine applies the dark scheme to one document. All document access after
// Start happens on the engine's loop; use Do to mutate the document.
type Engine struct {
	doc     *dom.Document
	loop    *Loop
	prefs   prefs.Preferences
	rw      *rewrite.Rewriter
	sheets  *stylesheet.Transformer
	fetcher Fetcher
	logger  hclog.Logger

	pollInterval time.Duration
	readyTimeout time.Duration

	mu    sync.Mutex
	state State
	stats Stats

	// Loop-confined.
	marks       map[*html.Node]*mark
	pending     []*html.Node
	pendingSet  map[*html.Node]bool
	placeholder *html.Node
	unobserve   func()
	ctx         context.Context
}

// New creates an engine for doc. Nothing happens until Start.
func New(doc *dom.Document, opts Options) *Engine {
	table := opts.Table
	if table == nil {
		table = rewrite.DefaultTable()
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ready := opts.ReadyTimeout
	if ready <= 0 {
		ready = DefaultReadyTimeout
	}

	rw := rewrite.New(table, opts.Prefs.Thresholds())
	return &Engine{
		doc:          doc,
		loop:         NewLoop(),
		prefs:        opts.Prefs,
		rw:           rw,
		sheets:       stylesheet.New(rw, nil),
		fetcher:      opts.Fetcher,
		logger:       logger,
		pollInterval: poll,
		readyTimeout: ready,
		marks:        make(map[*html.Node]*mark),
		pendingSet:   make(map[*html.Node]bool),
		ctx:          context.Background(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	e.logger.Debug("state changed", "from", prev, "to", s)
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) count(fn func(*Stats)) {
	e.mu.Lock()
	fn(&e.stats)
	e.mu.Unlock()
}

// Start runs the engine until ctx is cancelled. It returns once the initial
// sweep has been scheduled; later mutations are handled in the background.
// When the preferences disable the engine for this document, Start returns
// nil without touching it and the engine stays idle.
func (e *Engine) Start(ctx context.Context) error {
	if ok, reason := e.prefs.Allows(e.doc.Hostname()); !ok {
		e.logger.Debug("engine disabled for document", "host", e.doc.Hostname(), "reason", reason)
		return nil
	}
	if e.State() != StateIdle {
		return fmt.Errorf("engine already started")
	}

	e.ctx = ctx
	go func() {
		if err := e.loop.Run(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("loop stopped", "error", err)
		}
		// The loop has stopped, so nothing else touches the document.
		if e.unobserve != nil {
			e.unobserve()
		}
	}()

	deadline := time.Now().Add(e.readyTimeout)

	e.setState(StateInitialPaint)
	e.loop.Post(func() { e.insertPlaceholder(deadline) })

	e.setState(StateInitialSweep)
	if err := e.waitReady(ctx, deadline); err != nil {
		return err
	}

	// The observer is armed in one task and the document enumerated in a
	// later one, so nothing inserted in between can be missed.
	e.loop.Post(e.arm)
	e.loop.Post(e.sweep)
	return nil
}

// Do runs fn against the document on the engine's loop and waits for it.
// Mutations made by fn are observed like any page change.
func (e *Engine) Do(ctx context.Context, fn func(doc *dom.Document)) error {
	if e.State() == StateIdle {
		fn(e.doc)
		return nil
	}
	return e.loop.Call(ctx, func() { fn(e.doc) })
}

// Settle waits until every queued task, fetch and retry has completed.
func (e *Engine) Settle(ctx context.Context) error {
	if e.State() == StateIdle {
		return nil
	}
	return e.loop.Settle(ctx)
}

func (e *Engine) insertPlaceholder(deadline time.Time) {
	e.count(func(s *Stats) { s.PlaceholderTry++ })

	parent := e.doc.Head()
	if parent == nil {
		parent = e.doc.DocumentElement()
	}
	if parent == nil {
		if time.Now().After(deadline) {
			e.logger.Debug("no element to hold the placeholder, giving up")
			return
		}
		e.loop.After(e.pollInterval, func() { e.insertPlaceholder(deadline) })
		return
	}

	style := dom.NewElement("style", html.Attribute{Key: AttrPlaceholder, Val: "true"})
	style.AppendChild(&html.Node{Type: html.TextNode, Data: PlaceholderCSS})
	e.marks[style] = &mark{}
	e.placeholder = style
	e.doc.AppendChild(parent, style)
}

func (e *Engine) waitReady(ctx context.Context, deadline time.Time) error {
	ready := func() (bool, error) {
		var ok bool
		err := e.loop.Call(ctx, func() { ok = e.doc.Body() != nil })
		return ok, err
	}

	ok, err := ready()
	if err != nil || ok {
		return err
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(time.Until(deadline))
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			e.logger.Debug("body not ready before timeout, sweeping what exists")
			return nil
		case <-ticker.C:
			ok, err := ready()
			if err != nil || ok {
				return err
			}
		}
	}
}

func (e *Engine) arm() {
	e.unobserve = e.doc.Observe(e.observe)
}

func (e *Engine) sweep() {
	for _, n := range dom.Elements(e.doc.Root()) {
		e.enqueue(n)
	}
	e.logger.Debug("initial sweep", "pending", len(e.pending))

	pending := e.pending
	e.pending = nil
	e.pendingSet = nil
	for _, n := range pending {
		e.process(n)
	}
	e.setState(StateSteady)
}

func (e *Engine) enqueue(n *html.Node) {
	if e.pendingSet[n] || !e.wanted(n) {
		return
	}
	e.pendingSet[n] = true
	e.pending = append(e.pending, n)
}

// wanted reports whether n is something the engine transforms in the current
// parser mode.
func (e *Engine) wanted(n *html.Node) bool {
	if n.Type != html.ElementNode || dom.IsElement(n, atom.Script) {
		return false
	}
	if dom.IsElement(n, atom.Style) || dom.IsElement(n, atom.Link) {
		return e.stylesheetMode() && (dom.IsElement(n, atom.Style) || dom.IsStylesheetLink(n))
	}
	return true
}

func (e *Engine) stylesheetMode() bool {
	return e.prefs.StylesheetParserMode == prefs.ParserModeStylesheet
}

// observe runs synchronously inside whichever task made the mutation. Until
// the sweep has drained, additions join the pending set; afterwards every
// record becomes its own task.
func (e *Engine) observe(rec dom.Record) {
	if e.pendingSet != nil {
		if rec.Kind == dom.ChildList {
			for _, n := range rec.Added {
				for _, el := range dom.Elements(n) {
					e.enqueue(el)
				}
			}
		}
		return
	}
	e.loop.Post(func() { e.handle(rec) })
}

func (e *Engine) handle(rec dom.Record) {
	switch rec.Kind {
	case dom.ChildList:
		if dom.IsElement(rec.Target, atom.Style) {
			e.handleStyleText(rec.Target)
			return
		}
		for _, n := range rec.Added {
			for _, el := range dom.Elements(n) {
				if e.wanted(el) {
					e.process(el)
				}
			}
		}
	case dom.Attributes:
		if rec.AttributeName == "style" {
			e.handleStyleAttribute(rec.Target)
		}
	}
}

// process transforms n once.
func (e *Engine) process(n *html.Node) {
	if _, done := e.marks[n]; done {
		return
	}
	if !e.doc.Attached(n) {
		return
	}
	e.marks[n] = &mark{}

	switch {
	case dom.IsElement(n, atom.Style):
		e.rewriteStyleElement(n)
	case dom.IsElement(n, atom.Link):
		e.fetchLink(n)
	default:
		e.transformElement(n, true)
	}
}

func (e *Engine) handleStyleAttribute(n *html.Node) {
	m, ok := e.marks[n]
	if !ok {
		// Not processed yet; the sweep or an insertion will get to it.
		return
	}
	current, _ := dom.Attr(n, "style")
	if m.written && current == m.style {
		e.count(func(s *Stats) { s.IgnoredEchoes++ })
		return
	}
	e.count(func(s *Stats) { s.Retransformed++ })
	e.transformElement(n, false)
}

func (e *Engine) handleStyleText(n *html.Node) {
	if _, ok := e.marks[n]; !ok || n == e.placeholder || !e.stylesheetMode() {
		return
	}
	if stylesheet.IsProcessed(dom.TextContent(n)) {
		return
	}
	e.count(func(s *Stats) { s.Retransformed++ })
	e.rewriteStyleElement(n)
}

// sheetTransformer returns a transformer resolving var() against the root
// custom properties of the document as it is now.
func (e *Engine) sheetTransformer() *stylesheet.Transformer {
	return e.sheets.WithVars(e.doc.ScopeOf(nil))
}

func (e *Engine) rewriteStyleElement(n *html.Node) {
	text := dom.TextContent(n)
	out := e.sheetTransformer().RewriteText(text)
	if out == text {
		return
	}
	e.doc.SetText(n, out)
	e.count(func(s *Stats) { s.Sheets++ })
}
