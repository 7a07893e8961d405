package fastview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Behavior is a reusable unit of view logic attached to a host view. The host calls its
// hooks in the order Initialize, PostInitialize, PostRender (any number of times), Dispose.
// Every call is made from the host's loop, so behaviors need no locking of their own.
type Behavior interface {
	Initialize(Host) error
	PostInitialize() error
	PostRender() error
	Dispose()
}

// Host is the part of a View that its behaviors may use.
type Host interface {
	ID() string
	// Find resolves a selector to a node scoped to the view's rendered root.
	Find(selector string) (Node, error)
	// Render re-renders the view. Only call it from the view's loop.
	Render() error
	// RequestRender queues a render onto the view's loop unless one is already queued,
	// so that requests made in the same batch of jobs share a render. Loop only.
	RequestRender()
	// On subscribes a handler to a named event; see View.Trigger.
	On(event string, handler func() error)
	// Dispatch queues a job onto the view's loop. Safe from any goroutine.
	Dispatch(job func() error)
	// AddIgnoreElement adds a selector to the view's own ignore list.
	AddIgnoreElement(selector string)
	// WrapRendererOptions replaces the view's renderer options func with wrap(current).
	WrapRendererOptions(wrap func(RendererOptionsFunc) RendererOptionsFunc)
}

var (
	// ErrDisposed is returned when rendering a view after Dispose.
	ErrDisposed = errors.New("view disposed")
	// ErrNodeNotFound is returned when a selector matches nothing in the rendered view.
	ErrNodeNotFound = errors.New("no element matches selector")
)

// View is a template-backed host for behaviors. All state is owned by the loop run by Run;
// other goroutines interact with it via Dispatch and Trigger only.
type View struct {
	id        string
	tmpl      *template.Template
	model     func() any
	behaviors []Behavior
	log       zerolog.Logger

	// Loop-owned state.
	ignore          []string
	rendererOptions RendererOptionsFunc
	handlers        map[string][]func() error
	doc             *goquery.Document
	pending         []EleUpdate
	renderQueued    bool
	disposed        bool

	mu       sync.Mutex
	queue    []func() error
	snapshot string

	wake    chan struct{}
	updates chan []EleUpdate
}

// ViewOption configures a View.
type ViewOption func(*View)

// WithBehaviors attaches behaviors to the view, in order.
func WithBehaviors(behaviors ...Behavior) ViewOption {
	return func(v *View) {
		v.behaviors = append(v.behaviors, behaviors...)
	}
}

// WithLogger sets the view's logger.
func WithLogger(log zerolog.Logger) ViewOption {
	return func(v *View) {
		v.log = log
	}
}

// NewView parses the template and initializes its behaviors. The model func is called
// on every render, from the view's loop, to obtain the template's data.
func NewView(
	id string,
	tmpl string,
	model func() any,
	opts ...ViewOption,
) (*View, error) {
	if strings.Contains(id, "-") {
		return nil, fmt.Errorf("view id %q: hyphens interfere with html/template's `template` directive", id)
	}

	v := &View{
		id:       id,
		model:    model,
		log:      zerolog.Nop(),
		handlers: map[string][]func() error{},
		wake:     make(chan struct{}, 1),
		updates:  make(chan []EleUpdate),
	}
	v.rendererOptions = v.defaultRendererOptions
	for _, opt := range opts {
		opt(v)
	}
	if v.model == nil {
		v.model = func() any { return nil }
	}

	var err error
	if v.tmpl, err = template.New(id).Parse(tmpl); err != nil {
		return nil, fmt.Errorf("parse view %s: %w", id, err)
	}

	for _, b := range v.behaviors {
		if err = b.Initialize(v); err != nil {
			return nil, fmt.Errorf("initialize behavior of %s: %w", id, err)
		}
	}
	for _, b := range v.behaviors {
		if err = b.PostInitialize(); err != nil {
			return nil, fmt.Errorf("post-initialize behavior of %s: %w", id, err)
		}
	}

	return v, nil
}

// ID returns the view's id, which is also the id of its root element.
func (v *View) ID() string {
	return v.id
}

// Updates returns the chan of element updates produced by renders and behaviors.
// It is closed when Run returns.
func (v *View) Updates() <-chan []EleUpdate {
	return v.updates
}

// Run is the view's loop: it runs dispatched jobs one at a time and publishes the
// element updates they produce. When ctx is done the view is disposed and Run returns nil.
func (v *View) Run(ctx context.Context) error {
	defer close(v.updates)

	for {
		// Nil chans block, so updates are only offered when some are pending.
		var out chan<- []EleUpdate
		if len(v.pending) > 0 {
			out = v.updates
		}

		select {
		case <-ctx.Done():
			v.Dispose()
			return nil
		case <-v.wake:
			v.runPending()
		case out <- v.pending:
			v.pending = nil
		}
	}
}

// Dispatch queues a job onto the view's loop. Errors returned by jobs are logged.
func (v *View) Dispatch(job func() error) {
	v.mu.Lock()
	v.queue = append(v.queue, job)
	v.mu.Unlock()

	select {
	case v.wake <- struct{}{}:
	default:
	}
}

// Trigger dispatches the handlers subscribed to the event.
func (v *View) Trigger(event string) {
	v.Dispatch(func() error {
		return v.emit(event)
	})
}

// On subscribes a handler to the named event. Loop only.
func (v *View) On(event string, handler func() error) {
	v.handlers[event] = append(v.handlers[event], handler)
}

func (v *View) emit(event string) error {
	var errs []error
	for _, handler := range v.handlers[event] {
		if err := handler(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *View) runPending() {
	v.mu.Lock()
	jobs := v.queue
	v.queue = nil
	v.mu.Unlock()

	for _, job := range jobs {
		if err := job(); err != nil {
			v.log.Error().Err(err).Str("view", v.id).Msg("view job failed")
		}
	}
}

// AddIgnoreElement adds a selector to the view's own ignore list.
func (v *View) AddIgnoreElement(selector string) {
	v.ignore = append(v.ignore, selector)
}

// WrapRendererOptions composes wrap around the current renderer options func.
func (v *View) WrapRendererOptions(wrap func(RendererOptionsFunc) RendererOptionsFunc) {
	v.rendererOptions = wrap(v.rendererOptions)
}

// RendererOptions returns the options the next render will use.
func (v *View) RendererOptions() RendererOptions {
	opts := v.rendererOptions()
	opts.IgnoreElements = lo.Uniq(opts.IgnoreElements)
	return opts
}

func (v *View) defaultRendererOptions() RendererOptions {
	return RendererOptions{IgnoreElements: append([]string(nil), v.ignore...)}
}

// Render executes the template, carries the content of ignored elements over from the
// previous render, publishes the new root content and then runs every behavior's PostRender.
func (v *View) Render() error {
	if v.disposed {
		return ErrDisposed
	}

	var buf bytes.Buffer
	if err := v.tmpl.Execute(&buf, v.model()); err != nil {
		return fmt.Errorf("render %s: %w", v.id, err)
	}
	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return fmt.Errorf("parse rendered %s: %w", v.id, err)
	}

	if v.doc != nil {
		for _, selector := range v.RendererOptions().IgnoreElements {
			if err = preserve(v.doc, doc, selector); err != nil {
				return err
			}
		}
	}
	v.doc = doc

	if err = v.publishRoot(); err != nil {
		return err
	}

	// One failing behavior does not keep the others from drawing.
	var errs []error
	for _, b := range v.behaviors {
		if err = b.PostRender(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequestRender dispatches a render unless one is already waiting to run.
func (v *View) RequestRender() {
	if v.renderQueued {
		return
	}
	v.renderQueued = true
	v.Dispatch(func() error {
		v.renderQueued = false
		return v.Render()
	})
}

// preserve copies the content of the first match of selector from prev into next.
func preserve(prev, next *goquery.Document, selector string) error {
	from, to := prev.Find(selector).First(), next.Find(selector).First()
	if from.Length() == 0 || to.Length() == 0 {
		return nil
	}
	content, err := from.Html()
	if err != nil {
		return fmt.Errorf("preserve %s: %w", selector, err)
	}
	to.SetHtml(content)
	return nil
}

// publishRoot queues the root update and refreshes the snapshot served with the page.
func (v *View) publishRoot() error {
	if err := v.publishSnapshot(); err != nil {
		return err
	}
	v.queueUpdate(EleUpdate{
		EleId: v.id,
		Ops:   []Op{{Key: InnerHTML, Value: string(v.Snapshot())}},
	})
	return nil
}

func (v *View) publishSnapshot() error {
	content, err := v.doc.Find("body").Html()
	if err != nil {
		return fmt.Errorf("serialize %s: %w", v.id, err)
	}
	v.setSnapshot(content)
	return nil
}

// queueUpdate adds an update to those pending publication, dropping older ones for the same element.
func (v *View) queueUpdate(update EleUpdate) {
	v.pending = append(v.pending, update)
	reversed := lo.Reverse(append([]EleUpdate(nil), v.pending...))
	v.pending = lo.Reverse(lo.UniqBy(reversed, EleUpdate.Key))
}

// Find resolves the selector against the last rendered document.
func (v *View) Find(selector string) (Node, error) {
	if v.doc == nil || v.doc.Find(selector).Length() == 0 {
		return nil, fmt.Errorf("%w: %s in view %s", ErrNodeNotFound, selector, v.id)
	}
	return &node{view: v, selector: selector}, nil
}

// Dispose disposes the view's behaviors in reverse order and drops event subscriptions.
// Calling it more than once is a no-op.
func (v *View) Dispose() {
	if v.disposed {
		return
	}
	v.disposed = true
	for i := len(v.behaviors) - 1; i >= 0; i-- {
		v.behaviors[i].Dispose()
	}
	v.handlers = map[string][]func() error{}
}

func (v *View) setSnapshot(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.snapshot = content
}

// Snapshot returns the root content of the last render. Safe from any goroutine.
func (v *View) Snapshot() template.HTML {
	v.mu.Lock()
	defer v.mu.Unlock()
	return template.HTML(v.snapshot)
}

// Parse defines the view's root element in the page template. The page's data must be
// a map of view ids to their snapshots, see Snapshot.
func (v *View) Parse(t *template.Template) (name string, err error) {
	name = v.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}<div id="` + v.id + `">{{ index . "` + v.id + `" }}</div>{{ end }}`)
	return
}
