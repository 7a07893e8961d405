// fastview implements simple server side views: a view renders its template into a
// document, hosts behaviors that extend it, and publishes element updates to web clients.
package fastview

import (
	"html/template"
)

// InnerHTML is the reserved op key for replacing the content of an element.
const InnerHTML = "innerHTML"

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Selector optionally narrows the update to the first descendant of EleId matching it.
	Selector string `json:",omitempty"`
	// Op keys are attrib keys or 'textContent'/'innerHTML', values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123. ('textContent','abc') means
	// 'set ele.textContent to abc'.
	Ops []Op
}

// Key identifies the element an update targets; later updates to the same key supersede earlier ones.
func (update EleUpdate) Key() string {
	return update.EleId + "|" + update.Selector
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// ViewComponent implements server side views: Parse to add their initial form to the
// page template and Updates to obtain the chan by which ele-updates are notified.
type ViewComponent interface {
	Updates() <-chan []EleUpdate
	// Parse adds the view-component's definition to the passed parent template and returns
	// the name under which it was defined.
	Parse(*template.Template) (string, error)
}

// RendererOptions controls how a view re-renders its template.
type RendererOptions struct {
	// IgnoreElements are selectors whose content survives re-rendering untouched;
	// they are owned by something other than the template, like a chart.
	IgnoreElements []string
}

// RendererOptionsFunc returns the options for a single render pass.
type RendererOptionsFunc func() RendererOptions
