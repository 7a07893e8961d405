package fastview

import "fmt"

// Node is a live element of a rendered view. It is resolved by selector against the
// view's current document on every use, so it stays valid across re-renders.
type Node interface {
	Selector() string
	HTML() (string, error)
	// SetHTML replaces the element's content and publishes the change to clients.
	SetHTML(content string) error
}

type node struct {
	view     *View
	selector string
}

func (n *node) Selector() string {
	return n.selector
}

func (n *node) HTML() (string, error) {
	sel := n.view.doc.Find(n.selector).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s in view %s", ErrNodeNotFound, n.selector, n.view.id)
	}
	return sel.Html()
}

func (n *node) SetHTML(content string) error {
	sel := n.view.doc.Find(n.selector).First()
	if sel.Length() == 0 {
		return fmt.Errorf("%w: %s in view %s", ErrNodeNotFound, n.selector, n.view.id)
	}
	sel.SetHtml(content)

	// Keep the page snapshot in step so newly connected clients see the content.
	if err := n.view.publishSnapshot(); err != nil {
		return err
	}
	n.view.queueUpdate(EleUpdate{
		EleId:    n.view.id,
		Selector: n.selector,
		Ops:      []Op{{Key: InnerHTML, Value: content}},
	})
	return nil
}
