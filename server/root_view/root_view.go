package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"chartview/config"
	cb "chartview/server/chart_behavior"
	"chartview/server/chart_views"
	"chartview/server/fastview"
	"chartview/telemetry"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
)

// batchRate is how long element updates are collected before being passed on.
const batchRate = time.Millisecond * 20

// snapshotter is a view whose current content is served with the page.
type snapshotter interface {
	ID() string
	Snapshot() template.HTML
}

// RootView is the main page's index.html, which is the container for all the
// view components, the wiring for their channels, etc.
type RootView struct {
	views      []fastview.ViewComponent
	updates    <-chan []fastview.EleUpdate
	assetsHost string
}

// NewRootView creates the main page and the views it contains. Every view is fed the
// sampled telemetry windows; chart views draw with lib once it loads.
func NewRootView(
	ctx context.Context,
	samples <-chan []telemetry.Sample,
	lib cb.Library,
	charts []config.ChartConfig,
	assetsHost string,
	log zerolog.Logger,
) (*RootView, error) {
	views, err := fastview.NewViewBuilder[[]telemetry.Sample, chart_views.Window]().
		WithContext(ctx).
		WithModel(samples, chart_views.Convert).
		WithView(func(
			done <-chan struct{},
			windows <-chan chart_views.Window,
		) (fastview.ViewComponent, error) {
			return chart_views.NewGauges(done, windows), nil
		}).
		WithView(func(
			_ <-chan struct{},
			windows <-chan chart_views.Window,
		) (fastview.ViewComponent, error) {
			return chart_views.NewTelemetryView(ctx, windows, lib, charts, log)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build views: %w", err)
	}

	return &RootView{
		views:      views,
		updates:    fanIn(ctx.Done(), views),
		assetsHost: assetsHost,
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Snapshots returns the current content of views that render server side, keyed by
// view id. It is the data the page template is executed with.
func (rv *RootView) Snapshots() map[string]template.HTML {
	snapshots := map[string]template.HTML{}
	for _, vc := range rv.views {
		if view, ok := vc.(snapshotter); ok {
			snapshots[view.ID()] = view.Snapshot()
		}
	}
	return snapshots
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	viewTemplates := []string{}
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(parent)
		if parseErr != nil {
			return "", parseErr
		}
		viewTemplates = append(viewTemplates, tname)
	}

	// Specify the nested templates
	var bodySpec string
	for _, tname := range viewTemplates {
		bodySpec += (`{{ template "` + tname + `" . }}`)
	}

	// The main template bootstraps the rest: loads echarts, sets up the client websocket
	// and applies updates, and aggregates views.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<script src="` + template.HTMLEscapeString(rv.assetsHost) + `echarts.min.js"></script>
			<!--This is the client bootstrap code by which the server pushes new data to the view via websocket.-->
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				// Listen for errors
				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				// Scripts inserted via innerHTML do not run; replace each with a live copy.
				// The block scopes the chart's declarations so that redraws can redeclare them.
				function runScripts(ele) {
					for (const old of ele.querySelectorAll("script")) {
						const live = document.createElement("script");
						live.text = "{" + old.text + "}";
						old.replaceWith(live);
					}
				}

				// The meat: when the server pushes view updates, find these eles and update them.
				ws.onmessage = function (event) {
					const items = JSON.parse(event.data)
					for (const update of items) {
						let ele = document.getElementById(update.EleId)
						if (ele && update.Selector) {
							ele = ele.querySelector(update.Selector)
						}
						if (!ele) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "textContent") {
								ele.textContent = op.Value;
							} else if (op.Key === "innerHTML") {
								ele.innerHTML = op.Value;
								runScripts(ele);
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body>
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = parent.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single channel,
// and throttles its output.
func fanIn(
	done <-chan struct{},
	views []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(views))
	for i, view := range views {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify batches within the passed time frame before sending, over-writing previously
// received values for the same element. This ensures that redundant updates for the
// same element are not sent, and only the latest values are sent. Batches keep the
// order in which elements were first updated; a batch is flushed on the first tick after
// it was started, and once more when the source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		data := map[string]fastview.EleUpdate{}
		var order []string
		flush := func() bool {
			if len(order) == 0 {
				return true
			}
			batch := make([]fastview.EleUpdate, 0, len(order))
			for _, key := range order {
				batch = append(batch, data[key])
			}
			select {
			case output <- batch:
				data, order = map[string]fastview.EleUpdate{}, nil
				return true
			case <-done:
				return false
			}
		}

		ticker := channerics.NewTicker(done, rate)
		for {
			select {
			case <-done:
				return
			case updates, ok := <-source:
				if !ok {
					flush()
					return
				}
				// Intentionally overwrites pre-existing values for an element within this batch's time frame.
				for _, update := range updates {
					if _, seen := data[update.Key()]; !seen {
						order = append(order, update.Key())
					}
					data[update.Key()] = update
				}
			case <-ticker:
				if !flush() {
					return
				}
			}
		}
	}()

	return output
}
