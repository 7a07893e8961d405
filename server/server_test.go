package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chartview/chart_lib"
	"chartview/config"
	"chartview/server/chart_views"
	"chartview/server/fastview"
	"chartview/server/root_view"
	"chartview/telemetry"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServer(t *testing.T) {
	Convey("Given a server over a live root view", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sampler := telemetry.NewSampler(time.Millisecond*10, 5)
		lib := chart_lib.NewLibrary(zerolog.Nop(), chart_lib.WithAssetsHost("/assets/"))
		rootView, err := root_view.NewRootView(ctx, sampler.Run(ctx), lib, config.Default().Charts, "/assets/", zerolog.Nop())
		So(err, ShouldBeNil)

		srv := httptest.NewServer(NewServer("", rootView, sampler, lib, zerolog.Nop()).Handler())
		defer srv.Close()

		Convey("The index page carries the views and the chart script", func() {
			resp, err := http.Get(srv.URL + "/")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(string(body), ShouldContainSubstring, "/assets/echarts.min.js")
			So(string(body), ShouldContainSubstring, `id="`+chart_views.TelemetryViewID+`"`)
		})

		Convey("Only GET is routed", func() {
			resp, err := http.Post(srv.URL+"/", "text/plain", strings.NewReader(""))
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Health reports the sampler and library", func() {
			lib.Load()
			time.Sleep(time.Millisecond * 50)

			resp, err := http.Get(srv.URL + "/health")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var report HealthReport
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			So(report.Status, ShouldEqual, "ok")
			So(report.ChartsLoaded, ShouldBeTrue)
			So(report.HeapMB, ShouldBeGreaterThan, 0.0)
			So(report.Client, ShouldBeFalse)
			So(report.Samples, ShouldBeBetweenOrEqual, 1, 5)
			So(report.LastSample, ShouldNotBeNil)
			So(*report.LastSample, ShouldHappenOnOrBefore, time.Now())
		})

		Convey("A websocket client receives element updates", func() {
			wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			So(conn.SetReadDeadline(time.Now().Add(2*time.Second)), ShouldBeNil)
			var updates []fastview.EleUpdate
			So(conn.ReadJSON(&updates), ShouldBeNil)
			So(updates, ShouldNotBeEmpty)

			Convey("And a second client is refused", func() {
				_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			})
		})
	})
}
