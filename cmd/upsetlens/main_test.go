package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/upsetlens/internal/config"
	"github.com/okian/upsetlens/pkg/logger"
)

func init() {
	_ = logger.Init(logger.Options{Output: io.Discard})
}

func TestWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.ShardCount = 2

		convey.Convey("When the service and handler are built", func() {
			svc, closeStore, err := newService(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeStore()
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			ts := httptest.NewServer(newHandler(cfg, svc))
			defer ts.Close()

			convey.Convey("Then sessions can be created", func() {
				resp, err := http.Post(ts.URL+"/sessions", "application/json", nil)
				convey.So(err, convey.ShouldBeNil)
				defer resp.Body.Close()
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusCreated)
				convey.So(svc.GetStats()["persistent"], convey.ShouldEqual, false)
			})
		})

		convey.Convey("When in-memory snapshots are enabled", func() {
			cfg.SnapshotInMemory = true
			svc, closeStore, err := newService(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer closeStore()
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the service is persistent", func() {
				convey.So(svc.GetStats()["persistent"], convey.ShouldEqual, true)
			})
		})

		convey.Convey("When run is cancelled", func() {
			cfg.Addr = "127.0.0.1:0"
			runCtx, cancel := context.WithCancel(ctx)
			cancel()

			convey.Convey("Then it shuts down cleanly", func() {
				convey.So(run(runCtx, cfg), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the listen address is unusable", func() {
			cfg.Addr = "not an address"
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			convey.Convey("Then run reports the listen error", func() {
				err := run(runCtx, cfg)
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(strings.Contains(err.Error(), "listen"), convey.ShouldBeTrue)
			})
		})
	})
}
