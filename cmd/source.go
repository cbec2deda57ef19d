package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/appwatch/internal/config"
	"github.com/zjrosen/appwatch/internal/feed"
	"github.com/zjrosen/appwatch/internal/flags"
	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/procinfo"
	"github.com/zjrosen/appwatch/internal/sysctl"
	"github.com/zjrosen/appwatch/internal/watcher"
	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

var errNoSource = errors.New("no notification source: pass --feed FILE or --script FILE (there is no live application layer bridge in this build)")

// source is a simulated application layer and whatever drives it.
type source struct {
	ws *memory.Workspace
	// drive feeds notifications until ctx is done, or until a script ends.
	drive func(ctx context.Context) error
	// finite is set for scripts, which end on their own.
	finite bool
}

func openSource(fc config.FeedConfig) (*source, error) {
	if err := config.ValidateFeed(fc); err != nil {
		return nil, err
	}
	ws := memory.New()

	switch {
	case fc.Script != "":
		script, err := feed.LoadScript(fc.Script)
		if err != nil {
			return nil, err
		}
		if err := script.Setup(ws); err != nil {
			return nil, fmt.Errorf("script %s: %w", fc.Script, err)
		}
		log.Info(log.CatFeed, "playing script", "path", fc.Script, "name", script.Name, "steps", len(script.Steps))
		return &source{
			ws:     ws,
			drive:  func(ctx context.Context) error { return feed.Play(ctx, script, ws) },
			finite: true,
		}, nil

	case fc.Path != "":
		log.Info(log.CatFeed, "tailing feed", "path", fc.Path)
		return &source{
			ws:    ws,
			drive: func(ctx context.Context) error { return feed.Tail(ctx, fc.Path, ws) },
		}, nil
	}
	return nil, errNoSource
}

// newClient wires the filters and observers from c around ws.
func newClient(c config.Config, ws *memory.Workspace, tracer trace.Tracer, rec watcher.Recorder) *watcher.Client {
	registry := flags.New(c.Flags)

	var classifierOpts []procinfo.Option
	if registry.Enabled(flags.FlagClassifierCache) {
		classifierOpts = append(classifierOpts, procinfo.WithCache(c.Watcher.ClassifierCacheTTL))
	}

	return watcher.NewClient(watcher.Options{
		Workspace:          ws,
		Classifier:         procinfo.NewClassifier(ws, classifierOpts...),
		Zombies:            sysctl.NewDetector(ws),
		ExceptionBundleIDs: c.Watcher.ExceptionBundleIDs,
		Flags:              registry,
		Tracer:             tracer,
		Recorder:           rec,
	})
}
