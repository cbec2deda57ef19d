package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/appwatch/internal/log"
	"github.com/zjrosen/appwatch/internal/workspace/memory"
)

// Script is a recorded session: the state present before watching starts,
// then timed steps.
//
//	name: mail launch
//	initial:
//	  - op: apps
//	    apps:
//	      - {handle: 1, pid: 100, bundle_id: com.apple.finder, finished_launching: true}
//	steps:
//	  - op: launch
//	    handle: 2
//	    pid: 200
//	    bundle_id: com.apple.mail
//	  - delay: 250ms
//	    op: set
//	    handle: 2
//	    property: finished_launching
//	    value: true
type Script struct {
	Name    string   `yaml:"name"`
	Initial []Record `yaml:"initial"`
	Steps   []Step   `yaml:"steps"`
}

// Step is one record, applied after Delay.
type Step struct {
	Record `yaml:",inline"`
	Delay  time.Duration `yaml:"delay"`
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := ParseScript(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScript decodes a YAML script. Unknown keys are rejected.
func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	for i, step := range s.Steps {
		if step.Delay < 0 {
			return nil, fmt.Errorf("%w: step %d: negative delay", ErrInvalidRecord, i)
		}
	}
	return &s, nil
}

// Setup applies the initial records.
func (s *Script) Setup(ws *memory.Workspace) error {
	for i, rec := range s.Initial {
		if err := Apply(ws, rec); err != nil {
			return fmt.Errorf("initial %d (%s): %w", i, rec.Op, err)
		}
	}
	return nil
}

// Play applies each step in order, waiting out its delay first. It stops at
// the first failing step or when ctx is cancelled.
func Play(ctx context.Context, s *Script, ws *memory.Workspace) error {
	for i, step := range s.Steps {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := Apply(ws, step.Record); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		log.Debug(log.CatFeed, "step", "script", s.Name, "index", i, "op", step.Op)
	}
	return nil
}
