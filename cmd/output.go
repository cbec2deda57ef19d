package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/muesli/termenv"

	"github.com/zjrosen/appwatch/internal/watcher"
)

// printer writes events as colored text lines or JSON lines.
type printer struct {
	out  *termenv.Output
	enc  *json.Encoder
	now  func() time.Time
	kind map[watcher.EventKind]termenv.Color
}

func newPrinter(w io.Writer, asJSON bool, opts ...termenv.OutputOption) *printer {
	p := &printer{now: time.Now}
	if asJSON {
		p.enc = json.NewEncoder(w)
		return p
	}

	p.out = termenv.NewOutput(w, opts...)
	p.kind = map[watcher.EventKind]termenv.Color{
		watcher.KindLaunched:                p.out.Color("2"),
		watcher.KindFinishedLaunching:       p.out.Color("2"),
		watcher.KindActivated:               p.out.Color("4"),
		watcher.KindTerminated:              p.out.Color("1"),
		watcher.KindHidden:                  p.out.Color("8"),
		watcher.KindUnhidden:                p.out.Color("8"),
		watcher.KindActivationPolicyChanged: p.out.Color("3"),
	}
	return p
}

func (p *printer) print(ev watcher.Event) error {
	if p.enc != nil {
		return p.enc.Encode(ev)
	}

	ts := p.out.String(p.now().Format("15:04:05.000")).Faint()
	kind := p.out.String(fmt.Sprintf("%-26s", ev.Kind)).Foreground(p.kind[ev.Kind])

	var detail string
	switch ev.Kind {
	case watcher.KindLaunched:
		detail = fmt.Sprintf("%d apps", len(ev.Apps))
		for _, a := range ev.Apps {
			detail += " " + a.String()
		}
	case watcher.KindActivationPolicyChanged:
		detail = fmt.Sprintf("%s %s", ev.App, ev.App.ActivationPolicy)
	default:
		detail = ev.App.String()
	}

	_, err := fmt.Fprintf(p.out, "%s %s %s\n", ts, kind, detail)
	return err
}
