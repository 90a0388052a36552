package observability

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"

	"review_harvester/internal/domain"
)

// LogReporter turns progress events into log lines. Report never blocks:
// events are queued and dropped when the queue is full.
type LogReporter struct {
	log  zerolog.Logger
	ch   chan domain.Event
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewLogReporter(l zerolog.Logger, buffer int) *LogReporter {
	if buffer <= 0 {
		buffer = 256
	}
	r := &LogReporter{
		log:  l.With().Str("component", "progress").Logger(),
		ch:   make(chan domain.Event, buffer),
		done: make(chan struct{}),
	}
	go r.loop()
	return r
}

// Report after Close is a no-op.
func (r *LogReporter) Report(ev domain.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.ch <- ev:
	default:
		ReporterDropped.Inc()
	}
}

// Close flushes queued events and stops the reporter.
func (r *LogReporter) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *LogReporter) loop() {
	defer close(r.done)
	for ev := range r.ch {
		r.write(ev)
	}
}

func (r *LogReporter) write(ev domain.Event) {
	switch ev.Kind {
	case domain.EventRunStarted:
		r.log.Info().Int("targets", ev.Total).Msg("run started")
	case domain.EventTargetStarted:
		r.log.Info().
			Str("target", ev.Target).
			Str("key", ev.Key).
			Str("progress", fmt.Sprintf("%d/%d", ev.Index, ev.Total)).
			Msg("processing target")
	case domain.EventStoreLoaded:
		r.log.Info().Str("target", ev.Target).Int("existing", ev.Existing).Msg("existing reviews loaded")
	case domain.EventPageDone:
		r.log.Debug().
			Str("target", ev.Target).
			Int("page", ev.Page).
			Int("extracted", ev.Extracted).
			Int("new", ev.NewReviews).
			Int("total_new", ev.TotalNew).
			Msg("page done")
	case domain.EventTargetDone:
		e := r.log.Info()
		if ev.Status == domain.StatusFailed {
			e = r.log.Warn()
		}
		e.Str("target", ev.Target).
			Str("status", string(ev.Status)).
			Int("new", ev.NewReviews).
			Err(ev.Err).
			Msg("target finished")
	case domain.EventInvalidTarget:
		r.log.Warn().Str("target", ev.Target).Err(ev.Err).Msg("skipping invalid target")
	case domain.EventRunDone:
		r.log.Info().Int("targets", ev.Total).Int("new", ev.TotalNew).Msg("run finished")
	}
}

// RenderSummary prints the run summary as a table, in processing order.
func RenderSummary(w io.Writer, s *domain.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Status", "Company", "File", "New reviews", "Error"})
	for _, key := range s.Order {
		ts := s.Targets[key]
		msg := ts.Error
		if msg == "" {
			msg = ts.Warning
		}
		t.AppendRow(table.Row{ts.Status, ts.Company, ts.OutputFile, ts.NewReviews, msg})
	}
	for _, inv := range s.Invalid {
		t.AppendRow(table.Row{"invalid", inv.Identifier, "", 0, inv.Error})
	}
	t.AppendFooter(table.Row{"", "", "Total", s.TotalNewReviews, ""})
	t.SetStyle(table.StyleLight)
	t.Render()
}
