package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/glorpus-work/stacgrab/pkg/fsutil"
)

// DefaultInterval is the wall-clock cadence of both the directory-size poller
// and the progress output.
const DefaultInterval = time.Second

// Monitor reports byte progress for one session. It runs two cooperating
// loops: a background task polling total directory size at a fixed interval
// into the session's shared cell, and a foreground consumer draining the
// event channel and advancing the byte counter from the observed size delta.
// Decoupling the two bounds filesystem-stat calls to a fixed rate no matter
// how many events arrive.
type Monitor struct {
	session  *Session
	interval time.Duration
	out      io.Writer
}

// NewMonitor creates a monitor for session. interval <= 0 falls back to
// DefaultInterval; out defaults to stdout.
func NewMonitor(session *Session, interval time.Duration, out io.Writer) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if out == nil {
		out = os.Stdout
	}
	return &Monitor{session: session, interval: interval, out: out}
}

// Run consumes the session's event channel until it is closed, then cancels
// the background poller and prints a final total. Run blocks; callers start
// it in its own goroutine alongside the orchestrator.
func (m *Monitor) Run(ctx context.Context) {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go m.pollDirSize(pollCtx, done)

	var total int64
	var prev int64
	lastReport := time.Now()

	for {
		select {
		case <-ctx.Done():
			<-done
			return
		case _, ok := <-m.session.Events:
			if !ok {
				cancel()
				<-done
				total += m.session.ObservedSize() - prev
				fmt.Fprintf(m.out, "\rdownloaded %s                \n", FormatBytes(float64(total)))
				return
			}
			if time.Since(lastReport) < m.interval {
				continue
			}
			lastReport = time.Now()
			observed := m.session.ObservedSize()
			total += observed - prev
			prev = observed
			fmt.Fprintf(m.out, "\rdownloading %s", FormatBytes(float64(total)))
		}
	}
}

// pollDirSize samples the output directory size at the configured interval.
// It only reads the tree and tolerates files appearing and vanishing under it.
func (m *Monitor) pollDirSize(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.session.setObservedSize(fsutil.DirSize(m.session.Dir))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// FormatBytes renders a byte count in human-readable binary units.
func FormatBytes(num float64) string {
	for _, unit := range []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB"} {
		if num < 1024.0 && num > -1024.0 {
			return fmt.Sprintf("%.1f %s", num, unit)
		}
		num /= 1024.0
	}
	return fmt.Sprintf("%.1f YiB", num)
}
