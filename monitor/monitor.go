package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gammazero/deque"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"vectionlab.net/vection/config"
	"vectionlab.net/vection/host"
	"vectionlab.net/vection/logging"
	"vectionlab.net/vection/sensor"
	"vectionlab.net/vection/util"
)

const (
	maxSensorHistory = 500
	monitorTitle     = " Vection Monitor "
	labelWidth       = 22
)

// Monitor is a terminal view of the running session: phase, stimulus
// frame, sensor history and the recorder windows, plus a log pane.
type Monitor struct {
	tuiApp   *tview.Application
	intro    *tview.TextView
	status   *tview.TextView
	logView  *tview.TextView
	history  *deque.Deque[float64]
	session  config.SessionConfig
	mu       sync.Mutex
	ossignal chan<- os.Signal
	response *host.HoldInput
	sensor   SensorStatus
	pending  *util.AtomicEvent[string]
	logOnce  sync.Once
}

// SensorStatus is what the monitor shows about a running sensor channel.
type SensorStatus interface {
	Stats() sensor.Stats
	Reading() (sensor.Reading, bool)
}

type valueStats struct {
	min    float64
	max    float64
	mean   float64
	stdDev float64
}

// New creates the monitor. response may be nil when no key should act as
// the response button.
func New(ossignal chan<- os.Signal, response *host.HoldInput) *Monitor {
	m := &Monitor{
		tuiApp:   tview.NewApplication(),
		history:  new(deque.Deque[float64]),
		ossignal: ossignal,
		response: response,
		pending:  util.NewAtomicEvent[string](),
	}
	m.history.Grow(maxSensorHistory)
	return m
}

// Start builds the UI and runs it until stopSignal is closed. It should
// be called as a goroutine.
func (m *Monitor) Start(stopSignal <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	m.setupUI()

	go func() {
		<-stopSignal
		slog.Info("Stopping monitor TUI...")
		m.tuiApp.Stop()
	}()

	stopped := make(chan struct{})
	go m.drawLoop(stopped)

	if err := m.tuiApp.Run(); err != nil {
		slog.Error("Error running monitor TUI", "error", err)
		m.signal(os.Interrupt)
	}
	close(stopped)
	logging.BufferOutput()
	slog.Info("Monitor TUI has stopped.")
}

// drawLoop hands the latest status text to the UI goroutine until the
// TUI has stopped. Texts rendered in between are skipped.
func (m *Monitor) drawLoop(stopped <-chan struct{}) {
	for {
		select {
		case <-stopped:
			return
		case <-m.pending.Channel():
			text, ok := m.pending.Load()
			if !ok {
				continue
			}
			m.tuiApp.QueueUpdateDraw(func() {
				m.status.SetText(text)
			})
		}
	}
}

// Follow shows the snapshots of one session until ctx is done. status may
// be nil when the session runs without a sensor channel.
func (m *Monitor) Follow(ctx context.Context, session config.SessionConfig, snapshots *util.AtomicEvent[host.Snapshot], status SensorStatus) {
	m.mu.Lock()
	m.session = session
	m.sensor = status
	m.history.Clear()
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshots.Channel():
			m.Update(snapshots.Value())
		}
	}
}

// Update records the snapshot's sensor value and schedules a redraw. It
// never waits for the UI. This method is safe for concurrent use.
func (m *Monitor) Update(snap host.Snapshot) {
	m.mu.Lock()
	text := m.render(snap)
	m.mu.Unlock()

	m.pending.Send(text)
}

func (m *Monitor) setupUI() {
	var introText strings.Builder
	if m.response != nil {
		introText.WriteString("Hold [blue]space[-] or [blue]1[-] to report vection\n")
	} else {
		introText.WriteString("Displaying the running session\n")
	}
	introText.WriteString("Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart, [#ff0000]Up/Down[-] to scroll logs")

	m.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(introText.String())
	m.intro.SetBorder(true).SetTitle(monitorTitle).SetTitleColor(tcell.ColorLightBlue)
	m.intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	m.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	m.status.SetBorder(true)
	m.status.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	m.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			m.logView.ScrollToEnd()
			m.tuiApp.Draw()
		})
	m.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	m.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.intro, 4, 0, false).
		AddItem(m.status, 10, 0, false).
		AddItem(m.logView, 0, 1, true)

	m.tuiApp.SetAfterDrawFunc(func(screen tcell.Screen) {
		m.logOnce.Do(func() {
			if err := logging.SetOutput(tview.ANSIWriter(m.logView)); err != nil {
				slog.Error("Can't redirect logs to monitor", "error", err)
			}
		})
	})

	m.tuiApp.SetRoot(layout, true).SetFocus(m.logView)
	m.tuiApp.SetInputCapture(m.handleKey)
}

func (m *Monitor) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		m.signal(os.Interrupt)
		return nil
	case tcell.KeyUp:
		row, col := m.logView.GetScrollOffset()
		m.logView.ScrollTo(row-1, col)
		return nil
	case tcell.KeyDown:
		row, col := m.logView.GetScrollOffset()
		m.logView.ScrollTo(row+1, col)
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			m.signal(os.Interrupt)
			return nil
		case 'r', 'R':
			m.signal(syscall.SIGHUP)
			return nil
		case ' ', '1':
			if m.response != nil {
				m.response.Press()
			}
			return nil
		}
	}
	return event
}

// signal must not block the UI goroutine; a pending signal is enough.
func (m *Monitor) signal(sig os.Signal) {
	select {
	case m.ossignal <- sig:
	default:
		slog.Warn("Signal dropped, another one is pending", "signal", sig)
	}
}

// render builds the status text. This method MUST be called with the
// mutex already held.
func (m *Monitor) render(snap host.Snapshot) string {
	if m.history.Len() == maxSensorHistory {
		m.history.PopFront()
	}
	m.history.PushBack(snap.Scene.Sensor)

	hist := make([]float64, m.history.Len())
	for i := range m.history.Len() {
		hist[i] = m.history.At(i)
	}

	var buf strings.Builder
	label := func(s string) {
		buf.WriteString(fmt.Sprintf("[yellow]%-*s[white]", labelWidth, s))
	}

	label(" Session")
	buf.WriteString(fmt.Sprintf("%s %s, speed %g, %g fps, %s #%d\n",
		m.session.Pattern, m.session.Direction, m.session.CameraSpeed, m.session.DisplayRate,
		m.session.Participant, m.session.TrialNumber))

	label(" Phase")
	buf.WriteString(fmt.Sprintf("%s %s%s\n", snap.Scene.Phase, formatSeconds(snap.Scene.Relative), blankMark(snap.Scene.Blank)))

	label(" Frame | Rows")
	buf.WriteString(fmt.Sprintf("%d | %d (tick %d, %s)\n", snap.FrameNum, snap.Rows, snap.Tick, formatSeconds(snap.Elapsed)))

	label(" Response")
	buf.WriteString(responseMark(snap.Scene.Response) + "\n")

	label(" Sensor [min|mean|max]")
	buf.WriteString(formatStats(calculateStats(hist)) + fmt.Sprintf("  now %.3f\n", snap.Scene.Sensor))

	if m.sensor != nil {
		s := m.sensor.Stats()
		label(" Sensor counters")
		buf.WriteString(fmt.Sprintf("readings %d, timeouts %d, malformed %d, faults %d, %s\n",
			s.Readings, s.Timeouts, s.Malformed, s.Faults, readingAge(m.sensor)))
	}

	label(" Window A [min|mean|max]")
	buf.WriteString(formatStats(calculateStats(snap.WindowA)) + fmt.Sprintf("  n=%d\n", len(snap.WindowA)))
	label(" Window B [min|mean|max]")
	buf.WriteString(formatStats(calculateStats(snap.WindowB)) + fmt.Sprintf("  n=%d", len(snap.WindowB)))

	return buf.String()
}

func formatStats(s valueStats) string {
	return fmt.Sprintf("[%6.3f|%6.3f|%6.3f] sd %5.3f", s.min, s.mean, s.max, s.stdDev)
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%7.3fs", v)
}

func blankMark(blank bool) string {
	if blank {
		return " [black:white]BLANK[-:-]"
	}
	return ""
}

func readingAge(status SensorStatus) string {
	r, ok := status.Reading()
	if !ok {
		return "no reading yet"
	}
	return fmt.Sprintf("last #%d %s ago", r.Seq, time.Since(r.Timestamp).Round(time.Millisecond))
}

func responseMark(pressed bool) string {
	if pressed {
		return "[green]pressed[-]"
	}
	return "released"
}

func calculateStats(data []float64) valueStats {
	if len(data) == 0 {
		return valueStats{}
	}
	mean, stdDev := stat.PopMeanStdDev(data, nil)
	return valueStats{
		min:    floats.Min(data),
		max:    floats.Max(data),
		mean:   mean,
		stdDev: stdDev,
	}
}
