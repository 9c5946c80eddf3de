package hotplug

import (
	"bytes"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Buffers prevent blocking if bursts occur
	EventBufferSize = 100
	JobBufferSize   = 10
)

// Action is the kernel uevent action of a CPU event.
type Action int

const (
	ActionAdd Action = iota
	ActionRemove
	ActionOnline
	ActionOffline
)

func (a Action) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionRemove:
		return "remove"
	case ActionOnline:
		return "online"
	case ActionOffline:
		return "offline"
	}
	return "unknown"
}

func parseAction(s string) (Action, bool) {
	switch s {
	case "add":
		return ActionAdd, true
	case "remove":
		return ActionRemove, true
	case "online":
		return ActionOnline, true
	case "offline":
		return ActionOffline, true
	}
	return 0, false
}

// Event is a single CPU hotplug uevent.
type Event struct {
	CPU    int
	Action Action
}

// ParseUevent decodes a NETLINK_KOBJECT_UEVENT message. It reports false
// for messages that are not CPU add/remove/online/offline events.
//
// Layout: "action@devpath\0KEY=VALUE\0KEY=VALUE\0..."
func ParseUevent(msg []byte) (Event, bool) {
	fields := make(map[string]string)
	for _, part := range bytes.Split(msg, []byte{0}) {
		k, v, ok := strings.Cut(string(part), "=")
		if ok {
			fields[k] = v
		}
	}

	if fields["SUBSYSTEM"] != "cpu" {
		return Event{}, false
	}
	action, ok := parseAction(fields["ACTION"])
	if !ok {
		return Event{}, false
	}

	name := path.Base(fields["DEVPATH"])
	if !strings.HasPrefix(name, "cpu") {
		return Event{}, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
	if err != nil || id < 0 {
		return Event{}, false
	}
	return Event{CPU: id, Action: action}, true
}

// Watcher listens for CPU hotplug uevents and hands them to a handler in
// debounced batches.
type Watcher struct {
	window  time.Duration
	handler func([]Event)
	reactor *reactor
	logger  *slog.Logger

	// owned by the netlink reader, which closes the socket on exit
	netlinkStop chan struct{}
	netlinkDone chan struct{}
}

// New creates a Watcher. handler runs on a single worker goroutine, one
// batch at a time.
func New(window time.Duration, handler func([]Event)) *Watcher {
	return &Watcher{
		window:  window,
		handler: handler,
		logger:  slog.Default(),
	}
}

// Start begins listening. The handler is not called for events that
// happened before Start.
func (w *Watcher) Start() error {
	w.logger.Info("[cpu-hotplug] Starting watcher", "window", w.window)

	w.reactor = newReactor(w.window, w.handler, w.logger)
	w.reactor.start()

	if err := w.startNetlink(); err != nil {
		w.reactor.stop()
		w.reactor = nil
		return err
	}
	return nil
}

// Stop ends listening. Batches still buffered are dropped.
func (w *Watcher) Stop() error {
	w.logger.Info("[cpu-hotplug] Stopping watcher")
	if w.reactor != nil {
		w.reactor.stop()
	}
	return w.stopNetlink()
}

// reactor handles the buffering and dispatching of events.
// It is separated from Watcher to allow unit testing of the batching logic.
type reactor struct {
	events   chan Event
	jobs     chan []Event
	stopChan chan struct{}
	stopOnce sync.Once
	window   time.Duration
	handler  func([]Event)
	logger   *slog.Logger
}

func newReactor(window time.Duration, handler func([]Event), logger *slog.Logger) *reactor {
	return &reactor{
		events:   make(chan Event, EventBufferSize),
		jobs:     make(chan []Event, JobBufferSize),
		stopChan: make(chan struct{}),
		window:   window,
		handler:  handler,
		logger:   logger,
	}
}

func (r *reactor) start() {
	go r.processBatches()
	go r.workerLogic()
}

func (r *reactor) stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

func (r *reactor) ingest(evt Event) {
	select {
	case r.events <- evt:
	default:
		r.logger.Warn("[hotplug-reactor] Event buffer full! Dropping event.", "cpu", evt.CPU, "action", evt.Action)
	}
}

func (r *reactor) processBatches() {
	var batch []Event
	timer := time.NewTimer(r.window)
	if !timer.Stop() {
		<-timer.C
	}
	timerRunning := false

	for {
		select {
		case <-r.stopChan:
			timer.Stop()
			return
		case evt := <-r.events:
			batch = append(batch, evt)

			// Extend window
			if timerRunning {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(r.window)
			timerRunning = true
			r.logger.Debug("[hotplug-reactor] Buffering hotplug event", "cpu", evt.CPU, "action", evt.Action, "batch_size", len(batch))

		case <-timer.C:
			timerRunning = false
			if len(batch) > 0 {
				job := batch
				batch = nil

				select {
				case r.jobs <- job:
					r.logger.Debug("[hotplug-reactor] Batch sent to worker", "events", len(job))
				default:
					r.logger.Error("[hotplug-reactor] Job queue full! Handler is too slow.", "dropped", len(job))
				}
			}
		}
	}
}

func (r *reactor) workerLogic() {
	for {
		select {
		case <-r.stopChan:
			return
		case batch := <-r.jobs:
			r.handler(batch)
		}
	}
}
