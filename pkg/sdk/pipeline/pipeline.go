// Package pipeline is the step/task progress engine behind deployment runs.
//
// A Tracker owns a flat list of entries (steps, their tasks, and fan-out
// sub-operations of tasks, linked by ParentID) and emits a full immutable
// Snapshot to its Reporter on every state transition. Consumers render the
// snapshots however they like; the tracker never writes to a terminal
// itself.
package pipeline

import (
	"strconv"
	"strings"
	"sync"

	"siteup/internal/check"
)

// Status is the lifecycle state of a step or task.
type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Done    Status = "done"
	Failed  Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == Done || s == Failed
}

// Entry is one step, task, or fan-out sub-operation in a snapshot.
type Entry struct {
	ID       string
	ParentID string // empty for top-level steps
	Title    string
	Message  string
	Status   Status
}

// Snapshot is the full state of all entries, emitted on every change.
type Snapshot struct {
	Entries []Entry
}

// Reporter receives a snapshot whenever any entry transitions.
type Reporter func(Snapshot)

// Tracker manages the step/task hierarchy of one operation and notifies
// its reporter of every transition.
type Tracker struct {
	mu       sync.Mutex
	entries  []Entry
	index    map[string]int
	reporter Reporter
}

// New creates a tracker. A nil reporter is allowed; snapshots are then
// simply not delivered.
func New(reporter Reporter) *Tracker {
	return &Tracker{
		index:    make(map[string]int),
		reporter: reporter,
	}
}

// Step begins tracking a new top-level step in the Running state and
// returns its handle. The caller must finish the step with Complete or
// Fail and release it with Close on every exit path.
func (t *Tracker) Step(title string) *StepHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.addLocked("", title, Running)
	t.emitLocked()
	return &StepHandle{handle: handle{tracker: t, id: id}}
}

// StepHandle is a scoped handle on a top-level step.
type StepHandle struct {
	handle
}

// Task begins a new task under the step in the Running state. Creating a
// task under a step that already reached a terminal state is a contract
// violation; the task is still tracked so release builds never crash.
func (s *StepHandle) Task(title string) *TaskHandle {
	s.tracker.mu.Lock()
	defer s.tracker.mu.Unlock()

	check.Assertf(!s.terminal, "pipeline: task %q created under terminal step %q", title, s.id)

	id := s.tracker.addLocked(s.id, title, Running)
	s.tracker.emitLocked()
	return &TaskHandle{handle: handle{tracker: s.tracker, id: id, parent: &s.handle}}
}

// TaskHandle is a scoped handle on a task or a fan-out sub-operation.
type TaskHandle struct {
	handle
}

// Sub begins a fan-out sub-operation under the task. Sub-operations are
// full entries in the snapshot, so observers can render per-item progress.
func (h *TaskHandle) Sub(title string) *TaskHandle {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()

	check.Assertf(!h.terminal, "pipeline: sub-operation %q created under terminal task %q", title, h.id)

	id := h.tracker.addLocked(h.id, title, Running)
	h.tracker.emitLocked()
	return &TaskHandle{handle: handle{tracker: h.tracker, id: id, parent: &h.handle}}
}

// handle carries the state shared by step and task handles. All fields are
// guarded by the tracker mutex.
type handle struct {
	tracker  *Tracker
	id       string
	parent   *handle
	terminal bool
	released bool

	// childFailed is set when any child entry reached Failed. A handle
	// with a failed child can no longer reach Done.
	childFailed bool
}

// ID returns the entry identifier of this handle.
func (h *handle) ID() string { return h.id }

// Complete marks the entry Done with the given message. If a child already
// failed, the entry is marked Failed instead: an aggregate never succeeds
// past a failed child. Calling Complete or Fail twice is a contract
// violation; the first call wins and later calls are ignored.
func (h *handle) Complete(message string) {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()

	if h.terminal || h.released {
		return
	}
	h.terminal = true

	status := Done
	if h.childFailed {
		status = Failed
	}
	h.tracker.setLocked(h.id, status, message)
	h.tracker.emitLocked()
}

// Fail marks the entry Failed with the given message and propagates the
// failure to the parent handle, so an enclosing step or task can no longer
// complete successfully.
func (h *handle) Fail(message string) {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()

	if h.terminal || h.released {
		return
	}
	h.terminal = true

	for p := h.parent; p != nil; p = p.parent {
		p.childFailed = true
	}
	h.tracker.setLocked(h.id, Failed, strings.TrimSpace(message))
	h.tracker.emitLocked()
}

// Close releases the handle. It never forces a terminal state: an entry
// closed without Complete or Fail stays in whatever state it was last set
// to. Close is idempotent.
func (h *handle) Close() {
	h.tracker.mu.Lock()
	h.released = true
	h.tracker.mu.Unlock()
}

// addLocked appends a new entry with a unique ID derived from the title.
func (t *Tracker) addLocked(parentID, title string, status Status) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "unnamed"
	}

	base := slug(title)
	if parentID != "" {
		base = parentID + "/" + base
	}
	id := base
	for n := 2; ; n++ {
		if _, exists := t.index[id]; !exists {
			break
		}
		id = base + "-" + strconv.Itoa(n)
	}

	t.index[id] = len(t.entries)
	t.entries = append(t.entries, Entry{
		ID:       id,
		ParentID: parentID,
		Title:    title,
		Status:   status,
	})
	return id
}

func (t *Tracker) setLocked(id string, status Status, message string) {
	idx, ok := t.index[id]
	if !ok {
		return
	}
	t.entries[idx].Status = status
	t.entries[idx].Message = message
}

func (t *Tracker) emitLocked() {
	if t.reporter == nil {
		return
	}
	snap := make([]Entry, len(t.entries))
	copy(snap, t.entries)
	t.reporter(Snapshot{Entries: snap})
}

// slug turns a title into a stable identifier segment.
func slug(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '/':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
