package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"siteup/pkg/sdk/pipeline"
)

// ProgressOutput renders pipeline snapshots on stderr. Interactive
// terminals get an in-place checklist with a spinner; non-interactive
// terminals get one plain line per transition.
//
// Fan-out sub-operations (individual file uploads) are not rendered as
// separate lines; they are summarized onto their parent task as
// "n/m done".
type ProgressOutput struct {
	report  func(stepSnapshot)
	closeFn func()
}

func NewProgressOutput() *ProgressOutput {
	if IsInteractive() {
		checklist := NewChecklist()
		return &ProgressOutput{report: checklist.OnSnapshot, closeFn: checklist.Close}
	}

	line := newLineProgress()
	return &ProgressOutput{report: line.OnSnapshot, closeFn: func() {}}
}

// Reporter returns the pipeline reporter feeding this output.
func (o *ProgressOutput) Reporter() pipeline.Reporter {
	return func(snap pipeline.Snapshot) {
		o.report(convertSnapshot(snap))
	}
}

func (o *ProgressOutput) Close() {
	if o == nil || o.closeFn == nil {
		return
	}
	o.closeFn()
}

// convertSnapshot flattens a pipeline snapshot into renderable step lines.
// Entries deeper than one level are folded into a summary on their parent.
func convertSnapshot(snap pipeline.Snapshot) stepSnapshot {
	depths := make(map[string]int, len(snap.Entries))
	for _, e := range snap.Entries {
		depths[e.ID] = strings.Count(e.ID, "/")
	}

	fanout := make(map[string][]pipeline.Entry)
	steps := make([]stepState, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if depths[e.ID] >= 2 {
			fanout[e.ParentID] = append(fanout[e.ParentID], e)
			continue
		}
		steps = append(steps, stepState{
			ID:       e.ID,
			ParentID: e.ParentID,
			Title:    e.Title,
			Status:   stepStatus(e.Status),
			Message:  e.Message,
		})
	}

	for i, s := range steps {
		children := fanout[s.ID]
		if len(children) == 0 {
			continue
		}
		summary := summarizeFanout(children)
		switch {
		case s.Message == "":
			steps[i].Message = summary
		case s.Status == stepFailed && !strings.Contains(s.Message, summary):
			steps[i].Message = summary + "; " + s.Message
		}
	}
	return stepSnapshot{Steps: steps}
}

func summarizeFanout(children []pipeline.Entry) string {
	total := len(children)
	doneCount := 0
	failedCount := 0
	for _, child := range children {
		switch child.Status {
		case pipeline.Done:
			doneCount++
		case pipeline.Failed:
			failedCount++
		}
	}

	if failedCount > 0 {
		return fmt.Sprintf("%d/%d done, %d failed", doneCount, total, failedCount)
	}
	return fmt.Sprintf("%d/%d done", doneCount, total)
}

// lineProgress prints one line per observed transition, suitable for CI
// logs. Repeated snapshots with unchanged state print nothing.
type lineProgress struct {
	mu       sync.Mutex
	status   map[string]stepStatus
	messages map[string]string
}

func newLineProgress() *lineProgress {
	return &lineProgress{
		status:   make(map[string]stepStatus),
		messages: make(map[string]string),
	}
}

func (l *lineProgress) OnSnapshot(snapshot stepSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, step := range snapshot.Steps {
		if step.Status == stepPending {
			continue
		}

		msg := strings.TrimSpace(step.Message)
		prevStatus, hasStatus := l.status[step.ID]
		prevMsg := l.messages[step.ID]
		if hasStatus && prevStatus == step.Status && prevMsg == msg {
			continue
		}

		l.status[step.ID] = step.Status
		l.messages[step.ID] = msg
		fmt.Fprintln(os.Stderr, formatStepLine(step, msg))
	}
}

func formatStepLine(step stepState, msg string) string {
	prefix := "[..]"
	switch step.Status {
	case stepRunning:
		prefix = "[->]"
	case stepDone:
		prefix = "[ok]"
	case stepFailed:
		prefix = "[x]"
	}

	indent := "  "
	if step.ParentID != "" {
		indent = "    "
	}

	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = step.ID
	}
	if msg != "" {
		return fmt.Sprintf("%s%s %s (%s)", indent, prefix, title, msg)
	}
	return fmt.Sprintf("%s%s %s", indent, prefix, title)
}
