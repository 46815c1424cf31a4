// Package reasoning narrates agent progress to the user while the model
// thinks and calls tools, and renders the final reasoning block attached to
// the answer.
package reasoning

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// State of a narration.
type State string

const (
	// StateReasoning is the live phase: the rolling window is shown and
	// elapsed time ticks.
	StateReasoning State = "reasoning"
	// StateComplete is reached when the run produced an answer or was
	// interrupted; the full history is shown.
	StateComplete State = "complete"
	// StateCollapsed is the resting state after Stop: full history, folded.
	StateCollapsed State = "collapsed"
)

// windowSize is how many recent steps the live render shows.
const windowSize = 4

// tickInterval is how often the live render refreshes elapsed time.
const tickInterval = 100 * time.Millisecond

var openingLines = []string{
	"Thinking this through",
	"Working on it",
	"Looking into it",
	"Let me check",
}

// Step is one narrated progress item.
type Step struct {
	Summary  string
	ToolName string
	At       time.Time
}

// Narrator accumulates progress steps and pushes rendered narration through
// a callback. All methods are safe for concurrent use; the ticker goroutine
// and the agent loop both touch it.
type Narrator struct {
	mu sync.Mutex

	state       State
	opening     string
	startedAt   time.Time
	history     []Step
	window      []Step
	answer      strings.Builder
	interrupted bool
	abortFlag   bool

	onUpdate func(string)
	stop     chan struct{}
	done     chan struct{}
}

func NewNarrator() *Narrator {
	return &Narrator{state: StateReasoning}
}

// Start begins live narration. The ticker refreshes the rendered block every
// 100ms until Stop is called or ctx is cancelled. Cancellation during the
// reasoning phase renders an interrupted block, fires one final update, and
// sets the handled-abort flag for the caller to check.
func (n *Narrator) Start(ctx context.Context, onUpdate func(string)) {
	stop := make(chan struct{})
	done := make(chan struct{})

	n.mu.Lock()
	n.state = StateReasoning
	n.opening = openingLines[rand.Intn(len(openingLines))]
	n.startedAt = time.Now()
	n.onUpdate = onUpdate
	n.stop = stop
	n.done = done
	n.mu.Unlock()

	n.push()

	// The goroutine uses the captured channels: halt nils the fields while
	// the loop is still selecting.
	go func() {
		defer close(done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.push()
			case <-ctx.Done():
				n.mu.Lock()
				if n.state == StateReasoning {
					n.state = StateComplete
					n.interrupted = true
					n.abortFlag = true
				}
				n.mu.Unlock()
				n.push()
				return
			case <-stop:
				return
			}
		}
	}()
}

// AddStep records one progress item. The full history always grows; the
// rolling window only admits steps meant for the live view.
func (n *Narrator) AddStep(summary, toolName string, detailedOnly bool) {
	n.mu.Lock()
	step := Step{Summary: summary, ToolName: toolName, At: time.Now()}
	n.history = append(n.history, step)
	if !detailedOnly {
		n.window = append(n.window, step)
		if len(n.window) > windowSize {
			n.window = n.window[len(n.window)-windowSize:]
		}
	}
	n.mu.Unlock()

	n.push()
}

// AppendAnswer accumulates streamed answer text shown below the narration.
func (n *Narrator) AppendAnswer(text string) {
	n.mu.Lock()
	n.answer.WriteString(text)
	n.mu.Unlock()

	n.push()
}

// Complete transitions to the complete state: ticking stops and the render
// switches to the full history.
func (n *Narrator) Complete() {
	n.halt(StateComplete)
}

// Stop collapses the narration. Idempotent.
func (n *Narrator) Stop() {
	n.halt(StateCollapsed)
}

func (n *Narrator) halt(target State) {
	n.mu.Lock()
	alreadyStopped := n.stop == nil
	stop := n.stop
	done := n.done
	n.state = target
	n.stop = nil
	n.mu.Unlock()

	if !alreadyStopped {
		close(stop)
		<-done
	}
	n.push()
}

// HandledAbort reports whether the narrator already rendered an interrupted
// block for a cancelled run. Callers must check it to avoid reporting the
// cancellation twice.
func (n *Narrator) HandledAbort() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.abortFlag
}

func (n *Narrator) push() {
	n.mu.Lock()
	onUpdate := n.onUpdate
	rendered := n.renderLocked() + n.answer.String()
	n.mu.Unlock()

	if onUpdate != nil {
		onUpdate(rendered)
	}
}

// Render returns the narration block without the answer text, for prepending
// to a final response.
func (n *Narrator) Render() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.renderLocked()
}

func (n *Narrator) renderLocked() string {
	elapsed := time.Since(n.startedAt).Round(time.Second)
	if n.startedAt.IsZero() {
		elapsed = 0
	}

	var b strings.Builder
	switch n.state {
	case StateReasoning:
		fmt.Fprintf(&b, "> [!reasoning] %s… (%s)\n", n.opening, elapsed)
		for _, step := range n.window {
			b.WriteString(renderStep(step))
		}
	case StateComplete:
		if n.interrupted {
			fmt.Fprintf(&b, "> [!reasoning] Reasoning interrupted (%s)\n", elapsed)
		} else {
			fmt.Fprintf(&b, "> [!reasoning] Reasoned for %s\n", elapsed)
		}
		for _, step := range n.history {
			b.WriteString(renderStep(step))
		}
	case StateCollapsed:
		fmt.Fprintf(&b, "> [!reasoning]- Reasoned for %s\n", elapsed)
		for _, step := range n.history {
			b.WriteString(renderStep(step))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func renderStep(step Step) string {
	if step.ToolName != "" {
		return fmt.Sprintf("> - %s (%s)\n", step.Summary, step.ToolName)
	}
	return fmt.Sprintf("> - %s\n", step.Summary)
}
