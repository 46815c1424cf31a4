package context

import "strings"

// Mode selects how a run is prepared and bounded.
type Mode string

const (
	// ModeSimpleChat binds no tools and does no retrieval.
	ModeSimpleChat Mode = "simple-chat"
	// ModeRetrievalQA does one retrieval-grounded model call with no tools.
	ModeRetrievalQA Mode = "retrieval-qa"
	// ModeToolAgent runs the iterative tool-calling loop.
	ModeToolAgent Mode = "tool-agent"
)

// vaultTriggers are the phrases that route a question to retrieval-QA.
var vaultTriggers = []string{
	"in my vault",
	"search my notes",
	"what does my note",
	"what do my notes",
	"based on my notes",
	"from my notes",
	"according to my notes",
}

// DetectMode classifies a user message. Vault-referencing phrases win;
// otherwise tool-agent, degraded to simple-chat when tool use is disabled.
func DetectMode(message string, toolsEnabled bool) Mode {
	lowered := strings.ToLower(message)
	for _, trigger := range vaultTriggers {
		if strings.Contains(lowered, trigger) {
			return ModeRetrievalQA
		}
	}
	if !toolsEnabled {
		return ModeSimpleChat
	}
	return ModeToolAgent
}
