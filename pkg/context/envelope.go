package context

import (
	"fmt"
	"strings"
)

// LayerKind enumerates the context layers an envelope may carry. The set is
// closed: Serialize handles every kind and rejects anything else.
type LayerKind string

const (
	LayerSystem    LayerKind = "system"
	LayerNote      LayerKind = "note"
	LayerRetrieved LayerKind = "retrieved"
	LayerHistory   LayerKind = "history"
	LayerRawUser   LayerKind = "raw-user"
)

// Layer is one contribution to a model input.
type Layer struct {
	Kind LayerKind
	// Label names the layer's origin (a note title, a tool name).
	Label string
	// Path locates note layers inside the vault.
	Path string
	Text string
}

// Envelope is the ordered set of context layers assembled for one model
// call.
type Envelope struct {
	Layers []Layer
}

func (e *Envelope) Add(kind LayerKind, label, text string) {
	e.Layers = append(e.Layers, Layer{Kind: kind, Label: label, Text: text})
}

// Serialize renders the envelope to model-facing text. It is total over the
// layer kinds; an unknown kind is a programming error and reported as such
// rather than silently dropped.
func (e *Envelope) Serialize() (string, error) {
	var b strings.Builder
	for i, layer := range e.Layers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch layer.Kind {
		case LayerSystem:
			b.WriteString(layer.Text)
		case LayerNote:
			b.WriteString(renderDocumentBlock(layer.Label, layer.Path, layer.Text))
		case LayerRetrieved:
			b.WriteString(layer.Text)
		case LayerHistory:
			fmt.Fprintf(&b, "Previous conversation:\n%s", layer.Text)
		case LayerRawUser:
			b.WriteString(layer.Text)
		default:
			return "", fmt.Errorf("unknown context layer kind %q", layer.Kind)
		}
	}
	return b.String(), nil
}

// renderDocumentBlock renders one note in the document format retrieval and
// note layers share.
func renderDocumentBlock(title, path, content string) string {
	return fmt.Sprintf("<document>\n<title>%s</title>\n<path>%s</path>\n<content>\n%s\n</content>\n</document>", title, path, content)
}
