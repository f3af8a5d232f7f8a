package ozwpan

import "fmt"

// Range locates a run of bytes inside a frame.
type Range struct {
	Offset int `json:"offset" yaml:"offset"`
	Length int `json:"length" yaml:"length"`
}

// End returns the offset one past the last byte.
func (r Range) End() int { return r.Offset + r.Length }

// Field is one decoded record: a named value found at a byte range of the frame.
type Field struct {
	Abbrev  string `json:"abbrev" yaml:"abbrev"`
	Name    string `json:"name" yaml:"name"`
	Offset  int    `json:"offset" yaml:"offset"`
	Length  int    `json:"length" yaml:"length"`
	Value   any    `json:"value,omitempty" yaml:"value,omitempty"`
	Display string `json:"display" yaml:"display"`
}

// Severity grades a diagnostic.
type Severity uint8

const (
	SeverityNote Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityNote:
		return "note"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// MarshalText renders the severity by name in JSON and YAML output.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	// DiagMalformedLength: an element declares more bytes than remain.
	DiagMalformedLength DiagnosticKind = "malformed-length"
	// DiagUnsupportedElement: an element tag has no decoder.
	DiagUnsupportedElement DiagnosticKind = "unsupported-element"
	// DiagTruncated: a fixed layout ran out of bytes before it was fully read.
	DiagTruncated DiagnosticKind = "truncated"
)

// Diagnostic reports a problem found while decoding. Diagnostics never stop the
// decode; they are informational records next to the fields.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind" yaml:"kind"`
	Severity Severity       `json:"severity" yaml:"severity"`
	Tag      uint8          `json:"tag" yaml:"tag"`
	Offset   int            `json:"offset" yaml:"offset"`
	Length   int            `json:"length" yaml:"length"`
	Message  string         `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] @%d+%d: %s", d.Severity, d.Kind, d.Offset, d.Length, d.Message)
}

// Sink receives everything the dissector decodes, in frame order. Begin opens a
// subtree that collects the following records until the matching End.
type Sink interface {
	AddField(f Field)
	Begin(f Field)
	End()
	SetSummary(summary string)
	AddDiagnostic(d Diagnostic)
}

// Discard is a Sink that drops all records.
var Discard Sink = discard{}

type discard struct{}

func (discard) AddField(Field)           {}
func (discard) Begin(Field)              {}
func (discard) End()                     {}
func (discard) SetSummary(string)        {}
func (discard) AddDiagnostic(Diagnostic) {}

// Node is a field with the records nested under it.
type Node struct {
	Field    `yaml:",inline"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Recorder is an in-memory Sink building a tree of nodes.
type Recorder struct {
	Root        []*Node
	Summary     string
	Diagnostics []Diagnostic

	stack []*Node
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) attach(n *Node) {
	if len(r.stack) == 0 {
		r.Root = append(r.Root, n)
		return
	}
	top := r.stack[len(r.stack)-1]
	top.Children = append(top.Children, n)
}

func (r *Recorder) AddField(f Field) {
	r.attach(&Node{Field: f})
}

func (r *Recorder) Begin(f Field) {
	n := &Node{Field: f}
	r.attach(n)
	r.stack = append(r.stack, n)
}

func (r *Recorder) End() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

func (r *Recorder) SetSummary(summary string) { r.Summary = summary }

func (r *Recorder) AddDiagnostic(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Reset clears the recorder for reuse. Trees handed out before the reset stay
// valid.
func (r *Recorder) Reset() {
	r.Root = nil
	r.Summary = ""
	r.Diagnostics = nil
	r.stack = r.stack[:0]
}

// Find returns every recorded field with the given abbreviation, depth first.
func (r *Recorder) Find(abbrev string) []Field {
	var out []Field
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.Abbrev == abbrev {
				out = append(out, n.Field)
			}
			walk(n.Children)
		}
	}
	walk(r.Root)
	return out
}

// First returns the first field with the given abbreviation.
func (r *Recorder) First(abbrev string) (Field, bool) {
	if fs := r.Find(abbrev); len(fs) > 0 {
		return fs[0], true
	}
	return Field{}, false
}

// ReplaceField overwrites the first node, depth first, recorded with f's
// abbreviation at f's offset. It reports whether a node was found.
func ReplaceField(tree []*Node, f Field) bool {
	for _, n := range tree {
		if n.Abbrev == f.Abbrev && n.Offset == f.Offset {
			n.Field = f
			return true
		}
		if ReplaceField(n.Children, f) {
			return true
		}
	}
	return false
}
