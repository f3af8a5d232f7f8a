package ozwpan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRecorderTree(t *testing.T) {
	rec := NewRecorder()
	rec.Begin(Field{Abbrev: "a"})
	rec.AddField(Field{Abbrev: "a.b"})
	rec.Begin(Field{Abbrev: "a.c"})
	rec.AddField(Field{Abbrev: "a.c.d"})
	rec.End()
	rec.End()
	rec.End() // unbalanced End is ignored
	rec.AddField(Field{Abbrev: "e"})
	rec.SetSummary("done")

	require.Len(t, rec.Root, 2)
	assert.Len(t, rec.Root[0].Children, 2)
	assert.Equal(t, "a.c.d", rec.Root[0].Children[1].Children[0].Abbrev)
	assert.Equal(t, "e", rec.Root[1].Abbrev)
	assert.Equal(t, "done", rec.Summary)

	_, ok := rec.First("a.c.d")
	assert.True(t, ok)
	_, ok = rec.First("missing")
	assert.False(t, ok)
}

func TestRecorderResetKeepsHandedOutTrees(t *testing.T) {
	rec := NewRecorder()
	rec.AddField(Field{Abbrev: "first"})
	rec.AddDiagnostic(Diagnostic{Kind: DiagTruncated})
	tree := rec.Root

	rec.Reset()
	rec.AddField(Field{Abbrev: "second"})

	assert.Equal(t, "first", tree[0].Abbrev)
	assert.Equal(t, "second", rec.Root[0].Abbrev)
	assert.Empty(t, rec.Diagnostics)
	assert.Empty(t, rec.Summary)
}

func TestDiagnosticRendering(t *testing.T) {
	d := Diagnostic{Kind: DiagMalformedLength, Severity: SeverityError, Tag: 0x12, Offset: 8, Length: 4, Message: "too long"}
	assert.Equal(t, "error [malformed-length] @8+4: too long", d.String())

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"malformed-length","severity":"error","tag":18,"offset":8,"length":4,"message":"too long"}`, string(b))
}

func TestNodeYAMLInlinesField(t *testing.T) {
	n := &Node{Field: Field{Abbrev: "ozwpan.control", Name: "Control", Display: "Control: 0x04"}}
	out, err := yaml.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(out), "abbrev: ozwpan.control")
	assert.NotContains(t, string(out), "field:")
}

func TestReplaceField(t *testing.T) {
	rec := NewRecorder()
	rec.Begin(Field{Abbrev: "outer", Offset: 0})
	rec.AddField(Field{Abbrev: "inner", Offset: 4, Display: "old"})
	rec.End()
	rec.AddField(Field{Abbrev: "inner", Offset: 9, Display: "other"})

	assert.True(t, ReplaceField(rec.Root, Field{Abbrev: "inner", Offset: 4, Display: "new"}))
	assert.Equal(t, "new", rec.Root[0].Children[0].Display)
	assert.Equal(t, "other", rec.Root[1].Display)
	assert.False(t, ReplaceField(rec.Root, Field{Abbrev: "inner", Offset: 5}))
}
