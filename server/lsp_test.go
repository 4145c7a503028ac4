package server

import (
	"errors"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/angstrom/compiler"
)

func checkDoc(t *testing.T, text string) *document {
	t.Helper()
	prog, err := compiler.Check(text, "test")
	return &document{text: text, prog: prog, err: err}
}

// ---------------------------------------------------------------------------
// Text extraction
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple", "var counter = cou", protocol.Position{Line: 0, Character: 17}, "cou"},
		{"whole line", "pri", protocol.Position{Line: 0, Character: 3}, "pri"},
		{"empty", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "var x = 1\nx + le", protocol.Position{Line: 1, Character: 6}, "le"},
		{"after dot", "p.na", protocol.Position{Line: 0, Character: 4}, "na"},
		{"cursor at start", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"past line end", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"underscore", "my_va", protocol.Position{Line: 0, Character: 5}, "my_va"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnosticsFor(t *testing.T) {
	doc := checkDoc(t, "var x = 1\ny")
	diags := diagnosticsFor(doc.err)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Range.Start.Line != 1 || d.Range.Start.Character != 0 {
		t.Errorf("start = %+v, want 1:0", d.Range.Start)
	}
	if d.Code == nil || d.Code.Value != "UNDECLARED_VARIABLE" {
		t.Errorf("code = %+v, want UNDECLARED_VARIABLE", d.Code)
	}
	if d.Message != "undeclared variable 'y'" {
		t.Errorf("message = %q", d.Message)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
}

func TestDiagnosticsForParseError(t *testing.T) {
	doc := checkDoc(t, "var x = 1\nvar y = ")
	if doc.prog != nil {
		t.Errorf("parse failure returned a program")
	}
	diags := diagnosticsFor(doc.err)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Code == nil || diags[0].Code.Value != "NO_RHS" {
		t.Errorf("code = %+v, want NO_RHS", diags[0].Code)
	}
}

func TestDiagnosticsForClean(t *testing.T) {
	diags := diagnosticsFor(nil)
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnostics = %v, want empty non-nil slice", diags)
	}
}

func TestDiagnosticsForPlainError(t *testing.T) {
	diags := diagnosticsFor(errors.New("boom"))
	if len(diags) != 1 || diags[0].Message != "boom" {
		t.Errorf("diagnostics = %+v, want one with message boom", diags)
	}
}

// ---------------------------------------------------------------------------
// Hover and definition
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	content, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("hover contents = %T, want MarkupContent", h.Contents)
	}
	return content.Value
}

func TestHoverAt(t *testing.T) {
	doc := checkDoc(t, "var p = (x: 1, y: true)\np.y\ntype Celsius :: Num")
	if doc.err != nil {
		t.Fatalf("Check: %v", doc.err)
	}
	tests := []struct {
		pos  protocol.Position
		want string
	}{
		{protocol.Position{Line: 1, Character: 2}, "Bool"},
		{protocol.Position{Line: 1, Character: 0}, "p :: (x:Num,y:Bool)"},
		{protocol.Position{Line: 0, Character: 12}, "Num"},
		{protocol.Position{Line: 0, Character: 1}, "p :: (x:Num,y:Bool)"},
		{protocol.Position{Line: 2, Character: 1}, "type Celsius :: Num"},
	}
	for _, tt := range tests {
		h := hoverAt(doc, tt.pos)
		if h == nil {
			t.Errorf("hover at %d:%d = nil", tt.pos.Line, tt.pos.Character)
			continue
		}
		if got := hoverText(t, h); !strings.Contains(got, tt.want) {
			t.Errorf("hover at %d:%d = %q, want %q", tt.pos.Line, tt.pos.Character, got, tt.want)
		}
	}

	if h := hoverAt(doc, protocol.Position{Line: 9, Character: 0}); h != nil {
		t.Errorf("hover past the end = %+v, want nil", h)
	}
}

func TestDefinitionAt(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want protocol.Position
	}{
		{"global", "var a = 1\nvar b = a + 1", protocol.Position{Line: 1, Character: 8}, protocol.Position{Line: 0, Character: 0}},
		{"param", "var f = fn(n: Num) => n * 2", protocol.Position{Line: 0, Character: 22}, protocol.Position{Line: 0, Character: 11}},
		{"destructured", "var (a, b) = (1, 2)\nb", protocol.Position{Line: 1, Character: 0}, protocol.Position{Line: 0, Character: 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := checkDoc(t, tt.text)
			if doc.err != nil {
				t.Fatalf("Check: %v", doc.err)
			}
			decl := definitionAt(doc, tt.pos)
			if decl == nil {
				t.Fatalf("definitionAt = nil")
			}
			if got := spanRange(decl.Span()).Start; got != tt.want {
				t.Errorf("definition start = %+v, want %+v", got, tt.want)
			}
		})
	}

	doc := checkDoc(t, "var a = 1\na + 2")
	if decl := definitionAt(doc, protocol.Position{Line: 1, Character: 4}); decl != nil {
		t.Errorf("definition of a literal = %T, want nil", decl)
	}
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestComplete(t *testing.T) {
	sess := compiler.NewSession(compiler.Options{})
	doc := checkDoc(t, "var counter = 1\ntype Celsius :: Num\nvar f = fn(tick: Num) => tick")
	if doc.err != nil {
		t.Fatalf("Check: %v", doc.err)
	}

	tests := []struct {
		prefix string
		want   string
	}{
		{"c", "clock,counter"},
		{"t", "tick,time,true,type"},
		{"C", "Celsius"},
		{"Bo", "Bool"},
		{"zz", ""},
	}
	for _, tt := range tests {
		items := complete(sess, doc.prog, tt.prefix)
		if got := strings.Join(labels(items), ","); got != tt.want {
			t.Errorf("complete(%q) = %s, want %s", tt.prefix, got, tt.want)
		}
	}

	items := complete(sess, doc.prog, "counter")
	if len(items) != 1 || items[0].Detail == nil || *items[0].Detail != "Num" {
		t.Errorf("counter completion = %+v, want detail Num", items)
	}
	if items := complete(sess, nil, "pr"); strings.Join(labels(items), ",") != "print" {
		t.Errorf("complete without a program = %v, want print", labels(items))
	}
}

func TestAnalyzeIsolatesDocuments(t *testing.T) {
	s := NewLSP()
	defer s.worker.Stop()

	tests := []struct {
		name string
		text string
		code string
	}{
		{"a.ang", "var x = 1", ""},
		{"b.ang", "var x = true", ""},
		{"c.ang", "x", "UNDECLARED_VARIABLE"},
	}
	for _, tt := range tests {
		doc, err := s.analyze(tt.name, tt.text)
		if err != nil {
			t.Fatalf("analyze(%s): %v", tt.name, err)
		}
		diags := diagnosticsFor(doc.err)
		switch {
		case tt.code == "" && len(diags) != 0:
			t.Errorf("%s: diagnostics = %+v, want none", tt.name, diags)
		case tt.code != "" && (len(diags) != 1 || diags[0].Code == nil || diags[0].Code.Value != tt.code):
			t.Errorf("%s: diagnostics = %+v, want %s", tt.name, diags, tt.code)
		}
	}

	globals, err := s.worker.Do(func(sess *compiler.Session) interface{} {
		return len(sess.Compiler().Globals())
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if globals != 4 {
		t.Errorf("worker session globals = %v, want the 4 natives", globals)
	}
}
