package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/angstrom/compiler"
	"github.com/chazu/angstrom/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "angstrom-lsp"

var lspLog = commonlog.GetLogger("angstrom.lsp")

// document is an open text document and the result of its last analysis.
type document struct {
	text string
	prog *compiler.Program // nil when the document does not parse
	err  error
}

// LspServer bridges LSP editor features to the compiler via a
// SessionWorker.
type LspServer struct {
	worker *SessionWorker

	mu   sync.Mutex
	docs map[string]*document // URI → document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. The worker's session supplies the native
// names offered by completion; each document is checked in a fresh session
// so documents never see each other's declarations.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:  NewSessionWorker(compiler.NewSession(compiler.Options{})),
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update re-analyzes a document and publishes its diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	doc, err := s.analyze(string(uri), text)
	if err != nil {
		lspLog.Errorf("analyze %s: %s", uri, err)
		return
	}

	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnosticsFor(doc.err),
	})
}

// analyze checks text in a fresh session. It runs on the worker goroutine
// only to serialize compilation with the other requests; the worker's own
// session is left untouched.
func (s *LspServer) analyze(name, text string) (*document, error) {
	result, err := s.worker.Do(func(*compiler.Session) interface{} {
		prog, err := compiler.Check(text, name)
		return &document{text: text, prog: prog, err: err}
	})
	if err != nil {
		return nil, err
	}
	return result.(*document), nil
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	result, err := s.worker.Do(func(sess *compiler.Session) interface{} {
		return complete(sess, doc.prog, prefix)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil || doc.prog == nil {
		return nil, nil
	}
	return hoverAt(doc, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil || doc.prog == nil {
		return nil, nil
	}
	decl := definitionAt(doc, params.Position)
	if decl == nil {
		return nil, nil
	}
	return []protocol.Location{{
		URI:   params.TextDocument.URI,
		Range: spanRange(decl.Span()),
	}}, nil
}

// complete lists the keywords, natives, primitive types and declared names
// of prog that start with prefix.
func complete(sess *compiler.Session, prog *compiler.Program, prefix string) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(label, prefix) {
			return
		}
		seen[label] = true
		item := protocol.CompletionItem{Label: label, Kind: &kind}
		if detail != "" {
			item.Detail = &detail
		}
		items = append(items, item)
	}

	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "")
	}
	for _, name := range sess.Natives() {
		detail := ""
		if sym, ok := sess.Compiler().Lookup(name); ok {
			detail = sym.Type.String()
		}
		add(name, protocol.CompletionItemKindFunction, detail)
	}
	for _, name := range []string{vm.NumTypeName, vm.BoolTypeName, vm.StringTypeName, vm.NilTypeName, vm.AnyTypeName} {
		add(name, protocol.CompletionItemKindClass, "")
	}
	if prog != nil {
		compiler.Walk(prog, func(n compiler.Node) bool {
			switch n := n.(type) {
			case *compiler.VarDecl:
				add(n.Name, protocol.CompletionItemKindVariable, typeDetail(n))
			case *compiler.Param:
				add(n.Name, protocol.CompletionItemKindVariable, typeDetail(n))
			case *compiler.DestrPattern:
				if n.IsLeaf() && n.Name != vm.WildcardField {
					add(n.Name, protocol.CompletionItemKindVariable, typeDetail(n))
				}
			case *compiler.TypeDecl:
				add(n.Name, protocol.CompletionItemKindClass, typeDetail(n))
			}
			return true
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

func typeDetail(n compiler.Node) string {
	if t := n.ResolvedType(); t != nil {
		return t.String()
	}
	return ""
}

// hoverAt shows the resolved type of the innermost node under the cursor.
func hoverAt(doc *document, pos protocol.Position) *protocol.Hover {
	n := compiler.NodeAt(doc.prog, compiler.OffsetOf(doc.text, int(pos.Line), int(pos.Character)))
	if n == nil {
		return nil
	}
	t := n.ResolvedType()
	if t == nil {
		return nil
	}

	var label string
	switch n := n.(type) {
	case *compiler.Ident:
		label = n.Name + " :: " + t.String()
	case *compiler.VarDecl:
		label = n.Name + " :: " + t.String()
	case *compiler.Param:
		label = n.Name + " :: " + t.String()
	case *compiler.TypeDecl:
		label = "type " + n.Name + " :: " + typeBody(t)
	default:
		label = t.String()
	}

	rng := spanRange(n.Span())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("```angstrom\n%s\n```", label),
		},
		Range: &rng,
	}
}

// typeBody names the underlying type of an alias.
func typeBody(t *vm.Type) string {
	if t.Underlying != nil {
		return t.Underlying.String()
	}
	return t.String()
}

// definitionAt finds the declaration of the identifier under the cursor:
// the last declaration of that name that starts before it.
func definitionAt(doc *document, pos protocol.Position) compiler.Node {
	at := compiler.OffsetOf(doc.text, int(pos.Line), int(pos.Character))
	ident, ok := compiler.NodeAt(doc.prog, at).(*compiler.Ident)
	if !ok {
		return nil
	}

	var decl compiler.Node
	compiler.Walk(doc.prog, func(n compiler.Node) bool {
		if n.Span().Start.Offset >= ident.SpanVal.Start.Offset {
			return false
		}
		switch d := n.(type) {
		case *compiler.VarDecl:
			if d.Name == ident.Name {
				decl = d
			}
		case *compiler.Param:
			if d.Name == ident.Name {
				decl = d
			}
		case *compiler.DestrPattern:
			if d.IsLeaf() && d.Name == ident.Name {
				decl = d
			}
		}
		return true
	})
	return decl
}

// --- Diagnostics ---

// diagnosticsFor converts a Check error into LSP diagnostics.
func diagnosticsFor(err error) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	if err == nil {
		return diagnostics
	}

	var list compiler.Diagnostics
	var single *compiler.Diagnostic
	switch {
	case errors.As(err, &list):
	case errors.As(err, &single):
		list = compiler.Diagnostics{single}
	default:
		severity := protocol.DiagnosticSeverityError
		source := lspName
		return append(diagnostics, protocol.Diagnostic{
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}

	for _, d := range list {
		severity := protocol.DiagnosticSeverityError
		source := lspName
		code := protocol.IntegerOrString{Value: d.Code.String()}
		start := toProtocol(d.Pos)
		end := start
		end.Character++
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: start, End: end},
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return diagnostics
}

// toProtocol converts a 1-based source position to a 0-based LSP position.
// An unset position maps to the start of the document.
func toProtocol(p compiler.Position) protocol.Position {
	var pos protocol.Position
	if p.Line > 0 {
		pos.Line = protocol.UInteger(p.Line - 1)
	}
	if p.Column > 0 {
		pos.Character = protocol.UInteger(p.Column - 1)
	}
	return pos
}

func spanRange(s compiler.Span) protocol.Range {
	return protocol.Range{Start: toProtocol(s.Start), End: toProtocol(s.End)}
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}
	return string(line[start:col])
}

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
