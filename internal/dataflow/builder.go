package dataflow

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/parser"
)

// ErrUnknownWorkflow is returned by Build for a scope name that does not
// name a @workflow of the module.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Callee describes a process or workflow a call can refer to.
type Callee struct {
	Name string
	// URI is the document declaring the callee.
	URI string
}

// Resolver decides whether a called name is a declared process or workflow.
type Resolver interface {
	Resolve(name string) (Callee, bool)
}

// ModuleResolver resolves names declared in a module or imported into it
// by a from-import.
type ModuleResolver struct {
	Doc    ast.DocID
	Module *parser.ModuleInfo
}

// Resolve implements Resolver.
func (r ModuleResolver) Resolve(name string) (Callee, bool) {
	if r.Module == nil {
		return Callee{}, false
	}
	if d, ok := r.Module.Lookup(name); ok {
		return Callee{Name: d.Name, URI: string(r.Doc)}, true
	}
	for _, imp := range r.Module.Imports {
		for _, n := range imp.Names {
			if n.LocalName() != name {
				continue
			}
			target := parser.ResolveImport(r.Doc, imp)
			if target == "" {
				return Callee{}, false
			}
			return Callee{Name: n.Name, URI: string(target)}, true
		}
	}
	return Callee{}, false
}

type noResolver struct{}

func (noResolver) Resolve(string) (Callee, bool) { return Callee{}, false }

// Build walks the workflow named scope, or the module-level entry workflow
// when scope is empty, into a Graph. A panic while walking an unexpected
// tree shape is returned as an error.
func Build(info *parser.ModuleInfo, scope string, resolver Resolver) (g *Graph, err error) {
	if info == nil {
		info = &parser.ModuleInfo{}
	}
	if resolver == nil {
		resolver = noResolver{}
	}
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, fmt.Errorf("dataflow: build %q: %v", scope, r)
		}
	}()

	if scope == "" {
		b := newBuilder(NewGraph("", true), resolver)
		b.statements(info.Entry)
		return b.graph, nil
	}

	decl, ok := info.Workflow(scope)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, scope)
	}
	b := newBuilder(NewGraph(scope, false), resolver)
	b.parameters(decl.Def.ChildByField("parameters"))
	b.block(decl.Def.ChildByField("body"))
	return b.graph, nil
}

type builder struct {
	graph    *Graph
	vars     *VariableContext
	resolver Resolver
	// inCondition is set while walking the condition of a branch; variable
	// reads there become NAME nodes.
	inCondition bool
}

func newBuilder(g *Graph, r Resolver) *builder {
	return &builder{graph: g, vars: NewVariableContext(), resolver: r}
}

// outputCall is the name of the builtin whose keyword arguments are the
// outputs of the workflow being built.
func (b *builder) outputCall() string {
	if b.graph.Entry {
		return "publish"
	}
	return "emit"
}

func (b *builder) parameters(params *ast.Node) {
	if params == nil {
		return
	}
	for _, p := range params.Children {
		var name *ast.Node
		switch p.Kind {
		case "identifier":
			name = p
		case "default_parameter", "typed_default_parameter":
			name = p.ChildByField("name")
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			name = p.FirstChildOfKind("identifier")
		}
		if name == nil {
			continue
		}
		in := b.graph.AddInput(name.Text)
		b.vars.PutSymbol(name.Text, in, false)
	}
}

// ---------- Statements ----------

func (b *builder) block(n *ast.Node) {
	if n == nil {
		return
	}
	b.statements(n.Children)
}

func (b *builder) statements(stmts []*ast.Node) {
	for _, s := range stmts {
		b.statement(s)
	}
}

func (b *builder) statement(n *ast.Node) {
	switch n.Kind {
	case "expression_statement":
		for _, c := range n.Children {
			b.expr(c)
		}
	case "if_statement":
		b.branches(n.ChildByField("condition"), n.ChildByField("consequence"), n.ChildrenByField("alternative"))
	case "for_statement":
		preds := b.expr(n.ChildByField("right"))
		b.bind(n.ChildByField("left"), preds, false)
		b.block(n.ChildByField("body"))
		b.clauses(n.ChildrenByField("alternative"))
	case "while_statement":
		b.expr(n.ChildByField("condition"))
		b.block(n.ChildByField("body"))
		b.clauses(n.ChildrenByField("alternative"))
	case "with_statement", "try_statement":
		for _, c := range n.Children {
			switch c.Kind {
			case "block":
				b.block(c)
			case "with_clause":
				b.expr(c)
			default:
				b.clauses([]*ast.Node{c})
			}
		}
	case "return_statement":
		if !b.graph.Entry {
			for _, c := range n.Children {
				b.returned(c)
			}
		}
	case "function_definition", "decorated_definition", "class_definition":
		// Nested definitions do not take part in the dataflow.
	}
}

// clauses walks trailing else/except/finally clauses inline.
func (b *builder) clauses(cs []*ast.Node) {
	for _, c := range cs {
		for _, part := range c.Children {
			if part.Kind == "block" {
				b.block(part)
			}
		}
	}
}

// branches builds an if statement. Each elif is nested in the else branch
// of the preceding condition.
func (b *builder) branches(cond, then *ast.Node, alts []*ast.Node) {
	ctrl := b.graph.AddNode(text(cond), Control, b.condition(cond))

	b.vars.PushScope()
	b.graph.PushSubgraph(false)
	b.block(then)
	b.graph.PopSubgraph(ctrl)
	thenScope := b.vars.PopScope()

	b.vars.PushScope()
	if len(alts) > 0 {
		b.graph.PushSubgraph(false)
		switch alt := alts[0]; alt.Kind {
		case "elif_clause":
			b.branches(alt.ChildByField("condition"), alt.ChildByField("consequence"), alts[1:])
		case "else_clause":
			b.block(alt.ChildByField("body"))
		}
		b.graph.PopSubgraph(ctrl)
	}
	elseScope := b.vars.PopScope()

	b.vars.MergeConditional(thenScope, elseScope)
}

func (b *builder) returned(n *ast.Node) {
	switch n.Kind {
	case "expression_list", "tuple", "parenthesized_expression":
		for _, c := range n.Children {
			b.returned(c)
		}
	default:
		b.graph.AddOutput(n.Text, b.expr(n))
	}
}

// ---------- Assignment ----------

func (b *builder) assign(n *ast.Node) NodeSet {
	local := n.ChildByField("type") != nil
	var preds NodeSet
	if right := n.ChildByField("right"); right != nil {
		preds = b.expr(right)
	}
	b.bind(n.ChildByField("left"), preds, local)
	return preds
}

func (b *builder) bind(target *ast.Node, preds NodeSet, local bool) {
	if target == nil {
		return
	}
	switch target.Kind {
	case "identifier":
		b.vars.PutSymbolSet(target.Text, preds, local)
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list",
		"tuple", "list", "parenthesized_expression", "list_splat_pattern":
		for _, c := range target.Children {
			b.bind(c, preds, local)
		}
	}
}

// ---------- Expressions ----------

// expr walks an expression and returns the nodes its value derives from.
func (b *builder) expr(n *ast.Node) NodeSet {
	if n == nil {
		return NodeSet{}
	}
	switch n.Kind {
	case "identifier":
		preds := b.vars.SymbolPredecessors(n.Text)
		if b.inCondition {
			return NewNodeSet(b.graph.AddNode(n.Text, Name, preds))
		}
		return preds
	case "attribute":
		if in := b.param(n); in != nil {
			return NewNodeSet(in)
		}
		return b.expr(n.ChildByField("object"))
	case "call":
		return b.call(n)
	case "assignment":
		return b.assign(n)
	case "augmented_assignment":
		left := n.ChildByField("left")
		preds := b.expr(left).Union(b.expr(n.ChildByField("right")))
		b.bind(left, preds, false)
		return preds
	case "named_expression":
		preds := b.expr(n.ChildByField("value"))
		b.bind(n.ChildByField("name"), preds, false)
		return preds
	case "conditional_expression":
		return b.ternary(n)
	case "keyword_argument":
		return b.expr(n.ChildByField("value"))
	case "lambda":
		return NodeSet{}
	default:
		out := NodeSet{}
		for _, c := range n.Children {
			out.AddAll(b.expr(c))
		}
		return out
	}
}

// param returns the input node for a `params.NAME` read in the entry
// workflow.
func (b *builder) param(n *ast.Node) *Node {
	if !b.graph.Entry {
		return nil
	}
	obj, attr := n.ChildByField("object"), n.ChildByField("attribute")
	if obj == nil || attr == nil || obj.Kind != "identifier" || obj.Text != "params" {
		return nil
	}
	return b.graph.AddInput(attr.Text)
}

func (b *builder) condition(n *ast.Node) NodeSet {
	saved := b.inCondition
	b.inCondition = true
	defer func() { b.inCondition = saved }()
	return b.expr(n)
}

func (b *builder) call(n *ast.Node) NodeSet {
	saved := b.inCondition
	b.inCondition = false
	defer func() { b.inCondition = saved }()

	fn := n.ChildByField("function")
	args := n.ChildByField("arguments")

	if fn != nil && fn.Kind == "identifier" && fn.Text == b.outputCall() {
		b.outputs(args)
		return NodeSet{}
	}

	preds := b.expr(args)
	if fn != nil && fn.Kind == "attribute" {
		preds.AddAll(b.expr(fn.ChildByField("object")))
	}

	op := b.graph.AddNode(text(fn), Operator, preds)
	if fn != nil && fn.Kind == "identifier" {
		if callee, ok := b.resolver.Resolve(fn.Text); ok {
			op.SourceRef = callee.URI
			return NewNodeSet(op)
		}
	}
	op.Verbose = true
	return NewNodeSet(op)
}

// outputs records the arguments of publish(...) or emit(...).
func (b *builder) outputs(args *ast.Node) {
	if args == nil {
		return
	}
	for _, a := range args.Children {
		if a.Kind == "keyword_argument" {
			if name := a.ChildByField("name"); name != nil {
				b.graph.AddOutput(name.Text, b.expr(a.ChildByField("value")))
			}
			continue
		}
		b.graph.AddOutput(a.Text, b.expr(a))
	}
}

// ternary builds `a if c else b`. Both arms get a verbose subgraph.
func (b *builder) ternary(n *ast.Node) NodeSet {
	if len(n.Children) < 3 {
		out := NodeSet{}
		for _, c := range n.Children {
			out.AddAll(b.expr(c))
		}
		return out
	}
	then, cond, els := n.Children[0], n.Children[1], n.Children[2]
	ctrl := b.graph.AddNode(cond.Text, Control, b.condition(cond))

	out := NodeSet{}
	var scopes [2]Scope
	for i, arm := range []*ast.Node{then, els} {
		b.vars.PushScope()
		b.graph.PushSubgraph(true)
		out.AddAll(b.expr(arm))
		b.graph.PopSubgraph(ctrl)
		scopes[i] = b.vars.PopScope()
	}
	b.vars.MergeConditional(scopes[0], scopes[1])
	return out
}

func text(n *ast.Node) string {
	if n == nil {
		return ""
	}
	return n.Text
}
