package parser

import (
	"net/url"
	"path"
	"strings"

	"github.com/dusk-indust/flowscope/internal/ast"
)

// DeclKind classifies top-level callables of a workflow document.
type DeclKind string

const (
	DeclProcess  DeclKind = "process"
	DeclWorkflow DeclKind = "workflow"
)

// Declaration is a @process or @workflow definition at module level.
type Declaration struct {
	Name string
	Kind DeclKind
	// Def is the function_definition node.
	Def *ast.Node
}

// ImportName is one name pulled in by a from-import.
type ImportName struct {
	Name  string
	Alias string
	Node  *ast.Node
}

// LocalName is the name the import binds in the importing document.
func (n ImportName) LocalName() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Import is a `from X import a, b as c` statement.
type Import struct {
	Module string
	// Level counts leading dots of a relative import.
	Level int
	Names []ImportName
	Node  *ast.Node
}

// ModuleInfo summarises the top level of a workflow document.
type ModuleInfo struct {
	Declarations []Declaration
	Imports      []Import
	// Entry holds the module-level statements that form the implicit entry
	// workflow, in source order.
	Entry []*ast.Node
}

// Inspect scans the direct children of a module node. A nil root yields an
// empty ModuleInfo.
func Inspect(root *ast.Node) *ModuleInfo {
	info := &ModuleInfo{}
	if root == nil {
		return info
	}
	for _, stmt := range root.Children {
		switch stmt.Kind {
		case "decorated_definition":
			if d, ok := declaration(stmt); ok {
				info.Declarations = append(info.Declarations, d)
			}
		case "function_definition", "class_definition":
			// Undecorated definitions are plain helpers, not callables.
		case "import_from_statement":
			if imp, ok := fromImport(stmt); ok {
				info.Imports = append(info.Imports, imp)
			}
		case "import_statement", "future_import_statement":
		default:
			info.Entry = append(info.Entry, stmt)
		}
	}
	return info
}

// Lookup returns the first declaration with the given name.
func (m *ModuleInfo) Lookup(name string) (Declaration, bool) {
	for _, d := range m.Declarations {
		if d.Name == name {
			return d, true
		}
	}
	return Declaration{}, false
}

// Workflow returns the named @workflow declaration.
func (m *ModuleInfo) Workflow(name string) (Declaration, bool) {
	d, ok := m.Lookup(name)
	if !ok || d.Kind != DeclWorkflow {
		return Declaration{}, false
	}
	return d, true
}

func declaration(n *ast.Node) (Declaration, bool) {
	def := n.ChildByField("definition")
	if def == nil {
		def = n.FirstChildOfKind("function_definition")
	}
	if def == nil || def.Kind != "function_definition" {
		return Declaration{}, false
	}
	name := def.ChildByField("name")
	if name == nil || name.Text == "" {
		return Declaration{}, false
	}
	for _, dec := range n.Children {
		if dec.Kind != "decorator" {
			continue
		}
		switch decoratorName(dec) {
		case "process":
			return Declaration{Name: name.Text, Kind: DeclProcess, Def: def}, true
		case "workflow":
			return Declaration{Name: name.Text, Kind: DeclWorkflow, Def: def}, true
		}
	}
	return Declaration{}, false
}

// decoratorName returns the trailing identifier of a decorator expression,
// so `@process`, `@process(cpus=2)` and `@flow.process` all yield "process".
func decoratorName(dec *ast.Node) string {
	if len(dec.Children) == 0 {
		return ""
	}
	expr := dec.Children[0]
	if expr.Kind == "call" {
		expr = expr.ChildByField("function")
	}
	if expr == nil {
		return ""
	}
	switch expr.Kind {
	case "identifier":
		return expr.Text
	case "attribute":
		if attr := expr.ChildByField("attribute"); attr != nil {
			return attr.Text
		}
	}
	return ""
}

func fromImport(n *ast.Node) (Import, bool) {
	mod := n.ChildByField("module_name")
	if mod == nil {
		return Import{}, false
	}
	imp := Import{Node: n}
	switch mod.Kind {
	case "relative_import":
		text := mod.Text
		for strings.HasPrefix(text, ".") {
			imp.Level++
			text = text[1:]
		}
		imp.Module = text
	default:
		imp.Module = mod.Text
	}

	for _, c := range n.ChildrenByField("name") {
		switch c.Kind {
		case "dotted_name":
			imp.Names = append(imp.Names, ImportName{Name: c.Text, Node: c})
		case "aliased_import":
			name, alias := c.ChildByField("name"), c.ChildByField("alias")
			if name == nil {
				continue
			}
			in := ImportName{Name: name.Text, Node: c}
			if alias != nil {
				in.Alias = alias.Text
			}
			imp.Names = append(imp.Names, in)
		}
	}
	return imp, imp.Module != "" || imp.Level > 0
}

// ResolveImport maps an import in document from to the document it names.
// Modules resolve relative to the importing document's directory, one
// directory up per extra leading dot: `from common import X` in
// file:///w/main.py names file:///w/common.py.
func ResolveImport(from ast.DocID, imp Import) ast.DocID {
	u, err := url.Parse(string(from))
	if err != nil {
		return ""
	}
	dir := path.Dir(u.Path)
	for i := 1; i < imp.Level; i++ {
		dir = path.Dir(dir)
	}
	if imp.Module == "" {
		return ""
	}
	u.Path = path.Join(dir, strings.ReplaceAll(imp.Module, ".", "/")+".py")
	return ast.DocID(u.String())
}
