package dataflow

// Variable is a binding of a name during graph construction.
type Variable struct {
	// Depth is the scope depth at which the binding is visible; 1 is the
	// workflow scope.
	Depth int
	// Preds are the nodes that could have produced the current value.
	Preds NodeSet
}

// Scope maps names to their bindings at one nesting level.
type Scope map[string]*Variable

func (s Scope) clone() Scope {
	out := make(Scope, len(s))
	for name, v := range s {
		out[name] = &Variable{Depth: v.Depth, Preds: v.Preds.Clone()}
	}
	return out
}

// VariableContext tracks bindings over a stack of scopes, one per lexical
// nesting level. It starts with the workflow scope open.
type VariableContext struct {
	stack []Scope
}

// NewVariableContext returns a context at depth 1.
func NewVariableContext() *VariableContext {
	return &VariableContext{stack: []Scope{{}}}
}

// Depth returns the number of open scopes.
func (c *VariableContext) Depth() int {
	return len(c.stack)
}

func (c *VariableContext) top() Scope {
	return c.stack[len(c.stack)-1]
}

// PushScope opens a scope starting from a copy of the current one, so a
// branch sees every binding visible before it without being able to change
// them in place.
func (c *VariableContext) PushScope() {
	c.stack = append(c.stack, c.top().clone())
}

// PopScope closes the innermost scope and returns its bindings for
// merging. The workflow scope cannot be popped.
func (c *VariableContext) PopScope() Scope {
	if len(c.stack) == 1 {
		panic("dataflow: PopScope on workflow scope")
	}
	s := c.top()
	c.stack = c.stack[:len(c.stack)-1]
	return s
}

// PutSymbol binds name to the value produced by node.
func (c *VariableContext) PutSymbol(name string, node *Node, isLocal bool) {
	c.PutSymbolSet(name, NewNodeSet(node), isLocal)
}

// PutSymbolSet binds name to a value any of preds could have produced. An
// existing binding has its predecessors replaced and keeps its depth. A new
// binding is created at the current depth when isLocal is set and at depth
// 1 otherwise.
func (c *VariableContext) PutSymbolSet(name string, preds NodeSet, isLocal bool) {
	top := c.top()
	if v, ok := top[name]; ok {
		v.Preds = preds.Clone()
		return
	}
	depth := 1
	if isLocal {
		depth = c.Depth()
	}
	top[name] = &Variable{Depth: depth, Preds: preds.Clone()}
}

// Lookup returns the innermost binding of name.
func (c *VariableContext) Lookup(name string) (*Variable, bool) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		if v, ok := c.stack[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// SymbolPredecessors returns a copy of the predecessors of the innermost
// binding of name, or an empty set when name is unbound.
func (c *VariableContext) SymbolPredecessors(name string) NodeSet {
	if v, ok := c.Lookup(name); ok {
		return v.Preds.Clone()
	}
	return NodeSet{}
}

// MergeConditional folds the scopes of two alternative branches into the
// current scope. A name survives only if both branches bind it at a depth
// visible here; its predecessors become the union of both branches. Names
// bound in one branch only are not definitely assigned and are left out.
// Names bound deeper than the current scope are dropped.
func (c *VariableContext) MergeConditional(ifScope, elseScope Scope) {
	depth := c.Depth()
	top := c.top()
	for name, a := range ifScope {
		b, ok := elseScope[name]
		if !ok {
			// TODO: decide whether a one-sided assignment should extend an
			// outer binding; until then it is not propagated.
			continue
		}
		if a.Depth > depth || b.Depth > depth {
			continue
		}
		preds := a.Preds.Union(b.Preds)
		if v, ok := top[name]; ok {
			v.Preds = preds
			continue
		}
		top[name] = &Variable{Depth: min(a.Depth, b.Depth), Preds: preds}
	}
}
