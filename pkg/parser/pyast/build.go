package pyast

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/specvital/pyloader/pkg/parser/tspool"
)

// ErrUnparsable is matched by every *SyntaxError.
var ErrUnparsable = errors.New("pyast: unparsable source")

// SyntaxError reports a source file tree-sitter could not parse cleanly.
type SyntaxError struct {
	Path string
	Line int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid syntax in %s at line %d", e.Path, e.Line)
}

func (e *SyntaxError) Unwrap() error { return ErrUnparsable }

const testAttrQuery = `(module
  (expression_statement
    (assignment
      left: (attribute
        object: (identifier) @obj
        attribute: (identifier) @attr)
      right: (_) @value)))`

// Build parses source and returns the static model of the module named
// name. A tree with syntax errors is reported as a *SyntaxError.
func Build(ctx context.Context, source []byte, path, name string) (*Module, error) {
	tree, err := tspool.Parse(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("pyast: failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &SyntaxError{Path: path, Line: firstErrorLine(root)}
	}

	b := &builder{source: source, path: path, module: name}
	mod := &Module{Scope: newScope(), Name: name, Path: path}
	b.statements(root, &mod.Scope, nil, mod)

	if err := b.applyTestAttributes(root, mod); err != nil {
		return nil, err
	}

	return mod, nil
}

func firstErrorLine(root *sitter.Node) int {
	line := 0
	Walk(root, func(n *sitter.Node) bool {
		if line != 0 {
			return false
		}
		if n.IsError() || n.IsMissing() {
			line = int(n.StartPoint().Row) + 1
			return false
		}
		return n.HasError()
	})
	if line == 0 {
		line = 1
	}
	return line
}

type builder struct {
	source []byte
	path   string
	module string
}

func (b *builder) text(n *sitter.Node) string {
	return Text(n, b.source)
}

// statements binds the definitions found in a module or class body.
// owner is nil at module level; mod is nil inside classes.
func (b *builder) statements(body *sitter.Node, scope *Scope, owner *Class, mod *Module) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)

		switch child.Type() {
		case NodeFunctionDefinition:
			fn := b.function(child, nil, owner)
			scope.bind(fn.Name, fn)

		case NodeClassDefinition:
			cls := b.class(child, nil)
			scope.bind(cls.Name, cls)

		case NodeDecoratedDefinition:
			definition := GetDecoratedDefinition(child)
			if definition == nil {
				continue
			}
			var decorators []string
			for _, dec := range GetDecorators(child) {
				decorators = append(decorators, b.text(dec))
			}
			switch definition.Type() {
			case NodeFunctionDefinition:
				fn := b.function(definition, decorators, owner)
				scope.bind(fn.Name, fn)
			case NodeClassDefinition:
				cls := b.class(definition, decorators)
				scope.bind(cls.Name, cls)
			}

		case NodeImportStatement:
			for _, imp := range b.importStatement(child) {
				scope.bind(imp.Name, imp)
			}

		case NodeImportFrom:
			imports, star := b.importFrom(child)
			for _, imp := range imports {
				scope.bind(imp.Name, imp)
			}
			if star != nil && mod != nil {
				mod.StarImports = append(mod.StarImports, *star)
			}

		case NodeExpressionStatement:
			b.expressionStatement(child, scope, owner, mod)

		case NodeIfStatement, NodeTryStatement, NodeWithStatement:
			if child.Type() == NodeIfStatement && strings.Contains(b.text(child.ChildByFieldName("condition")), "__name__") {
				continue
			}
			for _, block := range nestedBlocks(child) {
				b.statements(block, scope, owner, mod)
			}
		}
	}
}

// nestedBlocks returns the bodies of a compound statement and its clauses.
func nestedBlocks(node *sitter.Node) []*sitter.Node {
	var blocks []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case NodeBlock:
			blocks = append(blocks, child)
		case "elif_clause", "else_clause", "except_clause", "except_group_clause", "finally_clause":
			blocks = append(blocks, nestedBlocks(child)...)
		}
	}
	return blocks
}

func (b *builder) class(node *sitter.Node, decorators []string) *Class {
	cls := &Class{
		Scope:      newScope(),
		Name:       b.text(node.ChildByFieldName("name")),
		Module:     b.module,
		Decorators: decorators,
		Location:   Span(node, b.path),
		Status:     StatusFromDecorators(decorators),
		Test:       DeclaredTest(decorators),
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(i)
			switch arg.Type() {
			case NodeKeywordArgument, "comment", "list_splat", "dictionary_splat":
				continue
			}
			cls.Bases = append(cls.Bases, b.text(arg))
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		b.statements(body, &cls.Scope, cls, nil)
	}

	return cls
}

func (b *builder) function(node *sitter.Node, decorators []string, owner *Class) *Function {
	fn := &Function{
		Name:       b.text(node.ChildByFieldName("name")),
		Module:     b.module,
		Owner:      owner,
		Decorators: decorators,
		Location:   Span(node, b.path),
		Status:     StatusFromDecorators(decorators),
		Test:       DeclaredTest(decorators),
		Static:     owner != nil && isStaticMethod(decorators),
	}

	if node.ChildCount() > 0 && node.Child(0).Type() == "async" {
		fn.Async = true
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			if name := paramName(params.NamedChild(i), b.source); name != "" {
				fn.Params = append(fn.Params, name)
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		receiver := ""
		if fn.IsMethod() && len(fn.Params) > 0 {
			receiver = fn.Params[0]
		}
		fn.Yields, fn.Generator = b.yields(body, receiver)
	}

	return fn
}

func paramName(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case NodeIdentifier:
		return Text(node, source)
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		if id := ChildOfType(node, NodeIdentifier); id != nil {
			return Text(id, source)
		}
	case "default_parameter", "typed_default_parameter":
		if name := node.ChildByFieldName("name"); name != nil {
			return Text(name, source)
		}
	}
	return ""
}

// yields collects the yield sites of a function body, not descending into
// nested scopes.
func (b *builder) yields(body *sitter.Node, receiver string) ([]Yield, bool) {
	var (
		out       []Yield
		generator bool
	)

	Walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case NodeFunctionDefinition, NodeClassDefinition, NodeLambda:
			return false
		case NodeYield:
			generator = true
			out = append(out, b.yieldEntry(n, receiver))
			return false
		}
		return true
	})

	return out, generator
}

func (b *builder) yieldEntry(node *sitter.Node, receiver string) Yield {
	entry := Yield{Line: int(node.StartPoint().Row) + 1}

	if ChildOfType(node, "from") != nil || node.NamedChildCount() == 0 {
		entry.Target = Target{Kind: TargetOther, Text: b.text(node)}
		return entry
	}

	value := node.NamedChild(0)
	var elements []*sitter.Node
	switch value.Type() {
	case NodeExpressionList, NodeTuple, NodeList:
		for i := 0; i < int(value.NamedChildCount()); i++ {
			if el := value.NamedChild(i); el.Type() != "comment" {
				elements = append(elements, el)
			}
		}
	default:
		elements = []*sitter.Node{value}
	}

	if len(elements) == 0 {
		entry.Target = Target{Kind: TargetOther, Text: b.text(value)}
		return entry
	}

	entry.Target = b.target(elements[0], receiver)
	for _, arg := range elements[1:] {
		entry.Args = append(entry.Args, b.text(arg))
	}
	return entry
}

func (b *builder) target(node *sitter.Node, receiver string) Target {
	text := b.text(node)
	t := Target{Kind: TargetOther, Text: text}

	for node.Type() == NodeParenthesized && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}

	switch node.Type() {
	case NodeIdentifier:
		t.Kind, t.Name = TargetName, text
	case NodeString, NodeConcatenatedString:
		if s, ok := Unquote(b.text(node)); ok {
			t.Kind, t.Name = TargetString, s
		}
	case NodeLambda:
		t.Kind = TargetLambda
	case NodeAttribute:
		object := node.ChildByFieldName("object")
		attr := b.text(node.ChildByFieldName("attribute"))
		objText := b.text(object)
		switch {
		case receiver != "" && objText == receiver:
			t.Kind, t.Name = TargetSelf, attr
		case IsDottedName(objText):
			t.Kind, t.Name = TargetAttr, objText+"."+attr
		}
	}

	return t
}

func (b *builder) importStatement(node *sitter.Node) []*Import {
	var out []*Import
	line := int(node.StartPoint().Row) + 1

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case NodeDottedName:
			// "import a.b" binds a.
			full := b.text(child)
			top := strings.SplitN(full, ".", 2)[0]
			out = append(out, &Import{Name: top, Module: top, Line: line})
		case NodeAliasedImport:
			out = append(out, &Import{
				Name:   b.text(child.ChildByFieldName("alias")),
				Module: b.text(child.ChildByFieldName("name")),
				Line:   line,
			})
		}
	}

	return out
}

func (b *builder) importFrom(node *sitter.Node) ([]*Import, *Import) {
	line := int(node.StartPoint().Row) + 1

	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return nil, nil
	}

	var (
		module string
		level  int
	)
	switch moduleNode.Type() {
	case NodeRelativeImport:
		if prefix := ChildOfType(moduleNode, "import_prefix"); prefix != nil {
			level = strings.Count(b.text(prefix), ".")
		}
		if dotted := ChildOfType(moduleNode, NodeDottedName); dotted != nil {
			module = b.text(dotted)
		}
	default:
		module = b.text(moduleNode)
	}

	var (
		out  []*Import
		star *Import
	)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}

		switch child.Type() {
		case NodeDottedName:
			attr := b.text(child)
			out = append(out, &Import{Name: attr, Module: module, Attr: attr, Level: level, Line: line})
		case NodeAliasedImport:
			out = append(out, &Import{
				Name:   b.text(child.ChildByFieldName("alias")),
				Module: module,
				Attr:   b.text(child.ChildByFieldName("name")),
				Level:  level,
				Line:   line,
			})
		case NodeWildcardImport:
			star = &Import{Name: "*", Module: module, Level: level, Line: line}
		}
	}

	return out, star
}

func (b *builder) expressionStatement(node *sitter.Node, scope *Scope, owner *Class, mod *Module) {
	assign := ChildOfType(node, NodeAssignment)
	if assign == nil {
		return
	}

	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || left.Type() != NodeIdentifier {
		return
	}
	for right != nil && right.Type() == NodeAssignment {
		right = right.ChildByFieldName("right")
	}

	name := b.text(left)
	if name == "__test__" {
		v := b.truth(right)
		switch {
		case owner != nil:
			owner.Test = v
		case mod != nil:
			mod.Test = v
		}
		return
	}
	if name == "__all__" && owner == nil && mod != nil {
		if names, ok := b.stringList(right); ok {
			mod.All = names
		}
	}
	if right == nil {
		return
	}

	line := int(assign.StartPoint().Row) + 1
	switch right.Type() {
	case NodeIdentifier, NodeAttribute:
		if target := b.text(right); IsDottedName(target) {
			scope.bind(name, &Alias{Name: name, Target: target, Line: line})
			return
		}
	}

	value := &Value{Name: name, Text: b.text(right), Location: Span(assign, b.path)}
	if right.Type() == NodeCall {
		call := &Call{Callee: b.text(right.ChildByFieldName("function"))}
		if args := right.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				if arg.Type() == NodeKeywordArgument || arg.Type() == "comment" {
					continue
				}
				call.Args = append(call.Args, b.text(arg))
			}
		}
		value.Call = call
	}
	scope.bind(name, value)
}

// stringList reads a list or tuple of string literals.
func (b *builder) stringList(node *sitter.Node) ([]string, bool) {
	if node == nil || (node.Type() != NodeList && node.Type() != NodeTuple) {
		return nil, false
	}
	names := make([]string, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		item := node.NamedChild(i)
		if item.Type() == "comment" {
			continue
		}
		if item.Type() != NodeString {
			return nil, false
		}
		s, ok := Unquote(b.text(item))
		if !ok {
			return nil, false
		}
		names = append(names, s)
	}
	return names, true
}

// truth evaluates constant truthiness; nil when not a constant.
func (b *builder) truth(node *sitter.Node) *bool {
	if node == nil {
		return nil
	}
	var v bool
	switch node.Type() {
	case "true":
		v = true
	case "false", "none":
		v = false
	case "integer":
		n, err := strconv.ParseInt(b.text(node), 0, 64)
		if err != nil {
			return nil
		}
		v = n != 0
	default:
		return nil
	}
	return &v
}

// applyTestAttributes handles module-level "name.__test__ = value".
func (b *builder) applyTestAttributes(root *sitter.Node, mod *Module) error {
	results, err := tspool.QueryWithCache(root, testAttrQuery)
	if err != nil {
		return fmt.Errorf("pyast: %w", err)
	}

	for _, r := range results {
		if b.text(r.Captures["attr"]) != "__test__" {
			continue
		}
		v := b.truth(r.Captures["value"])
		if v == nil {
			continue
		}
		obj, ok := mod.Lookup(b.text(r.Captures["obj"]))
		if !ok {
			continue
		}
		switch o := obj.(type) {
		case *Function:
			o.Test = v
		case *Class:
			o.Test = v
		}
	}

	return nil
}

// Unquote returns the contents of a Python string literal. Escape
// sequences are kept as written.
func Unquote(literal string) (string, bool) {
	s := strings.TrimSpace(literal)
	s = strings.TrimLeft(s, "rRuUbBfF")

	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)], true
		}
	}
	return "", false
}
