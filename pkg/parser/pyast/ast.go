// Package pyast builds a static model of Python modules from tree-sitter
// trees: bound names, classes with their bases, functions with generator
// yield sites, imports and test declarations.
package pyast

import sitter "github.com/smacker/go-tree-sitter"

// Python AST node types.
const (
	NodeAliasedImport       = "aliased_import"
	NodeAssignment          = "assignment"
	NodeAttribute           = "attribute"
	NodeBlock               = "block"
	NodeCall                = "call"
	NodeClassDefinition     = "class_definition"
	NodeConcatenatedString  = "concatenated_string"
	NodeDecoratedDefinition = "decorated_definition"
	NodeDecorator           = "decorator"
	NodeDottedName          = "dotted_name"
	NodeExpressionList      = "expression_list"
	NodeExpressionStatement = "expression_statement"
	NodeFunctionDefinition  = "function_definition"
	NodeIdentifier          = "identifier"
	NodeIfStatement         = "if_statement"
	NodeImportFrom          = "import_from_statement"
	NodeImportStatement     = "import_statement"
	NodeKeywordArgument     = "keyword_argument"
	NodeLambda              = "lambda"
	NodeList                = "list"
	NodeParenthesized       = "parenthesized_expression"
	NodeRelativeImport      = "relative_import"
	NodeString              = "string"
	NodeTryStatement        = "try_statement"
	NodeTuple               = "tuple"
	NodeWildcardImport      = "wildcard_import"
	NodeWithStatement       = "with_statement"
	NodeYield               = "yield"
)

// GetDecoratedDefinition extracts the actual definition from a decorated_definition node.
func GetDecoratedDefinition(node *sitter.Node) *sitter.Node {
	definition := node.ChildByFieldName("definition")
	if definition != nil {
		return definition
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == NodeFunctionDefinition || child.Type() == NodeClassDefinition {
			return child
		}
	}
	return nil
}

// GetDecorators extracts all decorator nodes from a decorated_definition.
func GetDecorators(node *sitter.Node) []*sitter.Node {
	var decorators []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == NodeDecorator {
			decorators = append(decorators, child)
		}
	}
	return decorators
}
