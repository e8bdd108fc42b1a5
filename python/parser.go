// Package python parses Python source into the docspec object model using a
// tree-sitter concrete syntax tree.
package python

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/nrser/docspec"
)

// ParserOptions controls what the parser emits.
type ParserOptions struct {
	// IncludePrivate emits members whose names start with an underscore.
	// Dunder members (__init__ and friends) are always emitted.
	IncludePrivate bool

	// IncludeImports emits Indirection members for import statements.
	IncludeImports bool
}

// DefaultParserOptions returns the options used when none are given.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		IncludePrivate: true,
		IncludeImports: true,
	}
}

// Parser converts Python source files into docspec modules.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	options ParserOptions
	parser  *sitter.Parser
}

// NewParser creates a parser with the given options.
func NewParser(options ParserOptions) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{options: options, parser: p}
}

// ParseFile parses the Python file at path. If name is empty the module name
// is derived from the file name ("pkg/mod.py" → "mod", "__init__.py" takes
// the directory name).
func (p *Parser) ParseFile(ctx context.Context, path, name string) (*docspec.Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if name == "" {
		name = ModuleNameForFile(path)
	}
	return p.ParseString(ctx, content, name, path)
}

// ParseString parses Python source. The filename is recorded in member
// locations and may be empty.
func (p *Parser) ParseString(ctx context.Context, source []byte, name, filename string) (*docspec.Module, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := findErrorNode(root); bad != nil {
			return nil, fmt.Errorf("%s: syntax error at line %d", displayName(name, filename), bad.StartPoint().Row+1)
		}
		return nil, fmt.Errorf("%s: syntax error", displayName(name, filename))
	}

	module := &docspec.Module{
		ObjectBase: docspec.ObjectBase{
			Name: name,
			Location: &docspec.Location{
				Filename:  filename,
				Lineno:    1,
				EndLineno: int(root.EndPoint().Row) + 1,
			},
		},
		Members: docspec.Members{},
	}

	ext := extractor{options: p.options, source: source, filename: filename}
	module.Docstring = ext.docstring(root)
	module.Members = ext.members(root, module.Docstring != nil)

	return module, nil
}

// ModuleNameForFile derives a module name from a file path: the stem of the
// file, or the containing directory for __init__.py.
func ModuleNameForFile(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, ".py")
	if stem == "__init__" {
		return filepath.Base(filepath.Dir(path))
	}
	return stem
}

// findErrorNode locates the first ERROR node in a tree with errors.
func findErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if found := findErrorNode(node.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

func displayName(name, filename string) string {
	if filename != "" {
		return filename
	}
	return name
}

// extractor walks a parsed tree and builds docspec members.
type extractor struct {
	options  ParserOptions
	source   []byte
	filename string
}

func (e *extractor) text(node *sitter.Node) string {
	return string(e.source[node.StartByte():node.EndByte()])
}

func (e *extractor) location(node *sitter.Node) *docspec.Location {
	return &docspec.Location{
		Filename:  e.filename,
		Lineno:    int(node.StartPoint().Row) + 1,
		EndLineno: int(node.EndPoint().Row) + 1,
	}
}

// members extracts the member list of a module or class body node. When
// skipDocstring is set the leading docstring expression is not treated as an
// assignment.
func (e *extractor) members(body *sitter.Node, skipDocstring bool) docspec.Members {
	members := docspec.Members{}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if i == 0 && skipDocstring && child.Type() == "expression_statement" {
			continue
		}

		switch child.Type() {
		case "function_definition":
			if fn := e.function(child, nil); fn != nil {
				members = append(members, fn)
			}

		case "class_definition":
			if cls := e.class(child, nil); cls != nil {
				members = append(members, cls)
			}

		case "decorated_definition":
			decorations := e.decorations(child)
			if def := definitionIn(child); def != nil {
				switch def.Type() {
				case "function_definition":
					if fn := e.function(def, decorations); fn != nil {
						members = append(members, fn)
					}
				case "class_definition":
					if cls := e.class(def, decorations); cls != nil {
						members = append(members, cls)
					}
				}
			}

		case "expression_statement":
			members = append(members, e.assignments(child)...)

		case "import_statement", "import_from_statement":
			if e.options.IncludeImports {
				members = append(members, e.indirections(child)...)
			}
		}
	}

	return members
}

// keep applies the private-member filter.
func (e *extractor) keep(name string) bool {
	if e.options.IncludePrivate {
		return true
	}
	// Dunders are part of the public surface.
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return true
	}
	return !strings.HasPrefix(name, "_")
}

// function extracts a function definition, nil when filtered out.
func (e *extractor) function(node *sitter.Node, decorations []docspec.Decoration) *docspec.Function {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := e.text(nameNode)
	if !e.keep(name) {
		return nil
	}

	fn := &docspec.Function{
		ObjectBase: docspec.ObjectBase{
			Name:     name,
			Location: e.location(node),
		},
		Args:        []docspec.Argument{},
		Decorations: decorations,
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Args = e.arguments(params)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.ReturnType = e.text(ret)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		fn.Docstring = e.docstring(body)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			fn.Modifiers = append(fn.Modifiers, "async")
			break
		}
	}

	return fn
}

// arguments extracts the typed argument list, classifying each argument by
// how it binds: a "/" separator retroactively marks the arguments before it
// positional-only, a "*" separator or *args marks the rest keyword-only.
func (e *extractor) arguments(params *sitter.Node) []docspec.Argument {
	args := []docspec.Argument{}
	kind := docspec.ArgPositional

	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)

		switch child.Type() {
		case "positional_separator":
			for j := range args {
				if args[j].Type == docspec.ArgPositional {
					args[j].Type = docspec.ArgPositionalOnly
				}
			}

		case "keyword_separator":
			kind = docspec.ArgKeywordOnly

		case "identifier":
			args = append(args, docspec.Argument{
				Name:     e.text(child),
				Type:     kind,
				Location: e.location(child),
			})

		case "typed_parameter":
			arg := e.splatAware(child.NamedChild(0), kind)
			if t := child.ChildByFieldName("type"); t != nil {
				arg.Datatype = e.text(t)
			}
			arg.Location = e.location(child)
			args = append(args, arg)
			if arg.Type == docspec.ArgPositionalRemainder {
				kind = docspec.ArgKeywordOnly
			}

		case "default_parameter", "typed_default_parameter":
			arg := docspec.Argument{Type: kind, Location: e.location(child)}
			if n := child.ChildByFieldName("name"); n != nil {
				arg.Name = e.text(n)
			}
			if t := child.ChildByFieldName("type"); t != nil {
				arg.Datatype = e.text(t)
			}
			if v := child.ChildByFieldName("value"); v != nil {
				arg.DefaultValue = e.text(v)
			}
			args = append(args, arg)

		case "list_splat_pattern":
			arg := e.splatAware(child, kind)
			arg.Location = e.location(child)
			args = append(args, arg)
			kind = docspec.ArgKeywordOnly

		case "dictionary_splat_pattern":
			arg := e.splatAware(child, kind)
			arg.Location = e.location(child)
			args = append(args, arg)
		}
	}

	return args
}

// splatAware builds an argument from a name node that may be a *args or
// **kwargs pattern.
func (e *extractor) splatAware(node *sitter.Node, kind docspec.ArgumentType) docspec.Argument {
	if node == nil {
		return docspec.Argument{Type: kind}
	}
	switch node.Type() {
	case "list_splat_pattern":
		return docspec.Argument{
			Name: strings.TrimPrefix(e.text(node), "*"),
			Type: docspec.ArgPositionalRemainder,
		}
	case "dictionary_splat_pattern":
		return docspec.Argument{
			Name: strings.TrimPrefix(e.text(node), "**"),
			Type: docspec.ArgKeywordRemainder,
		}
	}
	return docspec.Argument{Name: e.text(node), Type: kind}
}

// class extracts a class definition with its nested members.
func (e *extractor) class(node *sitter.Node, decorations []docspec.Decoration) *docspec.Class {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := e.text(nameNode)
	if !e.keep(name) {
		return nil
	}

	cls := &docspec.Class{
		ObjectBase: docspec.ObjectBase{
			Name:     name,
			Location: e.location(node),
		},
		Decorations: decorations,
		Members:     docspec.Members{},
	}

	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			arg := supers.NamedChild(i)
			if arg.Type() == "keyword_argument" {
				if n := arg.ChildByFieldName("name"); n != nil && e.text(n) == "metaclass" {
					if v := arg.ChildByFieldName("value"); v != nil {
						cls.Metaclass = e.text(v)
					}
				}
				continue
			}
			cls.Bases = append(cls.Bases, e.text(arg))
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		cls.Docstring = e.docstring(body)
		cls.Members = e.members(body, cls.Docstring != nil)
	}

	return cls
}

// assignments extracts module- or class-level variable assignments and
// annotations from an expression statement.
func (e *extractor) assignments(node *sitter.Node) docspec.Members {
	members := docspec.Members{}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "assignment" {
			continue
		}

		left := child.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			// Tuple unpacking and attribute targets are not model members.
			continue
		}
		name := e.text(left)
		if !e.keep(name) {
			continue
		}

		variable := &docspec.Variable{
			ObjectBase: docspec.ObjectBase{
				Name:     name,
				Location: e.location(child),
			},
		}
		if t := child.ChildByFieldName("type"); t != nil {
			variable.Datatype = e.text(t)
		}
		if right := child.ChildByFieldName("right"); right != nil {
			variable.Value = e.text(right)
		}
		members = append(members, variable)
	}

	return members
}

// indirections extracts Indirection members from import statements.
func (e *extractor) indirections(node *sitter.Node) docspec.Members {
	members := docspec.Members{}

	switch node.Type() {
	case "import_statement":
		// import a.b, c as d
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				target := e.text(child)
				// "import a.b" binds the top-level name "a".
				name := target
				if idx := strings.Index(name, "."); idx != -1 {
					name = name[:idx]
					target = name
				}
				members = append(members, e.indirection(child, name, target))
			case "aliased_import":
				name := e.text(child.ChildByFieldName("alias"))
				target := e.text(child.ChildByFieldName("name"))
				members = append(members, e.indirection(child, name, target))
			}
		}

	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			return members
		}
		module := e.text(moduleNode)

		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.StartByte() == moduleNode.StartByte() {
				continue
			}
			switch child.Type() {
			case "dotted_name":
				name := e.text(child)
				members = append(members, e.indirection(child, name, joinTarget(module, name)))
			case "aliased_import":
				name := e.text(child.ChildByFieldName("alias"))
				imported := e.text(child.ChildByFieldName("name"))
				members = append(members, e.indirection(child, name, joinTarget(module, imported)))
			case "wildcard_import":
				members = append(members, e.indirection(child, "*", joinTarget(module, "*")))
			}
		}
	}

	return members
}

func (e *extractor) indirection(node *sitter.Node, name, target string) *docspec.Indirection {
	return &docspec.Indirection{
		ObjectBase: docspec.ObjectBase{
			Name:     name,
			Location: e.location(node),
		},
		Target: target,
	}
}

// joinTarget joins a from-import module and name, keeping relative import
// dots intact ("from . import x" → ".x").
func joinTarget(module, name string) string {
	if strings.HasSuffix(module, ".") {
		return module + name
	}
	return module + "." + name
}

// decorations extracts the decorator list of a decorated definition.
func (e *extractor) decorations(node *sitter.Node) []docspec.Decoration {
	var decorations []docspec.Decoration

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}

		expr := child.NamedChild(0)
		if expr == nil {
			continue
		}

		dec := docspec.Decoration{Location: e.location(child)}
		if expr.Type() == "call" {
			dec.Name = e.text(expr.ChildByFieldName("function"))
			if argsNode := expr.ChildByFieldName("arguments"); argsNode != nil {
				dec.Args = e.text(argsNode)
				for j := 0; j < int(argsNode.NamedChildCount()); j++ {
					dec.ArgList = append(dec.ArgList, e.text(argsNode.NamedChild(j)))
				}
			}
		} else {
			dec.Name = e.text(expr)
		}
		decorations = append(decorations, dec)
	}

	return decorations
}

// definitionIn finds the class or function node inside a decorated
// definition.
func definitionIn(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition", "function_definition":
			return child
		}
	}
	return nil
}

// docstring extracts the leading docstring of a module or suite body.
func (e *extractor) docstring(body *sitter.Node) *docspec.Docstring {
	if body.NamedChildCount() == 0 {
		return nil
	}

	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return nil
	}
	expr := first.NamedChild(0)
	if expr.Type() != "string" {
		return nil
	}

	return &docspec.Docstring{
		Location: e.location(expr),
		Content:  cleanDocstring(e.text(expr)),
	}
}

// cleanDocstring strips quotes and string prefixes and dedents continuation
// lines, mirroring how documentation tools normalize docstrings.
func cleanDocstring(raw string) string {
	// Drop string prefixes like r, b, f, u before the opening quote.
	trimmed := strings.TrimLeft(raw, "rRbBfFuU")

	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(trimmed, quote) && strings.HasSuffix(trimmed, quote) && len(trimmed) >= 2*len(quote) {
			trimmed = trimmed[len(quote) : len(trimmed)-len(quote)]
			break
		}
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) == 1 {
		return strings.TrimSpace(trimmed)
	}

	// Find the common indentation of the continuation lines.
	indent := -1
	for _, line := range lines[1:] {
		stripped := strings.TrimLeft(line, " \t")
		if stripped == "" {
			continue
		}
		width := len(line) - len(stripped)
		if indent < 0 || width < indent {
			indent = width
		}
	}

	out := []string{strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if indent > 0 && len(line) >= indent {
			line = line[indent:]
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
