// Package docspec defines a language-agnostic object model for API
// documentation and its JSON serialization.
//
// A Module is the root of a member tree. Members are modules, classes,
// functions, variables (serialized as "data") and indirections (imported
// names). Producers such as the docspec-python parser emit this model;
// consumers render or transform it.
package docspec

// Kind is the JSON type discriminator for a member of the object model.
type Kind string

const (
	KindModule      Kind = "module"
	KindClass       Kind = "class"
	KindFunction    Kind = "function"
	KindData        Kind = "data"
	KindIndirection Kind = "indirection"
)

// Location identifies where a member is defined in source.
type Location struct {
	// Filename is the path of the source file, relative to the project root
	// when the producer knows it.
	Filename string `json:"filename"`

	// Lineno is the 1-based line the definition starts on.
	Lineno int `json:"lineno"`

	// EndLineno is the 1-based line the definition ends on, if known.
	EndLineno int `json:"endlineno,omitempty"`
}

// Docstring is a documentation string attached to a member.
//
// Legacy payloads serialize docstrings as a bare JSON string; current
// payloads use an object carrying the docstring's own location. Both forms
// decode; encoding always produces the object form.
type Docstring struct {
	Location *Location `json:"location,omitempty"`
	Content  string    `json:"content"`
}

// Decoration represents a decorator applied to a class or function.
type Decoration struct {
	// Name is the decorator expression without arguments, e.g.
	// "app.route" for "@app.route('/')".
	Name string `json:"name"`

	// Args is the raw argument text including parentheses, empty when the
	// decorator is used without a call.
	Args string `json:"args,omitempty"`

	// ArgList holds the individual argument expressions.
	ArgList []string `json:"arg_list,omitempty"`

	Location *Location `json:"location,omitempty"`
}

// ArgumentType classifies how an argument binds at the call site.
type ArgumentType string

const (
	// ArgPositionalOnly can only be given positionally (before a "/").
	ArgPositionalOnly ArgumentType = "POSITIONAL_ONLY"

	// ArgPositional binds positionally or by keyword.
	ArgPositional ArgumentType = "POSITIONAL"

	// ArgPositionalRemainder collects excess positional arguments ("*args").
	ArgPositionalRemainder ArgumentType = "POSITIONAL_REMAINDER"

	// ArgKeywordOnly can only be given by keyword (after a "*").
	ArgKeywordOnly ArgumentType = "KEYWORD_ONLY"

	// ArgKeywordRemainder collects excess keyword arguments ("**kwargs").
	ArgKeywordRemainder ArgumentType = "KEYWORD_REMAINDER"
)

// Valid reports whether t is one of the defined argument types.
func (t ArgumentType) Valid() bool {
	switch t {
	case ArgPositionalOnly, ArgPositional, ArgPositionalRemainder,
		ArgKeywordOnly, ArgKeywordRemainder:
		return true
	}
	return false
}

// Argument is a single parameter of a function.
type Argument struct {
	Name string       `json:"name"`
	Type ArgumentType `json:"type"`

	// Datatype is the raw type annotation text, if annotated.
	Datatype string `json:"datatype,omitempty"`

	// DefaultValue is the raw default expression text, if any.
	DefaultValue string `json:"default_value,omitempty"`

	Location *Location `json:"location,omitempty"`
}

// ObjectBase holds the fields shared by every member kind. It is embedded in
// the concrete member types; the promoted Base method satisfies part of the
// Member interface.
type ObjectBase struct {
	Name      string     `json:"name"`
	Location  *Location  `json:"location,omitempty"`
	Docstring *Docstring `json:"docstring,omitempty"`
}

// Base returns the shared fields of a member.
func (b *ObjectBase) Base() *ObjectBase { return b }

// Member is implemented by every object in the model tree: Module, Class,
// Function, Variable and Indirection.
type Member interface {
	// Kind returns the JSON type discriminator for this member.
	Kind() Kind

	// Base returns the fields shared by all member kinds.
	Base() *ObjectBase
}

// Module is the root of a member tree, representing a single source module.
type Module struct {
	ObjectBase
	Members Members `json:"members"`
}

func (*Module) Kind() Kind { return KindModule }

// Class is a type definition with bases and nested members.
type Class struct {
	ObjectBase

	// Metaclass is the raw metaclass expression, if declared.
	Metaclass string `json:"metaclass,omitempty"`

	// Bases are the raw base-class expressions in declaration order.
	Bases []string `json:"bases,omitempty"`

	Decorations []Decoration `json:"decorations,omitempty"`
	Members     Members      `json:"members"`
}

func (*Class) Kind() Kind { return KindClass }

// Function is a function or method definition.
type Function struct {
	ObjectBase

	// Modifiers carries keywords modifying the definition, e.g. "async".
	Modifiers []string `json:"modifiers,omitempty"`

	Args []Argument `json:"args"`

	// ReturnType is the raw return annotation text, if annotated.
	ReturnType string `json:"return_type,omitempty"`

	Decorations []Decoration `json:"decorations,omitempty"`
}

func (*Function) Kind() Kind { return KindFunction }

// Variable is a module- or class-level assignment. Its JSON type is "data".
type Variable struct {
	ObjectBase

	// Datatype is the raw type annotation text, if annotated.
	Datatype string `json:"datatype,omitempty"`

	// Value is the raw text of the assigned expression.
	Value string `json:"value,omitempty"`
}

func (*Variable) Kind() Kind { return KindData }

// Indirection is a name made visible in a module by importing it from
// elsewhere. Name is the local name, Target the dotted origin; a wildcard
// import has Name "*" and a Target ending in ".*".
type Indirection struct {
	ObjectBase
	Target string `json:"target"`
}

func (*Indirection) Kind() Kind { return KindIndirection }
