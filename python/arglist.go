package python

import (
	"strings"

	"github.com/nrser/docspec"
)

// FormatArglist renders an argument list the way it would appear in a def
// statement, inserting "/" and "*" separators as required by the argument
// types.
func FormatArglist(args []docspec.Argument) string {
	var parts []string
	sawKeywordOnly := false

	for i, arg := range args {
		if i > 0 && args[i-1].Type == docspec.ArgPositionalOnly && arg.Type != docspec.ArgPositionalOnly {
			parts = append(parts, "/")
		}
		if arg.Type == docspec.ArgKeywordOnly && !sawKeywordOnly {
			sawKeywordOnly = true
			parts = append(parts, "*")
		}
		if arg.Type == docspec.ArgPositionalRemainder || arg.Type == docspec.ArgKeywordRemainder {
			// *args also opens the keyword-only section.
			sawKeywordOnly = true
		}
		parts = append(parts, formatArg(arg))
	}

	// All-positional-only signatures still need the trailing "/".
	if n := len(args); n > 0 && args[n-1].Type == docspec.ArgPositionalOnly {
		parts = append(parts, "/")
	}

	return strings.Join(parts, ", ")
}

func formatArg(arg docspec.Argument) string {
	var sb strings.Builder

	switch arg.Type {
	case docspec.ArgPositionalRemainder:
		sb.WriteString("*")
	case docspec.ArgKeywordRemainder:
		sb.WriteString("**")
	}
	sb.WriteString(arg.Name)

	if arg.Datatype != "" {
		sb.WriteString(": ")
		sb.WriteString(arg.Datatype)
	}
	if arg.DefaultValue != "" {
		if arg.Datatype != "" {
			sb.WriteString(" = ")
		} else {
			sb.WriteString("=")
		}
		sb.WriteString(arg.DefaultValue)
	}

	return sb.String()
}

// FormatFunction renders a function the way it would appear as a def
// statement, without the body.
func FormatFunction(fn *docspec.Function) string {
	var sb strings.Builder

	for _, mod := range fn.Modifiers {
		sb.WriteString(mod)
		sb.WriteString(" ")
	}
	sb.WriteString("def ")
	sb.WriteString(fn.Name)
	sb.WriteString("(")
	sb.WriteString(FormatArglist(fn.Args))
	sb.WriteString(")")
	if fn.ReturnType != "" {
		sb.WriteString(" -> ")
		sb.WriteString(fn.ReturnType)
	}

	return sb.String()
}
