package docspec

import (
	"fmt"
	"io"
	"strings"
)

// DumpTree renders the member tree of a module as indented text. The
// describe callback produces the label for a member; when nil, members are
// labeled "<kind> <name>".
func DumpTree(w io.Writer, module *Module, describe func(Member) string) error {
	if describe == nil {
		describe = func(m Member) string {
			return fmt.Sprintf("%s %s", m.Kind(), m.Base().Name)
		}
	}

	var dump func(member Member, depth int) error
	dump = func(member Member, depth int) error {
		indent := strings.Repeat("  ", depth)
		if _, err := fmt.Fprintf(w, "%s%s\n", indent, describe(member)); err != nil {
			return err
		}
		for _, child := range childrenOf(member) {
			if err := dump(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	return dump(module, 0)
}
