package docspec

import "fmt"

// Validate checks the structural integrity of a loaded module: every member
// must be named, argument types must be legal, and locations must carry a
// positive line number when they name a file.
func (m *Module) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("module has no name")
	}

	var err error
	rm := NewReverseMap(m)
	Visit(m, func(member Member) bool {
		if err != nil {
			return false
		}
		err = validateMember(member, rm)
		return err == nil
	})
	return err
}

func validateMember(member Member, rm *ReverseMap) error {
	base := member.Base()
	if base.Name == "" {
		return fmt.Errorf("unnamed %s under %q", member.Kind(), rm.QualifiedName(rm.Parent(member)))
	}

	if loc := base.Location; loc != nil && loc.Filename != "" && loc.Lineno < 1 {
		return fmt.Errorf("%s %q: location %s has no line number",
			member.Kind(), rm.QualifiedName(member), loc.Filename)
	}

	if fn, ok := member.(*Function); ok {
		for i, arg := range fn.Args {
			if !arg.Type.Valid() {
				return fmt.Errorf("function %q: argument %d (%q) has invalid type %q",
					rm.QualifiedName(member), i, arg.Name, arg.Type)
			}
		}
	}
	return nil
}
