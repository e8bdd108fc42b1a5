package docspec

import "strings"

// Visit walks the member tree rooted at member in pre-order, calling fn for
// each member. If fn returns false the member's children are not visited.
func Visit(member Member, fn func(Member) bool) {
	if !fn(member) {
		return
	}
	for _, child := range childrenOf(member) {
		Visit(child, fn)
	}
}

// Filter removes members from the tree for which keep returns false. The
// module root itself is always kept. Children of removed members are removed
// with them.
func Filter(module *Module, keep func(Member) bool) {
	module.Members = filterMembers(module.Members, keep)
}

func filterMembers(members Members, keep func(Member) bool) Members {
	filtered := make(Members, 0, len(members))
	for _, member := range members {
		if !keep(member) {
			continue
		}
		switch m := member.(type) {
		case *Module:
			m.Members = filterMembers(m.Members, keep)
		case *Class:
			m.Members = filterMembers(m.Members, keep)
		}
		filtered = append(filtered, member)
	}
	return filtered
}

// ReverseMap maps each member of a tree to its parent, allowing upward
// navigation through a model that only stores downward links.
type ReverseMap struct {
	parents map[Member]Member
}

// NewReverseMap builds the child-to-parent index for the tree rooted at
// module.
func NewReverseMap(module *Module) *ReverseMap {
	rm := &ReverseMap{parents: make(map[Member]Member)}
	rm.index(module)
	return rm
}

func (rm *ReverseMap) index(member Member) {
	for _, child := range childrenOf(member) {
		rm.parents[child] = member
		rm.index(child)
	}
}

// Parent returns the parent of member, or nil for the root.
func (rm *ReverseMap) Parent(member Member) Member {
	return rm.parents[member]
}

// Path returns the chain of members from the root down to and including
// member.
func (rm *ReverseMap) Path(member Member) []Member {
	var path []Member
	for m := member; m != nil; m = rm.parents[m] {
		path = append(path, m)
	}
	// Reverse into root-first order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// QualifiedName returns the dotted name of member from the root, e.g.
// "mymodule.MyClass.my_method".
func (rm *ReverseMap) QualifiedName(member Member) string {
	path := rm.Path(member)
	names := make([]string, len(path))
	for i, m := range path {
		names[i] = m.Base().Name
	}
	return strings.Join(names, ".")
}

// childrenOf returns the direct children of a member, nil for leaf kinds.
func childrenOf(member Member) Members {
	switch m := member.(type) {
	case *Module:
		return m.Members
	case *Class:
		return m.Members
	}
	return nil
}
