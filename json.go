package docspec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnknownMemberType is returned when a payload contains a member whose
// "type" field is not one of the defined kinds.
var ErrUnknownMemberType = errors.New("unknown member type")

// Members is a list of members that decodes polymorphically on each
// element's "type" field.
type Members []Member

// UnmarshalJSON implements json.Unmarshaler.
func (m *Members) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	members := make(Members, 0, len(raw))
	for i, r := range raw {
		member, err := unmarshalMember(r)
		if err != nil {
			return fmt.Errorf("member %d: %w", i, err)
		}
		members = append(members, member)
	}

	*m = members
	return nil
}

// unmarshalMember decodes a single member, dispatching on its type field.
func unmarshalMember(data []byte) (Member, error) {
	var envelope struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	var member Member
	switch envelope.Type {
	case KindModule:
		member = &Module{}
	case KindClass:
		member = &Class{}
	case KindFunction:
		member = &Function{}
	case KindData:
		member = &Variable{}
	case KindIndirection:
		member = &Indirection{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMemberType, envelope.Type)
	}

	if err := json.Unmarshal(data, member); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	return member, nil
}

// MarshalJSON implements json.Marshaler, adding the type discriminator.
func (m *Module) MarshalJSON() ([]byte, error) {
	type alias Module
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindModule, (*alias)(m)})
}

// MarshalJSON implements json.Marshaler, adding the type discriminator.
func (c *Class) MarshalJSON() ([]byte, error) {
	type alias Class
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindClass, (*alias)(c)})
}

// MarshalJSON implements json.Marshaler, adding the type discriminator.
func (f *Function) MarshalJSON() ([]byte, error) {
	type alias Function
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindFunction, (*alias)(f)})
}

// MarshalJSON implements json.Marshaler, adding the type discriminator.
func (v *Variable) MarshalJSON() ([]byte, error) {
	type alias Variable
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindData, (*alias)(v)})
}

// MarshalJSON implements json.Marshaler, adding the type discriminator.
func (i *Indirection) MarshalJSON() ([]byte, error) {
	type alias Indirection
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*alias
	}{KindIndirection, (*alias)(i)})
}

// UnmarshalJSON implements json.Unmarshaler, accepting both the object form
// and the legacy bare-string form.
func (d *Docstring) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var content string
		if err := json.Unmarshal(data, &content); err != nil {
			return err
		}
		*d = Docstring{Content: content}
		return nil
	}

	type alias Docstring
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = Docstring(a)
	return nil
}

// LoadModule reads a single module payload from r.
func LoadModule(r io.Reader) (*Module, error) {
	dec := json.NewDecoder(r)

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	return moduleFromRaw(raw)
}

// LoadModules reads a stream of module payloads from r, one JSON object per
// line (whitespace between objects is not significant to the decoder).
func LoadModules(r io.Reader) ([]*Module, error) {
	dec := json.NewDecoder(r)

	var modules []*Module
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return modules, nil
			}
			return nil, fmt.Errorf("decode module %d: %w", len(modules), err)
		}

		module, err := moduleFromRaw(raw)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", len(modules), err)
		}
		modules = append(modules, module)
	}
}

// LoadModuleFile reads a single module payload from the named file.
func LoadModuleFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module file: %w", err)
	}
	defer f.Close()

	module, err := LoadModule(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return module, nil
}

// moduleFromRaw decodes a raw payload, requiring the module discriminator.
func moduleFromRaw(raw json.RawMessage) (*Module, error) {
	member, err := unmarshalMember(raw)
	if err != nil {
		return nil, err
	}

	module, ok := member.(*Module)
	if !ok {
		return nil, fmt.Errorf("expected a module payload, got %q", member.Kind())
	}
	return module, nil
}

// DumpModule writes a single module payload to w, followed by a newline.
func DumpModule(module *Module, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(module); err != nil {
		return fmt.Errorf("encode module %s: %w", module.Name, err)
	}
	return nil
}

// DumpModules writes modules to w, one JSON object per line.
func DumpModules(modules []*Module, w io.Writer) error {
	for _, module := range modules {
		if err := DumpModule(module, w); err != nil {
			return err
		}
	}
	return nil
}
