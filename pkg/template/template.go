package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/xplshn/botblocks/pkg/block"
	"github.com/xplshn/botblocks/pkg/config"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrInvalidTemplate  = errors.New("invalid template")
)

// Template is a named, serialised program tree.
type Template struct {
	ID          string       `json:"-" cbor:"id"`
	Name        string       `json:"name" cbor:"name"`
	Description string       `json:"description" cbor:"description"`
	Category    string       `json:"category,omitempty" cbor:"category,omitempty"`
	Language    string       `json:"language" cbor:"language"`
	Blocks      []*BlockData `json:"blocks" cbor:"blocks"`
}

// BlockData is one block and everything connected below it. Next is only used
// for chains at the top level; chains inside a statement slot are the ordered
// lists of Children.
type BlockData struct {
	Type     string                   `json:"type" cbor:"type"`
	Fields   map[string]block.Literal `json:"fields,omitempty" cbor:"fields,omitempty"`
	Values   map[string]*BlockData    `json:"values,omitempty" cbor:"values,omitempty"`
	Children map[string][]*BlockData  `json:"children,omitempty" cbor:"children,omitempty"`
	Next     *BlockData               `json:"next,omitempty" cbor:"next,omitempty"`
	Position *block.Position          `json:"position,omitempty" cbor:"position,omitempty"`
}

// Lang parses the template language, defaulting to JavaScript when unset.
func (t *Template) Lang() (config.Language, error) {
	if t.Language == "" {
		return config.JavaScript, nil
	}
	return config.ParseLanguage(t.Language)
}

// Validate checks the fields an imported template must carry.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTemplate)
	}
	if t.Blocks == nil {
		return fmt.Errorf("%w: missing blocks", ErrInvalidTemplate)
	}
	if _, err := t.Lang(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	for i, b := range t.Blocks {
		if err := b.validate(fmt.Sprintf("blocks[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (d *BlockData) validate(path string) error {
	for ; d != nil; d, path = d.Next, path+".next" {
		if d.Type == "" {
			return fmt.Errorf("%w: %s has no type", ErrInvalidTemplate, path)
		}
		for slot, v := range d.Values {
			if v == nil {
				continue
			}
			if v.Next != nil {
				return fmt.Errorf("%w: %s.values.%s cannot chain", ErrInvalidTemplate, path, slot)
			}
			if err := v.validate(path + ".values." + slot); err != nil {
				return err
			}
		}
		for slot, list := range d.Children {
			for i, c := range list {
				if c == nil {
					return fmt.Errorf("%w: %s.children.%s[%d] is empty", ErrInvalidTemplate, path, slot, i)
				}
				if c.Next != nil {
					return fmt.Errorf("%w: %s.children.%s[%d] cannot chain", ErrInvalidTemplate, path, slot, i)
				}
				if err := c.validate(fmt.Sprintf("%s.children.%s[%d]", path, slot, i)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *BlockData) clone() *BlockData {
	if d == nil {
		return nil
	}
	out := &BlockData{Type: d.Type, Next: d.Next.clone()}
	if d.Fields != nil {
		out.Fields = make(map[string]block.Literal, len(d.Fields))
		for k, v := range d.Fields {
			out.Fields[k] = v
		}
	}
	if d.Values != nil {
		out.Values = make(map[string]*BlockData, len(d.Values))
		for k, v := range d.Values {
			out.Values[k] = v.clone()
		}
	}
	if d.Children != nil {
		out.Children = make(map[string][]*BlockData, len(d.Children))
		for k, list := range d.Children {
			if list == nil {
				out.Children[k] = nil
				continue
			}
			cp := make([]*BlockData, len(list))
			for i, c := range list {
				cp[i] = c.clone()
			}
			out.Children[k] = cp
		}
	}
	if d.Position != nil {
		p := *d.Position
		out.Position = &p
	}
	return out
}

func (t *Template) clone() *Template {
	out := *t
	if t.Blocks != nil {
		out.Blocks = make([]*BlockData, len(t.Blocks))
		for i, b := range t.Blocks {
			out.Blocks[i] = b.clone()
		}
	}
	return &out
}

// Parse decodes a program file: either a whole template object or a bare list
// of blocks. The result is not validated beyond its shape.
func Parse(data []byte) (*Template, error) {
	data = bytes.TrimSpace(data)
	var t Template
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &t.Blocks); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
		}
		return &t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if t.Blocks == nil {
		return nil, fmt.Errorf("%w: missing blocks", ErrInvalidTemplate)
	}
	return &t, nil
}

// Encode serialises every top-level chain of prog, in root order.
func Encode(prog *block.Program) []*BlockData {
	out := []*BlockData{}
	for _, r := range prog.Roots() {
		var head, tail *BlockData
		for _, cur := range prog.Chain(r) {
			d := encodeBlock(prog, cur)
			if head == nil {
				head = d
			} else {
				tail.Next = d
			}
			tail = d
		}
		out = append(out, head)
	}
	return out
}

func encodeBlock(prog *block.Program, r block.Ref) *BlockData {
	b := prog.Block(r)
	d := &BlockData{Type: b.Type}
	if len(b.Fields) > 0 {
		d.Fields = make(map[string]block.Literal, len(b.Fields))
		for k, v := range b.Fields {
			d.Fields[k] = v
		}
	}
	values, statements := prog.Slots(r)
	for _, slot := range values {
		if d.Values == nil {
			d.Values = make(map[string]*BlockData)
		}
		d.Values[slot] = encodeBlock(prog, prog.Value(r, slot))
	}
	for _, slot := range statements {
		if d.Children == nil {
			d.Children = make(map[string][]*BlockData)
		}
		for _, c := range prog.Chain(prog.StatementHead(r, slot)) {
			d.Children[slot] = append(d.Children[slot], encodeBlock(prog, c))
		}
	}
	if b.Position != nil {
		p := *b.Position
		d.Position = &p
	}
	return d
}

// Materialize builds a fresh Program from serialised blocks. Types outside the
// vocabulary are kept as Unknown blocks.
func Materialize(blocks []*BlockData) (*block.Program, error) {
	prog := block.New()
	for i, d := range blocks {
		if d == nil {
			continue
		}
		if _, err := materializeChain(prog, d); err != nil {
			return nil, fmt.Errorf("blocks[%d]: %w", i, err)
		}
	}
	return prog, nil
}

func materializeChain(prog *block.Program, d *BlockData) (block.Ref, error) {
	head, prev := block.NoRef, block.NoRef
	for ; d != nil; d = d.Next {
		r, err := materializeBlock(prog, d)
		if err != nil {
			return block.NoRef, err
		}
		if prev == block.NoRef {
			head = r
		} else if err := prog.ConnectNext(prev, r); err != nil {
			return block.NoRef, err
		}
		prev = r
	}
	return head, nil
}

func materializeBlock(prog *block.Program, d *BlockData) (block.Ref, error) {
	if d.Type == "" {
		return block.NoRef, fmt.Errorf("%w: block has no type", ErrInvalidTemplate)
	}
	r := prog.Add(d.Type)
	for name, v := range d.Fields {
		if err := prog.SetField(r, name, v); err != nil {
			return block.NoRef, err
		}
	}
	if d.Position != nil {
		if err := prog.SetPosition(r, d.Position.X, d.Position.Y); err != nil {
			return block.NoRef, err
		}
	}
	for _, slot := range slices.Sorted(maps.Keys(d.Values)) {
		v := d.Values[slot]
		if v == nil {
			continue
		}
		if v.Next != nil {
			return block.NoRef, fmt.Errorf("%w: value '%s' of %s cannot chain a next block", ErrInvalidTemplate, slot, d.Type)
		}
		child, err := materializeBlock(prog, v)
		if err != nil {
			return block.NoRef, err
		}
		if err := prog.ConnectValue(r, slot, child); err != nil {
			return block.NoRef, err
		}
	}
	for _, slot := range slices.Sorted(maps.Keys(d.Children)) {
		prev := block.NoRef
		for _, c := range d.Children[slot] {
			if c == nil {
				continue
			}
			if c.Next != nil {
				return block.NoRef, fmt.Errorf("%w: statement in '%s' of %s cannot chain a next block; list it in the slot instead", ErrInvalidTemplate, slot, d.Type)
			}
			child, err := materializeBlock(prog, c)
			if err != nil {
				return block.NoRef, err
			}
			if prev == block.NoRef {
				err = prog.ConnectStatement(r, slot, child)
			} else {
				err = prog.ConnectNext(prev, child)
			}
			if err != nil {
				return block.NoRef, err
			}
			prev = child
		}
	}
	return r, nil
}
