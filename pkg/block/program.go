package block

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Ref addresses a block inside a Program.
type Ref int

// NoRef marks an absent link or empty slot.
const NoRef Ref = -1

var (
	ErrInvalidRef = errors.New("block reference out of range")
	ErrCycle      = errors.New("connection would create a cycle")
	ErrAttached   = errors.New("block is already attached")
	ErrOccupied   = errors.New("slot is already connected")
)

type Position struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

type Block struct {
	Kind       Kind
	Type       string
	ID         uuid.UUID
	Fields     map[string]Literal
	Values     map[string]Ref
	Statements map[string]Ref
	Next       Ref
	Prev       Ref
	Parent     Ref
	Position   *Position
}

// Program is an arena of blocks. Links are indices into the arena, and every
// connect operation refuses links that would make a block reachable from itself,
// so traversals over a Program always terminate.
type Program struct {
	blocks []Block
}

func New() *Program { return &Program{} }

func (p *Program) Len() int { return len(p.blocks) }

func (p *Program) valid(r Ref) bool { return r >= 0 && int(r) < len(p.blocks) }

// Add appends a detached block with the given type tag.
func (p *Program) Add(typ string) Ref {
	p.blocks = append(p.blocks, Block{
		Kind:       KindOf(typ),
		Type:       typ,
		ID:         uuid.New(),
		Fields:     make(map[string]Literal),
		Values:     make(map[string]Ref),
		Statements: make(map[string]Ref),
		Next:       NoRef,
		Prev:       NoRef,
		Parent:     NoRef,
	})
	return Ref(len(p.blocks) - 1)
}

// Block returns the block at r, or nil when r is NoRef or out of range.
// Callers must not mutate the returned block's links.
func (p *Program) Block(r Ref) *Block {
	if !p.valid(r) {
		return nil
	}
	return &p.blocks[r]
}

func (p *Program) Kind(r Ref) Kind {
	if b := p.Block(r); b != nil {
		return b.Kind
	}
	return Unknown
}

func (p *Program) Type(r Ref) string {
	if b := p.Block(r); b != nil {
		return b.Type
	}
	return ""
}

func (p *Program) SetField(r Ref, name string, v Literal) error {
	b := p.Block(r)
	if b == nil {
		return fmt.Errorf("set field %s: %w", name, ErrInvalidRef)
	}
	b.Fields[name] = v
	return nil
}

func (p *Program) SetPosition(r Ref, x, y float64) error {
	b := p.Block(r)
	if b == nil {
		return fmt.Errorf("set position: %w", ErrInvalidRef)
	}
	b.Position = &Position{X: x, Y: y}
	return nil
}

// up returns the block that r hangs from: its chain predecessor, else its parent.
func (p *Program) up(r Ref) Ref {
	b := &p.blocks[r]
	if b.Prev != NoRef {
		return b.Prev
	}
	return b.Parent
}

// reaches reports whether from is r or sits above r.
func (p *Program) reaches(from, r Ref) bool {
	for cur := r; cur != NoRef; cur = p.up(cur) {
		if cur == from {
			return true
		}
	}
	return false
}

func (p *Program) checkAttach(host, child Ref) error {
	if !p.valid(host) || !p.valid(child) {
		return ErrInvalidRef
	}
	c := &p.blocks[child]
	if c.Parent != NoRef || c.Prev != NoRef {
		return ErrAttached
	}
	if p.reaches(child, host) {
		return ErrCycle
	}
	return nil
}

// ConnectValue plugs child into the named value slot of parent.
func (p *Program) ConnectValue(parent Ref, slot string, child Ref) error {
	if err := p.checkAttach(parent, child); err != nil {
		return fmt.Errorf("connect value %s: %w", slot, err)
	}
	if cur, ok := p.blocks[parent].Values[slot]; ok && cur != NoRef {
		return fmt.Errorf("connect value %s: %w", slot, ErrOccupied)
	}
	p.blocks[parent].Values[slot] = child
	p.blocks[child].Parent = parent
	return nil
}

// ConnectStatement makes head the first block of the named statement slot of parent.
func (p *Program) ConnectStatement(parent Ref, slot string, head Ref) error {
	if err := p.checkAttach(parent, head); err != nil {
		return fmt.Errorf("connect statement %s: %w", slot, err)
	}
	if cur, ok := p.blocks[parent].Statements[slot]; ok && cur != NoRef {
		return fmt.Errorf("connect statement %s: %w", slot, ErrOccupied)
	}
	p.blocks[parent].Statements[slot] = head
	p.blocks[head].Parent = parent
	return nil
}

// ConnectNext links next after prev in a statement chain.
func (p *Program) ConnectNext(prev, next Ref) error {
	if err := p.checkAttach(prev, next); err != nil {
		return fmt.Errorf("connect next: %w", err)
	}
	if p.blocks[prev].Next != NoRef {
		return fmt.Errorf("connect next: %w", ErrOccupied)
	}
	p.blocks[prev].Next = next
	p.blocks[next].Prev = prev
	return nil
}

// AllBlocks enumerates every block in the arena.
func (p *Program) AllBlocks() []Ref {
	out := make([]Ref, len(p.blocks))
	for i := range p.blocks {
		out[i] = Ref(i)
	}
	return out
}

// Roots returns the top-level blocks in arena order.
func (p *Program) Roots() []Ref {
	var out []Ref
	for i := range p.blocks {
		if p.blocks[i].Parent == NoRef && p.blocks[i].Prev == NoRef {
			out = append(out, Ref(i))
		}
	}
	return out
}

func (p *Program) Field(r Ref, name string) (Literal, bool) {
	b := p.Block(r)
	if b == nil {
		return Literal{}, false
	}
	v, ok := b.Fields[name]
	return v, ok
}

func (p *Program) Value(r Ref, slot string) Ref {
	if b := p.Block(r); b != nil {
		if c, ok := b.Values[slot]; ok {
			return c
		}
	}
	return NoRef
}

func (p *Program) StatementHead(r Ref, slot string) Ref {
	if b := p.Block(r); b != nil {
		if c, ok := b.Statements[slot]; ok {
			return c
		}
	}
	return NoRef
}

func (p *Program) Next(r Ref) Ref {
	if b := p.Block(r); b != nil {
		return b.Next
	}
	return NoRef
}

// Chain follows next links from head.
func (p *Program) Chain(head Ref) []Ref {
	var out []Ref
	for cur := head; p.valid(cur); cur = p.blocks[cur].Next {
		out = append(out, cur)
	}
	return out
}

// Slots lists the connected value and statement slot names of r, sorted.
func (p *Program) Slots(r Ref) (values, statements []string) {
	b := p.Block(r)
	if b == nil {
		return nil, nil
	}
	for name, c := range b.Values {
		if c != NoRef {
			values = append(values, name)
		}
	}
	for name, c := range b.Statements {
		if c != NoRef {
			statements = append(statements, name)
		}
	}
	sort.Strings(values)
	sort.Strings(statements)
	return values, statements
}

// FieldNames lists the field names set on r, sorted.
func (p *Program) FieldNames(r Ref) []string {
	b := p.Block(r)
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.Fields))
	for name := range b.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
