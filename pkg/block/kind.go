package block

import "fmt"

// Kind is the closed vocabulary of block types understood by the generators.
type Kind int

const (
	Unknown Kind = iota
	Trigger
	SendMessage
	AddReaction
	CreateEmbed
	EmbedField
	Command
	IfMessageContains
	MessageContent
	Author
	Wait
	Compare
	Operation
	Negate
	Boolean
	If
	IfElse
	Repeat
	WhileUntil
	VariablesGet
	VariablesSet
	CreateVariable
	SetVariable
	GetVariable
	CreateList
	AddToList
	Text
	Number
	Arithmetic
	RandomInt
	TextJoin
	TextLength
	KindCount // Just to get the number of kinds
)

type kindInfo struct {
	Type   string
	Output bool // plugs into a value slot rather than a statement chain
}

var kinds = [KindCount]kindInfo{
	Unknown:           {"", false},
	Trigger:           {"discord_trigger", false},
	SendMessage:       {"discord_send_message", false},
	AddReaction:       {"discord_add_reaction", false},
	CreateEmbed:       {"discord_create_embed", false},
	EmbedField:        {"discord_embed_field", false},
	Command:           {"discord_command", false},
	IfMessageContains: {"discord_if_message_contains", false},
	MessageContent:    {"discord_get_message_content", true},
	Author:            {"discord_get_author", true},
	Wait:              {"discord_wait", false},
	Compare:           {"logic_compare", true},
	Operation:         {"logic_operation", true},
	Negate:            {"logic_negate", true},
	Boolean:           {"logic_boolean", true},
	If:                {"controls_if", false},
	IfElse:            {"controls_if_else", false},
	Repeat:            {"controls_repeat_ext", false},
	WhileUntil:        {"controls_whileUntil", false},
	VariablesGet:      {"variables_get", true},
	VariablesSet:      {"variables_set", false},
	CreateVariable:    {"create_variable", false},
	SetVariable:       {"set_variable", false},
	GetVariable:       {"get_variable", true},
	CreateList:        {"create_list", false},
	AddToList:         {"add_to_list", false},
	Text:              {"text", true},
	Number:            {"math_number", true},
	Arithmetic:        {"math_arithmetic", true},
	RandomInt:         {"math_random_int", true},
	TextJoin:          {"text_join", true},
	TextLength:        {"text_length", true},
}

var kindByType = make(map[string]Kind, KindCount)

func init() {
	for k := Kind(1); k < KindCount; k++ {
		kindByType[kinds[k].Type] = k
	}
}

// KindOf maps an editor type tag to its Kind. Tags outside the vocabulary map to Unknown.
func KindOf(typ string) Kind {
	if k, ok := kindByType[typ]; ok {
		return k
	}
	return Unknown
}

// Type returns the editor type tag of k, or "" for Unknown.
func (k Kind) Type() string {
	if k < 0 || k >= KindCount {
		return ""
	}
	return kinds[k].Type
}

// Output reports whether blocks of kind k yield an expression.
func (k Kind) Output() bool {
	if k < 0 || k >= KindCount {
		return false
	}
	return kinds[k].Output
}

func (k Kind) String() string {
	switch {
	case k == Unknown:
		return "unknown"
	case k > Unknown && k < KindCount:
		return kinds[k].Type
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds lists every known kind, Unknown excluded.
func Kinds() []Kind {
	out := make([]Kind, 0, KindCount-1)
	for k := Kind(1); k < KindCount; k++ {
		out = append(out, k)
	}
	return out
}
