package host

import (
	"strconv"
	"strings"

	"github.com/reglet-dev/lv2host/domain/entities"
	"github.com/reglet-dev/lv2host/internal/fileuri"
	"github.com/reglet-dev/lv2host/vocabulary"
)

// Node is a typed value of the metadata graph: a URI, a blank node or a
// literal. The zero Node is absent.
//
// Owned nodes carry their value. Borrowed nodes refer to a value held by the
// World's store; reading one takes the World lock, and once the document it
// came from is unloaded it reads as absent. Duplicate always returns an
// owned node.
type Node struct {
	world    *World
	id       entities.TermID
	term     entities.Term
	borrowed bool
}

func (n Node) resolve() (entities.Term, bool) {
	if n.world == nil {
		return entities.Term{}, false
	}
	if !n.borrowed {
		return n.term, !n.term.IsZero()
	}
	n.world.mu.Lock()
	defer n.world.mu.Unlock()
	return n.world.termLocked(n.id)
}

// resolveLocked is resolve for callers already holding the lock of n's
// World.
func (n Node) resolveLocked() (entities.Term, bool) {
	if n.world == nil {
		return entities.Term{}, false
	}
	if !n.borrowed {
		return n.term, !n.term.IsZero()
	}
	return n.world.termLocked(n.id)
}

func (n Node) kind() entities.TermKind {
	t, _ := n.resolve()
	return t.Kind
}

// Present reports whether n holds a value.
func (n Node) Present() bool {
	_, ok := n.resolve()
	return ok
}

// Borrowed reports whether n refers to a value owned by its World.
func (n Node) Borrowed() bool { return n.borrowed }

func (n Node) IsURI() bool     { return n.kind() == entities.KindURI }
func (n Node) IsBlank() bool   { return n.kind() == entities.KindBlank }
func (n Node) IsLiteral() bool { return n.kind() >= entities.KindString }
func (n Node) IsString() bool  { return n.kind() == entities.KindString }
func (n Node) IsInt() bool     { return n.kind() == entities.KindInt }
func (n Node) IsFloat() bool   { return n.kind() == entities.KindFloat }
func (n Node) IsBool() bool    { return n.kind() == entities.KindBool }

// AsURI returns the URI of a URI node.
func (n Node) AsURI() (string, bool) {
	t, ok := n.resolve()
	if !ok || t.Kind != entities.KindURI {
		return "", false
	}
	return t.Value, true
}

// AsBlank returns the identifier of a blank node.
func (n Node) AsBlank() (string, bool) {
	t, ok := n.resolve()
	if !ok || t.Kind != entities.KindBlank {
		return "", false
	}
	return t.Value, true
}

// AsString returns the lexical value of a string literal, including typed
// literals of datatypes the host does not interpret.
func (n Node) AsString() (string, bool) {
	t, ok := n.resolve()
	if !ok || t.Kind != entities.KindString {
		return "", false
	}
	return t.Value, true
}

// AsInt returns the value of an integer literal.
func (n Node) AsInt() (int32, bool) {
	t, ok := n.resolve()
	if !ok || t.Kind != entities.KindInt {
		return 0, false
	}
	v, err := strconv.ParseInt(t.Value, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

// AsFloat returns the value of a decimal literal. Integer literals are
// converted.
func (n Node) AsFloat() (float32, bool) {
	t, ok := n.resolve()
	if !ok {
		return 0, false
	}
	return termFloat(t)
}

func termFloat(t entities.Term) (float32, bool) {
	if t.Kind != entities.KindFloat && t.Kind != entities.KindInt {
		return 0, false
	}
	v, err := strconv.ParseFloat(t.Value, 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

// AsBool returns the value of a boolean literal.
func (n Node) AsBool() (bool, bool) {
	t, ok := n.resolve()
	if !ok || t.Kind != entities.KindBool {
		return false, false
	}
	return t.Value == "true", true
}

// Lang returns the language tag of a string literal, if it has one.
func (n Node) Lang() (string, bool) {
	t, ok := n.resolve()
	if !ok || t.Lang == "" {
		return "", false
	}
	return t.Lang, true
}

// Path returns the local path and hostname of a file URI node.
func (n Node) Path() (path, hostname string, ok bool) {
	uri, ok := n.AsURI()
	if !ok {
		return "", "", false
	}
	return fileuri.Parse(uri)
}

// FileURIParse returns the local path and hostname of a file URI. It
// reports false for other schemes.
func FileURIParse(uri string) (path, hostname string, ok bool) {
	return fileuri.Parse(uri)
}

// Duplicate returns an owned copy of n.
func (n Node) Duplicate() Node {
	t, ok := n.resolve()
	if !ok {
		return Node{}
	}
	return n.world.owned(t)
}

// Equals reports whether n and o hold the same value. Two absent nodes are
// equal.
func (n Node) Equals(o Node) bool {
	a, aok := n.resolve()
	b, bok := o.resolve()
	if !aok || !bok {
		return aok == bok
	}
	return a == b
}

// TurtleToken returns n written as a Turtle term, or "" when absent.
func (n Node) TurtleToken() string {
	t, ok := n.resolve()
	if !ok {
		return ""
	}
	return turtleToken(t)
}

func turtleToken(t entities.Term) string {
	switch t.Kind {
	case entities.KindURI:
		return "<" + t.Value + ">"
	case entities.KindBlank:
		return "_:" + t.Value
	case entities.KindInt, entities.KindBool:
		return t.Value
	case entities.KindFloat:
		if lexical, ok := nonFiniteLexical(t.Value); ok {
			return `"` + lexical + `"^^<` + vocabulary.XSDFloat + `>`
		}
		if strings.ContainsAny(t.Value, ".eE") {
			return t.Value
		}
		return t.Value + ".0"
	}
	s := `"` + turtleEscaper.Replace(t.Value) + `"`
	switch {
	case t.Lang != "":
		s += "@" + t.Lang
	case t.Datatype != "":
		s += "^^<" + t.Datatype + ">"
	}
	return s
}

// nonFiniteLexical returns the xsd:float spelling of NaN and the infinities,
// which have no Turtle decimal form.
func nonFiniteLexical(value string) (string, bool) {
	switch value {
	case "NaN":
		return "NaN", true
	case "+Inf":
		return "INF", true
	case "-Inf":
		return "-INF", true
	}
	return "", false
}

var turtleEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// String returns the URI, identifier or lexical value of n, for display.
func (n Node) String() string {
	t, ok := n.resolve()
	if !ok {
		return ""
	}
	return t.Value
}
