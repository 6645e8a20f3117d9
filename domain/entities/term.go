package entities

import (
	"strconv"

	"github.com/reglet-dev/lv2host/vocabulary"
)

// TermKind identifies the kind of value a Term holds.
type TermKind uint8

const (
	// KindURI is a resource named by an IRI.
	KindURI TermKind = iota + 1
	// KindBlank is a resource with a document-scoped identifier.
	KindBlank
	// KindString is a literal that is not one of the numeric or boolean kinds.
	KindString
	// KindInt is an integer literal representable as int32.
	KindInt
	// KindFloat is a decimal, float or double literal.
	KindFloat
	// KindBool is a boolean literal.
	KindBool
)

func (k TermKind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindBlank:
		return "blank"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Term is one value of the metadata graph.
//
// Value holds the IRI, the blank identifier (without the "_:" prefix) or the
// canonical lexical form of a literal. Datatype is only kept for string
// literals whose datatype is neither implied nor xsd:string. Terms are
// comparable and are used directly as map keys by stores.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// URI returns a resource term.
func URI(iri string) Term {
	return Term{Kind: KindURI, Value: iri}
}

// Blank returns a blank node term.
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: id}
}

// String returns a plain string literal.
func String(s string) Term {
	return Term{Kind: KindString, Value: s}
}

// LangString returns a string literal tagged with a language.
func LangString(s, lang string) Term {
	return Term{Kind: KindString, Value: s, Lang: lang}
}

// Int returns an integer literal.
func Int(v int32) Term {
	return Term{Kind: KindInt, Value: strconv.FormatInt(int64(v), 10)}
}

// Float returns a decimal literal in canonical form.
func Float(v float32) Term {
	return Term{Kind: KindFloat, Value: strconv.FormatFloat(float64(v), 'f', -1, 32)}
}

// Bool returns a boolean literal; the lexical form is always "true" or "false".
func Bool(v bool) Term {
	return Term{Kind: KindBool, Value: strconv.FormatBool(v)}
}

// TypedLiteral classifies a literal read from a document by its datatype and
// canonicalises numeric and boolean forms so that equal values compare equal
// regardless of how a bundle spelled them. A literal whose lexical form does
// not parse as its declared datatype is kept as a typed string.
func TypedLiteral(lexical, datatype string) Term {
	switch datatype {
	case "", vocabulary.XSDString, vocabulary.RDFLangString:
		return String(lexical)
	case vocabulary.XSDInteger, vocabulary.XSDInt, vocabulary.XSDLong,
		vocabulary.XSDShort, vocabulary.XSDByte, vocabulary.XSDNonNegativeInteger,
		vocabulary.XSDPositiveInteger, vocabulary.XSDUnsignedInt, vocabulary.XSDUnsignedShort:
		if v, err := strconv.ParseInt(lexical, 10, 32); err == nil {
			return Int(int32(v))
		}
	case vocabulary.XSDDecimal, vocabulary.XSDDouble, vocabulary.XSDFloat:
		if v, err := strconv.ParseFloat(lexical, 32); err == nil {
			return Float(float32(v))
		}
	case vocabulary.XSDBoolean:
		switch lexical {
		case "true", "1":
			return Bool(true)
		case "false", "0":
			return Bool(false)
		}
	}
	return Term{Kind: KindString, Value: lexical, Datatype: datatype}
}

// IsZero reports whether t is the zero Term, which patterns use as a wildcard.
func (t Term) IsZero() bool {
	return t.Kind == 0
}

// IsResource reports whether t names a resource (URI or blank node).
func (t Term) IsResource() bool {
	return t.Kind == KindURI || t.Kind == KindBlank
}

// IsLiteral reports whether t is a literal of any kind.
func (t Term) IsLiteral() bool {
	return t.Kind >= KindString
}
