package entities

import (
	"log/slog"
	"testing"

	"github.com/reglet-dev/lv2host/vocabulary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTypedLiteral(t *testing.T) {
	tests := []struct {
		name     string
		lexical  string
		datatype string
		want     Term
	}{
		{"plain string", "hello", "", String("hello")},
		{"xsd string", "hello", vocabulary.XSDString, String("hello")},
		{"integer", "42", vocabulary.XSDInteger, Int(42)},
		{"integer with plus sign", "+7", vocabulary.XSDInteger, Int(7)},
		{"negative int", "-3", vocabulary.XSDInt, Int(-3)},
		{"decimal", "0.50", vocabulary.XSDDecimal, Float(0.5)},
		{"double exponent", "1e3", vocabulary.XSDDouble, Float(1000)},
		{"boolean true", "true", vocabulary.XSDBoolean, Bool(true)},
		{"boolean one", "1", vocabulary.XSDBoolean, Bool(true)},
		{"boolean zero", "0", vocabulary.XSDBoolean, Bool(false)},
		{
			"integer overflow stays typed string",
			"99999999999", vocabulary.XSDInteger,
			Term{Kind: KindString, Value: "99999999999", Datatype: vocabulary.XSDInteger},
		},
		{
			"unknown datatype",
			"#ff0000", "http://example.org/color",
			Term{Kind: KindString, Value: "#ff0000", Datatype: "http://example.org/color"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypedLiteral(tt.lexical, tt.datatype))
		})
	}
}

func TestTermKinds(t *testing.T) {
	assert.True(t, URI("urn:x").IsResource())
	assert.True(t, Blank("b0").IsResource())
	assert.False(t, String("x").IsResource())
	assert.True(t, Int(1).IsLiteral())
	assert.True(t, Bool(false).IsLiteral())
	assert.False(t, URI("urn:x").IsLiteral())
	assert.True(t, Term{}.IsZero())
	assert.Equal(t, "float", KindFloat.String())
	assert.Equal(t, "unknown", TermKind(0).String())
}

func TestLangString(t *testing.T) {
	term := LangString("Verstärker", "de")
	assert.Equal(t, KindString, term.Kind)
	assert.Equal(t, "de", term.Lang)
	assert.NotEqual(t, String("Verstärker"), term)
}

func TestFloat_CanonicalFormRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float32Range(-1e6, 1e6).Draw(t, "v")
		term := Float(v)
		assert.Equal(t, term, TypedLiteral(term.Value, vocabulary.XSDDecimal))
	})
}

func TestInt_CanonicalFormRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int32().Draw(t, "v")
		term := Int(v)
		assert.Equal(t, term, TypedLiteral(term.Value, vocabulary.XSDInteger))
	})
}

func TestPatternWildcards(t *testing.T) {
	assert.Equal(t, 3, Pattern{}.Wildcards())
	assert.Equal(t, 1, Pattern{Subject: URI("urn:s"), Predicate: URI("urn:p")}.Wildcards())
}

func TestPortSpecBufferBytes(t *testing.T) {
	assert.Equal(t, uint32(256), PortSpec{Kind: PortAudio}.BufferBytes(64))
	assert.Equal(t, uint32(256), PortSpec{Kind: PortCV}.BufferBytes(64))
	assert.Equal(t, uint32(4), PortSpec{Kind: PortControl}.BufferBytes(64))
	assert.Equal(t, uint32(0), PortSpec{Kind: PortOther}.BufferBytes(64))
}

func TestErrorDetail(t *testing.T) {
	var nilDetail *ErrorDetail
	assert.Equal(t, "", nilDetail.Error())

	d := NewErrorDetail("parse", "bad token").WithCode("a.ttl")
	assert.Equal(t, "parse: bad token [a.ttl]", d.Error())
	assert.Equal(t, "boom", NewErrorDetail("internal", "boom").Error())

	v := d.LogValue()
	require.Equal(t, slog.KindGroup, v.Kind())
	assert.Len(t, v.Group(), 3)
}
