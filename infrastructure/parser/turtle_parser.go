// Package parser reads bundle metadata documents into statements.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/knakk/rdf"
	"github.com/reglet-dev/lv2host/domain/entities"
	domainerrors "github.com/reglet-dev/lv2host/domain/errors"
	"github.com/reglet-dev/lv2host/domain/ports"
	"github.com/reglet-dev/lv2host/internal/fileuri"
)

// turtleParserConfig holds configuration for the TurtleParser.
type turtleParserConfig struct {
	logger   *slog.Logger
	maxBytes int64 // documents larger than this are rejected
}

func defaultTurtleParserConfig() turtleParserConfig {
	return turtleParserConfig{
		logger:   slog.Default(),
		maxBytes: 16 << 20,
	}
}

// TurtleParserOption configures a TurtleParser instance.
type TurtleParserOption func(*turtleParserConfig)

// WithLogger sets the logger used to report parse progress.
func WithLogger(logger *slog.Logger) TurtleParserOption {
	return func(c *turtleParserConfig) {
		c.logger = logger
	}
}

// WithMaxBytes limits the size of a single document.
func WithMaxBytes(n int64) TurtleParserOption {
	return func(c *turtleParserConfig) {
		c.maxBytes = n
	}
}

// TurtleParser implements BundleParser for Turtle documents on the local
// file system.
type TurtleParser struct {
	config turtleParserConfig
}

var _ ports.BundleParser = (*TurtleParser)(nil)

// NewTurtleParser creates a new TurtleParser.
func NewTurtleParser(opts ...TurtleParserOption) *TurtleParser {
	cfg := defaultTurtleParserConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TurtleParser{config: cfg}
}

// Parse reads the Turtle document at fileURI.
func (p *TurtleParser) Parse(ctx context.Context, fileURI string) ([]entities.Triple, error) {
	path, _, ok := fileuri.Parse(fileURI)
	if !ok {
		return nil, &domainerrors.ParseError{File: fileURI, Err: errors.New("not a file URI")}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &domainerrors.ParseError{File: fileURI, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.config.maxBytes+1))
	if err != nil {
		return nil, &domainerrors.ParseError{File: fileURI, Err: err}
	}
	if int64(len(data)) > p.config.maxBytes {
		return nil, &domainerrors.ParseError{
			File: fileURI,
			Err:  fmt.Errorf("document exceeds %d bytes", p.config.maxBytes),
		}
	}

	triples, err := decode(ctx, fileURI, data, uuid.NewString())
	if err != nil {
		return nil, &domainerrors.ParseError{File: fileURI, Err: err}
	}
	p.config.logger.Debug("parsed document", "file", fileURI, "statements", len(triples))
	return triples, nil
}

// decode parses data with relative IRIs resolved against base. Blank node
// labels are prefixed with scope so that equal labels in different documents
// stay distinct.
func decode(ctx context.Context, base string, data []byte, scope string) ([]entities.Triple, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base %q: %w", base, err)
	}
	dec := rdf.NewTripleDecoder(bytes.NewReader(data), rdf.Turtle)
	c := converter{base: baseURL, scope: scope}

	var out []entities.Triple
	for {
		if len(out)%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tr, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, entities.Triple{
			Subject:   c.convert(tr.Subj),
			Predicate: c.convert(tr.Pred),
			Object:    c.convert(tr.Obj),
		})
	}
}

// converter maps decoded terms onto entities. The decoder leaves relative
// IRIs as written when the document sets no base of its own.
type converter struct {
	base  *url.URL
	scope string
}

func (c converter) convert(t rdf.Term) entities.Term {
	switch t.Type() {
	case rdf.TermIRI:
		return entities.URI(c.resolve(t.String()))
	case rdf.TermBlank:
		return entities.Blank(c.scope + "." + strings.TrimPrefix(t.String(), "_:"))
	case rdf.TermLiteral:
		lit := t.(rdf.Literal)
		if lang := lit.Lang(); lang != "" {
			return entities.LangString(lit.String(), lang)
		}
		return entities.TypedLiteral(lit.String(), lit.DataType.String())
	default:
		return entities.String(t.String())
	}
}

// resolve returns iri resolved against the document URI. Absolute IRIs and
// unparseable ones are returned unchanged.
func (c converter) resolve(iri string) string {
	ref, err := url.Parse(iri)
	if err != nil || ref.IsAbs() {
		return iri
	}
	return c.base.ResolveReference(ref).String()
}

// rescope replaces the blank node scope of triples produced by decode.
func rescope(triples []entities.Triple, scope string) []entities.Triple {
	swap := func(t entities.Term) entities.Term {
		if t.Kind != entities.KindBlank {
			return t
		}
		if _, label, ok := strings.Cut(t.Value, "."); ok {
			t.Value = scope + "." + label
		}
		return t
	}
	out := make([]entities.Triple, len(triples))
	for i, tr := range triples {
		out[i] = entities.Triple{
			Subject:   swap(tr.Subject),
			Predicate: tr.Predicate,
			Object:    swap(tr.Object),
		}
	}
	return out
}
