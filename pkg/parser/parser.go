// Package parser streams flat dataset documents into decoded records.
//
// A dataset document has a single <dataset> root whose children are empty
// elements, one per table row, with the column values held in attributes:
//
//	<dataset>
//	  <concept_class uuid="..." name="Diagnosis" retired="false"/>
//	</dataset>
//
// Documents are opened lazily and read one row at a time; at no point is a
// whole document held in memory.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/archive"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

// RootElement is the document element of every dataset document.
const RootElement = "dataset"

// Stream is a named dataset document.
type Stream struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Members returns the streams of archive members, in the given order.
func Members(members []*archive.Member) []Stream {
	streams := make([]Stream, len(members))
	for i, m := range members {
		streams[i] = Stream{Name: m.Name, Open: m.Open}
	}
	return streams
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for per-document progress.
func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) {
		p.log = l
	}
}

// Parser yields the records of a sequence of dataset documents. It is
// single-pass and not safe for concurrent use.
type Parser struct {
	schema  *schema.Schema
	streams []Stream
	log     *zap.Logger

	next   int
	name   string
	rc     io.ReadCloser
	dec    *xml.Decoder
	depth  int
	root   bool
	closed bool
	rows   int

	counts map[record.Kind]int
	err    error
}

// New returns a parser decoding streams with s.
func New(s *schema.Schema, streams []Stream, opts ...Option) *Parser {
	p := &Parser{
		schema:  s,
		streams: streams,
		log:     zap.NewNop(),
		counts:  make(map[record.Kind]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next returns the next record. It returns io.EOF once every stream has
// been read. After an error every later call returns the same error.
func (p *Parser) Next() (record.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	for {
		if p.dec == nil {
			if p.next >= len(p.streams) {
				p.err = io.EOF
				return nil, p.err
			}
			if err := p.open(p.streams[p.next]); err != nil {
				return nil, p.fail(err)
			}
			p.next++
		}

		rec, err := p.row()
		if errors.Is(err, io.EOF) {
			p.log.Debug("dataset read", zap.String("member", p.name), zap.Int("rows", p.rows))
			if err := p.close(); err != nil {
				return nil, p.fail(err)
			}
			continue
		}
		if err != nil {
			return nil, p.fail(err)
		}
		p.counts[rec.Kind()]++
		return rec, nil
	}
}

// Counts returns the number of records read so far, by kind.
func (p *Parser) Counts() map[record.Kind]int {
	out := make(map[record.Kind]int, len(p.counts))
	for k, n := range p.counts {
		out[k] = n
	}
	return out
}

// Close releases the document being read, if any.
func (p *Parser) Close() error {
	if p.rc == nil {
		return nil
	}
	err := p.rc.Close()
	p.rc, p.dec = nil, nil
	return err
}

func (p *Parser) fail(err error) error {
	_ = p.Close()
	p.err = err
	return err
}

func (p *Parser) open(s Stream) error {
	rc, err := s.Open()
	if err != nil {
		var e *issue.Error
		if errors.As(err, &e) {
			return err
		}
		return issue.New(issue.DiagArchiveMemberUnreadable, map[string]any{"member": s.Name}).Wrap(err)
	}
	dec := xml.NewDecoder(rc)
	dec.CharsetReader = charset.NewReaderLabel

	p.name, p.rc, p.dec = s.Name, rc, dec
	p.depth, p.root, p.closed, p.rows = 0, false, false, 0
	p.log.Debug("reading dataset", zap.String("member", s.Name))
	return nil
}

func (p *Parser) close() error {
	if err := p.Close(); err != nil {
		return issue.New(issue.DiagArchiveMemberUnreadable, map[string]any{"member": p.name}).Wrap(err)
	}
	return nil
}

func (p *Parser) line() int {
	line, _ := p.dec.InputPos()
	return line
}

func (p *Parser) errorAt(id issue.DiagnosticID, params map[string]any) *issue.Error {
	return issue.New(id, params).At(p.name, p.line())
}

// row reads tokens up to the end of the next row and decodes it. It returns
// io.EOF at the end of a well-formed document.
func (p *Parser) row() (record.Record, error) {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			if !p.root || !p.closed {
				return nil, p.errorAt(issue.DiagParseMalformedXML, nil).Wrap(io.ErrUnexpectedEOF)
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, p.errorAt(issue.DiagParseMalformedXML, nil).Wrap(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if p.depth == 0 {
				if p.root || t.Name.Local != RootElement {
					return nil, p.errorAt(issue.DiagParseUnexpectedRoot, map[string]any{"element": t.Name.Local})
				}
				p.root = true
				p.depth = 1
				continue
			}
			return p.decode(t)
		case xml.EndElement:
			p.depth = 0
			p.closed = true
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorAt(issue.DiagParseUnexpectedText, map[string]any{"entity": RootElement})
			}
		}
	}
}

// decode consumes the rest of the row element started by start.
func (p *Parser) decode(start xml.StartElement) (record.Record, error) {
	table := start.Name.Local
	line := p.line()

	decoder, ok := p.schema.Decoder(table)
	if !ok {
		return nil, issue.New(issue.DiagParseUnknownTable, map[string]any{"entity": table}).At(p.name, line)
	}

	attrs := make(record.Attrs, len(start.Attr))
	for _, a := range start.Attr {
		attrs[a.Name.Local] = a.Value
	}

	for done := false; !done; {
		tok, err := p.dec.Token()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, p.errorAt(issue.DiagParseMalformedXML, nil).Wrap(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return nil, p.errorAt(issue.DiagParseNestedElement, map[string]any{"element": t.Name.Local, "entity": table})
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, p.errorAt(issue.DiagParseUnexpectedText, map[string]any{"entity": table})
			}
		case xml.EndElement:
			done = true
		}
	}

	p.rows++
	return decoder(attrs, record.Origin{Member: p.name, Line: line})
}
