// Package sqltext splits and cleans raw SQL text before it reaches an engine.
package sqltext

import (
	"strings"
)

// Split breaks sqlText into statements on top-level semicolons.
//
// Semicolons inside string literals, quoted identifiers ("x", `x`, [x]),
// comments, and the BEGIN ... END body of CREATE TRIGGER do not terminate a
// statement. Statements are trimmed; empty and comment-only ones are dropped.
func Split(sqlText string) []string {
	s := &splitter{input: sqlText}
	s.readChar()
	return s.run()
}

type splitter struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination

	start    int      // start offset of the current statement
	hasToken bool     // current statement has something besides whitespace/comments
	lead     []string // first keywords of the current statement, upper-cased
	depth    int      // BEGIN/CASE nesting inside a trigger body
	out      []string
}

func (s *splitter) readChar() {
	if s.readPos >= len(s.input) {
		s.ch = 0
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++
}

func (s *splitter) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

func (s *splitter) eof() bool { return s.pos >= len(s.input) }

func (s *splitter) run() []string {
	for !s.eof() {
		switch {
		case s.ch == '\'' || s.ch == '"' || s.ch == '`':
			s.hasToken = true
			s.skipQuoted(s.ch)
		case s.ch == '[':
			s.hasToken = true
			s.skipQuoted(']')
		case s.ch == '-' && s.peekChar() == '-':
			s.skipLineComment()
		case s.ch == '/' && s.peekChar() == '*':
			s.skipBlockComment()
		case isWordStart(s.ch):
			s.hasToken = true
			s.word(s.readWord())
		case s.ch == ';':
			if s.depth == 0 {
				s.emit(s.pos)
				s.readChar()
				s.start = s.pos
				continue
			}
			s.readChar()
		default:
			if !isSpace(s.ch) {
				s.hasToken = true
			}
			s.readChar()
		}
	}
	s.emit(len(s.input))
	return s.out
}

// skipQuoted consumes a quoted run ending in closer. A doubled closer is an
// escaped literal character. Unterminated runs extend to end of input.
func (s *splitter) skipQuoted(closer byte) {
	s.readChar()
	for !s.eof() {
		if s.ch == closer {
			if closer != ']' && s.peekChar() == closer {
				s.readChar()
				s.readChar()
				continue
			}
			s.readChar()
			return
		}
		s.readChar()
	}
}

// codeOnly returns stmt with every quoted run and comment replaced by a
// single space, leaving only keywords, bare identifiers and punctuation.
func codeOnly(stmt string) string {
	s := &splitter{input: stmt}
	s.readChar()
	var b strings.Builder
	for !s.eof() {
		switch {
		case s.ch == '\'' || s.ch == '"' || s.ch == '`':
			s.skipQuoted(s.ch)
			b.WriteByte(' ')
		case s.ch == '[':
			s.skipQuoted(']')
			b.WriteByte(' ')
		case s.ch == '-' && s.peekChar() == '-':
			s.skipLineComment()
			b.WriteByte(' ')
		case s.ch == '/' && s.peekChar() == '*':
			s.skipBlockComment()
			b.WriteByte(' ')
		default:
			b.WriteByte(s.ch)
			s.readChar()
		}
	}
	return b.String()
}

func (s *splitter) skipLineComment() {
	for !s.eof() && s.ch != '\n' {
		s.readChar()
	}
}

func (s *splitter) skipBlockComment() {
	s.readChar()
	s.readChar()
	for !s.eof() {
		if s.ch == '*' && s.peekChar() == '/' {
			s.readChar()
			s.readChar()
			return
		}
		s.readChar()
	}
}

func (s *splitter) readWord() string {
	start := s.pos
	for !s.eof() && isWordChar(s.ch) {
		s.readChar()
	}
	return s.input[start:s.pos]
}

// word tracks keywords that open and close trigger bodies.
func (s *splitter) word(w string) {
	upper := strings.ToUpper(w)
	if len(s.lead) < 4 {
		s.lead = append(s.lead, upper)
	}
	if !s.inTrigger() {
		return
	}
	switch upper {
	case "BEGIN", "CASE":
		s.depth++
	case "END":
		if s.depth > 0 {
			s.depth--
		}
	}
}

func (s *splitter) inTrigger() bool {
	if len(s.lead) < 2 || s.lead[0] != "CREATE" {
		return false
	}
	for _, w := range s.lead[1:] {
		switch w {
		case "TRIGGER":
			return true
		case "TEMP", "TEMPORARY":
			continue
		default:
			return false
		}
	}
	return false
}

func (s *splitter) emit(end int) {
	if s.hasToken {
		if stmt := strings.TrimSpace(s.input[s.start:end]); stmt != "" {
			s.out = append(s.out, stmt)
		}
	}
	s.hasToken = false
	s.lead = s.lead[:0]
	s.depth = 0
}

func isWordStart(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z')
}

func isWordChar(ch byte) bool {
	return isWordStart(ch) || ('0' <= ch && ch <= '9') || ch == '$'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}
