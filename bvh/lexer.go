package bvh

import (
	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_HIERARCHY = iota
	TOKEN_ROOT
	TOKEN_JOINT
	TOKEN_OFFSET
	TOKEN_CHANNELS
	TOKEN_END_SITE
	TOKEN_MOTION
	TOKEN_FRAMES
	TOKEN_FRAME_TIME
	TOKEN_OPEN
	TOKEN_CLOSE
	TOKEN_NUMBER
	TOKEN_IDENT
	TOKEN_NEWLINE
)

var tokenNames = map[int]string{
	TOKEN_HIERARCHY:  "HIERARCHY",
	TOKEN_ROOT:       "ROOT",
	TOKEN_JOINT:      "JOINT",
	TOKEN_OFFSET:     "OFFSET",
	TOKEN_CHANNELS:   "CHANNELS",
	TOKEN_END_SITE:   "End Site",
	TOKEN_MOTION:     "MOTION",
	TOKEN_FRAMES:     "Frames:",
	TOKEN_FRAME_TIME: "Frame Time:",
	TOKEN_OPEN:       "{",
	TOKEN_CLOSE:      "}",
	TOKEN_NUMBER:     "number",
	TOKEN_IDENT:      "name",
	TOKEN_NEWLINE:    "end of line",
}

var lexer *lexmachine.Lexer

// Keywords are added before identifiers: on equal match length lexmachine
// prefers the pattern added first. ROOT and JOINT swallow the rest of their
// line, which is the joint name.
func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`HIERARCHY`), getToken(TOKEN_HIERARCHY))
	lexer.Add([]byte("ROOT(( |\t)+[^{}#\r\n]*)?"), getToken(TOKEN_ROOT))
	lexer.Add([]byte("JOINT(( |\t)+[^{}#\r\n]*)?"), getToken(TOKEN_JOINT))
	lexer.Add([]byte(`OFFSET`), getToken(TOKEN_OFFSET))
	lexer.Add([]byte(`CHANNELS`), getToken(TOKEN_CHANNELS))
	lexer.Add([]byte("End( |\t)+Site"), getToken(TOKEN_END_SITE))
	lexer.Add([]byte(`MOTION`), getToken(TOKEN_MOTION))
	lexer.Add([]byte(`Frames:`), getToken(TOKEN_FRAMES))
	lexer.Add([]byte("Frame( |\t)+Time:"), getToken(TOKEN_FRAME_TIME))
	lexer.Add([]byte(`{`), getToken(TOKEN_OPEN))
	lexer.Add([]byte(`}`), getToken(TOKEN_CLOSE))
	lexer.Add([]byte(`[\+\-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.\-:]*`), getToken(TOKEN_IDENT))
	lexer.Add([]byte(`(\r|\n)+`), getToken(TOKEN_NEWLINE))
	lexer.Add([]byte(`#[^\n]*`), skip)
	lexer.Add([]byte("( |\t)+"), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

func tokenize(text []byte) ([]*lexmachine.Token, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	tokens := make([]*lexmachine.Token, 0, 256)
	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			var ui *machines.UnconsumedInput
			if errors.As(err, &ui) {
				return nil, &ParseError{Line: ui.FailLine, Msg: "unexpected character"}
			}
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tokens = append(tokens, Itok.(*lexmachine.Token))
	}
	return tokens, nil
}
