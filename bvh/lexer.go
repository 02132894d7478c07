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
	TOKEN_END
	TOKEN_SITE
	TOKEN_OFFSET
	TOKEN_CHANNELS
	TOKEN_MOTION
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_NUMBER
	TOKEN_CHANNEL
	TOKEN_IDENT
)

var tokenNames = map[int]string{
	TOKEN_HIERARCHY: "HIERARCHY",
	TOKEN_ROOT:      "ROOT",
	TOKEN_JOINT:     "JOINT",
	TOKEN_END:       "End",
	TOKEN_SITE:      "Site",
	TOKEN_OFFSET:    "OFFSET",
	TOKEN_CHANNELS:  "CHANNELS",
	TOKEN_MOTION:    "MOTION",
	TOKEN_LBRACE:    "{",
	TOKEN_RBRACE:    "}",
	TOKEN_NUMBER:    "number",
	TOKEN_CHANNEL:   "channel",
	TOKEN_IDENT:     "name",
}

var lexer *lexmachine.Lexer

// Patterns of equal match length resolve to the one added first, so keywords
// and numbers go before the catch-all name pattern.
func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`HIERARCHY`), getToken(TOKEN_HIERARCHY))
	lexer.Add([]byte(`ROOT`), getToken(TOKEN_ROOT))
	lexer.Add([]byte(`JOINT`), getToken(TOKEN_JOINT))
	lexer.Add([]byte(`End`), getToken(TOKEN_END))
	lexer.Add([]byte(`Site`), getToken(TOKEN_SITE))
	lexer.Add([]byte(`OFFSET`), getToken(TOKEN_OFFSET))
	lexer.Add([]byte(`CHANNELS`), getToken(TOKEN_CHANNELS))
	lexer.Add([]byte(`MOTION`), getToken(TOKEN_MOTION))
	lexer.Add([]byte(`\{`), getToken(TOKEN_LBRACE))
	lexer.Add([]byte(`\}`), getToken(TOKEN_RBRACE))
	lexer.Add([]byte(`[\+\-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`[XYZ](position|rotation)`), getToken(TOKEN_CHANNEL))
	lexer.Add([]byte(`[^ \t\r\n\{\}]+`), getToken(TOKEN_IDENT))
	lexer.Add([]byte(`\s+`), skip)

	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

type token struct {
	Type   int
	Lexeme string
	// Column is the byte offset of the token in its line
	Column int
}

func (t token) String() string {
	return t.Lexeme
}

func tokenize(line string) ([]token, error) {
	scanner, err := lexer.Scanner([]byte(line))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]token, 0, 8)
	for itok, err, eos := scanner.Next(); !eos; itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := itok.(*lexmachine.Token)
		result = append(result, token{
			Type:   tok.Type,
			Lexeme: string(tok.Lexeme),
			Column: tok.TC,
		})
	}
	return result, nil
}
