package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"slidesmith-backend/internal/apperr"
)

// Mode selects how a JSON object is located inside free-form model output.
type Mode string

const (
	// ModeGreedy spans the first '{' to the last '}'. It tolerates nesting
	// but merges sibling top-level objects into one invalid region.
	ModeGreedy Mode = "greedy"
	// ModeBalanced stops at the first complete top-level object.
	ModeBalanced Mode = "balanced"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeGreedy, ModeBalanced:
		return m, nil
	case "":
		return ModeBalanced, nil
	default:
		return "", fmt.Errorf("unknown parser mode %q", s)
	}
}

// ExtractObject returns the JSON object text embedded in s. Code fences and
// commentary around the object are ignored.
func ExtractObject(s string, mode Mode) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", apperr.NewNoJSONObjectError()
	}
	if mode == ModeGreedy {
		end := strings.LastIndexByte(s, '}')
		if end < start {
			return "", apperr.NewNoJSONObjectError()
		}
		return s[start : end+1], nil
	}
	end, ok := matchBrace(s, start)
	if !ok {
		return "", apperr.NewInvalidJSONError(errors.New("unterminated JSON object"))
	}
	return s[start : end+1], nil
}

// matchBrace scans from the '{' at start and returns the index of the brace
// closing it, skipping braces inside string literals.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// DecodeObject extracts the embedded object and unmarshals it into v.
func DecodeObject(s string, mode Mode, v any) error {
	obj, err := ExtractObject(s, mode)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return malformed(err)
	}
	return nil
}

// ParseDeck turns the full content-generation output into a normalized
// DeckDocument.
func ParseDeck(s string, mode Mode) (*DeckDocument, error) {
	obj, err := ExtractObject(s, mode)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(obj)) {
		var probe any
		return nil, apperr.NewInvalidJSONError(json.Unmarshal([]byte(obj), &probe))
	}
	if err := validateShape(deckSchema, []byte(obj)); err != nil {
		return nil, err
	}
	var doc DeckDocument
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, malformed(err)
	}
	NormalizeDeck(&doc)
	return &doc, nil
}

// NormalizeDeck fills in slide titles and layouts the model left out.
func NormalizeDeck(doc *DeckDocument) {
	n := len(doc.Slides)
	for i := range doc.Slides {
		s := &doc.Slides[i]
		if s.Title == "" {
			s.Title = fmt.Sprintf("Slide %d", i+1)
		}
		if s.Layout == "" {
			s.Layout = DefaultLayout(i, n)
		}
	}
}

// malformed maps a decoding failure to the right MalformedResponse code.
func malformed(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return apperr.NewInvalidJSONError(err)
	}
	return apperr.NewInvalidShapeError(err.Error())
}
