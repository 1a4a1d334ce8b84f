package reasoner

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ExtractJSON returns the first balanced JSON object or array in text that
// parses. Brackets inside string literals are ignored, so prose and markdown
// fences around the payload are tolerated.
func ExtractJSON(text string) (json.RawMessage, bool) {
	raw, _, ok := nextCandidate(text, 0)
	return raw, ok
}

// Candidates returns every top-level balanced JSON value in text that
// parses, in order. Values nested inside an earlier candidate are not
// repeated.
func Candidates(text string) []json.RawMessage {
	var out []json.RawMessage
	for from := 0; ; {
		raw, end, ok := nextCandidate(text, from)
		if !ok {
			return out
		}
		out = append(out, raw)
		from = end + 1
	}
}

func nextCandidate(text string, from int) (json.RawMessage, int, bool) {
	for start := from; start < len(text); start++ {
		c := text[start]
		if c != '{' && c != '[' {
			continue
		}
		end := balancedEnd(text, start)
		if end < 0 {
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), end, true
		}
	}
	return nil, -1, false
}

// balancedEnd returns the index closing the bracket opened at start, or -1.
func balancedEnd(text string, start int) int {
	var stack []byte
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return -1
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

// Decode unmarshals the JSON payload of res into T and runs validate on it.
// Replies often cite sources like "[1]" before the payload, so each balanced
// candidate in the reply text is tried in order and the first that decodes
// and validates wins. When none does, the first failure is returned as a
// malformed *Error.
func Decode[T any](res *Result, validate func(T) error) (T, error) {
	var zero T
	if res == nil || len(res.JSON) == 0 {
		return zero, &Error{Kind: KindMalformed, Err: eris.New("reasoner: no JSON payload")}
	}
	var first error
	for _, raw := range res.candidates() {
		out, err := decodeOne(raw, validate)
		if err == nil {
			return out, nil
		}
		if first == nil {
			first = err
		}
	}
	return zero, &Error{Kind: KindMalformed, Err: first}
}

func decodeOne[T any](raw json.RawMessage, validate func(T) error) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, eris.Wrap(err, "reasoner: decode payload")
	}
	if validate != nil {
		if err := validate(out); err != nil {
			return out, eris.Wrap(err, "reasoner: validate payload")
		}
	}
	return out, nil
}

// candidates lists the payloads Decode may use: every candidate in the reply
// text, then the extracted JSON if the text did not contain it.
func (r *Result) candidates() []json.RawMessage {
	out := Candidates(r.Text)
	for _, c := range out {
		if string(c) == string(r.JSON) {
			return out
		}
	}
	return append(out, r.JSON)
}
