package reasoner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Here you go: {"a":1} hope it helps`, `{"a":1}`, true},
		{"code fence", "```json\n{\"a\": [1, 2]}\n```", `{"a": [1, 2]}`, true},
		{"array", `result: [{"x":1},{"x":2}]`, `[{"x":1},{"x":2}]`, true},
		{"braces in strings", `{"t":"a } b { c","n":"\"}"}`, `{"t":"a } b { c","n":"\"}"}`, true},
		{"first balanced wins", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"skips invalid candidate", `{not json} {"ok":true}`, `{"ok":true}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no json", "nothing structured here", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

type payload struct {
	Name string `json:"name"`
}

func TestDecode(t *testing.T) {
	res := &Result{JSON: []byte(`{"name":"acme"}`)}
	got, err := Decode[payload](res, nil)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
}

func TestDecode_ValidationFailure(t *testing.T) {
	res := &Result{JSON: []byte(`{"name":""}`)}
	_, err := Decode(res, func(p payload) error {
		if p.Name == "" {
			return errors.New("name required")
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformed))
	assert.Contains(t, err.Error(), "name required")
}

func TestDecode_MissingPayload(t *testing.T) {
	_, err := Decode[payload](&Result{Text: "no json"}, nil)
	assert.True(t, IsKind(err, KindMalformed))

	_, err = Decode[payload](nil, nil)
	assert.True(t, IsKind(err, KindMalformed))
}

func TestDecode_WrongShape(t *testing.T) {
	_, err := Decode[payload](&Result{JSON: []byte(`[1,2]`)}, nil)
	assert.True(t, IsKind(err, KindMalformed))
}

func TestCandidates(t *testing.T) {
	text := "Finding [1] and [2] matter.\n{\"summary\":\"s\",\"refs\":[1,2]}\nsee {bad} end"
	got := Candidates(text)
	require.Len(t, got, 3)
	assert.Equal(t, `[1]`, string(got[0]))
	assert.Equal(t, `[2]`, string(got[1]))
	assert.Equal(t, `{"summary":"s","refs":[1,2]}`, string(got[2]))

	assert.Empty(t, Candidates("plain prose"))
}

func TestDecode_CitationBeforePayload(t *testing.T) {
	text := "Finding [1] is the strongest.\n{\"name\":\"initech\"}"
	raw, ok := ExtractJSON(text)
	require.True(t, ok)
	require.Equal(t, `[1]`, string(raw))

	got, err := Decode[payload](&Result{Text: text, JSON: raw}, nil)
	require.NoError(t, err)
	assert.Equal(t, "initech", got.Name)
}

func TestDecode_SkipsCandidatesFailingValidation(t *testing.T) {
	text := `{"name":""} then {"name":"acme"}`
	raw, _ := ExtractJSON(text)
	got, err := Decode(&Result{Text: text, JSON: raw}, func(p payload) error {
		if p.Name == "" {
			return errors.New("name required")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
}

func TestDecode_ReportsFirstFailure(t *testing.T) {
	text := `[1] and [2]`
	raw, _ := ExtractJSON(text)
	_, err := Decode[payload](&Result{Text: text, JSON: raw}, nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformed))
	assert.Contains(t, err.Error(), "decode payload")
}
