package quiz

import (
	"encoding/json"
	"math"
	"strconv"
)

// NoAnswerSentinel is submitted when nothing better was found on the page.
const NoAnswerSentinel = "no-answer-found"

type answerKind uint8

const (
	answerAbsent answerKind = iota
	answerNumber
	answerString
)

// Answer is either a number or a string. The zero value means "absent".
type Answer struct {
	kind answerKind
	num  float64
	str  string
}

// NumberAnswer wraps a numeric answer.
func NumberAnswer(v float64) Answer {
	return Answer{kind: answerNumber, num: v}
}

// StringAnswer wraps a literal answer.
func StringAnswer(s string) Answer {
	return Answer{kind: answerString, str: s}
}

// SentinelAnswer is the fixed "no answer found" value.
func SentinelAnswer() Answer {
	return StringAnswer(NoAnswerSentinel)
}

// IsZero reports whether the answer is absent.
func (a Answer) IsZero() bool {
	return a.kind == answerAbsent
}

// IsNumber reports whether the answer holds a number.
func (a Answer) IsNumber() bool {
	return a.kind == answerNumber
}

// Number returns the numeric value and whether the answer is numeric.
func (a Answer) Number() (float64, bool) {
	return a.num, a.kind == answerNumber
}

// IsSentinel reports whether the answer is the no-answer sentinel.
func (a Answer) IsSentinel() bool {
	return a.kind == answerString && a.str == NoAnswerSentinel
}

// String renders the answer the way it would be stringified on the wire.
func (a Answer) String() string {
	switch a.kind {
	case answerNumber:
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	case answerString:
		return a.str
	default:
		return ""
	}
}

// Stringified converts a numeric answer into its string form.
func (a Answer) Stringified() Answer {
	if a.kind == answerAbsent {
		return a
	}
	return StringAnswer(a.String())
}

// Finite stringifies NaN and infinities, which JSON numbers cannot carry.
func (a Answer) Finite() Answer {
	if a.kind == answerNumber && (math.IsNaN(a.num) || math.IsInf(a.num, 0)) {
		return a.Stringified()
	}
	return a
}

// MarshalJSON encodes numbers as JSON numbers and strings as JSON strings.
// Non-finite numbers fail to encode, as encoding/json does for float64.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case answerNumber:
		return json.Marshal(a.num)
	case answerString:
		return json.Marshal(a.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number, string or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*a = Answer{}
	case float64:
		*a = NumberAnswer(v)
	case string:
		*a = StringAnswer(v)
	default:
		*a = StringAnswer(string(data))
	}
	return nil
}
