package entities

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bounds of the fixed questionnaire.
const (
	MinQuestionNo = 1
	MaxQuestionNo = 30
	MinScore      = 1
	MaxScore      = 5
)

// LikertOption is the named level of a five-point Likert answer.
type LikertOption string

const (
	LikertVeryGood LikertOption = "very good"
	LikertGood     LikertOption = "good"
	LikertMedium   LikertOption = "medium"
	LikertPoor     LikertOption = "poor"
	LikertVeryPoor LikertOption = "very poor"
)

// LikertOptions lists the levels from best to worst.
var LikertOptions = []LikertOption{
	LikertVeryGood,
	LikertGood,
	LikertMedium,
	LikertPoor,
	LikertVeryPoor,
}

// UnsupportedScoreError is returned when a score outside 1..5 reaches the mapper.
// Input validation runs before mapping, so seeing this error means a validation gap.
type UnsupportedScoreError struct {
	Score int
}

func (e *UnsupportedScoreError) Error() string {
	return fmt.Sprintf("unsupported score %d", e.Score)
}

// ScoreToOption maps a 1..5 score to its Likert level.
func ScoreToOption(score int) (LikertOption, error) {
	switch score {
	case 5:
		return LikertVeryGood, nil
	case 4:
		return LikertGood, nil
	case 3:
		return LikertMedium, nil
	case 2:
		return LikertPoor, nil
	case 1:
		return LikertVeryPoor, nil
	default:
		return "", &UnsupportedScoreError{Score: score}
	}
}

// OptionToScore is the inverse of ScoreToOption.
func OptionToScore(option LikertOption) (int, bool) {
	switch option {
	case LikertVeryGood:
		return 5, true
	case LikertGood:
		return 4, true
	case LikertMedium:
		return 3, true
	case LikertPoor:
		return 2, true
	case LikertVeryPoor:
		return 1, true
	default:
		return 0, false
	}
}

var questionKeyPattern = regexp.MustCompile(`^[qQ](\d+)$`)

// ParseQuestionKey parses keys shaped like "q17" (any case, surrounding whitespace allowed).
// ok is false when the key does not have that shape.
func ParseQuestionKey(key string) (questionNo int, ok bool) {
	match := questionKeyPattern.FindStringSubmatch(strings.TrimSpace(key))
	if match == nil {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// QuestionKey renders the payload key for a question number.
func QuestionKey(questionNo int) string {
	return "q" + strconv.Itoa(questionNo)
}
