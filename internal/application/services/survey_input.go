package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// SubmitSurveyInput is the body of POST /survey. The legacy field names of the
// paper-form client (zimmer, aufnahmeart, freitext, likert) are accepted next to
// the canonical ones; a canonical value wins when both are present.
type SubmitSurveyInput struct {
	Station       string                 `json:"station"`
	Room          string                 `json:"room"`
	Zimmer        string                 `json:"zimmer"`
	AdmissionType StringList             `json:"admissionType"`
	Aufnahmeart   StringList             `json:"aufnahmeart"`
	LikertAnswers map[string]interface{} `json:"likertAnswers"`
	Likert        map[string]interface{} `json:"likert"`

	Q31      *string     `json:"q31"`
	Q32      *string     `json:"q32"`
	Q33      interface{} `json:"q33"`
	Comment  *string     `json:"comment"`
	Freitext *string     `json:"freitext"`

	ContactRequested bool    `json:"contactRequested"`
	ContactName      *string `json:"contactName"`
	ContactEmail     *string `json:"contactEmail"`
	ContactPhone     *string `json:"contactPhone"`

	// Derived from the transport, never from the body.
	ClientIP  string  `json:"-"`
	UserAgent *string `json:"-"`
}

// DecodeSubmitSurveyInput decodes a request body. Numbers are kept as json.Number so
// that 4 and 4.5 can be told apart during validation.
func DecodeSubmitSurveyInput(body []byte) (*SubmitSurveyInput, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var input SubmitSurveyInput
	if err := decoder.Decode(&input); err != nil {
		return nil, err
	}
	return &input, nil
}

// StringList accepts either a single JSON string or an array of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings")
	}
	*l = many
	return nil
}

// integerValue reports the integer held by a decoded JSON value. Strings, booleans,
// null and fractional numbers are not integers.
func integerValue(value interface{}) (int, bool) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case float64:
		return integralFloat(v)
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func integralFloat(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
