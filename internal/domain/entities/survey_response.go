package entities

import "time"

// SurveyResponse is one submitted patient questionnaire. It is append-only.
type SurveyResponse struct {
	ID             string         `json:"id" db:"id"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	Station        string         `json:"station" db:"station"`
	Room           string         `json:"room" db:"room"`
	AdmissionTypes []string       `json:"admissionType" db:"admission_types"`
	Q31            *string        `json:"q31" db:"q31"`
	Q32            *string        `json:"q32" db:"q32"`
	Q33            *int           `json:"q33" db:"q33"`
	Comment        *string        `json:"comment" db:"comment"`
	Contact        ContactDetails `json:"contact"`
	ClientIP       string         `json:"clientIp" db:"client_ip"`
	UserAgent      *string        `json:"userAgent" db:"user_agent"`
	LikertAnswers  []LikertAnswer `json:"likertAnswers"`
}

// ContactDetails is only populated when the patient asked to be contacted.
type ContactDetails struct {
	Requested bool    `json:"requested" db:"contact_requested"`
	Name      *string `json:"name" db:"contact_name"`
	Email     *string `json:"email" db:"contact_email"`
	Phone     *string `json:"phone" db:"contact_phone"`
}

// LikertAnswer is the answer to one of the 30 fixed questions.
type LikertAnswer struct {
	ID         string       `json:"id" db:"id"`
	ResponseID string       `json:"responseId" db:"response_id"`
	QuestionNo int          `json:"questionNo" db:"question_no"`
	Score      int          `json:"score" db:"score"`
	Option     LikertOption `json:"option" db:"option"`
}

// HasAdmissionType reports whether any of the given canonical values is set on the response.
func (r *SurveyResponse) HasAdmissionType(values []string) bool {
	for _, have := range r.AdmissionTypes {
		for _, want := range values {
			if have == want {
				return true
			}
		}
	}
	return false
}
