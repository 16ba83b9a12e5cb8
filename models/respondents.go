package models

type (
	// Enrolment represents one survey enrolment within an association
	Enrolment struct {
		EnrolmentStatus string `json:"enrolmentStatus"`
		SurveyID        string `json:"surveyId"`
	}

	// Association represents a respondent's link to one business
	Association struct {
		Enrolments    []Enrolment `json:"enrolments"`
		Name          string      `json:"name"`
		ID            string      `json:"id"`
		SampleUnitRef string      `json:"sampleUnitRef"`
	}

	// Attributes holds the identifying details of a respondent. Password is
	// write-only: it is accepted on POST and never echoed back.
	Attributes struct {
		EmailAddress string `json:"emailAddress"`
		ID           string `json:"id,omitempty"`
		FirstName    string `json:"firstName"`
		LastName     string `json:"lastName"`
		Telephone    string `json:"telephone"`
		Password     string `json:"password,omitempty"`
	}

	// Respondent represents one respondent in requests and responses
	Respondent struct {
		Attributes   Attributes    `json:"attributes"`
		Status       string        `json:"status"`
		Associations []Association `json:"associations"`
	}

	// Respondents represents the response from all non-DELETE /respondents endpoints
	Respondents struct {
		Data []Respondent `json:"data"`
	}

	// PostRespondents represents the request body of POST /respondents
	PostRespondents struct {
		Data           Respondent `json:"data"`
		EnrolmentCodes []string   `json:"enrolmentCodes"`
	}

	// PutEnrolmentStatus represents the request body of PUT /respondents/{id}/enrolments
	PutEnrolmentStatus struct {
		BusinessID string `json:"businessId"`
		SurveyID   string `json:"surveyId"`
		Status     string `json:"status"`
	}

	// DeleteEnrolments represents the response of DELETE /respondents/{id}/enrolments
	DeleteEnrolments struct {
		RemovedEnrolmentCount int `json:"removed_enrolment_count"`
	}
)
