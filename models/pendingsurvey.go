package models

import "time"

type (
	// PendingSurveyPair is one (business, survey) pair being shared or transferred
	PendingSurveyPair struct {
		BusinessID string `json:"businessId"`
		SurveyID   string `json:"surveyId"`
	}

	// PostPendingSurveys represents the request body of POST /pending-surveys
	PostPendingSurveys struct {
		EmailAddress string              `json:"emailAddress"`
		ShareableBy  string              `json:"shareableBy"`
		IsTransfer   bool                `json:"isTransfer"`
		Pairs        []PendingSurveyPair `json:"pendingSurveys"`
	}

	// PendingSurvey represents one row of a share/transfer batch in responses
	PendingSurvey struct {
		BusinessID   string    `json:"businessId"`
		SurveyID     string    `json:"surveyId"`
		EmailAddress string    `json:"emailAddress"`
		SharedBy     string    `json:"sharedBy"`
		BatchNo      string    `json:"batchNo"`
		IsTransfer   bool      `json:"isTransfer"`
		TimeShared   time.Time `json:"timeShared"`
	}

	// PendingSurveys represents the response of GET /pending-surveys/{batchNo}
	// and POST /pending-surveys
	PendingSurveys struct {
		BatchNo string          `json:"batchNo"`
		Data    []PendingSurvey `json:"data"`
	}

	// ConfirmPendingSurveys represents the request body of
	// POST /pending-surveys/confirm/{token}. Respondent is only required when
	// the invited email address has no existing account.
	ConfirmPendingSurveys struct {
		Respondent *Respondent `json:"respondent,omitempty"`
	}
)
