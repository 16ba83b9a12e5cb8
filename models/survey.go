package models

type (
	// Survey represents the response from the Survey service's GET /surveys/{id}
	// It does not represent the full response, just what we end up using
	Survey struct {
		ID        string `json:"id"`
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
		SurveyRef string `json:"surveyRef"`
	}
)
