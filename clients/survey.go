package clients

import (
	"net/http"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// SurveyClient talks to the Survey service.
type SurveyClient struct {
	baseURL string
	client  *http.Client
}

// GetAll fetches every survey, keyed by id. Used when rendering a batch that
// spans several surveys.
func (c *SurveyClient) GetAll() (map[string]models.Survey, error) {
	var surveys []models.Survey
	if err := getJSON(c.client, "Survey", c.baseURL+"/surveys", &surveys); err != nil {
		return nil, err
	}
	byID := make(map[string]models.Survey, len(surveys))
	for _, survey := range surveys {
		byID[survey.ID] = survey
	}
	return byID, nil
}
