package clients

import (
	"net/http"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// CaseClient talks to the Case service.
type CaseClient struct {
	baseURL string
	client  *http.Client
}

// GetByEnrolmentCode resolves the case an enrolment code belongs to,
// including the owning business and collection exercise.
func (c *CaseClient) GetByEnrolmentCode(code string) (*models.Case, error) {
	caseDetails := &models.Case{}
	if err := getJSON(c.client, "Case", c.baseURL+"/cases/iac/"+code, caseDetails); err != nil {
		return nil, err
	}
	return caseDetails, nil
}

// GetByBusiness returns the cases for a business party id.
func (c *CaseClient) GetByBusiness(businessID string) ([]models.Case, error) {
	var cases []models.Case
	if err := getJSON(c.client, "Case", c.baseURL+"/cases/partyid/"+businessID, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}

// PostEvent records a case event. Best-effort: callers log failures.
func (c *CaseClient) PostEvent(caseID string, event models.CaseEvent) error {
	resp, err := sendJSON(c.client, http.MethodPost, "Case", c.baseURL+"/cases/"+caseID+"/events", event, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &StatusError{Service: "Case", Status: resp.StatusCode}
	}
	return nil
}
