package clients

import (
	"net/http"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// IACClient talks to the IAC service.
type IACClient struct {
	baseURL string
	client  *http.Client
}

// Get fetches an enrolment code. The caller decides what an inactive code
// means; transport and non-200 failures are returned as errors.
func (c *IACClient) Get(code string) (*models.IAC, error) {
	iac := &models.IAC{}
	if err := getJSON(c.client, "IAC", c.baseURL+"/iacs/"+code, iac); err != nil {
		return nil, err
	}
	return iac, nil
}

// Disable marks a used enrolment code inactive at its source. Callers treat
// failures as warnings: by the time a code is disabled the registration it
// proved has already committed.
func (c *IACClient) Disable(code string) error {
	resp, err := sendJSON(c.client, http.MethodPut, "IAC", c.baseURL+"/iacs/"+code,
		models.IACUpdate{UpdatedBy: "Party Service"}, nil)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Service: "IAC", Status: resp.StatusCode}
	}
	return nil
}
