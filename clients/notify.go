package clients

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// NotifyClient talks to the notify gateway. Email delivery is never part of
// a flow's success criterion, so every caller catches and logs NotifyError
// rather than propagating it.
type NotifyClient struct {
	baseURL string
	client  *http.Client
}

// NotifyError wraps any failure to dispatch an email.
type NotifyError struct {
	TemplateID string
	Err        error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("error sending notification with template %s: %v", e.TemplateID, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

type emailRequest struct {
	EmailAddress    string            `json:"emailAddress"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

type emailResponse struct {
	ID string `json:"id"`
}

// SendEmail dispatches one templated email and returns the gateway's message
// id.
func (c *NotifyClient) SendEmail(templateID, emailAddress string, personalisation map[string]string, reference string) (string, error) {
	resp, err := sendJSON(c.client, http.MethodPost, "Notify", c.baseURL+"/emails/"+templateID,
		emailRequest{EmailAddress: emailAddress, Personalisation: personalisation, Reference: reference}, nil)
	if err != nil {
		return "", &NotifyError{TemplateID: templateID, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", &NotifyError{TemplateID: templateID, Err: &StatusError{Service: "Notify", Status: resp.StatusCode}}
	}
	var sent emailResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", &NotifyError{TemplateID: templateID, Err: err}
	}
	return sent.ID, nil
}
