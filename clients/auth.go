package clients

import "net/http"

// AuthClient talks to the auth (identity provider) service. It is the one
// collaborator the enrolment flows mutate, and it is not transactional with
// the local store: callers must register a compensating rollback of their
// local writes before calling CreateAccount.
type AuthClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

type accountRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// CreateAccount creates an external account for a respondent. Anything
// other than HTTP 201 is a hard failure.
func (c *AuthClient) CreateAccount(email, password string) error {
	resp, err := sendJSON(c.client, http.MethodPost, "Auth", c.baseURL+"/account/create",
		accountRequest{Username: email, Password: password}, func(req *http.Request) {
			req.SetBasicAuth(c.username, c.password)
		})
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusCreated {
		return &StatusError{Service: "Auth", Status: resp.StatusCode}
	}
	return nil
}
