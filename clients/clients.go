// Package clients wraps the external services the enrolment flows depend
// on: IAC, case, collection exercise, survey, the auth (identity) service
// and the notify gateway. Lookups share a short GET timeout; the auth
// service gets a longer POST timeout because account creation is slower.
package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/viper"
)

// Clients bundles every collaborator client so the enrolment service can
// take them as one explicit dependency.
type Clients struct {
	IAC                *IACClient
	Case               *CaseClient
	CollectionExercise *CollectionExerciseClient
	Survey             *SurveyClient
	Auth               *AuthClient
	Notify             *NotifyClient
}

// FromConfig builds the client bundle from viper configuration.
func FromConfig() *Clients {
	getClient := &http.Client{Timeout: viper.GetDuration("http_get_timeout")}
	postClient := &http.Client{Timeout: viper.GetDuration("http_post_timeout")}

	return &Clients{
		IAC:                &IACClient{baseURL: viper.GetString("iac_service"), client: getClient},
		Case:               &CaseClient{baseURL: viper.GetString("case_service"), client: getClient},
		CollectionExercise: &CollectionExerciseClient{baseURL: viper.GetString("collectionexercise_service"), client: getClient},
		Survey:             &SurveyClient{baseURL: viper.GetString("survey_service"), client: getClient},
		Auth: &AuthClient{
			baseURL:  viper.GetString("auth_service"),
			username: viper.GetString("auth_username"),
			password: viper.GetString("auth_password"),
			client:   postClient,
		},
		Notify: &NotifyClient{baseURL: viper.GetString("notify_service"), client: postClient},
	}
}

// StatusError is returned when a collaborator answered with an unexpected
// HTTP status.
type StatusError struct {
	Service string
	Status  int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s service returned status %d", e.Service, e.Status)
}

func getJSON(client *http.Client, service, url string, out interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("error contacting %s service: %w", service, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Service: service, Status: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func sendJSON(client *http.Client, method, service, url string, body interface{}, auth func(*http.Request)) (*http.Response, error) {
	var buf io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(encoded)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		auth(req)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error contacting %s service: %w", service, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
