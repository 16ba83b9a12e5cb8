package models

import (
	"encoding/json"
	"fmt"
)

type (
	// RespondentStatus is the lifecycle status of a respondent. It is stored
	// as an integer column; the name only appears on the JSON surface.
	RespondentStatus int

	// EnrolmentStatus is the status of one (business, respondent, survey)
	// enrolment, stored as an integer column.
	EnrolmentStatus int
)

const (
	RespondentCreated RespondentStatus = iota
	RespondentActive
	RespondentSuspended
)

const (
	EnrolmentPending EnrolmentStatus = iota
	EnrolmentEnabled
	EnrolmentDisabled
	EnrolmentSuspended
)

var respondentStatusNames = map[RespondentStatus]string{
	RespondentCreated:   "CREATED",
	RespondentActive:    "ACTIVE",
	RespondentSuspended: "SUSPENDED",
}

var enrolmentStatusNames = map[EnrolmentStatus]string{
	EnrolmentPending:   "PENDING",
	EnrolmentEnabled:   "ENABLED",
	EnrolmentDisabled:  "DISABLED",
	EnrolmentSuspended: "SUSPENDED",
}

func (s RespondentStatus) String() string {
	if name, ok := respondentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RespondentStatus(%d)", int(s))
}

func (s EnrolmentStatus) String() string {
	if name, ok := enrolmentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EnrolmentStatus(%d)", int(s))
}

// ParseRespondentStatus maps a status name to its stored value.
func ParseRespondentStatus(name string) (RespondentStatus, error) {
	for status, n := range respondentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown respondent status %q", name)
}

// ParseEnrolmentStatus maps a status name to its stored value.
func ParseEnrolmentStatus(name string) (EnrolmentStatus, error) {
	for status, n := range enrolmentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown enrolment status %q", name)
}

func (s RespondentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *RespondentStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	status, err := ParseRespondentStatus(name)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

func (s EnrolmentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *EnrolmentStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	status, err := ParseEnrolmentStatus(name)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
