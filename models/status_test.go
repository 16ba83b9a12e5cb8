package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnrolmentStatusNamesOnlyAppearOnTheJSONSurface(t *testing.T) {
	encoded, err := json.Marshal(EnrolmentEnabled)
	assert.Nil(t, err)
	assert.Equal(t, `"ENABLED"`, string(encoded))

	var decoded EnrolmentStatus
	err = json.Unmarshal([]byte(`"PENDING"`), &decoded)
	assert.Nil(t, err)
	assert.Equal(t, EnrolmentPending, decoded)
}

func TestParseEnrolmentStatusRejectsUnknownNames(t *testing.T) {
	_, err := ParseEnrolmentStatus("BANANA")
	assert.NotNil(t, err)
}

func TestRespondentStatusRoundTrip(t *testing.T) {
	status, err := ParseRespondentStatus(RespondentCreated.String())
	assert.Nil(t, err)
	assert.Equal(t, RespondentCreated, status)

	var decoded RespondentStatus
	err = json.Unmarshal([]byte(`"RETIRED"`), &decoded)
	assert.NotNil(t, err)
}
