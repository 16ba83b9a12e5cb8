package enrolment

import (
	"database/sql/driver"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ONSdigital/ras-rm-enrolment/clients"
	"github.com/ONSdigital/ras-rm-enrolment/verification"
)

var selectQueryRegex = "SELECT (.+) FROM*"
var insertQueryRegex = "INSERT INTO (.+)*"
var deleteQueryRegex = "DELETE FROM (.+)*"
var updateQueryRegex = "UPDATE (.+) SET*"

var respondentQueryColumns = []string{"id", "party_uuid", "status", "email_address", "first_name", "last_name", "telephone", "created_on"}
var businessQueryColumns = []string{"party_uuid", "business_ref", "name"}
var pendingSurveyQueryColumns = []string{"business_id", "survey_id", "email_address", "shared_by", "batch_no", "is_transfer", "time_shared"}

// Matching functions for sqlmock
type AnyUUID struct{}

func (a AnyUUID) Match(v driver.Value) bool {
	_, err := uuid.Parse(v.(string))
	return err == nil
}

type AnyTime struct{}

func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

func setTestConfig() {
	viper.Set("iac_service", "http://localhost:8121")
	viper.Set("case_service", "http://localhost:8171")
	viper.Set("collectionexercise_service", "http://localhost:8145")
	viper.Set("survey_service", "http://localhost:8080")
	viper.Set("auth_service", "http://localhost:8041")
	viper.Set("notify_service", "http://localhost:8181")
	viper.Set("frontend_url", "http://localhost:8082")
	viper.Set("http_get_timeout", "5s")
	viper.Set("http_post_timeout", "5s")
	viper.Set("notify_verification_template", "account-verification")
	viper.Set("notify_share_template", "share-survey-invitation")
	viper.Set("notify_transfer_template", "transfer-survey-invitation")
	viper.Set("notify_share_confirmation_template", "share-survey-confirmation")
	viper.Set("notify_transfer_confirmation_template", "transfer-survey-confirmation")
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	setTestConfig()

	db, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("Error setting up an SQL mock")
	}
	t.Cleanup(func() { db.Close() })

	tokens := verification.New("test-secret", time.Hour)
	return NewService(db, clients.FromConfig(), tokens, zap.NewNop().Sugar()), mock
}

// newExpiredTokens signs with the test secret but with a lifetime already in
// the past.
func newExpiredTokens() *verification.Tokens {
	return verification.New("test-secret", -time.Minute)
}
