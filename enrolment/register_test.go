package enrolment

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gopkg.in/h2non/gock.v1"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

var registerReq = models.PostRespondents{
	Data: models.Respondent{
		Attributes: models.Attributes{
			EmailAddress: "bob@boblaw.com",
			FirstName:    "Bob",
			LastName:     "Boblaw",
			Telephone:    "01234567890",
			Password:     "s3cret-squirrel",
		},
	},
	EnrolmentCodes: []string{"abc1234"}}

func mockLookupChain() {
	gock.New("http://localhost:8121").Get("/iacs/abc1234").Reply(200).JSON(models.IAC{
		IAC:         "abc1234",
		Active:      true,
		LastUsed:    "2017-05-15T10:00:00Z",
		CaseID:      "7bc5d41b-0549-40b3-ba76-42f6d4cf3fdb",
		QuestionSet: "H1"})

	gock.New("http://localhost:8171").Get("/cases/iac/abc1234").Reply(200).JSON(models.Case{
		ID:         "7bc5d41b-0549-40b3-ba76-42f6d4cf3fdb",
		BusinessID: "ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2",
		CaseGroup: models.CaseGroup{
			ID:                   "aa9c8e93-5cd9-4876-a2d3-78a87b972134",
			CollectionExerciseID: "1010b2f2-8668-498a-afee-3c33cdfe42ea",
		},
	})

	gock.New("http://localhost:8145").Get("/collectionexercises/1010b2f2-8668-498a-afee-3c33cdfe42ea").Reply(200).JSON(models.CollectionExercise{
		ID:       "1010b2f2-8668-498a-afee-3c33cdfe42ea",
		SurveyID: "0752a892-1a60-40a4-8aa3-2599405a8831",
	})
}

// expectRegistrationWrites queues the SQL the saga issues between Begin and
// the auth-service call.
func expectRegistrationWrites(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT registration").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(insertQueryRegex).
		WithArgs(AnyUUID{}, models.RespondentCreated, "bob@boblaw.com", "Bob", "Boblaw", "01234567890", AnyTime{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(insertQueryRegex).
		WithArgs("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", 1, models.RespondentActive, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertQueryRegex).
		WithArgs("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", 1, "0752a892-1a60-40a4-8aa3-2599405a8831", models.EnrolmentPending, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(insertQueryRegex).
		WithArgs("7bc5d41b-0549-40b3-ba76-42f6d4cf3fdb", "ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "0752a892-1a60-40a4-8aa3-2599405a8831", 1, AnyTime{}).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("^RELEASE SAVEPOINT registration").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestRegister(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()
	gock.New("http://localhost:8041").Post("/account/create").Reply(201)
	gock.New("http://localhost:8121").Put("/iacs/abc1234").Reply(200)
	gock.New("http://localhost:8181").Post("/emails/account-verification").Reply(201).JSON(map[string]string{"id": "7c3133b6"})

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns).
			AddRow("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "50012345678", "Boblaw Industries"))
	expectRegistrationWrites(mock)
	mock.ExpectCommit()

	created, err := svc.Register(&registerReq)

	assert.Nil(t, err)
	assert.Equal(t, 1, len(created.Data))
	assert.Equal(t, "CREATED", created.Data[0].Status)
	assert.Equal(t, "Bob", created.Data[0].Attributes.FirstName)
	assert.Equal(t, "", created.Data[0].Attributes.Password)
	assert.Equal(t, 1, len(created.Data[0].Associations))
	assert.Equal(t, "Boblaw Industries", created.Data[0].Associations[0].Name)
	assert.Equal(t, "PENDING", created.Data[0].Associations[0].Enrolments[0].EnrolmentStatus)
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterRollsBackWhenAuthServiceFails(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()
	gock.New("http://localhost:8041").Post("/account/create").Reply(500)

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns).
			AddRow("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "50012345678", "Boblaw Industries"))
	expectRegistrationWrites(mock)
	mock.ExpectRollback()

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var upstreamErr *UpstreamError
	assert.ErrorAs(t, err, &upstreamErr)
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsInactiveEnrolmentCode(t *testing.T) {
	svc, _ := newTestService(t)
	defer gock.Off()

	gock.New("http://localhost:8121").Get("/iacs/abc1234").Reply(200).JSON(models.IAC{
		IAC:    "abc1234",
		Active: false})

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Enrolment code is not active", err.Error())
	assert.True(t, gock.IsDone())
}

func TestRegisterRejectsUnknownEnrolmentCode(t *testing.T) {
	svc, _ := newTestService(t)
	defer gock.Off()

	gock.New("http://localhost:8121").Get("/iacs/abc1234").Reply(404)

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.True(t, gock.IsDone())
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	// Only the enrolment code is validated before the uniqueness check, so
	// a duplicate email surfaces as a conflict even when the case service
	// is unreachable.
	gock.New("http://localhost:8121").Get("/iacs/abc1234").Reply(200).JSON(models.IAC{
		IAC:    "abc1234",
		Active: true,
		CaseID: "7bc5d41b-0549-40b3-ba76-42f6d4cf3fdb"})

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterReturnsConflictWhenConcurrentRegistrationWins(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()

	// The pre-check saw no respondent, but a concurrent registration commits
	// first and the insert hits the unique constraint.
	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns).
			AddRow("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "50012345678", "Boblaw Industries"))
	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT registration").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(insertQueryRegex).
		WithArgs(AnyUUID{}, models.RespondentCreated, "bob@boblaw.com", "Bob", "Boblaw", "01234567890", AnyTime{}).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT registration").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterFailsFatallyWhenBusinessMissingLocally(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns))

	created, err := svc.Register(&registerReq)

	assert.Nil(t, created)
	var fatalErr *FatalInternalError
	assert.ErrorAs(t, err, &fatalErr)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc, _ := newTestService(t)

	req := registerReq
	req.Data.Attributes.EmailAddress = ""

	created, err := svc.Register(&req)

	assert.Nil(t, created)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRegisterRejectsNonUUIDSuppliedID(t *testing.T) {
	svc, _ := newTestService(t)

	req := registerReq
	req.Data.Attributes.ID = "not-a-uuid"

	created, err := svc.Register(&req)

	assert.Nil(t, created)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestRegisterSucceedsWhenIACDeactivationFails(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()
	gock.New("http://localhost:8041").Post("/account/create").Reply(201)
	gock.New("http://localhost:8121").Put("/iacs/abc1234").Reply(500)
	gock.New("http://localhost:8181").Post("/emails/account-verification").Reply(201).JSON(map[string]string{"id": "7c3133b6"})

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns).
			AddRow("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "50012345678", "Boblaw Industries"))
	expectRegistrationWrites(mock)
	mock.ExpectCommit()

	created, err := svc.Register(&registerReq)

	// A disable failure after commit never retroactively fails registration.
	assert.Nil(t, err)
	assert.Equal(t, 1, len(created.Data))
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestRegisterSucceedsWhenVerificationEmailFails(t *testing.T) {
	svc, mock := newTestService(t)
	defer gock.Off()

	mockLookupChain()
	gock.New("http://localhost:8041").Post("/account/create").Reply(201)
	gock.New("http://localhost:8121").Put("/iacs/abc1234").Reply(200)
	gock.New("http://localhost:8181").Post("/emails/account-verification").Reply(500)

	mock.ExpectQuery(selectQueryRegex).WithArgs("bob@boblaw.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(selectQueryRegex).WithArgs(pq.Array([]string{"ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2"})).
		WillReturnRows(sqlmock.NewRows(businessQueryColumns).
			AddRow("ba02fad7-ae27-45c6-ab0f-c8cd9a48ebc2", "50012345678", "Boblaw Industries"))
	expectRegistrationWrites(mock)
	mock.ExpectCommit()

	created, err := svc.Register(&registerReq)

	assert.Nil(t, err)
	assert.Equal(t, 1, len(created.Data))
	assert.True(t, gock.IsDone())
	assert.Nil(t, mock.ExpectationsWereMet())
}
