package enrolment

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the row helpers work
// inside or outside a transaction.
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

type (
	// Respondent is one partysvc.respondent row. ID is the surrogate key
	// used by foreign keys; PartyUUID is the public identifier.
	Respondent struct {
		ID           int
		PartyUUID    string
		Status       models.RespondentStatus
		EmailAddress string
		FirstName    string
		LastName     string
		Telephone    string
		CreatedOn    time.Time
	}

	// Business is one partysvc.business row, with the display name resolved
	// from its latest attributes record.
	Business struct {
		PartyUUID   string
		BusinessRef string
		Name        string
	}

	// EnrolmentRow is one partysvc.enrolment row.
	EnrolmentRow struct {
		BusinessID   string
		RespondentID int
		SurveyID     string
		Status       models.EnrolmentStatus
	}

	// PendingEnrolmentRow is one partysvc.pending_enrolment row, alive only
	// between registration and email verification.
	PendingEnrolmentRow struct {
		CaseID       string
		BusinessID   string
		SurveyID     string
		RespondentID int
	}

	// PendingSurveyRow is one row of a share/transfer batch.
	PendingSurveyRow struct {
		BusinessID   string
		SurveyID     string
		EmailAddress string
		SharedBy     string
		BatchNo      string
		IsTransfer   bool
		TimeShared   time.Time
	}
)

const respondentColumns = "id, party_uuid, status, email_address, first_name, last_name, telephone, created_on"

func scanRespondent(row *sql.Row) (*Respondent, error) {
	r := &Respondent{}
	err := row.Scan(&r.ID, &r.PartyUUID, &r.Status, &r.EmailAddress, &r.FirstName, &r.LastName, &r.Telephone, &r.CreatedOn)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func findRespondentByEmail(q querier, email string) (*Respondent, error) {
	return scanRespondent(q.QueryRow(
		"SELECT "+respondentColumns+" FROM partysvc.respondent WHERE LOWER(email_address) = LOWER($1)", email))
}

func findRespondentByPartyUUID(q querier, partyUUID string) (*Respondent, error) {
	return scanRespondent(q.QueryRow(
		"SELECT "+respondentColumns+" FROM partysvc.respondent WHERE party_uuid = $1", partyUUID))
}

func respondentEmailExists(q querier, email string) (bool, error) {
	var id int
	err := q.QueryRow("SELECT id FROM partysvc.respondent WHERE LOWER(email_address) = LOWER($1)", email).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertRespondent writes the row and fills in the surrogate id.
func insertRespondent(q querier, r *Respondent) error {
	return q.QueryRow(
		"INSERT INTO partysvc.respondent (party_uuid, status, email_address, first_name, last_name, telephone, created_on) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id",
		r.PartyUUID, r.Status, r.EmailAddress, r.FirstName, r.LastName, r.Telephone, r.CreatedOn).Scan(&r.ID)
}

func updateRespondentStatus(q querier, respondentID int, status models.RespondentStatus) error {
	_, err := q.Exec("UPDATE partysvc.respondent SET status = $1 WHERE id = $2", status, respondentID)
	return err
}

// findBusinesses resolves businesses by party id, with the display name
// taken from the newest attributes record for each.
func findBusinesses(q querier, partyUUIDs []string) (map[string]Business, error) {
	rows, err := q.Query(
		"SELECT b.party_uuid, b.business_ref, COALESCE(ba.attributes->>'name', '') "+
			"FROM partysvc.business b "+
			"LEFT JOIN LATERAL (SELECT attributes FROM partysvc.business_attributes "+
			"WHERE business_id = b.party_uuid ORDER BY id DESC LIMIT 1) ba ON TRUE "+
			"WHERE b.party_uuid = ANY($1)",
		pq.Array(partyUUIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	businesses := map[string]Business{}
	for rows.Next() {
		b := Business{}
		if err := rows.Scan(&b.PartyUUID, &b.BusinessRef, &b.Name); err != nil {
			return nil, err
		}
		businesses[b.PartyUUID] = b
	}
	return businesses, rows.Err()
}

// ensureBusinessRespondent creates the association lazily; re-associating
// an existing pair is a no-op.
func ensureBusinessRespondent(q querier, businessID string, respondentID int, now time.Time) error {
	_, err := q.Exec(
		"INSERT INTO partysvc.business_respondent (business_id, respondent_id, status, effective_from) "+
			"VALUES ($1, $2, $3, $4) ON CONFLICT (business_id, respondent_id) DO NOTHING",
		businessID, respondentID, models.RespondentActive, now)
	return err
}

func insertEnrolment(q querier, e EnrolmentRow, now time.Time) error {
	_, err := q.Exec(
		"INSERT INTO partysvc.enrolment (business_id, respondent_id, survey_id, status, created_on) "+
			"VALUES ($1, $2, $3, $4, $5)",
		e.BusinessID, e.RespondentID, e.SurveyID, e.Status, now)
	return err
}

func enrolmentExists(q querier, businessID string, respondentID int, surveyID string) (bool, error) {
	var one int
	err := q.QueryRow(
		"SELECT 1 FROM partysvc.enrolment WHERE business_id = $1 AND respondent_id = $2 AND survey_id = $3",
		businessID, respondentID, surveyID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// updateEnrolmentStatus transitions one enrolment and reports whether the
// row existed. This and insertEnrolment are the only writers of the status
// column.
func updateEnrolmentStatus(q querier, businessID string, respondentID int, surveyID string, status models.EnrolmentStatus) (bool, error) {
	result, err := q.Exec(
		"UPDATE partysvc.enrolment SET status = $1 WHERE business_id = $2 AND respondent_id = $3 AND survey_id = $4",
		status, businessID, respondentID, surveyID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func enabledEnrolmentCount(q querier, businessID, surveyID string) (int, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM partysvc.enrolment WHERE business_id = $1 AND survey_id = $2 AND status = $3",
		businessID, surveyID, models.EnrolmentEnabled).Scan(&count)
	return count, err
}

func enrolmentsForRespondent(q querier, respondentID int) ([]EnrolmentRow, error) {
	rows, err := q.Query(
		"SELECT business_id, respondent_id, survey_id, status FROM partysvc.enrolment WHERE respondent_id = $1",
		respondentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrolments []EnrolmentRow
	for rows.Next() {
		e := EnrolmentRow{}
		if err := rows.Scan(&e.BusinessID, &e.RespondentID, &e.SurveyID, &e.Status); err != nil {
			return nil, err
		}
		enrolments = append(enrolments, e)
	}
	return enrolments, rows.Err()
}

func deleteEnrolment(q querier, businessID string, respondentID int, surveyID string) error {
	_, err := q.Exec(
		"DELETE FROM partysvc.enrolment WHERE business_id = $1 AND respondent_id = $2 AND survey_id = $3",
		businessID, respondentID, surveyID)
	return err
}

// deleteBusinessRespondentIfUnenrolled removes the association once its
// last enrolment is gone.
func deleteBusinessRespondentIfUnenrolled(q querier, businessID string, respondentID int) error {
	_, err := q.Exec(
		"DELETE FROM partysvc.business_respondent WHERE business_id = $1 AND respondent_id = $2 "+
			"AND NOT EXISTS (SELECT 1 FROM partysvc.enrolment WHERE business_id = $1 AND respondent_id = $2)",
		businessID, respondentID)
	return err
}

func insertPendingEnrolment(q querier, p PendingEnrolmentRow, now time.Time) error {
	_, err := q.Exec(
		"INSERT INTO partysvc.pending_enrolment (case_id, business_id, survey_id, respondent_id, created_on) "+
			"VALUES ($1, $2, $3, $4, $5)",
		p.CaseID, p.BusinessID, p.SurveyID, p.RespondentID, now)
	return err
}

func pendingEnrolmentsForRespondent(q querier, respondentID int) ([]PendingEnrolmentRow, error) {
	rows, err := q.Query(
		"SELECT case_id, business_id, survey_id, respondent_id FROM partysvc.pending_enrolment WHERE respondent_id = $1",
		respondentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingEnrolmentRow
	for rows.Next() {
		p := PendingEnrolmentRow{}
		if err := rows.Scan(&p.CaseID, &p.BusinessID, &p.SurveyID, &p.RespondentID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

func deletePendingEnrolments(q querier, respondentID int) error {
	_, err := q.Exec("DELETE FROM partysvc.pending_enrolment WHERE respondent_id = $1", respondentID)
	return err
}

func insertPendingSurvey(q querier, p PendingSurveyRow) error {
	_, err := q.Exec(
		"INSERT INTO partysvc.pending_survey (business_id, survey_id, email_address, shared_by, batch_no, is_transfer, time_shared) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7)",
		p.BusinessID, p.SurveyID, p.EmailAddress, p.SharedBy, p.BatchNo, p.IsTransfer, p.TimeShared)
	return err
}

func pendingSurveysByBatch(q querier, batchNo string) ([]PendingSurveyRow, error) {
	rows, err := q.Query(
		"SELECT business_id, survey_id, email_address, shared_by, batch_no, is_transfer, time_shared "+
			"FROM partysvc.pending_survey WHERE batch_no = $1",
		batchNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingSurveyRow
	for rows.Next() {
		p := PendingSurveyRow{}
		if err := rows.Scan(&p.BusinessID, &p.SurveyID, &p.EmailAddress, &p.SharedBy, &p.BatchNo, &p.IsTransfer, &p.TimeShared); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// deletePendingSurveyBatch consumes a whole batch in one statement.
func deletePendingSurveyBatch(q querier, batchNo string) error {
	_, err := q.Exec("DELETE FROM partysvc.pending_survey WHERE batch_no = $1", batchNo)
	return err
}
