package enrolment

import (
	"database/sql"

	"github.com/ONSdigital/ras-rm-enrolment/models"
	"github.com/ONSdigital/ras-rm-enrolment/transaction"
)

// ChangeEnrolmentStatus sets one enrolment's status directly. The enrolment
// must already exist; no transition table is enforced beyond that. The
// enabled-count side effect is computed with a fresh query after the write
// commits, so concurrent transitions cannot be double-counted.
func (s *Service) ChangeEnrolmentStatus(respondentPartyUUID string, change *models.PutEnrolmentStatus) error {
	status, err := models.ParseEnrolmentStatus(change.Status)
	if err != nil {
		return &ValidationError{Message: "Invalid enrolment status " + change.Status}
	}
	if change.BusinessID == "" || change.SurveyID == "" {
		return &ValidationError{Message: "Missing businessId or surveyId"}
	}

	respondent, err := findRespondentByPartyUUID(s.DB, respondentPartyUUID)
	if err != nil {
		return &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if respondent == nil {
		return &NotFoundError{Message: "No respondent found for ID " + respondentPartyUUID}
	}

	return s.transitionEnrolment(respondent.ID, change.BusinessID, change.SurveyID, status)
}

// DisableAllEnrolments disables every non-disabled enrolment a respondent
// has, one transition per row. It is deliberately not atomic across rows: a
// failure partway through leaves the earlier rows disabled, and the count
// reports what was actually done.
func (s *Service) DisableAllEnrolments(respondentPartyUUID string) (int, error) {
	respondent, err := findRespondentByPartyUUID(s.DB, respondentPartyUUID)
	if err != nil {
		return 0, &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if respondent == nil {
		return 0, &NotFoundError{Message: "No respondent found for ID " + respondentPartyUUID}
	}

	enrolments, err := enrolmentsForRespondent(s.DB, respondent.ID)
	if err != nil {
		return 0, &FatalInternalError{Message: "Error querying enrolments", Err: err}
	}

	removed := 0
	for _, e := range enrolments {
		if e.Status == models.EnrolmentDisabled {
			continue
		}
		if err := s.transitionEnrolment(respondent.ID, e.BusinessID, e.SurveyID, models.EnrolmentDisabled); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// transitionEnrolment is the single place an existing enrolment's status
// changes. After the commit it emits RESPONDENT_ENROLED when enabling took
// the enabled count for the (business, survey) pair from 0 to 1, and
// NO_ACTIVE_ENROLMENTS when disabling took it to 0.
func (s *Service) transitionEnrolment(respondentID int, businessID, surveyID string, status models.EnrolmentStatus) error {
	err := transaction.WithQuietTransaction(s.DB, func(tx *sql.Tx) error {
		found, err := updateEnrolmentStatus(tx, businessID, respondentID, surveyID, status)
		if err != nil {
			return &FatalInternalError{Message: "Error updating enrolment status", Err: err}
		}
		if !found {
			return &NotFoundError{Message: "No enrolment found for survey " + surveyID}
		}
		return nil
	})
	if err != nil {
		return err
	}

	count, err := enabledEnrolmentCount(s.DB, businessID, surveyID)
	if err != nil {
		s.Logger.Errorw("Error counting enabled enrolments", "businessID", businessID, "surveyID", surveyID, "error", err)
		return nil
	}
	switch {
	case status == models.EnrolmentEnabled && count == 1:
		s.emitEnrolmentEvent(businessID, surveyID, caseEventRespondentEnroled)
	case status != models.EnrolmentEnabled && count == 0:
		s.emitEnrolmentEvent(businessID, surveyID, caseEventNoActiveEnrolments)
	}
	return nil
}
