package enrolment

import (
	"database/sql"
	"errors"

	"github.com/ONSdigital/ras-rm-enrolment/models"
	"github.com/ONSdigital/ras-rm-enrolment/transaction"
	"github.com/ONSdigital/ras-rm-enrolment/verification"
)

// VerifyEmail consumes an email-verification token: the respondent becomes
// ACTIVE and every pending enrolment's PENDING enrolment becomes ENABLED,
// with the pending rows deleted, as one transaction. Verifying an
// already-active respondent is a no-op so links can be clicked twice.
func (s *Service) VerifyEmail(token string) (*models.Respondents, error) {
	email, err := s.Tokens.DecodeEmailToken(token)
	if err != nil {
		if errors.Is(err, verification.ErrTokenExpired) {
			return nil, &ConflictError{Message: "Verification token has expired"}
		}
		return nil, &NotFoundError{Message: "Verification token is not valid"}
	}

	respondent, err := findRespondentByEmail(s.DB, email)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if respondent == nil {
		return nil, &NotFoundError{Message: "No respondent found for verification token"}
	}
	if respondent.Status == models.RespondentActive {
		return respondentRepresentation(respondent, nil), nil
	}

	var pending []PendingEnrolmentRow
	err = transaction.WithTransaction(s.DB, s.Logger, func(tx *sql.Tx) error {
		if err := updateRespondentStatus(tx, respondent.ID, models.RespondentActive); err != nil {
			return &FatalInternalError{Message: "Error activating respondent", Err: err}
		}
		pending, err = pendingEnrolmentsForRespondent(tx, respondent.ID)
		if err != nil {
			return &FatalInternalError{Message: "Error querying pending enrolments", Err: err}
		}
		for _, p := range pending {
			found, err := updateEnrolmentStatus(tx, p.BusinessID, p.RespondentID, p.SurveyID, models.EnrolmentEnabled)
			if err != nil {
				return &FatalInternalError{Message: "Error enabling enrolment", Err: err}
			}
			if !found {
				return &FatalInternalError{Message: "No enrolment found for pending enrolment on survey " + p.SurveyID}
			}
		}
		return deletePendingEnrolments(tx, respondent.ID)
	})
	if err != nil {
		return nil, err
	}
	respondent.Status = models.RespondentActive

	for _, p := range pending {
		event := models.CaseEvent{
			Description: "Respondent enroled",
			Category:    caseEventRespondentEnroled,
			CreatedBy:   caseEventCreatedBy,
		}
		if err := s.Clients.Case.PostEvent(p.CaseID, event); err != nil {
			s.Logger.Errorw("Error posting case event", "caseID", p.CaseID, "error", err)
		}
	}

	return respondentRepresentation(respondent, nil), nil
}
