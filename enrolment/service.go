// Package enrolment implements the respondent enrolment flows: new
// registration, email verification, enrolment status transitions, and
// pending share/transfer batches. The local store and the collaborator
// clients are never covered by one atomic commit; the flows use the
// transaction package's compensating coordinator to end in a consistent
// state anyway.
package enrolment

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/ONSdigital/ras-rm-enrolment/clients"
	"github.com/ONSdigital/ras-rm-enrolment/models"
	"github.com/ONSdigital/ras-rm-enrolment/verification"
)

// A case event category is only ever emitted after the status write that
// justified it has committed.
const (
	caseEventRespondentEnroled  = "RESPONDENT_ENROLED"
	caseEventNoActiveEnrolments = "NO_ACTIVE_ENROLMENTS"
	caseEventCreatedBy          = "Party Service"
)

// Service holds the explicit dependencies of every enrolment flow. One
// instance is shared by all requests; per-request state lives in local
// transactions.
type Service struct {
	DB      *sql.DB
	Clients *clients.Clients
	Tokens  *verification.Tokens
	Logger  *zap.SugaredLogger
}

// NewService wires an enrolment service.
func NewService(db *sql.DB, c *clients.Clients, tokens *verification.Tokens, logger *zap.SugaredLogger) *Service {
	return &Service{DB: db, Clients: c, Tokens: tokens, Logger: logger}
}

// sendEmail dispatches a notification and logs any failure. Email delivery
// is never part of a flow's success criterion.
func (s *Service) sendEmail(templateID, emailAddress string, personalisation map[string]string) {
	if _, err := s.Clients.Notify.SendEmail(templateID, emailAddress, personalisation, ""); err != nil {
		s.Logger.Warnw("Error sending notification email", "template", templateID, "error", err)
	}
}

// emitEnrolmentEvent tells the case service that a (business, survey) pair
// gained its first enabled enrolment or lost its last one. Best-effort; the
// status change has already committed.
func (s *Service) emitEnrolmentEvent(businessID, surveyID, category string) {
	cases, err := s.Clients.Case.GetByBusiness(businessID)
	if err != nil {
		s.Logger.Errorw("Error fetching cases for enrolment event", "businessID", businessID, "error", err)
		return
	}
	for _, c := range cases {
		if c.CaseGroup.SurveyID != surveyID {
			continue
		}
		event := models.CaseEvent{
			Description: "Enrolment status changed",
			Category:    category,
			CreatedBy:   caseEventCreatedBy,
		}
		if err := s.Clients.Case.PostEvent(c.ID, event); err != nil {
			s.Logger.Errorw("Error posting case event", "caseID", c.ID, "category", category, "error", err)
		}
		return
	}
	s.Logger.Warnw("No case found for enrolment event", "businessID", businessID, "surveyID", surveyID)
}

// respondentRepresentation builds the public envelope for a respondent from
// already-resolved association data.
func respondentRepresentation(r *Respondent, associations []models.Association) *models.Respondents {
	return &models.Respondents{
		Data: []models.Respondent{{
			Attributes: models.Attributes{
				ID:           r.PartyUUID,
				EmailAddress: r.EmailAddress,
				FirstName:    r.FirstName,
				LastName:     r.LastName,
				Telephone:    r.Telephone,
			},
			Status:       r.Status.String(),
			Associations: associations,
		}},
	}
}
