package enrolment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/ONSdigital/ras-rm-enrolment/clients"
	"github.com/ONSdigital/ras-rm-enrolment/models"
	"github.com/ONSdigital/ras-rm-enrolment/transaction"
)

// enrolmentContext is everything one enrolment code resolves to.
type enrolmentContext struct {
	code                 string
	caseID               string
	businessID           string
	collectionExerciseID string
	surveyID             string
}

// Register runs the new-respondent registration flow.
//
// Lookups happen first and touch no state, so their failures need no
// cleanup. The local rows are then written inside one transaction whose
// rollback is registered as the compensating action before the auth service
// is called: local state only survives if the external account was created.
// Once committed, enrolment-code deactivation and the verification email
// are best-effort.
func (s *Service) Register(req *models.PostRespondents) (*models.Respondents, error) {
	start := time.Now()

	attrs := req.Data.Attributes
	if attrs.EmailAddress == "" || attrs.FirstName == "" || attrs.LastName == "" ||
		attrs.Telephone == "" || attrs.Password == "" || len(req.EnrolmentCodes) == 0 {
		return nil, &ValidationError{Message: "Missing required fields or no enrolment codes provided"}
	}
	partyUUID := attrs.ID
	if partyUUID == "" {
		partyUUID = uuid.New().String()
	} else if _, err := uuid.Parse(partyUUID); err != nil {
		return nil, &ValidationError{Message: "Not a valid ID: " + partyUUID}
	}

	iacs, err := s.fetchEnrolmentCodes(req.EnrolmentCodes)
	if err != nil {
		return nil, err
	}

	exists, err := respondentEmailExists(s.DB, attrs.EmailAddress)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if exists {
		return nil, &ConflictError{Message: "Email address already in use"}
	}

	contexts, err := s.resolveEnrolmentCases(iacs)
	if err != nil {
		return nil, err
	}

	businesses, err := s.resolveBusinesses(contexts)
	if err != nil {
		return nil, err
	}

	respondent := &Respondent{
		PartyUUID:    partyUUID,
		Status:       models.RespondentCreated,
		EmailAddress: attrs.EmailAddress,
		FirstName:    attrs.FirstName,
		LastName:     attrs.LastName,
		Telephone:    attrs.Telephone,
		CreatedOn:    time.Now().UTC(),
	}

	err = transaction.Run(s.Logger, func(tran *transaction.Transaction) error {
		tx, err := s.DB.Begin()
		if err != nil {
			return &FatalInternalError{Message: "Error starting transaction", Err: err}
		}
		committed := false
		tran.Compensate(func() error {
			if committed {
				return nil
			}
			metrics.compensations.Inc()
			return tx.Rollback()
		})

		err = transaction.Savepoint(tx, "registration", func() error {
			if err := insertRespondent(tx, respondent); err != nil {
				return translateStoreError("Respondent", err)
			}
			for _, c := range contexts {
				if err := ensureBusinessRespondent(tx, c.businessID, respondent.ID, respondent.CreatedOn); err != nil {
					return translateStoreError("Business respondent", err)
				}
				enrolment := EnrolmentRow{
					BusinessID:   c.businessID,
					RespondentID: respondent.ID,
					SurveyID:     c.surveyID,
					Status:       models.EnrolmentPending,
				}
				if err := insertEnrolment(tx, enrolment, respondent.CreatedOn); err != nil {
					return translateStoreError("Enrolment", err)
				}
				pending := PendingEnrolmentRow{
					CaseID:       c.caseID,
					BusinessID:   c.businessID,
					SurveyID:     c.surveyID,
					RespondentID: respondent.ID,
				}
				if err := insertPendingEnrolment(tx, pending, respondent.CreatedOn); err != nil {
					return translateStoreError("Pending enrolment", err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if err := s.Clients.Auth.CreateAccount(attrs.EmailAddress, attrs.Password); err != nil {
			return &UpstreamError{Message: "Error creating account on auth service", Err: err}
		}

		if err := tx.Commit(); err != nil {
			return &FatalInternalError{Message: "Error committing registration", Err: err}
		}
		committed = true

		tran.OnSuccess(func() {
			metrics.registrations.Inc()
			metrics.observeRegistration(start)
			s.Logger.Infow("Registered respondent", "partyUUID", respondent.PartyUUID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range contexts {
		if err := s.Clients.IAC.Disable(c.code); err != nil {
			s.Logger.Warnf("Error deactivating enrolment code %s: %v", c.code, err)
		}
	}

	s.sendVerificationEmail(respondent.EmailAddress)

	return respondentRepresentation(respondent, associationsFromContexts(contexts, businesses)), nil
}

// fetchEnrolmentCodes validates every enrolment code with the IAC service.
// Codes are checked before the email-uniqueness test so a duplicate email
// never reaches the case service.
func (s *Service) fetchEnrolmentCodes(codes []string) ([]*models.IAC, error) {
	iacs := make([]*models.IAC, 0, len(codes))
	for _, code := range codes {
		iac, err := s.Clients.IAC.Get(code)
		if err != nil {
			var statusErr *clients.StatusError
			if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
				return nil, &ValidationError{Message: "Enrolment code not found: " + code}
			}
			return nil, &UpstreamError{Message: "Error fetching enrolment code " + code, Err: err}
		}
		if !iac.Active {
			return nil, &ValidationError{Message: "Enrolment code is not active"}
		}
		iacs = append(iacs, iac)
	}
	return iacs, nil
}

// resolveEnrolmentCases finishes the lookup chain for each validated code:
// case -> collection exercise -> survey id.
func (s *Service) resolveEnrolmentCases(iacs []*models.IAC) ([]enrolmentContext, error) {
	contexts := make([]enrolmentContext, 0, len(iacs))
	for _, iac := range iacs {
		code := iac.IAC

		caseDetails, err := s.Clients.Case.GetByEnrolmentCode(code)
		if err != nil {
			return nil, &UpstreamError{Message: "Error fetching case for enrolment code " + code, Err: err}
		}

		exercise, err := s.Clients.CollectionExercise.Get(caseDetails.CaseGroup.CollectionExerciseID)
		if err != nil {
			return nil, &UpstreamError{Message: "Error fetching collection exercise " + caseDetails.CaseGroup.CollectionExerciseID, Err: err}
		}

		contexts = append(contexts, enrolmentContext{
			code:                 code,
			caseID:               caseDetails.ID,
			businessID:           caseDetails.BusinessID,
			collectionExerciseID: exercise.ID,
			surveyID:             exercise.SurveyID,
		})
	}
	return contexts, nil
}

// resolveBusinesses checks every business the case service referenced
// actually exists locally. A miss is a data-integrity fault between the
// source services and our store, not a client error.
func (s *Service) resolveBusinesses(contexts []enrolmentContext) (map[string]Business, error) {
	ids := make([]string, 0, len(contexts))
	seen := map[string]bool{}
	for _, c := range contexts {
		if !seen[c.businessID] {
			seen[c.businessID] = true
			ids = append(ids, c.businessID)
		}
	}

	businesses, err := findBusinesses(s.DB, ids)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying businesses", Err: err}
	}
	for _, id := range ids {
		if _, ok := businesses[id]; !ok {
			return nil, &FatalInternalError{Message: "Could not locate business " + id + " when creating association"}
		}
	}
	return businesses, nil
}

func (s *Service) sendVerificationEmail(email string) {
	token, err := s.Tokens.GenerateEmailToken(email)
	if err != nil {
		s.Logger.Warnw("Error generating email verification token", "error", err)
		return
	}
	s.sendEmail(viper.GetString("notify_verification_template"), email, map[string]string{
		"ACCOUNT_VERIFICATION_URL": viper.GetString("frontend_url") + "/register/activate-account/" + token,
	})
}

func associationsFromContexts(contexts []enrolmentContext, businesses map[string]Business) []models.Association {
	byBusiness := map[string]int{}
	var associations []models.Association
	for _, c := range contexts {
		i, ok := byBusiness[c.businessID]
		if !ok {
			business := businesses[c.businessID]
			associations = append(associations, models.Association{
				ID:            business.PartyUUID,
				Name:          business.Name,
				SampleUnitRef: business.BusinessRef,
			})
			i = len(associations) - 1
			byBusiness[c.businessID] = i
		}
		associations[i].Enrolments = append(associations[i].Enrolments, models.Enrolment{
			SurveyID:        c.surveyID,
			EnrolmentStatus: models.EnrolmentPending.String(),
		})
	}
	return associations
}
