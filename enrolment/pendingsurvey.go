package enrolment

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"

	"github.com/ONSdigital/ras-rm-enrolment/models"
	"github.com/ONSdigital/ras-rm-enrolment/transaction"
	"github.com/ONSdigital/ras-rm-enrolment/verification"
)

// CreatePendingSurveys starts a share or transfer: one row per (business,
// survey) pair, all under a freshly generated batch number. The signed
// confirmation token carries the batch number rather than the recipient
// email, so one link confirms every row atomically. One invitation email is
// sent per batch, listing the affected business names.
func (s *Service) CreatePendingSurveys(req *models.PostPendingSurveys) (*models.PendingSurveys, error) {
	if req.EmailAddress == "" || req.ShareableBy == "" || len(req.Pairs) == 0 {
		return nil, &ValidationError{Message: "Missing email address, originator or survey pairs"}
	}
	if _, err := uuid.Parse(req.ShareableBy); err != nil {
		return nil, &ValidationError{Message: "Not a valid ID: " + req.ShareableBy}
	}

	originator, err := findRespondentByPartyUUID(s.DB, req.ShareableBy)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if originator == nil {
		return nil, &NotFoundError{Message: "No respondent found for ID " + req.ShareableBy}
	}

	businessIDs := make([]string, 0, len(req.Pairs))
	for _, pair := range req.Pairs {
		businessIDs = append(businessIDs, pair.BusinessID)
	}
	businesses, err := findBusinesses(s.DB, businessIDs)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying businesses", Err: err}
	}
	for _, pair := range req.Pairs {
		if _, ok := businesses[pair.BusinessID]; !ok {
			return nil, &NotFoundError{Message: "No business found for ID " + pair.BusinessID}
		}
	}

	batchNo := uuid.New().String()
	now := time.Now().UTC()
	rows := make([]PendingSurveyRow, 0, len(req.Pairs))
	for _, pair := range req.Pairs {
		rows = append(rows, PendingSurveyRow{
			BusinessID:   pair.BusinessID,
			SurveyID:     pair.SurveyID,
			EmailAddress: req.EmailAddress,
			SharedBy:     req.ShareableBy,
			BatchNo:      batchNo,
			IsTransfer:   req.IsTransfer,
			TimeShared:   now,
		})
	}

	err = transaction.WithTransaction(s.DB, s.Logger, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := insertPendingSurvey(tx, row); err != nil {
				return translateStoreError("Pending survey", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sendInvitationEmail(batchNo, req, businesses)

	return pendingSurveysRepresentation(batchNo, rows), nil
}

// GetPendingSurveys returns the rows of a batch, or NotFound once the batch
// has been consumed or expired away.
func (s *Service) GetPendingSurveys(batchNo string) (*models.PendingSurveys, error) {
	if _, err := uuid.Parse(batchNo); err != nil {
		return nil, &ValidationError{Message: "Not a valid batch number: " + batchNo}
	}
	rows, err := pendingSurveysByBatch(s.DB, batchNo)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying pending surveys", Err: err}
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Message: "No pending surveys found for batch " + batchNo}
	}
	return pendingSurveysRepresentation(batchNo, rows), nil
}

// ConfirmPendingSurveys accepts a whole batch. Each row gets its own
// savepoint so one bad row cannot abort its siblings, and the batch is
// deleted unconditionally once a processing pass has been made: even a
// partially failed pass consumes the batch. A foreign-key violation is the
// exception to the skip rule: it means a business in the batch no longer
// exists, which aborts the pass and leaves the batch unconsumed. For an
// all-transfer batch the originator's rows are revoked afterwards, and a
// revoke failure is raised because leaving the originator enrolled after a
// transfer is a correctness defect.
func (s *Service) ConfirmPendingSurveys(token string, req *models.ConfirmPendingSurveys) error {
	batchNo, err := s.Tokens.DecodeBatchToken(token)
	if err != nil {
		if errors.Is(err, verification.ErrTokenExpired) {
			return &ConflictError{Message: "Confirmation token has expired"}
		}
		return &NotFoundError{Message: "Confirmation token is not valid"}
	}

	rows, err := pendingSurveysByBatch(s.DB, batchNo)
	if err != nil {
		return &FatalInternalError{Message: "Error querying pending surveys", Err: err}
	}
	if len(rows) == 0 {
		return &NotFoundError{Message: "No pending surveys found for batch " + batchNo}
	}

	originator, err := findRespondentByPartyUUID(s.DB, rows[0].SharedBy)
	if err != nil {
		return &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if originator == nil {
		return &FatalInternalError{Message: "Originator " + rows[0].SharedBy + " of batch " + batchNo + " no longer exists"}
	}

	respondent, err := s.resolveTargetRespondent(rows[0].EmailAddress, req)
	if err != nil {
		return err
	}

	allTransfer := true
	for _, row := range rows {
		if !row.IsTransfer {
			allTransfer = false
			break
		}
	}

	now := time.Now().UTC()
	err = transaction.WithTransaction(s.DB, s.Logger, func(tx *sql.Tx) error {
		for i, row := range rows {
			err := transaction.Savepoint(tx, fmt.Sprintf("pending_survey_%d", i), func() error {
				if err := ensureBusinessRespondent(tx, row.BusinessID, respondent.ID, now); err != nil {
					return err
				}
				exists, err := enrolmentExists(tx, row.BusinessID, respondent.ID, row.SurveyID)
				if err != nil {
					return err
				}
				if exists {
					// Double acceptance guard: the enrolment is already there.
					return nil
				}
				enrolment := EnrolmentRow{
					BusinessID:   row.BusinessID,
					RespondentID: respondent.ID,
					SurveyID:     row.SurveyID,
					Status:       models.EnrolmentEnabled,
				}
				return insertEnrolment(tx, enrolment, now)
			})
			if err != nil {
				var pqErr *pq.Error
				if errors.As(err, &pqErr) && pqErr.Code == "23503" {
					return &FatalInternalError{Message: "Business " + row.BusinessID + " no longer exists for batch " + batchNo, Err: err}
				}
				s.Logger.Errorw("Skipping failed pending survey row",
					"batchNo", batchNo, "businessID", row.BusinessID, "surveyID", row.SurveyID, "error", err)
			}
		}
		return deletePendingSurveyBatch(tx, batchNo)
	})
	if err != nil {
		return &FatalInternalError{Message: "Error accepting pending survey batch " + batchNo, Err: err}
	}
	metrics.batchesAccepted.Inc()

	if allTransfer {
		if err := s.revokeOriginator(originator, rows); err != nil {
			return err
		}
	}

	template := viper.GetString("notify_share_confirmation_template")
	if allTransfer {
		template = viper.GetString("notify_transfer_confirmation_template")
	}
	s.sendEmail(template, rows[0].EmailAddress, nil)

	return nil
}

// resolveTargetRespondent reuses the account behind the invited email, or
// creates one from the supplied details. An invitee created here skips the
// CREATED/PENDING path entirely: clicking the confirmation link is the
// proof of email ownership, so the respondent is made directly ACTIVE. The
// external-account rule is the same as registration: the local row only
// survives if the auth service call succeeded.
func (s *Service) resolveTargetRespondent(email string, req *models.ConfirmPendingSurveys) (*Respondent, error) {
	existing, err := findRespondentByEmail(s.DB, email)
	if err != nil {
		return nil, &FatalInternalError{Message: "Error querying respondents", Err: err}
	}
	if existing != nil {
		return existing, nil
	}

	if req == nil || req.Respondent == nil {
		return nil, &ValidationError{Message: "No account exists for " + email + " and no respondent details were supplied"}
	}
	attrs := req.Respondent.Attributes
	if attrs.FirstName == "" || attrs.LastName == "" || attrs.Telephone == "" || attrs.Password == "" {
		return nil, &ValidationError{Message: "Missing required respondent fields"}
	}

	respondent := &Respondent{
		PartyUUID:    uuid.New().String(),
		Status:       models.RespondentActive,
		EmailAddress: email,
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

		if err := insertRespondent(tx, respondent); err != nil {
			return translateStoreError("Respondent", err)
		}
		if err := s.Clients.Auth.CreateAccount(email, attrs.Password); err != nil {
			return &UpstreamError{Message: "Error creating account on auth service", Err: err}
		}
		if err := tx.Commit(); err != nil {
			return &FatalInternalError{Message: "Error committing respondent", Err: err}
		}
		committed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return respondent, nil
}

// revokeOriginator removes the originator's enrolments (and now-empty
// associations) for the transferred pairs. Runs after the batch commit.
func (s *Service) revokeOriginator(originator *Respondent, rows []PendingSurveyRow) error {
	err := transaction.WithTransaction(s.DB, s.Logger, func(tx *sql.Tx) error {
		for _, row := range rows {
			if err := deleteEnrolment(tx, row.BusinessID, originator.ID, row.SurveyID); err != nil {
				return err
			}
			if err := deleteBusinessRespondentIfUnenrolled(tx, row.BusinessID, originator.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &FatalInternalError{Message: "Error revoking originator enrolments after transfer", Err: err}
	}
	return nil
}

func (s *Service) sendInvitationEmail(batchNo string, req *models.PostPendingSurveys, businesses map[string]Business) {
	token, err := s.Tokens.GenerateBatchToken(batchNo)
	if err != nil {
		s.Logger.Warnw("Error generating batch confirmation token", "batchNo", batchNo, "error", err)
		return
	}

	names := make([]string, 0, len(businesses))
	for _, pair := range req.Pairs {
		if business, ok := businesses[pair.BusinessID]; ok && business.Name != "" {
			names = append(names, business.Name)
		}
	}

	template := viper.GetString("notify_share_template")
	path := "/share-surveys/accept-share-surveys/"
	if req.IsTransfer {
		template = viper.GetString("notify_transfer_template")
		path = "/transfer-surveys/accept-transfer-surveys/"
	}
	s.sendEmail(template, req.EmailAddress, map[string]string{
		"CONFIRM_EMAIL_URL": viper.GetString("frontend_url") + path + token,
		"BUSINESSES":        strings.Join(names, ", "),
		"SURVEYS":           strings.Join(s.surveyNames(req.Pairs), ", "),
	})
}

// surveyNames resolves display names for the surveys in a batch. A survey
// service failure only degrades the email, so it is logged and swallowed.
func (s *Service) surveyNames(pairs []models.PendingSurveyPair) []string {
	surveys, err := s.Clients.Survey.GetAll()
	if err != nil {
		s.Logger.Warnw("Error fetching surveys for invitation email", "error", err)
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, pair := range pairs {
		if seen[pair.SurveyID] {
			continue
		}
		seen[pair.SurveyID] = true
		if survey, ok := surveys[pair.SurveyID]; ok && survey.LongName != "" {
			names = append(names, survey.LongName)
		}
	}
	return names
}

func pendingSurveysRepresentation(batchNo string, rows []PendingSurveyRow) *models.PendingSurveys {
	out := &models.PendingSurveys{BatchNo: batchNo}
	for _, row := range rows {
		out.Data = append(out.Data, models.PendingSurvey{
			BusinessID:   row.BusinessID,
			SurveyID:     row.SurveyID,
			EmailAddress: row.EmailAddress,
			SharedBy:     row.SharedBy,
			BatchNo:      row.BatchNo,
			IsTransfer:   row.IsTransfer,
			TimeShared:   row.TimeShared,
		})
	}
	return out
}
