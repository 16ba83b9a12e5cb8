package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Unleash/unleash-client-go/v3"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ONSdigital/ras-rm-enrolment/enrolment"
	"github.com/ONSdigital/ras-rm-enrolment/models"
)

// api holds the handlers' dependencies. Handlers do request plumbing only;
// all enrolment semantics live in the enrolment service.
type api struct {
	svc    *enrolment.Service
	logger *zap.SugaredLogger
}

func addRoutes(router *httprouter.Router, a *api) {
	router.GET("/", hello)
	router.GET("/info", info)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	router.POST("/v2/respondents", a.postRespondents)
	router.PUT("/v2/emailverification/:token", a.putEmailVerification)
	router.PUT("/v2/respondents/:id/enrolments", a.putEnrolmentStatus)
	router.DELETE("/v2/respondents/:id/enrolments", a.deleteEnrolments)
	router.POST("/v2/pending-surveys", a.postPendingSurveys)
	router.GET("/v2/pending-surveys/:batchNo", a.getPendingSurveys)
	router.POST("/v2/pending-surveys/confirm/:token", a.confirmPendingSurveys)
}

// guard applies the endpoint's feature flag and basic auth. Returns false
// once a response has already been written.
func (a *api) guard(w http.ResponseWriter, r *http.Request, flag string) bool {
	if !unleash.IsEnabled(flag, unleash.WithFallback(false)) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	user, pass, ok := r.BasicAuth()
	if !ok || user != viper.GetString("security_user_name") || pass != viper.GetString("security_user_password") {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

// writeError maps the enrolment error taxonomy onto response codes.
// Client-attributable failures are returned without error-level logging;
// upstream and internal failures are logged with their context.
func (a *api) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *enrolment.ValidationError
		conflictErr   *enrolment.ConflictError
		notFoundErr   *enrolment.NotFoundError
		upstreamErr   *enrolment.UpstreamError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &conflictErr):
		status = http.StatusConflict
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		a.logger.Errorw("Upstream failure", "error", err)
	default:
		a.logger.Errorw("Internal failure", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.Error{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (a *api) postRespondents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.post.respondents") {
		return
	}
	var req models.PostRespondents
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "Invalid JSON"})
		return
	}
	created, err := a.svc.Register(&req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) putEmailVerification(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.put.emailverification") {
		return
	}
	verified, err := a.svc.VerifyEmail(p.ByName("token"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verified)
}

func (a *api) putEnrolmentStatus(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.put.enrolments") {
		return
	}
	var req models.PutEnrolmentStatus
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "Invalid JSON"})
		return
	}
	if err := a.svc.ChangeEnrolmentStatus(p.ByName("id"), &req); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *api) deleteEnrolments(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.delete.enrolments") {
		return
	}
	removed, err := a.svc.DisableAllEnrolments(p.ByName("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteEnrolments{RemovedEnrolmentCount: removed})
}

func (a *api) postPendingSurveys(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.post.pendingsurveys") {
		return
	}
	var req models.PostPendingSurveys
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.Error{Error: "Invalid JSON"})
		return
	}
	created, err := a.svc.CreatePendingSurveys(&req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) getPendingSurveys(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.get.pendingsurveys") {
		return
	}
	batch, err := a.svc.GetPendingSurveys(p.ByName("batchNo"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (a *api) confirmPendingSurveys(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !a.guard(w, r, "enrolment.api.post.pendingsurveys") {
		return
	}
	req := &models.ConfirmPendingSurveys{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			writeJSON(w, http.StatusBadRequest, models.Error{Error: "Invalid JSON"})
			return
		}
	}
	if err := a.svc.ConfirmPendingSurveys(p.ByName("token"), req); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
