package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/hebrew"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/service"
)

const dateLayout = "2006-01-02"

// Server provides the HTTP API over the ledger and the automation jobs.
type Server struct {
	svc    *service.Service
	logger *logrus.Logger
	mux    *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger) *Server {
	s := &Server{svc: svc, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Balances and plans
	s.mux.HandleFunc("GET /api/families/{id}/balance", s.handleFamilyBalance)
	s.mux.HandleFunc("GET /api/members/{id}/balance", s.handleMemberBalance)
	s.mux.HandleFunc("GET /api/members/{id}/plan", s.handleMemberPlan)

	// API – Statements
	s.mux.HandleFunc("GET /api/families/{id}/statements", s.handleListStatements)
	s.mux.HandleFunc("GET /api/families/{id}/statements/preview", s.handlePreviewStatement)
	s.mux.HandleFunc("POST /api/families/{id}/statements", s.handleIssueStatement)

	// API – Refunds
	s.mux.HandleFunc("POST /api/payments/{id}/refunds", s.handleIssueRefund)

	// API – Automations (manual runs ignore the automation toggles)
	s.mux.HandleFunc("POST /api/automations/{job}", s.handleRunAutomation)

	// API – Calendar
	s.mux.HandleFunc("GET /api/hebrew-date", s.handleHebrewDate)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the error taxonomy onto HTTP statuses. Only
// unexpected errors are logged and hidden behind a generic message.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, what string) {
	switch {
	case models.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case models.IsReconciliation(err):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrIdempotencyConflict):
		s.respondError(w, http.StatusConflict, err.Error())
	case models.IsGateway(err):
		s.logger.WithError(err).Warnf("gateway failure: %s", what)
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.WithError(err).Errorf("failed to %s", what)
		s.respondError(w, http.StatusInternalServerError, "failed to "+what)
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// pathID extracts the {id} path value and converts it to int64.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	if raw == "" {
		return 0, fmt.Errorf("missing id in path")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *Server) requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// queryDate reads an optional YYYY-MM-DD query parameter. A missing value
// yields the zero time.
func (s *Server) queryDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a YYYY-MM-DD date", name))
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) requireDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	t, ok := s.queryDate(w, r, name)
	if ok && t.IsZero() {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("%s query parameter is required", name))
		return time.Time{}, false
	}
	return t, ok
}

// ---------------------------------------------------------------------------
// Balances
// ---------------------------------------------------------------------------

func (s *Server) handleFamilyBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	asOf, ok := s.queryDate(w, r, "as_of")
	if !ok {
		return
	}

	balance, err := s.svc.FamilyBalance(r.Context(), id, asOf)
	if err != nil {
		s.respondServiceError(w, err, "compute family balance")
		return
	}
	s.respondJSON(w, http.StatusOK, balance)
}

func (s *Server) handleMemberBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	asOf, ok := s.queryDate(w, r, "as_of")
	if !ok {
		return
	}

	balance, err := s.svc.MemberBalance(r.Context(), id, asOf)
	if err != nil {
		s.respondServiceError(w, err, "compute member balance")
		return
	}
	s.respondJSON(w, http.StatusOK, balance)
}

func (s *Server) handleMemberPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	asOf, ok := s.queryDate(w, r, "as_of")
	if !ok {
		return
	}

	res, err := s.svc.ResolveMemberPlan(r.Context(), id, asOf)
	if err != nil {
		s.respondServiceError(w, err, "resolve member plan")
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

type issueStatementRequest struct {
	From     string `json:"from"` // YYYY-MM-DD, inclusive
	To       string `json:"to"`   // YYYY-MM-DD, exclusive
	MemberID *int64 `json:"member_id"`
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	statements, err := s.svc.ListStatements(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "list statements")
		return
	}
	if statements == nil {
		statements = []*models.Statement{}
	}
	s.respondJSON(w, http.StatusOK, statements)
}

func (s *Server) handlePreviewStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}
	from, ok := s.requireDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := s.requireDate(w, r, "to")
	if !ok {
		return
	}

	st, err := s.svc.PreviewStatement(r.Context(), id, from, to)
	if err != nil {
		s.respondServiceError(w, err, "preview statement")
		return
	}
	s.respondJSON(w, http.StatusOK, st)
}

func (s *Server) handleIssueStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	var req issueStatementRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return
	}

	var st *models.Statement
	if req.MemberID != nil {
		member, err := s.svc.Members.GetByID(r.Context(), *req.MemberID)
		if err != nil {
			s.respondServiceError(w, err, "get member")
			return
		}
		if member == nil || member.FamilyID != id {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("member %d not found in family %d", *req.MemberID, id))
			return
		}
		st, err = s.svc.IssueMemberStatement(r.Context(), member.ID, from, to)
		if err != nil {
			s.respondServiceError(w, err, "issue member statement")
			return
		}
	} else {
		st, err = s.svc.IssueStatement(r.Context(), id, from, to)
		if err != nil {
			s.respondServiceError(w, err, "issue statement")
			return
		}
	}

	s.logger.WithFields(logrus.Fields{
		"family_id":        id,
		"statement_number": st.Number,
	}).Info("Statement issued via API")
	s.respondJSON(w, http.StatusCreated, st)
}

// ---------------------------------------------------------------------------
// Refunds
// ---------------------------------------------------------------------------

func (s *Server) handleIssueRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireID(w, r)
	if !ok {
		return
	}

	var req service.RefundRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	req.PaymentID = id

	res, err := s.svc.IssueRefund(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err, "issue refund")
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

// ---------------------------------------------------------------------------
// Automations
// ---------------------------------------------------------------------------

type automationResponse struct {
	Job     string           `json:"job"`
	Reports []service.Report `json:"reports"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleRunAutomation(w http.ResponseWriter, r *http.Request) {
	job := r.PathValue("job")

	summaries, err := s.svc.RunNamed(r.Context(), job)
	if err != nil && models.IsValidation(err) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := automationResponse{Job: job, Reports: make([]service.Report, 0, len(summaries))}
	for _, sum := range summaries {
		resp.Reports = append(resp.Reports, sum.Report())
	}
	// Per-owner failures are part of the report, not a failed request.
	if err != nil {
		resp.Error = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

type hebrewDateResponse struct {
	Gregorian      string `json:"gregorian"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	MonthName      string `json:"month_name"`
	Day            int    `json:"day"`
	Display        string `json:"display"`
	BarMitzvahDate string `json:"bar_mitzvah_date,omitempty"`
}

func (s *Server) handleHebrewDate(w http.ResponseWriter, r *http.Request) {
	day, ok := s.requireDate(w, r, "date")
	if !ok {
		return
	}

	d, err := hebrew.FromGregorian(day)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := hebrewDateResponse{
		Gregorian: day.Format(dateLayout),
		Year:      d.Year,
		Month:     int(d.Month),
		MonthName: hebrew.MonthName(d.Month, d.Year),
		Day:       d.Day,
		Display:   d.String(),
	}
	if bm, ok := hebrew.BarMitzvahDate(d); ok {
		resp.BarMitzvahDate = bm.Format(dateLayout)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
