package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visara/reading-engine/internal/db"
	"github.com/visara/reading-engine/internal/reading"
)

// CreateJobRequest represents the request body for POST /jobs
type CreateJobRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	Kind      string `json:"kind" validate:"required,oneof=teaser full legacy"`
	AccountID string `json:"account_id,omitempty" validate:"omitempty,uuid4"`
}

// ExecuteJobRequest represents the request body for POST /jobs/{id}/execute
type ExecuteJobRequest struct {
	Token string `json:"token" validate:"required"`
}

// GenerateRequest represents the request body for the synchronous endpoints
type GenerateRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid4"`
	AccountID string `json:"account_id,omitempty" validate:"omitempty,uuid4"`
}

// JobResponse represents a job in API responses
type JobResponse struct {
	ID           string          `json:"id"`
	SubjectID    string          `json:"subject_id"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorData    json.RawMessage `json:"error_data,omitempty"`
	ReadingID    string          `json:"reading_id,omitempty"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// ReadingResponse represents a reading in API responses
type ReadingResponse struct {
	ID           string                       `json:"id"`
	SubjectID    string                       `json:"subject_id"`
	Kind         string                       `json:"kind"`
	Unlocked     bool                         `json:"unlocked"`
	Purchased    bool                         `json:"purchased"`
	Sections     map[string]map[string]string `json:"sections,omitempty"`
	Text         string                       `json:"text,omitempty"`
	MissingCount int                          `json:"missing_sections,omitempty"`
	CreatedAt    string                       `json:"created_at"`
}

func jobResponse(job *db.Job) JobResponse {
	resp := JobResponse{
		ID:           job.ID.String(),
		SubjectID:    job.SubjectID.String(),
		Kind:         string(job.Kind),
		Status:       job.Status,
		Attempts:     job.Attempts,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if len(job.ErrorData) > 0 {
		resp.ErrorData = json.RawMessage(job.ErrorData)
	}
	if job.ReadingID != nil {
		resp.ReadingID = job.ReadingID.String()
	}
	return resp
}

func readingResponse(r *reading.Reading) ReadingResponse {
	resp := ReadingResponse{
		ID:        r.ID.String(),
		SubjectID: r.SubjectID.String(),
		Kind:      string(r.Kind),
		Unlocked:  r.Unlocked,
		Purchased: r.Purchased,
		Text:      r.Text,
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if r.Document != nil {
		resp.Sections = r.Document.Sections
		resp.MissingCount = len(r.Document.MissingSections)
	}
	return resp
}

// decodeAndValidate decodes a JSON body and runs struct validation
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func parseAccountID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// handleCreateJob creates or returns the active generation job for a subject
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid subject ID format")
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid account ID format")
		return
	}

	job, err := s.manager.CreateJob(r.Context(), subjectID, reading.Kind(req.Kind), accountID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, jobResponse(job))
}

// handleGetJob returns the status of a generation job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}

	job, err := s.manager.GetJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, jobResponse(job))
}

// handleExecuteJob runs a job inline, guarded by its dispatch token. It backs
// the out-of-band retry path: re-execution of a terminal job is a no-op.
func (s *Server) handleExecuteJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID format")
		return
	}
	var req ExecuteJobRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.manager.ProcessJob(r.Context(), jobID, req.Token); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "processed"})
}

// handleGenerateTeaser generates a teaser reading synchronously
func (s *Server) handleGenerateTeaser(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid subject ID format")
		return
	}

	result, err := s.manager.GenerateTeaserReading(r.Context(), subjectID)
	if err != nil {
		s.logger.Warn("teaser generation failed", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, readingResponse(result))
}

// handleGenerateFull generates a paid reading synchronously
func (s *Server) handleGenerateFull(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid subject ID format")
		return
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil || accountID == nil {
		s.errorResponse(w, http.StatusBadRequest, "account_id is required")
		return
	}

	result, err := s.manager.GeneratePaidReading(r.Context(), subjectID, *accountID)
	if err != nil {
		s.logger.Warn("paid generation failed", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, readingResponse(result))
}

// handleGenerateLegacy generates a free-text reading synchronously
func (s *Server) handleGenerateLegacy(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid subject ID format")
		return
	}

	result, err := s.manager.GenerateLegacyReading(r.Context(), subjectID)
	if err != nil {
		s.logger.Warn("legacy generation failed", zap.Error(err))
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.jsonResponse(w, http.StatusCreated, readingResponse(result))
}

// handleGetReading returns a stored reading
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	readingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid reading ID format")
		return
	}

	result, err := s.database.GetReading(r.Context(), readingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if result == nil {
		s.errorResponse(w, http.StatusNotFound, "Reading not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, readingResponse(result))
}
