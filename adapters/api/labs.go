package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"flomentum/domain/core"
	"flomentum/domain/upload"
)

// handleLabUpload accepts a lab report PDF and queues it for extraction.
// The response is the job; clients poll /labs/status/{jobID}.
func (s *Server) handleLabUpload(w http.ResponseWriter, r *http.Request) {
	// Parse limit slightly above the file cap to leave room for form overhead
	if err := r.ParseMultipartForm(upload.MaxUploadBytes + 1<<20); err != nil {
		writeError(w, s.log, core.NewValidationError("body", "malformed multipart request"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.log, core.NewValidationError("file", "multipart file field required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	job, err := s.labs.Accept(r.Context(), userFrom(r), header.Filename, contentType, header.Size, file)
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	status := http.StatusAccepted
	if job.Status.Terminal() {
		// Idempotent re-upload of an already processed file
		status = http.StatusOK
	}
	writeJSON(w, status, job)
}

func (s *Server) handleLabStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.labs.Status(r.Context(), userFrom(r), core.JobID(chi.URLParam(r, "jobID")))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
