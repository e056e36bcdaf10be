// internal/server/handlers/respond.go

package handlers

import (
	"encoding/json"
	"net/http"

	"pulse/internal/domain/pipeline"
	"pulse/internal/logger"
)

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error      string   `json:"error"`
	Kind       string   `json:"kind"`
	Stage      string   `json:"stage,omitempty"`
	Resume     string   `json:"resume,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// statusFor maps a failure kind onto an HTTP status
func statusFor(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindValidation:
		return http.StatusBadRequest
	case pipeline.KindMalformed:
		return http.StatusBadGateway
	case pipeline.KindProviderUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, log logger.Logger, err error) {
	body := errorResponse{
		Error: err.Error(),
		Kind:  string(pipeline.KindOf(err)),
	}

	var perr *pipeline.Error
	if pipeline.AsError(err, &perr) {
		body.Error = perr.Message
		body.Stage = string(perr.Stage)
		body.Resume = string(perr.Resume)
		body.Violations = perr.Violations
	}

	code := statusFor(pipeline.Kind(body.Kind))
	if code >= 500 {
		log.Error("Request failed",
			logger.Int("status", code),
			logger.String("kind", body.Kind),
			logger.Error(err),
		)
	}

	respondWithJSON(w, code, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return pipeline.Validation("invalid request body: " + err.Error())
	}
	return nil
}

const maxBodyBytes = 8 << 20
