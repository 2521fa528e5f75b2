package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// maxBodyBytes caps request bodies accepted by the JSON endpoints.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// internalErrorBody is served when a payload cannot be encoded.
var internalErrorBody = mustMarshal(models.Error("Internal server error"))

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("api: cannot marshal static response: %v", err))
	}
	return b
}

// writeJSONResponse encodes payload first so that an encoding failure can
// still be reported as a 500 before any header is sent.
func writeJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Server.writeJSONResponse: encode failed", "error", err, "status", status)
		body, status = internalErrorBody, http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Warn("Server.writeJSONResponse: write failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSONResponse(w, status, models.Error(msg))
}

// decodeJSONBody reads a single JSON document into dst, rejecting unknown
// fields and bodies larger than maxBodyBytes.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// listAudit serves one audit collection as a JSON list.
func listAudit[T any](w http.ResponseWriter, what string, fetch func() ([]T, error)) {
	items, err := fetch()
	if err != nil {
		slog.Error("Server.listAudit: fetch failed", "collection", what, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch "+what)
		return
	}
	if items == nil {
		items = []T{}
	}
	slog.Debug("Server.listAudit: fetched", "collection", what, "count", len(items))
	writeJSONResponse(w, http.StatusOK, models.Success(items))
}
