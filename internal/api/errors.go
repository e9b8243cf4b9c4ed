// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
