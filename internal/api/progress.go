// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/auth"
	"github.com/alleyehq/alleye/internal/logging"
	"github.com/alleyehq/alleye/internal/lrs"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
	"github.com/alleyehq/alleye/internal/validation"
)

// progressRequest is one reported learning event.
type progressRequest struct {
	ContentID int64  `json:"content_id" validate:"required"`
	Event     string `json:"event" validate:"required,oneof=launched completed paused resumed suspended answered read"`

	// Score is a percentage, set with event "completed".
	Score *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=100"`

	// ElapsedSeconds is the session time, set with event "suspended".
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty" validate:"min=0"`

	// Response and Correct describe one quiz answer, set with event
	// "answered".
	Response string `json:"response,omitempty"`
	Correct  bool   `json:"correct,omitempty"`
}

// ReportProgress records a learning event: the profile's progress map
// is written through the gateway and an xAPI statement goes to the LRS
// queue. The session cache is never mutated here; the update comes back
// through the change feed.
func (h *Handlers) ReportProgress(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeError(w, http.StatusServiceUnavailable, "progress reporting not configured")
		return
	}
	profile, ok := auth.ProfileFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no authenticated profile")
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	content, err := h.readContent(r.Context(), req.ContentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown content")
		return
	}

	st, status, ok := buildStatement(profile, content, req)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown event")
		return
	}

	if err := h.writeProgress(r.Context(), profile.ID, req.ContentID, status, req.Score); err != nil {
		logging.Warn().Err(err).
			Str("user_id", profile.ID).
			Int64("content_id", req.ContentID).
			Msg("progress write failed")
		writeError(w, http.StatusBadGateway, "progress write failed")
		return
	}

	if h.sink != nil {
		if err := h.sink.Submit(st); err != nil {
			// The store write succeeded; a queue failure must not fail
			// the request.
			logging.Warn().Err(err).Str("verb", st.Verb.ID).Msg("statement enqueue failed")
		}
	}
	if h.recommender != nil && status == models.ProgressCompleted {
		h.recommender.Invalidate(profile.ID)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "accepted"})
}

// buildStatement maps one reported event to its xAPI statement and the
// resulting progress status.
func buildStatement(profile models.Profile, content models.Content, req progressRequest) (lrs.Statement, models.ProgressStatus, bool) {
	actor := lrs.ActorFor(profile)
	activity := lrs.ActivityFor(content)

	switch req.Event {
	case "launched":
		return lrs.Launched(actor, activity), models.ProgressInProgress, true
	case "completed":
		score := 0.0
		if req.Score != nil {
			score = *req.Score
		}
		passing := 0.0
		if content.PassingScore != nil {
			passing = *content.PassingScore
		}
		return lrs.Completed(actor, activity, score, passing), models.ProgressCompleted, true
	case "paused":
		return lrs.Paused(actor, activity), models.ProgressInProgress, true
	case "resumed":
		return lrs.Resumed(actor, activity), models.ProgressInProgress, true
	case "suspended":
		elapsed := time.Duration(req.ElapsedSeconds * float64(time.Second))
		return lrs.Suspended(actor, activity, elapsed), models.ProgressInProgress, true
	case "answered":
		return lrs.Answered(actor, activity, req.Response, req.Correct), models.ProgressInProgress, true
	case "read":
		return lrs.Read(actor, activity), models.ProgressCompleted, true
	default:
		return lrs.Statement{}, "", false
	}
}

func (h *Handlers) readContent(ctx context.Context, id int64) (models.Content, error) {
	rows, err := h.gw.Read(ctx, store.TableContent, store.Query{
		Filters: []store.Cond{store.Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return models.Content{}, err
	}
	if len(rows) == 0 {
		return models.Content{}, store.ErrNotFound
	}
	var content models.Content
	if err := json.Unmarshal(rows[0], &content); err != nil {
		return models.Content{}, err
	}
	return content, nil
}

// writeProgress re-reads the profile row and writes the updated
// progress entry through the gateway. A completed entry is never
// downgraded by an in-progress event.
func (h *Handlers) writeProgress(ctx context.Context, userID string, contentID int64, status models.ProgressStatus, score *float64) error {
	rows, err := h.gw.Read(ctx, store.TableProfiles, store.Query{
		Filters: []store.Cond{store.Eq("id", userID)},
		Limit:   1,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	var fresh models.Profile
	if err := json.Unmarshal(rows[0], &fresh); err != nil {
		return err
	}

	if fresh.Progress == nil {
		fresh.Progress = make(models.Progress)
	}
	entry := fresh.Progress[contentID]
	if entry.Status == models.ProgressCompleted && status != models.ProgressCompleted {
		return nil
	}
	entry.Status = status
	if score != nil {
		entry.Score = score
	}
	fresh.Progress[contentID] = entry

	_, err = h.gw.Write(ctx, store.TableProfiles, store.WriteUpdate, fresh)
	return err
}
