// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package api

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/goccy/go-json"

	"github.com/alleyehq/alleye/internal/lrs"
	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

func postProgress(t *testing.T, env *testEnv, userID string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/progress", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func readProfile(t *testing.T, env *testEnv, userID string) models.Profile {
	t.Helper()
	rows, err := env.store.Read(context.Background(), store.TableProfiles, store.Query{
		Filters: []store.Cond{store.Eq("id", userID)},
		Limit:   1,
	})
	if err != nil || len(rows) == 0 {
		t.Fatalf("read profile: %v (%d rows)", err, len(rows))
	}
	var p models.Profile
	if err := json.Unmarshal(rows[0], &p); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	return p
}

func TestReportProgressCompleted(t *testing.T) {
	env := newTestEnv(t)

	resp := postProgress(t, env, "user-1", map[string]interface{}{
		"content_id": int64(2),
		"event":      "completed",
		"score":      92.0,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	p := readProfile(t, env, "user-1")
	entry, ok := p.Progress[2]
	if !ok || entry.Status != models.ProgressCompleted {
		t.Errorf("progress entry = %+v", entry)
	}
	if entry.Score == nil || *entry.Score != 92 {
		t.Errorf("score = %v, want 92", entry.Score)
	}

	statements := env.sink.all()
	if len(statements) != 1 {
		t.Fatalf("statements = %d, want 1", len(statements))
	}
	st := statements[0]
	if st.Verb.ID != lrs.VerbCompleted {
		t.Errorf("verb = %s", st.Verb.ID)
	}
	if st.Result == nil || st.Result.Score == nil || st.Result.Score.Raw != 92 {
		t.Errorf("result = %+v", st.Result)
	}
}

func TestReportProgressLaunchedDoesNotDowngradeCompleted(t *testing.T) {
	env := newTestEnv(t)

	// user-1 has content 1 completed in the seed.
	resp := postProgress(t, env, "user-1", map[string]interface{}{
		"content_id": int64(1),
		"event":      "launched",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	p := readProfile(t, env, "user-1")
	if p.Progress[1].Status != models.ProgressCompleted {
		t.Errorf("status = %s, completed must not be downgraded", p.Progress[1].Status)
	}

	statements := env.sink.all()
	if len(statements) != 1 || statements[0].Verb.ID != lrs.VerbLaunched {
		t.Errorf("statements = %+v, want one launched", statements)
	}
}

func TestReportProgressValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := postProgress(t, env, "user-1", map[string]interface{}{
		"content_id": int64(1),
		"event":      "teleported",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown event status = %d, want 400", resp.StatusCode)
	}

	resp = postProgress(t, env, "user-1", map[string]interface{}{
		"content_id": int64(404),
		"event":      "launched",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown content status = %d, want 404", resp.StatusCode)
	}
}
