// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestEncodeQuery(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want map[string]string
	}{
		{
			name: "plain select",
			q:    Query{},
			want: map[string]string{"select": "*"},
		},
		{
			name: "eq filter",
			q:    Query{Filters: []Cond{Eq("role", "Admin")}},
			want: map[string]string{"role": "eq.Admin"},
		},
		{
			name: "in filter",
			q:    Query{Filters: []Cond{In("id", 1, 2, 3)}},
			want: map[string]string{"id": "in.(1,2,3)"},
		},
		{
			name: "visibility or filter",
			q:    Query{Filters: []Cond{VisibleToOrgCond("org-1")}},
			want: map[string]string{"or": "(assigned_org_ids.is.null,assigned_org_ids.cs.{org-1})"},
		},
		{
			name: "order desc and limit",
			q:    Query{OrderBy: "created_at", Descending: true, Limit: 3},
			want: map[string]string{"order": "created_at.desc", "limit": "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(encodeQuery(tt.q))
			if err != nil {
				t.Fatalf("parse encoded query: %v", err)
			}
			for key, want := range tt.want {
				if got := values.Get(key); got != want {
					t.Errorf("param %q = %q, want %q", key, got, want)
				}
			}
		})
	}
}

func TestClientRead(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1, "title": "Phishing 101"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	records, err := c.Read(context.Background(), TableContent, Query{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if gotPath != "/rest/v1/content" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "test-key" {
		t.Errorf("apikey header = %q", gotAuth)
	}
}

func TestClientReadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.Read(context.Background(), TableContent, Query{}); err == nil {
		t.Fatal("expected error on 403 response")
	}
}

func TestClientWriteUpdateTargetsID(t *testing.T) {
	var gotMethod, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 5, "title": "Updated"}]`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	raw, err := c.Write(context.Background(), TableContent, WriteUpdate,
		map[string]any{"id": 5, "title": "Updated"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if raw == nil {
		t.Fatal("expected returned representation")
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", gotMethod)
	}
	if gotQuery != "id=eq.5" {
		t.Errorf("query = %q, want id=eq.5", gotQuery)
	}
}

func TestClientWriteDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %q, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	raw, err := c.Write(context.Background(), TableContent, WriteDelete, map[string]any{"id": 5})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if raw != nil {
		t.Error("delete should return nil representation")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://proj.example.co", "wss://proj.example.co"},
		{"http://localhost:54321", "ws://localhost:54321"},
		{"https://proj.example.co/", "wss://proj.example.co"},
	}
	for _, tt := range tests {
		if got := websocketURL(tt.in); got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
