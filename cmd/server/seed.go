// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package main

import (
	"time"

	"github.com/alleyehq/alleye/internal/models"
	"github.com/alleyehq/alleye/internal/store"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

// seedDemoData fills the mock store with a small coherent data set:
// two organizations, four users across the roles, a content catalog
// with a playlist, threat intel, Q&A and analytics history. Used for
// development and screenshot builds.
func seedDemoData(ms *store.MemStore) error {
	now := time.Now().UTC()
	day := 24 * time.Hour

	if err := ms.Seed(store.TableOrganizations,
		models.Organization{ID: "org-acme", Name: "Acme Corp", ThemeColor: "#1f6feb"},
		models.Organization{ID: "org-initech", Name: "Initech", ThemeColor: "#d73a49"},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TableProfiles,
		models.Profile{ID: "u-admin", Name: "Avery Admin", Email: "avery@alleye.app",
			Role: models.RoleAdmin, CreatedAt: now.Add(-90 * day)},
		models.Profile{ID: "u-ciso", Name: "Casey CISO", Email: "casey@acme.example",
			Role: models.RoleCISO, OrganizationID: "org-acme", Company: "Acme Corp",
			CreatedAt: now.Add(-80 * day)},
		models.Profile{ID: "u-lead", Name: "Lee Lead", Email: "lee@acme.example",
			Role: models.RoleLead, OrganizationID: "org-acme", Team: "Platform",
			CreatedAt: now.Add(-60 * day)},
		models.Profile{ID: "u-user", Name: "Uma User", Email: "uma@acme.example",
			Role: models.RoleUser, OrganizationID: "org-acme", Team: "Platform",
			Points: 120, Badges: []string{"first-completion"},
			Progress: models.Progress{
				1: {Status: models.ProgressCompleted, Score: fp(85)},
				2: {Status: models.ProgressInProgress},
			},
			CreatedAt: now.Add(-45 * day)},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TableContent,
		models.Content{ID: 1, Title: "Phishing Fundamentals", Type: models.ContentTypeVideo,
			Description: "Spotting malicious mail before it bites.",
			Category:    "Email Security", Difficulty: "Intro",
			Tags: []string{"phishing", "email"}, DurationSec: 480,
			PassingScore: fp(70), CreatedAt: now.Add(-40 * day)},
		models.Content{ID: 2, Title: "Password Hygiene", Type: models.ContentTypeHTML5,
			Description: "Managers, passphrases and rotation myths.",
			Category:    "Credentials", Difficulty: "Intro",
			Tags:      []string{"passwords"},
			CreatedAt: now.Add(-35 * day)},
		models.Content{ID: 3, Title: "Social Engineering Red Flags", Type: models.ContentTypeVideo,
			Description: "Pretexting, tailgating and urgency plays.",
			Category:    "Human Factor", Difficulty: "Intermediate",
			Tags: []string{"social-engineering"}, DurationSec: 720,
			PassingScore: fp(75), CreatedAt: now.Add(-20 * day)},
		models.Content{ID: 4, Title: "Incident Reporting Drill", Type: models.ContentTypeCyberTraining,
			Description: "Gamified drill for the acme escalation path.",
			Category:    "Process", Difficulty: "Advanced",
			AssignedOrgIDs: []string{"org-acme"},
			PassingScore:   fp(80), CreatedAt: now.Add(-10 * day)},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TablePlaylists,
		models.Playlist{ID: 1, Name: "Onboarding Essentials",
			Description: "First-week security basics.",
			CuratorID:   "u-admin", ContentIDs: []int64{1, 2},
			CreatedAt: now.Add(-30 * day)},
	); err != nil {
		return err
	}
	if err := ms.Seed(store.TablePlaylistLinks,
		models.PlaylistEntry{PlaylistID: 1, ContentID: 1},
		models.PlaylistEntry{PlaylistID: 1, ContentID: 2},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TableAssignments,
		models.Assignment{ID: 1, UserID: "u-user", PlaylistID: ip(1), CreatedAt: now.Add(-29 * day)},
		models.Assignment{ID: 2, UserID: "u-user", ContentID: ip(3), CreatedAt: now.Add(-5 * day)},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TableNews,
		models.NewsItem{ID: 1, Title: "Invoice-themed phishing wave",
			Type: models.NewsTypeHTMLArticle, AuthorID: "u-admin",
			Content:   "<p>Finance teams are seeing spoofed invoice mails.</p>",
			CreatedAt: now.Add(-3 * day)},
	); err != nil {
		return err
	}

	answer := "Forward it to security@ and delete it."
	answeredAt := now.Add(-1 * day)
	if err := ms.Seed(store.TableQandA,
		models.QAndAItem{ID: 1, UserID: "u-user",
			Question:  "What do I do with a suspicious invoice mail?",
			Answer:    &answer, AnsweredBy: "u-admin", IsFAQ: true,
			CreatedAt: now.Add(-2 * day), AnsweredAt: &answeredAt},
	); err != nil {
		return err
	}

	if err := ms.Seed(store.TableAnalytics,
		models.AnalyticsRecord{ID: 1, UserID: "u-user", ContentID: 1,
			EventType: models.EventComplete, Timestamp: now.Add(-15 * day),
			Details: models.AnalyticsDetails{Score: fp(85)}},
		models.AnalyticsRecord{ID: 2, UserID: "u-user", ContentID: 2,
			EventType: models.EventStart, Timestamp: now.Add(-4 * day)},
		models.AnalyticsRecord{ID: 3, UserID: "u-lead", ContentID: 1,
			EventType: models.EventView, Timestamp: now.Add(-2 * day)},
	); err != nil {
		return err
	}

	return ms.Seed(store.TableCyberTraining,
		models.CyberTrainingRecord{ID: 1, UserID: "u-user", UserName: "Uma User",
			UserCompany: "Acme Corp", ContentID: 4, Score: 82,
			VideoWatchTime: 310, CompletedAt: now.Add(-6 * day), Attempt: 1},
	)
}
