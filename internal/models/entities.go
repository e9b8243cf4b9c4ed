// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

package models

import (
	"strconv"
	"time"
)

// Role is the closed set of dashboard roles.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleCISO  Role = "CISO"
	RoleLead  Role = "Lead"
	RoleUser  Role = "User"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCISO, RoleLead, RoleUser:
		return true
	}
	return false
}

// ContentType is the closed set of deliverable content formats.
type ContentType string

const (
	ContentTypeVideo         ContentType = "Video"
	ContentTypeVideoQuiz     ContentType = "Video + Quiz"
	ContentTypeQuiz          ContentType = "Quiz"
	ContentTypeHTML          ContentType = "Raw HTML"
	ContentTypePDF           ContentType = "PDF"
	ContentTypeHTML5         ContentType = "HTML5 Content"
	ContentTypeSCORM         ContentType = "SCORM Package"
	ContentTypeReactSandbox  ContentType = "React Sandbox"
	ContentTypeCyberTraining ContentType = "Cyber Security Training"
)

// ProgressStatus tracks a user's state for one content item.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not-started"
	ProgressInProgress ProgressStatus = "in-progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// ProgressEntry is one entry of a profile's progress map.
// Score is set only for quiz-bearing content.
type ProgressEntry struct {
	Status ProgressStatus `json:"status"`
	Score  *float64       `json:"score,omitempty"`
}

// Progress maps content id -> progress entry. At most one entry per
// content id; the cache always takes the latest write and never assumes
// monotonic status transitions.
type Progress map[int64]ProgressEntry

// Profile is a dashboard account. Profiles are created on first successful
// authentication (bootstrap) or by an administrator, and are never
// hard-deleted here; deletion is delegated to the identity provider.
type Profile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	OrganizationID string     `json:"organization_id,omitempty"`
	Team           string     `json:"team,omitempty"`
	Company        string     `json:"company,omitempty"`
	Points         int        `json:"points,omitempty"`
	Badges         []string   `json:"badges,omitempty"`
	Progress       Progress   `json:"progress,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// Key implements cache.Entity.
func (p Profile) Key() string { return p.ID }

// Organization is a tenant. It owns profiles by reference.
type Organization struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ThemeColor      string `json:"theme_color,omitempty"`
	LogoURL         string `json:"logo_url,omitempty"`
	PowerBIEmbedURL string `json:"powerbi_embed_url,omitempty"`
}

// Key implements cache.Entity.
func (o Organization) Key() string { return o.ID }

// QuizQuestion is an embedded quiz question. The question text may
// contain HTML.
type QuizQuestion struct {
	ID            int64    `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// Content is a training deliverable. AssignedOrgIDs empty or nil means
// the item is visible to all organizations; non-empty restricts
// visibility to the listed organization ids.
type Content struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Type           ContentType    `json:"type"`
	Description    string         `json:"description"`
	Category       string         `json:"category,omitempty"`
	Difficulty     string         `json:"difficulty,omitempty"` // Intro, Intermediate, Advanced
	Tags           []string       `json:"tags,omitempty"`
	RiskTags       []string       `json:"risk_tags,omitempty"`
	Compliance     []string       `json:"compliance,omitempty"`
	DurationSec    int            `json:"duration_sec,omitempty"`
	PassingScore   *float64       `json:"passing_score,omitempty"`
	ContentURL     string         `json:"content_url,omitempty"`
	EmbedURL       string         `json:"embed_url,omitempty"`
	HTMLContent    string         `json:"html_content,omitempty"`
	Questions      []QuizQuestion `json:"questions,omitempty"`
	ThumbnailURL   string         `json:"thumbnail_url,omitempty"`
	CreatorID      string         `json:"creator_id,omitempty"`
	AssignedOrgIDs []string       `json:"assigned_org_ids,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Key implements cache.Entity.
func (c Content) Key() string { return strconv.FormatInt(c.ID, 10) }

// PlaylistEntry is a junction row pairing a playlist with one content
// item. It is never cached directly; the materializer flattens junction
// rows into Playlist.ContentIDs.
type PlaylistEntry struct {
	PlaylistID int64 `json:"playlist_id"`
	ContentID  int64 `json:"content_id"`
}

// Playlist is a curated ordered set of content. ContentIDs is
// materialized from the playlist_content junction table and is the only
// stored representation of membership; embedded junction rows from bulk
// reads are discarded after materialization.
type Playlist struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CuratorID      string    `json:"curator_id,omitempty"`
	ContentIDs     []int64   `json:"content_ids"`
	AssignedOrgIDs []string  `json:"assigned_org_ids,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Entries carries embedded junction rows on bulk reads only.
	// The materializer consumes and clears it before the playlist is
	// stored in the cache.
	Entries []PlaylistEntry `json:"playlist_content,omitempty"`
}

// Key implements cache.Entity.
func (p Playlist) Key() string { return strconv.FormatInt(p.ID, 10) }

// Assignment is an explicit individual-level assignment of one content
// item or one playlist to one user, distinct from organization-wide
// visibility. Exactly one of ContentID and PlaylistID is set.
type Assignment struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	ContentID  *int64    `json:"content_id,omitempty"`
	PlaylistID *int64    `json:"playlist_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key implements cache.Entity.
func (a Assignment) Key() string { return strconv.FormatInt(a.ID, 10) }

// NewsItemType is the closed set of threat-intel article formats.
type NewsItemType string

const (
	NewsTypeHTMLArticle  NewsItemType = "HTML Article"
	NewsTypeReactSandbox NewsItemType = "React Sandbox"
)

// NewsItem is a threat-intel article. AuthorName is an enrichment field
// resolved from the author's profile during merge; see EnrichState.
type NewsItem struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Type         NewsItemType `json:"type"`
	Content      string       `json:"content,omitempty"`
	EmbedURL     string       `json:"embed_url,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	AuthorID     string       `json:"author_id,omitempty"`
	AuthorName   string       `json:"author_name,omitempty"`
	Enrichment   EnrichState  `json:"enrichment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Key implements cache.Entity.
func (n NewsItem) Key() string { return strconv.FormatInt(n.ID, 10) }

// QAndAItem is a question raised by a user, optionally answered by an
// admin. UserName, UserAvatarURL and AdminName are enrichment fields.
type QAndAItem struct {
	ID            int64       `json:"id"`
	UserID        string      `json:"user_id"`
	UserName      string      `json:"user_name,omitempty"`
	UserAvatarURL string      `json:"user_avatar_url,omitempty"`
	Question      string      `json:"question"`
	Answer        *string     `json:"answer,omitempty"`
	AnsweredBy    string      `json:"answered_by,omitempty"`
	AdminName     string      `json:"admin_name,omitempty"`
	IsFAQ         bool        `json:"is_faq,omitempty"`
	Enrichment    EnrichState `json:"enrichment,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	AnsweredAt    *time.Time  `json:"answered_at,omitempty"`
}

// Key implements cache.Entity.
func (q QAndAItem) Key() string { return strconv.FormatInt(q.ID, 10) }

// AnalyticsEventType is the closed set of analytics event kinds.
type AnalyticsEventType string

const (
	EventView        AnalyticsEventType = "view"
	EventStart       AnalyticsEventType = "start"
	EventComplete    AnalyticsEventType = "complete"
	EventQuizAttempt AnalyticsEventType = "quiz_attempt"
)

// AnalyticsDetails is the free-form detail payload of an analytics event.
type AnalyticsDetails struct {
	WatchTime      *int     `json:"watchTime,omitempty"` // seconds
	Score          *float64 `json:"score,omitempty"`     // percentage
	CorrectAnswers *int     `json:"correctAnswers,omitempty"`
	TotalQuestions *int     `json:"totalQuestions,omitempty"`
}

// AnalyticsRecord is an append-only interaction record.
type AnalyticsRecord struct {
	ID        int64              `json:"id"`
	UserID    string             `json:"user_id"`
	ContentID int64              `json:"content_id"`
	EventType AnalyticsEventType `json:"event_type"`
	Timestamp time.Time          `json:"timestamp"`
	Details   AnalyticsDetails   `json:"details"`
}

// Key implements cache.Entity.
func (a AnalyticsRecord) Key() string { return strconv.FormatInt(a.ID, 10) }

// CyberTrainingRecord is an append-only completion record specialized for
// the gamified cyber-security-training content type.
type CyberTrainingRecord struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserCompany    string    `json:"user_company,omitempty"`
	ContentID      int64     `json:"content_id"`
	Score          float64   `json:"score"`
	VideoWatchTime int       `json:"video_watch_time"` // seconds
	CompletedAt    time.Time `json:"completed_at"`
	Attempt        int       `json:"attempt"`
}

// Key implements cache.Entity.
func (c CyberTrainingRecord) Key() string { return strconv.FormatInt(c.ID, 10) }
