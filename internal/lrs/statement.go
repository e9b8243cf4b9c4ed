// AllEye - Security Awareness Training Dashboard
// Copyright 2026 AllEye Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/alleyehq/alleye

// Package lrs submits xAPI 1.0.3 learning-record statements to an
// external LRS and queries them back for analytics views. Submission is
// fire-and-forget through a durable queue; the caller never blocks on
// the LRS.
package lrs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alleyehq/alleye/internal/models"
)

// xAPI verb ids from the ADL and activity-stream registries.
const (
	VerbLaunched  = "http://adlnet.gov/expapi/verbs/launched"
	VerbCompleted = "http://adlnet.gov/expapi/verbs/completed"
	VerbPaused    = "http://id.tincanapi.com/verb/paused"
	VerbResumed   = "http://adlnet.gov/expapi/verbs/resumed"
	VerbSuspended = "http://adlnet.gov/expapi/verbs/suspended"
	VerbAnswered  = "http://adlnet.gov/expapi/verbs/answered"
	VerbRead      = "https://w3id.org/xapi/adb/verbs/read"
)

// activityBase prefixes content ids into activity IRIs.
const activityBase = "https://alleye.app/xapi/content/"

// Agent is the xAPI actor.
type Agent struct {
	ObjectType string `json:"objectType"`
	Name       string `json:"name,omitempty"`
	Mbox       string `json:"mbox,omitempty"`
}

// Verb is the xAPI verb with a display map.
type Verb struct {
	ID      string            `json:"id"`
	Display map[string]string `json:"display,omitempty"`
}

// ActivityDefinition names an activity.
type ActivityDefinition struct {
	Name map[string]string `json:"name,omitempty"`
	Type string            `json:"type,omitempty"`
}

// Activity is the xAPI object.
type Activity struct {
	ObjectType string              `json:"objectType"`
	ID         string              `json:"id"`
	Definition *ActivityDefinition `json:"definition,omitempty"`
}

// Score is the xAPI result score.
type Score struct {
	Scaled float64 `json:"scaled"`
	Raw    float64 `json:"raw"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Result carries outcome details.
type Result struct {
	Score      *Score `json:"score,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	Completion *bool  `json:"completion,omitempty"`
	Duration   string `json:"duration,omitempty"`
	Response   string `json:"response,omitempty"`
}

// Statement is one xAPI statement.
type Statement struct {
	ID        string    `json:"id"`
	Actor     Agent     `json:"actor"`
	Verb      Verb      `json:"verb"`
	Object    Activity  `json:"object"`
	Result    *Result   `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ActorFor builds the xAPI agent for a profile.
func ActorFor(p models.Profile) Agent {
	return Agent{
		ObjectType: "Agent",
		Name:       p.Name,
		Mbox:       "mailto:" + p.Email,
	}
}

// ActivityFor builds the xAPI activity for a content item.
func ActivityFor(c models.Content) Activity {
	return Activity{
		ObjectType: "Activity",
		ID:         fmt.Sprintf("%s%d", activityBase, c.ID),
		Definition: &ActivityDefinition{
			Name: map[string]string{"en-US": c.Title},
			Type: "http://adlnet.gov/expapi/activities/module",
		},
	}
}

func newStatement(actor Agent, verbID, verbName string, object Activity) Statement {
	return Statement{
		ID:    uuid.NewString(),
		Actor: actor,
		Verb: Verb{
			ID:      verbID,
			Display: map[string]string{"en-US": verbName},
		},
		Object:    object,
		Timestamp: time.Now().UTC(),
	}
}

// Launched records the user opening a content item.
func Launched(actor Agent, object Activity) Statement {
	return newStatement(actor, VerbLaunched, "launched", object)
}

// Completed records a completion with its score against the passing
// threshold. Scores are percentages; passing 0 means no threshold and
// success is unconditionally true.
func Completed(actor Agent, object Activity, score, passing float64) Statement {
	st := newStatement(actor, VerbCompleted, "completed", object)
	success := passing <= 0 || score >= passing
	completion := true
	st.Result = &Result{
		Score: &Score{
			Scaled: score / 100,
			Raw:    score,
			Min:    0,
			Max:    100,
		},
		Success:    &success,
		Completion: &completion,
	}
	return st
}

// Paused records a pause mid-content.
func Paused(actor Agent, object Activity) Statement {
	return newStatement(actor, VerbPaused, "paused", object)
}

// Resumed records a resume after a pause.
func Resumed(actor Agent, object Activity) Statement {
	return newStatement(actor, VerbResumed, "resumed", object)
}

// Suspended records leaving a content item with elapsed session time.
func Suspended(actor Agent, object Activity, elapsed time.Duration) Statement {
	st := newStatement(actor, VerbSuspended, "suspended", object)
	st.Result = &Result{Duration: isoDuration(elapsed)}
	return st
}

// Answered records one quiz question response.
func Answered(actor Agent, object Activity, response string, correct bool) Statement {
	st := newStatement(actor, VerbAnswered, "answered", object)
	success := correct
	st.Result = &Result{Response: response, Success: &success}
	return st
}

// Read records finishing an article-style content item.
func Read(actor Agent, object Activity) Statement {
	return newStatement(actor, VerbRead, "read", object)
}

// isoDuration renders an ISO 8601 duration, the xAPI wire format.
func isoDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("PT%.2fS", secs)
}
