// Package ncr holds the non-conformance report lifecycle rules: the status
// state machine, severity-driven due dates and year-scoped numbering.
package ncr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"helix-qms/core/apperr"
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusUnderReview Status = "under_review"
	StatusClosed      Status = "closed"
	StatusVerified    Status = "verified"
)

var validStatus = map[Status]struct{}{
	StatusOpen:        {},
	StatusInProgress:  {},
	StatusCompleted:   {},
	StatusUnderReview: {},
	StatusClosed:      {},
	StatusVerified:    {},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validStatus[s]; !ok {
		return "", apperr.Validation("invalid NCR status %q", raw)
	}
	return s, nil
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusVerified
}

// ValidateTransition enforces the lifecycle: open is the entry point only,
// closed and verified are dead ends, everything else may move freely
// (including the under_review -> in_progress revision loop).
func ValidateTransition(from, to Status) error {
	if _, ok := validStatus[from]; !ok {
		return apperr.Validation("invalid NCR status %q", string(from))
	}
	if _, ok := validStatus[to]; !ok {
		return apperr.Validation("invalid NCR status %q", string(to))
	}
	if from == to {
		return nil
	}
	if from.Terminal() {
		return apperr.Conflict(fmt.Sprintf("NCR is %s and cannot change status", from))
	}
	if to == StatusOpen {
		return apperr.Conflict("NCR cannot return to open")
	}
	return nil
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityOffsetDays = map[Severity]int{
	SeverityCritical: 1,
	SeverityHigh:     3,
	SeverityMedium:   7,
	SeverityLow:      14,
}

func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := severityOffsetDays[s]; !ok {
		return "", apperr.Validation("invalid NCR severity %q", raw)
	}
	return s, nil
}

// DueDate derives the report deadline from severity at creation time. The
// result is fixed then; it is never recomputed when severity changes later.
func DueDate(createdAt time.Time, severity Severity) (time.Time, error) {
	days, ok := severityOffsetDays[severity]
	if !ok {
		return time.Time{}, apperr.Validation("invalid NCR severity %q", string(severity))
	}
	return createdAt.AddDate(0, 0, days), nil
}

// DefaultActionDescription is the body of the CAPA action auto-created when
// an NCR arrives with an assignee.
const DefaultActionDescription = "Investigate root cause and implement corrective measures"

type ActionType string

const (
	ActionImmediate    ActionType = "immediate"
	ActionCorrective   ActionType = "corrective"
	ActionPreventive   ActionType = "preventive"
	ActionVerification ActionType = "verification"
)

var validActionType = map[ActionType]struct{}{
	ActionImmediate:    {},
	ActionCorrective:   {},
	ActionPreventive:   {},
	ActionVerification: {},
}

func ParseActionType(raw string) (ActionType, error) {
	t := ActionType(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validActionType[t]; !ok {
		return "", apperr.Validation("invalid CAPA action type %q", raw)
	}
	return t, nil
}

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionVerified   ActionStatus = "verified"
	ActionCancelled  ActionStatus = "cancelled"
)

var validActionStatus = map[ActionStatus]struct{}{
	ActionPending:    {},
	ActionInProgress: {},
	ActionCompleted:  {},
	ActionVerified:   {},
	ActionCancelled:  {},
}

// ParseActionStatus validates a CAPA action status. Action lifecycles are
// deliberately independent of the parent NCR: closing a report does not close
// its open actions.
func ParseActionStatus(raw string) (ActionStatus, error) {
	s := ActionStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validActionStatus[s]; !ok {
		return "", apperr.Validation("invalid CAPA action status %q", raw)
	}
	return s, nil
}

var seqToken = regexp.MustCompile(`\{seq(?::(\d+))?\}`)

// BuildNumber formats an NCR number from {year} and {seq[:width]} tokens.
func BuildNumber(format string, year int, seq int64) string {
	if strings.TrimSpace(format) == "" {
		format = "NCR-{year}-{seq:04}"
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	out = seqToken.ReplaceAllStringFunc(out, func(token string) string {
		m := seqToken.FindStringSubmatch(token)
		if len(m) == 2 && m[1] != "" {
			width := 0
			_, _ = fmt.Sscanf(m[1], "%d", &width)
			if width > 0 {
				return fmt.Sprintf("%0*d", width, seq)
			}
		}
		return fmt.Sprintf("%d", seq)
	})
	return out
}
