// Package incident reconstructs the incident timeline: attack start,
// remediation response, dwell time and the confidence of the start date.
package incident

import (
	"sort"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/core"
)

// RemediationType classifies a containment action.
type RemediationType string

const (
	TokenRevoke    RemediationType = "TOKEN_REVOKE"
	PasswordReset  RemediationType = "PASSWORD_RESET"
	PasswordChange RemediationType = "PASSWORD_CHANGE"
	MFAReset       RemediationType = "MFA_RESET"
	AccountDisable RemediationType = "ACCOUNT_DISABLE"
	AccountEnable  RemediationType = "ACCOUNT_ENABLE"
)

// remediationActivities maps lower-cased audit activity names to types.
var remediationActivities = map[string]RemediationType{
	"invalidate all refresh tokens for a user": TokenRevoke,
	"revoke all refresh tokens for a user":     TokenRevoke,
	"revoke user sessions":                     TokenRevoke,
	"revoke sign-in sessions":                  TokenRevoke,

	"reset user password":            PasswordReset,
	"reset password (by admin)":      PasswordReset,
	"reset password (self-service)":  PasswordReset,
	"change user password":           PasswordChange,
	"change password (self-service)": PasswordChange,

	"reset mfa":                       MFAReset,
	"admin deleted security info":     MFAReset,
	"delete authentication method":    MFAReset,
	"require user to re-register mfa": MFAReset,

	"disable account": AccountDisable,
	"enable account":  AccountEnable,
}

// RemediationEvent is an audit action recognised as a containment signal.
type RemediationEvent struct {
	Timestamp   time.Time       `json:"timestamp"`
	Type        RemediationType `json:"type"`
	Activity    string          `json:"activity"`
	TargetUser  string          `json:"target_user,omitempty"`
	InitiatedBy string          `json:"initiated_by,omitempty"`
}

// ClassifyActivity returns the remediation type of an activity name.
func ClassifyActivity(activity string) (RemediationType, bool) {
	t, ok := remediationActivities[strings.ToLower(strings.TrimSpace(activity))]
	return t, ok
}

// DetectRemediationEvents picks the remediation actions out of audits, in
// time order. Unrecognised activities and failed actions are ignored.
func DetectRemediationEvents(audits []core.AuditEvent) []RemediationEvent {
	out := []RemediationEvent{}
	for i := range audits {
		a := &audits[i]
		t, ok := ClassifyActivity(a.Activity)
		if !ok || !a.Succeeded() {
			continue
		}
		out = append(out, RemediationEvent{
			Timestamp:   a.Timestamp,
			Type:        t,
			Activity:    a.Activity,
			TargetUser:  a.TargetUser,
			InitiatedBy: a.InitiatedBy,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// RemediationSummary groups remediation events by UTC calendar day.
type RemediationSummary struct {
	TotalEvents          int            `json:"total_events"`
	ByDay                map[string]int `json:"by_day"`
	ByType               map[string]int `json:"by_type"`
	AffectedUsers        []string       `json:"affected_users"`
	FirstRemediationDate *time.Time     `json:"first_remediation_date,omitempty"`
	RemediationDate      *time.Time     `json:"remediation_date,omitempty"`
	PeakCount            int            `json:"peak_count"`
	IsBulk               bool           `json:"is_bulk"`
}

const dayLayout = "2006-01-02"

// SummarizeRemediation builds the per-day view. RemediationDate is the day
// with the most events; on a tie the earliest such day wins. IsBulk is set
// when that day reaches bulkThreshold events.
func SummarizeRemediation(events []RemediationEvent, bulkThreshold int) RemediationSummary {
	s := RemediationSummary{
		TotalEvents:   len(events),
		ByDay:         map[string]int{},
		ByType:        map[string]int{},
		AffectedUsers: []string{},
	}
	if len(events) == 0 {
		return s
	}

	users := map[string]bool{}
	var first time.Time
	for _, e := range events {
		day := core.Day(e.Timestamp)
		s.ByDay[day.Format(dayLayout)]++
		s.ByType[string(e.Type)]++
		if e.TargetUser != "" {
			users[e.TargetUser] = true
		}
		if first.IsZero() || day.Before(first) {
			first = day
		}
	}
	s.FirstRemediationDate = &first

	days := make([]string, 0, len(s.ByDay))
	for d := range s.ByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	peakDay := days[0]
	for _, d := range days[1:] {
		if s.ByDay[d] > s.ByDay[peakDay] {
			peakDay = d
		}
	}
	peak, _ := time.Parse(dayLayout, peakDay)
	s.RemediationDate = &peak
	s.PeakCount = s.ByDay[peakDay]
	s.IsBulk = bulkThreshold > 0 && s.PeakCount >= bulkThreshold

	for u := range users {
		s.AffectedUsers = append(s.AffectedUsers, u)
	}
	sort.Strings(s.AffectedUsers)
	return s
}
