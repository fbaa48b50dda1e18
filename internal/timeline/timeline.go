// Package timeline merges sign-in, audit and mailbox streams into one
// chronological narrative, links related events and assigns attack phases.
package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/core"
	"github.com/google/uuid"
)

// SourceType names the stream an event came from.
type SourceType string

const (
	SourceSignIn  SourceType = "signin"
	SourceAudit   SourceType = "audit"
	SourceMailbox SourceType = "mailbox"
)

func (s SourceType) rank() int {
	switch s {
	case SourceSignIn:
		return 0
	case SourceAudit:
		return 1
	default:
		return 2
	}
}

// Event is one entry in the merged timeline. RelatedEvents holds IDs of
// earlier events only; it never owns them.
type Event struct {
	ID            string            `json:"id"`
	Index         int               `json:"index"`
	Timestamp     time.Time         `json:"timestamp"`
	UserID        string            `json:"user_id"`
	Action        string            `json:"action"`
	SourceType    SourceType        `json:"source_type"`
	Country       string            `json:"country,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Succeeded     bool              `json:"succeeded"`
	Details       map[string]string `json:"details,omitempty"`
	Phase         core.Phase        `json:"phase,omitempty"`
	PhaseRule     string            `json:"phase_rule,omitempty"`
	RelatedEvents []string          `json:"related_events,omitempty"`
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("breachline.timeline"))

func eventID(src SourceType, k core.EventKey) string {
	name := fmt.Sprintf("%s\x00%d\x00%s\x00%s\x00%s", src, k.Timestamp, k.UserID, k.SourceIP, k.Channel)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Build merges the three streams into one timeline ordered by timestamp.
// Events at the same instant are ordered sign-in, audit, mailbox, then by
// their position in the input.
func Build(signIns []core.SignInEvent, audits []core.AuditEvent, mailbox []core.MailboxEvent) []Event {
	out := make([]Event, 0, len(signIns)+len(audits)+len(mailbox))

	for i := range signIns {
		e := &signIns[i]
		country, _ := e.Country()
		details := map[string]string{"app": e.App}
		if e.Status.Raw != "" {
			details["status"] = e.Status.Raw
		}
		if e.Device != "" {
			details["device"] = e.Device
		}
		if e.Location != nil && e.Location.City != "" {
			details["city"] = e.Location.City
		}
		out = append(out, Event{
			ID:         eventID(SourceSignIn, e.Key()),
			Timestamp:  e.Timestamp,
			UserID:     e.UserID,
			Action:     signInAction(e),
			SourceType: SourceSignIn,
			Country:    country,
			IP:         e.SourceIP,
			Succeeded:  e.Status.Succeeded,
			Details:    details,
		})
	}

	for i := range audits {
		e := &audits[i]
		details := map[string]string{}
		if e.InitiatedBy != "" {
			details["initiated_by"] = e.InitiatedBy
		}
		if e.Result != "" {
			details["result"] = e.Result
		}
		if e.ResultReason != "" {
			details["result_reason"] = e.ResultReason
		}
		out = append(out, Event{
			ID:         eventID(SourceAudit, e.Key()),
			Timestamp:  e.Timestamp,
			UserID:     e.TargetUser,
			Action:     e.Activity,
			SourceType: SourceAudit,
			Succeeded:  e.Succeeded(),
			Details:    details,
		})
	}

	for i := range mailbox {
		e := &mailbox[i]
		var country string
		if e.Location != nil {
			country = e.Location.Country
		}
		details := make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		out = append(out, Event{
			ID:         eventID(SourceMailbox, e.Key()),
			Timestamp:  e.Timestamp,
			UserID:     e.UserID,
			Action:     e.Operation,
			SourceType: SourceMailbox,
			Country:    country,
			IP:         e.ClientIP,
			Succeeded:  true,
			Details:    details,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SourceType.rank() < out[j].SourceType.rank()
	})
	for i := range out {
		out[i].Index = i
	}
	return out
}

func signInAction(e *core.SignInEvent) string {
	outcome := "failed"
	if e.Status.Succeeded {
		outcome = "succeeded"
	}
	if e.App == "" {
		return "Sign-in " + outcome
	}
	return fmt.Sprintf("Sign-in to %s %s", e.App, outcome)
}

// Correlate returns a copy of timeline in which every event lists the IDs of
// earlier events from a different stream for the same user within window.
// The input must be ordered as Build returns it.
func Correlate(timeline []Event, window time.Duration) []Event {
	out := clone(timeline)
	for i := range out {
		if out[i].UserID == "" {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].Timestamp.Sub(out[i].Timestamp) > window {
				break
			}
			if out[j].SourceType == out[i].SourceType || !strings.EqualFold(out[j].UserID, out[i].UserID) {
				continue
			}
			out[j].RelatedEvents = append(out[j].RelatedEvents, out[i].ID)
		}
	}
	return out
}

// Filter selects timeline events. Zero values are unbounded.
type Filter struct {
	UserID string
	From   time.Time
	To     time.Time
}

// Apply returns the events matching f. From and To are inclusive.
func (f Filter) Apply(timeline []Event) []Event {
	out := []Event{}
	for _, e := range timeline {
		if f.UserID != "" && !strings.EqualFold(e.UserID, f.UserID) {
			continue
		}
		if !f.From.IsZero() && e.Timestamp.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && e.Timestamp.After(f.To) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Summary counts timeline events for reporting.
type Summary struct {
	Total      int            `json:"total"`
	BySource   map[string]int `json:"by_source"`
	ByPhase    map[string]int `json:"by_phase"`
	Users      int            `json:"users"`
	Correlated int            `json:"correlated"`
	Start      time.Time      `json:"start,omitempty"`
	End        time.Time      `json:"end,omitempty"`
}

func Summarize(timeline []Event) Summary {
	s := Summary{
		Total:    len(timeline),
		BySource: map[string]int{},
		ByPhase:  map[string]int{},
	}
	users := map[string]bool{}
	for _, e := range timeline {
		s.BySource[string(e.SourceType)]++
		if e.Phase != "" {
			s.ByPhase[string(e.Phase)]++
		}
		if e.UserID != "" {
			users[strings.ToLower(e.UserID)] = true
		}
		if len(e.RelatedEvents) > 0 {
			s.Correlated++
		}
	}
	s.Users = len(users)
	if len(timeline) > 0 {
		s.Start = timeline[0].Timestamp
		s.End = timeline[len(timeline)-1].Timestamp
	}
	return s
}

func clone(timeline []Event) []Event {
	out := make([]Event, len(timeline))
	copy(out, timeline)
	for i := range out {
		if out[i].RelatedEvents != nil {
			out[i].RelatedEvents = append([]string(nil), out[i].RelatedEvents...)
		}
	}
	return out
}

// ParseBound parses a filter bound given as RFC 3339 or as a bare date. A
// bare date used as an upper bound covers the whole day.
func ParseBound(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	if upper {
		d = d.Add(24*time.Hour - time.Nanosecond)
	}
	return d, nil
}
