package core

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Severity represents the severity level of an anomaly or finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a name such as "HIGH" into a Severity.
// Unknown names map to SeverityInfo.
func ParseSeverity(name string) Severity {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	case "CRITICAL":
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// Phase is a coarse intrusion-lifecycle stage.
type Phase string

const (
	PhaseInitialAccess Phase = "INITIAL_ACCESS"
	PhasePersistence   Phase = "PERSISTENCE"
	PhaseCollection    Phase = "COLLECTION"
	PhaseActiveAttack  Phase = "ACTIVE_ATTACK"
	PhaseDetection     Phase = "DETECTION"
	PhaseContainment   Phase = "CONTAINMENT"
	PhasePostIncident  Phase = "POST_INCIDENT"
)

// Location is the reported geography of an event. An event whose geography
// is unknown carries a nil *Location rather than empty strings.
type Location struct {
	City    string `json:"city,omitempty"`
	Country string `json:"country"`
}

// NewLocation returns nil when country is blank, so callers never hold a
// Location without a country.
func NewLocation(city, country string) *Location {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		return nil
	}
	return &Location{City: strings.TrimSpace(city), Country: country}
}

// SameAs reports whether two locations name the same (city, country) pair,
// ignoring case and surrounding whitespace.
func (l *Location) SameAs(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return strings.EqualFold(strings.TrimSpace(l.City), strings.TrimSpace(other.City)) &&
		strings.EqualFold(l.Country, other.Country)
}

func (l *Location) String() string {
	if l == nil {
		return "unknown"
	}
	if l.City == "" {
		return l.Country
	}
	return l.City + ", " + l.Country
}

// Status is a sign-in result as exported plus its normalized outcome.
type Status struct {
	Raw       string `json:"raw,omitempty"`
	Succeeded bool   `json:"succeeded"`
}

// SignInEvent is one interactive sign-in from the identity provider export.
type SignInEvent struct {
	ID                      string    `json:"id,omitempty"`
	Timestamp               time.Time `json:"timestamp"`
	UserID                  string    `json:"user_id"`
	DisplayName             string    `json:"display_name,omitempty"`
	App                     string    `json:"app,omitempty"`
	SourceIP                string    `json:"source_ip,omitempty"`
	Location                *Location `json:"location,omitempty"`
	Device                  string    `json:"device,omitempty"`
	Browser                 string    `json:"browser,omitempty"`
	OS                      string    `json:"os,omitempty"`
	Status                  Status    `json:"status"`
	RiskLevel               string    `json:"risk_level,omitempty"`
	RiskState               string    `json:"risk_state,omitempty"`
	RiskDetail              string    `json:"risk_detail,omitempty"`
	ConditionalAccessStatus string    `json:"conditional_access_status,omitempty"`
}

// Country returns the event's country and whether it is known.
func (e *SignInEvent) Country() (string, bool) {
	if e.Location == nil || e.Location.Country == "" {
		return "", false
	}
	return e.Location.Country, true
}

// Key returns the dedup identity of the sign-in.
func (e *SignInEvent) Key() EventKey {
	return EventKey{
		Timestamp: e.Timestamp.UnixNano(),
		UserID:    e.UserID,
		SourceIP:  e.SourceIP,
		Channel:   e.App,
	}
}

// LegacyAuthEvent is an authentication over a pre-modern-auth protocol
// (IMAP, POP3, basic-auth SMTP). These cannot enforce MFA.
type LegacyAuthEvent struct {
	SignInEvent
	ClientProtocol string `json:"client_protocol"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

// Key returns the dedup identity, with the protocol standing in for the app.
func (e *LegacyAuthEvent) Key() EventKey {
	k := e.SignInEvent.Key()
	k.Channel = e.ClientProtocol
	return k
}

// AuditEvent is one directory/audit action.
type AuditEvent struct {
	ID           string    `json:"id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Activity     string    `json:"activity"`
	InitiatedBy  string    `json:"initiated_by,omitempty"`
	TargetUser   string    `json:"target_user,omitempty"`
	Result       string    `json:"result,omitempty"`
	ResultReason string    `json:"result_reason,omitempty"`
}

// Key returns the dedup identity of the audit record.
func (e *AuditEvent) Key() EventKey {
	return EventKey{
		Timestamp: e.Timestamp.UnixNano(),
		UserID:    e.TargetUser,
		SourceIP:  e.InitiatedBy,
		Channel:   e.Activity,
	}
}

// Succeeded reports whether the audit action completed. An empty result is
// treated as success since many exports omit it for successful operations.
func (e *AuditEvent) Succeeded() bool {
	r := strings.ToLower(strings.TrimSpace(e.Result))
	return r == "" || r == "success" || r == "succeeded"
}

// MailboxEvent is one mailbox audit operation (rule changes, item access).
type MailboxEvent struct {
	ID        string            `json:"id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id"`
	Operation string            `json:"operation"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Location  *Location         `json:"location,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Key returns the dedup identity of the mailbox operation.
func (e *MailboxEvent) Key() EventKey {
	return EventKey{
		Timestamp: e.Timestamp.UnixNano(),
		UserID:    e.UserID,
		SourceIP:  e.ClientIP,
		Channel:   e.Operation,
	}
}

// SortSignIns orders sign-ins chronologically. Equal timestamps are ordered
// by user, IP, app and location so the result does not depend on input order.
func SortSignIns(events []SignInEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return signInLess(&events[i], &events[j])
	})
}

// SortLegacy orders legacy-auth events the same way as SortSignIns, with the
// protocol as a final tiebreak.
func SortLegacy(events []LegacyAuthEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if !a.Timestamp.Equal(b.Timestamp) || a.UserID != b.UserID || a.SourceIP != b.SourceIP {
			return signInLess(&a.SignInEvent, &b.SignInEvent)
		}
		if a.ClientProtocol != b.ClientProtocol {
			return a.ClientProtocol < b.ClientProtocol
		}
		return signInLess(&a.SignInEvent, &b.SignInEvent)
	})
}

func signInLess(a, b *SignInEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}
	if a.SourceIP != b.SourceIP {
		return a.SourceIP < b.SourceIP
	}
	if a.App != b.App {
		return a.App < b.App
	}
	return a.Location.String() < b.Location.String()
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b (UTC).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Dataset is one tenant's exported evidence.
type Dataset struct {
	SignIns []SignInEvent     `json:"sign_ins"`
	Legacy  []LegacyAuthEvent `json:"legacy"`
	Audits  []AuditEvent      `json:"audits"`
	Mailbox []MailboxEvent    `json:"mailbox"`
}

// Size returns the total number of events across all streams.
func (d *Dataset) Size() int {
	if d == nil {
		return 0
	}
	return len(d.SignIns) + len(d.Legacy) + len(d.Audits) + len(d.Mailbox)
}

// Normalize deduplicates every stream and sorts sign-ins and legacy events.
func (d *Dataset) Normalize() {
	d.SignIns = Dedup(d.SignIns)
	d.Legacy = Dedup(d.Legacy)
	d.Audits = Dedup(d.Audits)
	d.Mailbox = Dedup(d.Mailbox)
	SortSignIns(d.SignIns)
	SortLegacy(d.Legacy)
}
