package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/core"
)

// Stream identifies one exported event stream.
type Stream string

const (
	StreamSignIn  Stream = "signin"
	StreamLegacy  Stream = "legacy"
	StreamAudit   Stream = "audit"
	StreamMailbox Stream = "mailbox"
)

// Streams lists every stream in load order.
var Streams = []Stream{StreamSignIn, StreamLegacy, StreamAudit, StreamMailbox}

type signInRow struct {
	ID                      string `json:"id"`
	Timestamp               string `json:"timestamp"`
	UserID                  string `json:"user_id"`
	DisplayName             string `json:"display_name"`
	App                     string `json:"app"`
	SourceIP                string `json:"source_ip"`
	City                    string `json:"city"`
	Country                 string `json:"country"`
	Device                  string `json:"device"`
	Browser                 string `json:"browser"`
	OS                      string `json:"os"`
	Status                  any    `json:"status"`
	RiskLevel               string `json:"risk_level"`
	RiskState               string `json:"risk_state"`
	RiskDetail              string `json:"risk_detail"`
	ConditionalAccessStatus string `json:"conditional_access_status"`
}

type legacyRow struct {
	signInRow
	ClientProtocol string `json:"client_protocol"`
	FailureReason  string `json:"failure_reason"`
}

type auditRow struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Activity     string `json:"activity"`
	InitiatedBy  string `json:"initiated_by"`
	TargetUser   string `json:"target_user"`
	Result       string `json:"result"`
	ResultReason string `json:"result_reason"`
}

type mailboxRow struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	UserID    string         `json:"user_id"`
	Operation string         `json:"operation"`
	ClientIP  string         `json:"client_ip"`
	City      string         `json:"city"`
	Country   string         `json:"country"`
	Details   map[string]any `json:"details"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts RFC 3339 and zone-less ISO forms. Zone-less
// values are taken as UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// normalizeStatus maps the exported status column to a success flag.
// Numeric codes follow the identity provider convention of 0 = success.
func normalizeStatus(v any) core.Status {
	switch s := v.(type) {
	case nil:
		return core.Status{}
	case bool:
		return core.Status{Raw: strconv.FormatBool(s), Succeeded: s}
	case float64:
		return core.Status{Raw: strconv.FormatFloat(s, 'f', -1, 64), Succeeded: s == 0}
	case string:
		raw := strings.TrimSpace(s)
		switch strings.ToLower(raw) {
		case "success", "succeeded", "successful", "ok", "0", "true":
			return core.Status{Raw: raw, Succeeded: true}
		}
		return core.Status{Raw: raw}
	default:
		return core.Status{Raw: fmt.Sprint(s)}
	}
}

func (r *signInRow) event() (core.SignInEvent, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return core.SignInEvent{}, err
	}
	return core.SignInEvent{
		ID:                      r.ID,
		Timestamp:               ts,
		UserID:                  strings.TrimSpace(r.UserID),
		DisplayName:             r.DisplayName,
		App:                     r.App,
		SourceIP:                strings.TrimSpace(r.SourceIP),
		Location:                core.NewLocation(r.City, r.Country),
		Device:                  r.Device,
		Browser:                 r.Browser,
		OS:                      r.OS,
		Status:                  normalizeStatus(r.Status),
		RiskLevel:               r.RiskLevel,
		RiskState:               r.RiskState,
		RiskDetail:              r.RiskDetail,
		ConditionalAccessStatus: r.ConditionalAccessStatus,
	}, nil
}

func (r *legacyRow) event() (core.LegacyAuthEvent, error) {
	base, err := r.signInRow.event()
	if err != nil {
		return core.LegacyAuthEvent{}, err
	}
	return core.LegacyAuthEvent{
		SignInEvent:    base,
		ClientProtocol: strings.ToUpper(strings.TrimSpace(r.ClientProtocol)),
		FailureReason:  r.FailureReason,
	}, nil
}

func (r *auditRow) event() (core.AuditEvent, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return core.AuditEvent{}, err
	}
	return core.AuditEvent{
		ID:           r.ID,
		Timestamp:    ts,
		Activity:     strings.TrimSpace(r.Activity),
		InitiatedBy:  r.InitiatedBy,
		TargetUser:   strings.TrimSpace(r.TargetUser),
		Result:       r.Result,
		ResultReason: r.ResultReason,
	}, nil
}

func (r *mailboxRow) event() (core.MailboxEvent, error) {
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return core.MailboxEvent{}, err
	}
	var details map[string]string
	if len(r.Details) > 0 {
		details = make(map[string]string, len(r.Details))
		for k, v := range r.Details {
			details[k] = fmt.Sprint(v)
		}
	}
	return core.MailboxEvent{
		ID:        r.ID,
		Timestamp: ts,
		UserID:    strings.TrimSpace(r.UserID),
		Operation: strings.TrimSpace(r.Operation),
		ClientIP:  strings.TrimSpace(r.ClientIP),
		Location:  core.NewLocation(r.City, r.Country),
		Details:   details,
	}, nil
}
