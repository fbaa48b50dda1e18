package incident

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
)

// Confidence rates how far the attack-start date can be trusted.
type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

// AttackStart is the first sign-in attributed to the attacker.
type AttackStart struct {
	Date      time.Time `json:"date"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Country   string    `json:"country"`
	SourceIP  string    `json:"source_ip,omitempty"`
}

// IncidentTimeline is the reconstructed incident.
type IncidentTimeline struct {
	HomeCountry           string             `json:"home_country"`
	AttackStart           *AttackStart       `json:"attack_start,omitempty"`
	AttackStartConfidence Confidence         `json:"attack_start_confidence"`
	AttackStartNote       string             `json:"attack_start_note"`
	CleanBaselineDays     int                `json:"clean_baseline_days"`
	LogWindowStart        *time.Time         `json:"log_window_start,omitempty"`
	LogWindowEnd          *time.Time         `json:"log_window_end,omitempty"`
	FirstRemediationDate  *time.Time         `json:"first_remediation_date,omitempty"`
	DetectionDate         *time.Time         `json:"detection_date,omitempty"`
	DwellTimeDays         *int               `json:"dwell_time_days,omitempty"`
	Phases                []core.Phase       `json:"phases"`
	Remediation           RemediationSummary `json:"remediation"`
	RemediationEvents     []RemediationEvent `json:"remediation_events"`
	AttackerCountries     []string           `json:"attacker_countries"`
	ForeignSignIns        int                `json:"foreign_sign_ins"`
	AffectedUsers         []string           `json:"affected_users"`
}

// Options configures reconstruction. An empty HomeCountry is inferred from
// the baselines.
type Options struct {
	HomeCountry      string
	ExcludeCountries []string
	BulkThreshold    int
}

// OptionsFromConfig extracts reconstruction options from the analysis config.
func OptionsFromConfig(cfg core.AnalysisConfig) Options {
	return Options{
		HomeCountry:      cfg.HomeCountry,
		ExcludeCountries: cfg.ExcludeCountriesFromAttackStart,
		BulkThreshold:    cfg.BulkRemediationThreshold,
	}
}

// Input is the evidence the reconstructor works from.
type Input struct {
	SignIns   []core.SignInEvent
	Audits    []core.AuditEvent
	Baselines map[string]baseline.UserBaseline
}

// DetectAttackStart returns the earliest sign-in whose country is neither
// home nor excluded. Sign-ins without a country never qualify.
func DetectAttackStart(signIns []core.SignInEvent, home string, exclude []string) *AttackStart {
	allowed := core.CountrySet(exclude)
	allowed[strings.ToUpper(home)] = true

	var first *core.SignInEvent
	for i := range signIns {
		e := &signIns[i]
		c, ok := e.Country()
		if !ok || allowed[c] {
			continue
		}
		if first == nil || e.Timestamp.Before(first.Timestamp) ||
			(e.Timestamp.Equal(first.Timestamp) && e.UserID < first.UserID) {
			first = e
		}
	}
	if first == nil {
		return nil
	}
	country, _ := first.Country()
	return &AttackStart{
		Date:      core.Day(first.Timestamp),
		Timestamp: first.Timestamp,
		UserID:    first.UserID,
		Country:   country,
		SourceIP:  first.SourceIP,
	}
}

// Build composes attack start, remediation and the confidence model into an
// IncidentTimeline.
func Build(in Input, opts Options) IncidentTimeline {
	home := strings.ToUpper(strings.TrimSpace(opts.HomeCountry))
	if home == "" {
		home = baseline.HomeCountry(in.Baselines)
	}

	it := IncidentTimeline{
		HomeCountry:       home,
		Phases:            []core.Phase{},
		AttackerCountries: []string{},
		AffectedUsers:     []string{},
	}

	if len(in.SignIns) > 0 {
		start, end := in.SignIns[0].Timestamp, in.SignIns[0].Timestamp
		for _, e := range in.SignIns[1:] {
			if e.Timestamp.Before(start) {
				start = e.Timestamp
			}
			if e.Timestamp.After(end) {
				end = e.Timestamp
			}
		}
		it.LogWindowStart, it.LogWindowEnd = &start, &end
	}

	it.RemediationEvents = DetectRemediationEvents(in.Audits)
	it.Remediation = SummarizeRemediation(it.RemediationEvents, opts.BulkThreshold)
	it.FirstRemediationDate = it.Remediation.FirstRemediationDate
	it.DetectionDate = it.Remediation.RemediationDate

	if home != "" {
		it.AttackStart = DetectAttackStart(in.SignIns, home, opts.ExcludeCountries)
		it.collectForeign(in.SignIns, opts.ExcludeCountries)
	}

	it.rateConfidence()

	if it.AttackStart != nil && it.DetectionDate != nil {
		dwell := core.DaysBetween(it.AttackStart.Date, *it.DetectionDate)
		it.DwellTimeDays = &dwell
	}

	it.Phases = it.phases()
	return it
}

func (it *IncidentTimeline) collectForeign(signIns []core.SignInEvent, exclude []string) {
	allowed := core.CountrySet(exclude)
	allowed[it.HomeCountry] = true
	countries := map[string]bool{}
	users := map[string]bool{}
	for i := range signIns {
		c, ok := signIns[i].Country()
		if !ok || allowed[c] {
			continue
		}
		it.ForeignSignIns++
		countries[c] = true
		users[signIns[i].UserID] = true
	}
	for c := range countries {
		it.AttackerCountries = append(it.AttackerCountries, c)
	}
	for u := range users {
		it.AffectedUsers = append(it.AffectedUsers, u)
	}
	sort.Strings(it.AttackerCountries)
	sort.Strings(it.AffectedUsers)
}

func (it *IncidentTimeline) rateConfidence() {
	switch {
	case it.HomeCountry == "":
		it.AttackStartConfidence = ConfidenceUnknown
		it.AttackStartNote = "Home country could not be established - attack start not assessed"
		return
	case it.AttackStart == nil:
		it.AttackStartConfidence = ConfidenceUnknown
		it.AttackStartNote = "No sign-in from outside " + it.HomeCountry + " or the excluded countries"
		return
	}

	it.CleanBaselineDays = core.DaysBetween(*it.LogWindowStart, it.AttackStart.Date)
	switch n := it.CleanBaselineDays; {
	case n >= 3:
		it.AttackStartConfidence = ConfidenceHigh
		it.AttackStartNote = fmt.Sprintf("Confirmed - %d days clean baseline precede the breach", n)
	case n == 2:
		it.AttackStartConfidence = ConfidenceMedium
		it.AttackStartNote = "Limited baseline - only 2 days of clean activity precede the breach"
	default:
		it.AttackStartConfidence = ConfidenceLow
		it.AttackStartNote = "Breach predates or is at the edge of available logs - true start may be earlier"
	}
}

func (it *IncidentTimeline) phases() []core.Phase {
	phases := []core.Phase{}
	if it.AttackStart != nil {
		phases = append(phases, core.PhaseInitialAccess)
	}
	if it.ForeignSignIns > 1 {
		phases = append(phases, core.PhaseActiveAttack)
	}
	if it.DetectionDate != nil {
		phases = append(phases, core.PhaseDetection)
	}
	if len(it.RemediationEvents) > 0 {
		phases = append(phases, core.PhaseContainment)
	}
	if it.DetectionDate != nil && it.LogWindowEnd != nil && core.Day(*it.LogWindowEnd).After(*it.DetectionDate) {
		phases = append(phases, core.PhasePostIncident)
	}
	return phases
}

// Field is one labelled line of an incident summary.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Summary renders the incident as labelled lines for reports.
func (it *IncidentTimeline) Summary() []Field {
	date := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(dayLayout)
	}
	start, startUser := "-", "-"
	if it.AttackStart != nil {
		start = it.AttackStart.Timestamp.Format(time.RFC3339) + " (" + it.AttackStart.Country + ")"
		startUser = it.AttackStart.UserID
	}
	dwell := "-"
	if it.DwellTimeDays != nil {
		dwell = fmt.Sprintf("%d days", *it.DwellTimeDays)
	}
	phases := make([]string, len(it.Phases))
	for i, p := range it.Phases {
		phases[i] = string(p)
	}
	home := it.HomeCountry
	if home == "" {
		home = "-"
	}

	return []Field{
		{"Home country", home},
		{"Log window", date(it.LogWindowStart) + " to " + date(it.LogWindowEnd)},
		{"Attack start", start},
		{"First compromised user", startUser},
		{"Confidence", string(it.AttackStartConfidence)},
		{"Confidence note", it.AttackStartNote},
		{"Clean baseline", fmt.Sprintf("%d days", it.CleanBaselineDays)},
		{"First remediation", date(it.FirstRemediationDate)},
		{"Detection (bulk remediation)", date(it.DetectionDate)},
		{"Dwell time", dwell},
		{"Foreign sign-ins", fmt.Sprintf("%d", it.ForeignSignIns)},
		{"Attacker countries", joinOrDash(it.AttackerCountries)},
		{"Phases", joinOrDash(phases)},
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
