// Package anomaly implements the sign-in anomaly rules and the orchestrator
// that merges their findings into one time-ordered list.
package anomaly

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1sec-project/breachline/internal/baseline"
	"github.com/1sec-project/breachline/internal/core"
	"github.com/google/uuid"
)

// Kind identifies the rule family that produced an anomaly.
type Kind string

const (
	KindImpossibleTravel   Kind = "IMPOSSIBLE_TRAVEL"
	KindLegacyAuthAbuse    Kind = "LEGACY_AUTH_ABUSE"
	KindCredentialStuffing Kind = "CREDENTIAL_STUFFING"
	KindHighRiskCountry    Kind = "HIGH_RISK_COUNTRY"
	KindForeignLogin       Kind = "FOREIGN_LOGIN"
)

// Anomaly is one finding. Anomalies are output-only values.
type Anomaly struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	UserID      string         `json:"user_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Severity    core.Severity  `json:"severity"`
	Description string         `json:"description"`
	Evidence    map[string]any `json:"evidence"`
	Source      *core.Location `json:"source,omitempty"`
	Dest        *core.Location `json:"dest,omitempty"`
	TimeDelta   time.Duration  `json:"time_delta,omitempty"`
	DistanceKm  float64        `json:"distance_km,omitempty"`
}

// Input is the event set a rule inspects. Baselines may be nil.
type Input struct {
	SignIns   []core.SignInEvent
	Legacy    []core.LegacyAuthEvent
	Baselines map[string]baseline.UserBaseline
}

// Rule is one independent detector.
type Rule interface {
	Name() string
	Detect(in Input) []Anomaly
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("breachline.anomaly"))

// anomalyID derives a stable ID from the kind, user and the parts that make
// the finding unique, so re-running detection yields identical IDs.
func anomalyID(kind Kind, user string, parts ...string) string {
	name := string(kind) + "\x00" + user + "\x00" + strings.Join(parts, "\x00")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

func nanos(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixNano())
}

// Sort orders anomalies by timestamp, then kind, user and ID.
func Sort(anomalies []Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := &anomalies[i], &anomalies[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.ID < b.ID
	})
}

// groupSignIns splits sign-ins by user, each slice chronologically sorted,
// and returns the user IDs in ascending order.
func groupSignIns(events []core.SignInEvent) ([]string, map[string][]core.SignInEvent) {
	byUser := make(map[string][]core.SignInEvent)
	for _, e := range events {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	users := make([]string, 0, len(byUser))
	for u, evs := range byUser {
		core.SortSignIns(evs)
		users = append(users, u)
	}
	sort.Strings(users)
	return users, byUser
}
