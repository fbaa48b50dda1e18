package timeline

import (
	"strings"

	"github.com/1sec-project/breachline/internal/core"
)

// PhaseRule assigns a phase to events it matches. Rules are evaluated in
// order and the first match wins.
type PhaseRule struct {
	Name    string
	Phase   core.Phase
	Sources []SourceType
	// Keywords are matched against the action with case, spaces, hyphens
	// and underscores removed. Empty means the rule's Match decides alone.
	Keywords []string
	Match    func(e *Event, home string) bool
}

// DefaultPhaseRules is the shipped classifier.
var DefaultPhaseRules = []PhaseRule{
	{
		Name:    "foreign_signin",
		Phase:   core.PhaseInitialAccess,
		Sources: []SourceType{SourceSignIn},
		Match: func(e *Event, home string) bool {
			return e.Country != "" && !strings.EqualFold(e.Country, home)
		},
	},
	{
		Name:    "inbox_rule_or_forwarding",
		Phase:   core.PhasePersistence,
		Sources: []SourceType{SourceAudit, SourceMailbox},
		Keywords: []string{
			"inboxrule", "inboxrules", "forwarding", "forwardto", "redirectto",
			"transportrule", "deliverytomailboxandforward", "setmailbox",
		},
	},
	{
		Name:    "mailbox_access",
		Phase:   core.PhaseCollection,
		Sources: []SourceType{SourceMailbox},
		Keywords: []string{
			"mailitemsaccessed", "mailboxlogin", "messagebind", "folderbind",
			"searchqueryinitiated", "fileaccessed", "filedownloaded", "exportmailbox",
		},
	},
	{
		Name:    "credential_or_policy_reset",
		Phase:   core.PhaseContainment,
		Sources: []SourceType{SourceAudit},
		Keywords: []string{
			"resetpassword", "resetuserpassword", "changepassword", "changeuserpassword",
			"revoke", "invalidateallrefreshtokens", "conditionalaccess", "disableaccount",
			"blocksignin", "deleteauthenticationmethod", "resetmfa",
		},
	},
}

func normalizeAction(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(s))
}

func (r *PhaseRule) matches(e *Event, home string) bool {
	sourceOK := len(r.Sources) == 0
	for _, s := range r.Sources {
		if s == e.SourceType {
			sourceOK = true
			break
		}
	}
	if !sourceOK {
		return false
	}
	if r.Match != nil && !r.Match(e, home) {
		return false
	}
	if len(r.Keywords) == 0 {
		return r.Match != nil
	}
	action := normalizeAction(e.Action)
	for _, kw := range r.Keywords {
		if strings.Contains(action, kw) {
			return true
		}
	}
	return false
}

// DetectAttackPhases returns a copy of timeline with Phase and PhaseRule set
// from DefaultPhaseRules. Events no rule matches have no phase.
func DetectAttackPhases(timeline []Event, homeCountry string) []Event {
	return ClassifyPhases(timeline, homeCountry, DefaultPhaseRules)
}

// ClassifyPhases is DetectAttackPhases over an explicit rule list.
func ClassifyPhases(timeline []Event, homeCountry string, rules []PhaseRule) []Event {
	out := clone(timeline)
	for i := range out {
		out[i].Phase, out[i].PhaseRule = "", ""
		for ri := range rules {
			if rules[ri].matches(&out[i], homeCountry) {
				out[i].Phase = rules[ri].Phase
				out[i].PhaseRule = rules[ri].Name
				break
			}
		}
	}
	return out
}
