// Package intent maps a user message to one label of a fixed set, using
// pattern rules first and a text generation provider as fallback.
package intent

import "strings"

// Label is an intent label.
type Label string

// Intent labels.
const (
	Question        Label = "question"
	Greeting        Label = "greeting"
	Farewell        Label = "farewell"
	Command         Label = "command"
	Request         Label = "request"
	Information     Label = "information"
	Opinion         Label = "opinion"
	Philosophical   Label = "philosophical"
	Reflection      Label = "reflection"
	Emotional       Label = "emotional"
	IdentityProbe   Label = "identity_probe"
	CreativeRequest Label = "creative_request"
	Omega           Label = "omega"
	Unknown         Label = "unknown"
	Comparison      Label = "comparison"
	Complaint       Label = "complaint"
	Correction      Label = "correction"
	Learning        Label = "learning"
	Planning        Label = "planning"
	Social          Label = "social"
	TechnicalHelp   Label = "technical_help"
	Translation     Label = "translation"
)

var all = []Label{
	Question, Greeting, Farewell, Command, Request, Information, Opinion,
	Philosophical, Reflection, Emotional, IdentityProbe, CreativeRequest,
	Omega, Unknown, Comparison, Complaint, Correction, Learning, Planning,
	Social, TechnicalHelp, Translation,
}

var valid = func() map[Label]bool {
	m := make(map[Label]bool, len(all))
	for _, l := range all {
		m[l] = true
	}
	return m
}()

// All returns every label.
func All() []Label {
	return append([]Label(nil), all...)
}

// Valid reports whether l belongs to the label set.
func (l Label) Valid() bool {
	return valid[l]
}

func (l Label) String() string {
	return string(l)
}

// Parse normalises raw (case, surrounding quotes and punctuation, a
// trailing explanation) and returns the label, or Unknown and false when
// raw is not a label.
func Parse(raw string) (Label, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	s = strings.Trim(s, "\"'`.,:;!*")
	s = strings.ReplaceAll(s, "-", "_")

	l := Label(s)
	if !l.Valid() {
		return Unknown, false
	}
	return l, true
}
