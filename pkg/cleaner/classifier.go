// pkg/cleaner/classifier.go
package cleaner

import (
	"errors"

	"github.com/David-Botos/signup-ingress/pkg/model"
	"github.com/David-Botos/signup-ingress/pkg/rules"
)

// Classifier decides whether a normalized row is admissible
type Classifier struct {
	rules *rules.Matcher
}

// NewClassifier creates a Classifier driven by the given rules
func NewClassifier(matcher *rules.Matcher) (*Classifier, error) {
	if matcher == nil {
		return nil, errors.New("rules matcher cannot be nil")
	}
	return &Classifier{rules: matcher}, nil
}

// Classify returns exactly one verdict per row. Checks run in a fixed order and
// the first match wins, so a quarantined row carries exactly one reason.
func (c *Classifier) Classify(rec model.NormalizedRecord) model.ClassificationResult {
	if reason, quarantined := c.reason(rec); quarantined {
		return model.QuarantinedResult(rec, reason)
	}
	return model.AdmissibleResult(rec)
}

func (c *Classifier) reason(rec model.NormalizedRecord) (model.Reason, bool) {
	switch {
	case rec.Email == model.EmailInvalid:
		return model.ReasonInvalidEmail, true
	// An empty name must report as missing, never reach the test-name check
	case rec.Email == "" || rec.Name == "" || rec.SignupDate == "":
		return model.ReasonMissingField, true
	case c.rules.IsTestName(rec.Name):
		return model.ReasonTestName, true
	case rec.SignupDate == model.DateUnparseable:
		return model.ReasonUnparseableDate, true
	case c.rules.IsPlaceholderEmail(rec.Email):
		return model.ReasonPlaceholder, true
	default:
		return "", false
	}
}
