// pkg/cleaner/operations.go
package cleaner

import (
	"strings"
	"unicode"

	"github.com/David-Botos/signup-ingress/pkg/model"
)

// isWellFormedEmail applies the structural email check:
// exactly one '@', non-empty local and domain parts, a '.' inside the domain
// that is not its first or last character, and no whitespace anywhere
func isWellFormedEmail(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}

	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return false
	}

	dot := strings.Index(domain, ".")
	if dot < 0 {
		return false
	}
	return !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// changeOperation records a field change when the value actually moved
func changeOperation(
	raw model.RawRecord,
	column, original, cleaned, operation, reason string,
) *model.CleaningOperation {
	if original == cleaned {
		return nil
	}
	return &model.CleaningOperation{
		Line:          raw.Line,
		Column:        column,
		OriginalValue: original,
		NewValue:      cleaned,
		Operation:     operation,
		Reason:        reason,
	}
}

// appendOperation appends op when it is non-nil
func appendOperation(ops []model.CleaningOperation, op *model.CleaningOperation) []model.CleaningOperation {
	if op == nil {
		return ops
	}
	return append(ops, *op)
}
