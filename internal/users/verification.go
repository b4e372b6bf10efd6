package users

import (
	"strconv"
	"strings"

	"github.com/aldoetobex/legal-aid-backend/pkg/models"
)

// Verification is an admin decision about an account.
type Verification struct {
	Status models.VerificationStatus
	// Activate nil means "reactivate on VERIFIED".
	Activate *bool
	// Ban nil means no explicit ban decision.
	Ban *bool
}

// AccountState is the part of an account a verification decision changes.
type AccountState struct {
	IsActive     bool
	IsVerified   bool
	LawyerStatus models.VerificationStatus // empty when there is no lawyer profile
}

// ParseStatus accepts the four statuses case-insensitively.
func ParseStatus(s string) (models.VerificationStatus, bool) {
	st := models.VerificationStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case models.VerificationVerified, models.VerificationPending,
		models.VerificationRejected, models.VerificationSuspended:
		return st, true
	}
	return "", false
}

// ApplyVerification returns the account state after v. Any status may follow
// any other. A ban always wins over activation.
func ApplyVerification(cur AccountState, v Verification) AccountState {
	next := cur
	next.IsVerified = v.Status == models.VerificationVerified

	if next.IsVerified && (v.Activate == nil || *v.Activate) {
		next.IsActive = true
	}
	if v.Ban != nil {
		if *v.Ban {
			next.IsActive = false
		} else if next.IsVerified {
			next.IsActive = true
		}
	}
	if cur.LawyerStatus != "" {
		next.LawyerStatus = v.Status
	}
	return next
}

// parseBool reads loose form/JSON booleans ("true", "1", "yes", true).
func parseBool(v any) (*bool, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case bool:
		return &t, true
	case float64:
		b := t != 0
		return &b, true
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "":
			return nil, true
		case "yes", "y", "on":
			b := true
			return &b, true
		case "no", "n", "off":
			b := false
			return &b, true
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, false
		}
		return &b, true
	}
	return nil, false
}
