package utils

import "strings"

// Canonical admission types stored on survey responses.
const (
	AdmissionPlanned   = "GEPLANT"
	AdmissionEmergency = "NOTFALL"
	AdmissionTransfer  = "VERLEGUNG"
	AdmissionAmbulant  = "AMBULANT"
)

var admissionTypeAliases = map[string]string{
	"planned":   AdmissionPlanned,
	"emergency": AdmissionEmergency,
	"transfer":  AdmissionTransfer,
	"ambulant":  AdmissionAmbulant,
}

// NormalizeAdmissionTypes maps admission-type labels onto the canonical vocabulary.
// Short keys (planned, emergency, transfer, ambulant) are matched case-insensitively;
// anything else becomes its trimmed upper-case form, so a blank label maps to "". The
// result keeps the order of first occurrence and contains no duplicates.
func NormalizeAdmissionTypes(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))

	for _, value := range values {
		mapped := NormalizeAdmissionType(value)
		if _, ok := seen[mapped]; ok {
			continue
		}
		seen[mapped] = struct{}{}
		out = append(out, mapped)
	}

	return out
}

// CleanAdmissionTypes normalizes values and drops blank labels. Stored responses, filters
// and audit entries use it; a "" admission type could never be matched by any filter.
func CleanAdmissionTypes(values []string) []string {
	normalized := NormalizeAdmissionTypes(values)
	out := normalized[:0]
	for _, value := range normalized {
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

// NormalizeAdmissionType maps a single label; blank input yields "".
func NormalizeAdmissionType(value string) string {
	trimmed := strings.TrimSpace(value)
	if canonical, ok := admissionTypeAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return strings.ToUpper(trimmed)
}
