package catalog

import (
	"fmt"
	"strd/internal/models"
	"strings"
)

// IdentityConflict is a pair of distinct apps sharing a display name.
type IdentityConflict struct {
	DisplayName string             `json:"display_name"`
	First       models.AppIdentity `json:"first"`
	Second      models.AppIdentity `json:"second"`
}

type ConflictError struct {
	Conflicts []IdentityConflict
}

func (e *ConflictError) Error() string {
	names := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		names = append(names, fmt.Sprintf("%q (%s, %s)", c.DisplayName, c.First.Category, c.Second.Category))
	}
	return fmt.Sprintf("%s: %s", models.ErrIdentityConflict, strings.Join(names, "; "))
}

func (e *ConflictError) Unwrap() error {
	return models.ErrIdentityConflict
}

// CheckConflicts returns every pair of apps with distinct token hashes whose
// display names are equal ignoring case. Such pairs need guardian resolution
// and are never merged.
func CheckConflicts(apps []models.AppIdentity) []IdentityConflict {
	var out []IdentityConflict
	for i := 0; i < len(apps); i++ {
		a := strings.TrimSpace(apps[i].DisplayName)
		if a == "" {
			continue
		}
		for j := i + 1; j < len(apps); j++ {
			if apps[i].TokenHash == apps[j].TokenHash {
				continue
			}
			if strings.EqualFold(a, strings.TrimSpace(apps[j].DisplayName)) {
				out = append(out, IdentityConflict{DisplayName: a, First: apps[i], Second: apps[j]})
			}
		}
	}
	return out
}
