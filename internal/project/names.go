package project

import (
	"context"
	"fmt"
	"strings"

	"github.com/netsblox/cloud/internal/apperr"
	"go.mongodb.org/mongo-driver/bson"
)

const maxProjectNameLength = 100

// ensureValidName rejects names spec.md §4.5 excludes: empty, too long, or
// containing '@' (which would be ambiguous with the address syntax's
// project@owner separator, §4.1).
func ensureValidName(name string) error {
	if name == "" || len(name) > maxProjectNameLength || strings.Contains(name, "@") {
		return apperr.ErrInvalidName
	}
	return nil
}

// getUniqueName implements spec.md §4.5's Unique Name algorithm: if
// basename is free among existing, use it unmodified; else append " (2)",
// " (3)", ... until free.
func getUniqueName(existing []string, basename string) string {
	taken := make(map[string]bool, len(existing))
	for _, name := range existing {
		taken[name] = true
	}

	if !taken[basename] {
		return basename
	}

	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", basename, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

func (s *Service) getValidProjectName(ctx context.Context, owner, basename string) (string, error) {
	if err := ensureValidName(basename); err != nil {
		return "", err
	}

	existing, err := s.projects.Find(ctx, bson.M{"owner": owner})
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(existing))
	for _, md := range existing {
		names = append(names, md.Name)
	}

	return getUniqueName(names, basename), nil
}
