package roles

import (
	"errors"
	"strings"
)

// ErrUnknownRole indicates a role identifier outside the closed set.
var ErrUnknownRole = errors.New("roles: unknown role")

// ID identifies one of the fixed user categories.
type ID string

const (
	SuperAdmin     ID = "SUPER_ADMIN"
	ClassTeacher   ID = "CLASS_TEACHER"
	SubjectTeacher ID = "SUBJECT_TEACHER"
	StudentParent  ID = "STUDENT_PARENT"
)

// All returns every role in a stable order.
func All() []ID {
	return []ID{SuperAdmin, ClassTeacher, SubjectTeacher, StudentParent}
}

// Parse converts a raw identifier into an ID.
func Parse(raw string) (ID, error) {
	id := ID(strings.TrimSpace(raw))
	if !id.Valid() {
		return "", ErrUnknownRole
	}
	return id, nil
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	switch id {
	case SuperAdmin, ClassTeacher, SubjectTeacher, StudentParent:
		return true
	}
	return false
}

func (id ID) String() string {
	return string(id)
}

// NavItem is one navigable destination inside a role's shell.
type NavItem struct {
	Title string
	Path  string
}

// Slug returns the last path segment of the item, or "" for the dashboard.
func (n NavItem) Slug(prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(n.Path, prefix), "/")
}

// Config describes the shell of one role.
type Config struct {
	Role        ID
	Title       string
	Panel       string
	Prefix      string
	LandingPath string
	NavItems    []NavItem
}

// Leaves returns the nav items below the dashboard.
func (c Config) Leaves() []NavItem {
	leaves := make([]NavItem, 0, len(c.NavItems))
	for _, item := range c.NavItems {
		if item.Path == c.LandingPath {
			continue
		}
		leaves = append(leaves, item)
	}
	return leaves
}
