// Package roster holds the school's parent, student, and staff directory in
// memory. The router consults it to decide who an inbound email is from; it
// is replaced wholesale on each sync rather than mutated in place.
package roster

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jamesgurung/school-helpdesk/internal/models"
)

// School is the active directory snapshot. All lookups are case-insensitive
// on email address. Safe for concurrent use.
type School struct {
	mu      sync.RWMutex
	parents map[string][]models.Parent
	staff   map[string]models.Staff
}

// NewSchool returns an empty directory.
func NewSchool() *School {
	s := &School{}
	s.Replace(nil, nil)
	return s
}

// Replace swaps in a new snapshot. Parents sharing an email address are kept
// as separate candidates; the router refuses to guess between them.
func (s *School) Replace(parents []models.Parent, staff []models.Staff) {
	parentIdx := make(map[string][]models.Parent)
	for _, p := range parents {
		key := normalizeEmail(p.Email)
		if key == "" {
			continue
		}
		parentIdx[key] = append(parentIdx[key], p)
	}
	staffIdx := make(map[string]models.Staff, len(staff))
	for _, m := range staff {
		key := normalizeEmail(m.Email)
		if key == "" {
			continue
		}
		staffIdx[key] = m
	}

	s.mu.Lock()
	s.parents = parentIdx
	s.staff = staffIdx
	s.mu.Unlock()
}

// ParentsByEmail returns every parent record registered under the address.
func (s *School) ParentsByEmail(address string) []models.Parent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parents[normalizeEmail(address)]
}

// IsStaff reports whether the address belongs to an employee.
func (s *School) IsStaff(address string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.staff[normalizeEmail(address)]
	return ok
}

// StaffByEmail returns the staff record for an address.
func (s *School) StaffByEmail(address string) (models.Staff, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.staff[normalizeEmail(address)]
	return m, ok
}

// AllStaff returns the staff list sorted by last name, for assignment pickers.
func (s *School) AllStaff() []models.Staff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Staff, 0, len(s.staff))
	for _, m := range s.staff {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return out
}

// Counts returns the number of distinct parent addresses and staff members.
func (s *School) Counts() (parents, staff int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parents), len(s.staff)
}

func normalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// buildParents merges per-child rows into one Parent per (email, name) pair.
func buildParents(rows []parentRow) ([]models.Parent, error) {
	type key struct{ email, name string }
	order := make([]key, 0, len(rows))
	byKey := make(map[key]*models.Parent)
	for i, row := range rows {
		email := normalizeEmail(row.Email)
		if email == "" {
			return nil, fmt.Errorf("row %d: parent email is required", i+1)
		}
		if row.StudentFirstName == "" || row.StudentLastName == "" {
			return nil, fmt.Errorf("row %d: student name is required", i+1)
		}
		k := key{email: email, name: strings.TrimSpace(row.ParentName)}
		p, ok := byKey[k]
		if !ok {
			p = &models.Parent{
				Name:  strings.TrimSpace(row.ParentName),
				Email: email,
				Phone: strings.TrimSpace(row.Phone),
			}
			byKey[k] = p
			order = append(order, k)
		}
		p.Children = append(p.Children, models.Student{
			FirstName:    strings.TrimSpace(row.StudentFirstName),
			LastName:     strings.TrimSpace(row.StudentLastName),
			TutorGroup:   strings.TrimSpace(row.TutorGroup),
			Relationship: strings.TrimSpace(row.Relationship),
		})
	}
	parents := make([]models.Parent, 0, len(order))
	for _, k := range order {
		parents = append(parents, *byKey[k])
	}
	return parents, nil
}

// parentRow is one line of a roster import: a single parent-child link.
type parentRow struct {
	ParentName       string
	Email            string
	Phone            string
	Relationship     string
	StudentFirstName string
	StudentLastName  string
	TutorGroup       string
}

var parentColumns = []string{
	"parent name", "parent email", "parent phone", "relationship",
	"student first name", "student last name", "tutor group",
}

var staffColumns = []string{"email", "title", "first name", "last name"}

// mapHeader resolves the position of each expected column, matching
// case-insensitively so exports from different MIS systems line up.
func mapHeader(header, expected []string) (map[string]int, error) {
	idx := make(map[string]int, len(expected))
	for i, cell := range header {
		idx[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	out := make(map[string]int, len(expected))
	for _, col := range expected {
		pos, ok := idx[col]
		if !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
		out[col] = pos
	}
	return out, nil
}

func cellAt(record []string, pos int) string {
	if pos < 0 || pos >= len(record) {
		return ""
	}
	return record[pos]
}
