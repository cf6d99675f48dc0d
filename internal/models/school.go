package models

import "strings"

// Student is a roster entry linking a child to one guardian record.
type Student struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	TutorGroup   string `json:"tutor_group"`
	Relationship string `json:"relationship"`
}

// Parent is a guardian with the children reachable through one email address.
type Parent struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	Children []Student `json:"children"`
}

// Staff is an employee who can be assigned tickets.
type Staff struct {
	Email     string `json:"email"`
	Title     string `json:"title"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Name returns the staff member's display name.
func (s Staff) Name() string {
	return strings.TrimSpace(s.Title + " " + s.LastName)
}
