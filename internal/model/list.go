// Package model defines domain entities for the application.
package model

import (
	"slices"
	"strings"
	"time"
)

// List is a shared TODO list. Members are E.164 phone numbers.
type List struct {
	ID           string    `json:"id"`
	Alias        string    `json:"alias"`
	Members      []string  `json:"members"`
	Tasks        []string  `json:"tasks"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	VonageNumber string    `json:"vonage_number"`
}

// HasMember reports whether phone is currently a member of the list.
func (l *List) HasMember(phone string) bool {
	return slices.Contains(l.Members, phone)
}

// FindTask returns the first task equal to query ignoring case.
func (l *List) FindTask(query string) (string, bool) {
	for _, task := range l.Tasks {
		if strings.EqualFold(task, query) {
			return task, true
		}
	}
	return "", false
}

// Ref returns the (id, alias) pair used for resolution.
func (l *List) Ref() ListRef {
	return ListRef{ID: l.ID, Alias: l.Alias}
}

// Clone returns a deep copy so callers can mutate slices freely.
func (l *List) Clone() *List {
	c := *l
	c.Members = slices.Clone(l.Members)
	c.Tasks = slices.Clone(l.Tasks)
	return &c
}

// ListRef identifies a list from a member's point of view.
type ListRef struct {
	ID    string `json:"id"`
	Alias string `json:"alias"`
}
