// Package model defines domain entities for the application.
package model

import "slices"

// User is identified by its E.164 phone number and only tracks membership.
type User struct {
	Phone         string   `json:"phone"`
	MemberOfLists []string `json:"member_of_lists"`
}

// IsMemberOf reports whether the user's membership set contains listID.
func (u *User) IsMemberOf(listID string) bool {
	return slices.Contains(u.MemberOfLists, listID)
}
