package models

import "time"

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Bio       string    `json:"bio" db:"bio"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Membership id sets. CaptainIDs is always a subset of MemberIDs and
	// AppliedIDs never overlaps MemberIDs; both invariants are kept by the
	// team repository's join tables.
	MemberIDs  []int `json:"member_ids" db:"-"`
	CaptainIDs []int `json:"captain_ids" db:"-"`
	AppliedIDs []int `json:"applied_ids" db:"-"`

	// Resolved profiles, populated on demand via batched lookups.
	Members  []User `json:"members,omitempty" db:"-"`
	Captains []User `json:"captains,omitempty" db:"-"`
	Applied  []User `json:"applied,omitempty" db:"-"`

	ImageKey *string `json:"-" db:"image_key"`
	ImageURL *string `json:"image_url,omitempty" db:"-"`
}

func (t *Team) HasMember(userID int) bool  { return containsID(t.MemberIDs, userID) }
func (t *Team) HasCaptain(userID int) bool { return containsID(t.CaptainIDs, userID) }
func (t *Team) HasApplied(userID int) bool { return containsID(t.AppliedIDs, userID) }

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
