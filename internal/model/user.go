package model

import "time"

// UserID uniquely identifies a registered shopper
type UserID string

// User is a registered shopper with a stored face embedding
type User struct {
	ID        UserID
	Name      string
	Contact   string     // phone number, unique across users
	Birthday  *time.Time // optional
	Embedding []float64
	FaceImage []byte // JPEG crop captured at registration
	CreatedAt time.Time
	LastVisit *time.Time
}

// UserProfile is the public view of a user sent to clients
type UserProfile struct {
	ID        UserID     `json:"id"`
	Name      string     `json:"name"`
	Contact   string     `json:"phone"`
	Birthday  string     `json:"birthday,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastVisit *time.Time `json:"last_visit,omitempty"`
}

// Profile returns the public view of the user
func (u *User) Profile() UserProfile {
	p := UserProfile{
		ID:        u.ID,
		Name:      u.Name,
		Contact:   u.Contact,
		CreatedAt: u.CreatedAt,
		LastVisit: u.LastVisit,
	}
	if u.Birthday != nil {
		p.Birthday = u.Birthday.Format(time.DateOnly)
	}
	return p
}
