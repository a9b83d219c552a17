package entities

import "time"

// PersonType tags which table a person lives in.
type PersonType string

const (
	PersonStudent PersonType = "student"
	PersonTeacher PersonType = "teacher"
)

func (t PersonType) Valid() bool {
	return t == PersonStudent || t == PersonTeacher
}

// Role is the authorization role carried by an authenticated caller.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleLibrarian Role = "Librarian"
	RoleStudent   Role = "Student"
	RoleTeacher   Role = "Teacher"
)

// Privileged reports whether the role may act on behalf of other people.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

// RoleFor returns the fixed role of a borrower type.
func RoleFor(t PersonType) Role {
	if t == PersonTeacher {
		return RoleTeacher
	}
	return RoleStudent
}

// PersonRef identifies a student or teacher across both tables.
type PersonRef struct {
	ID   uint       `json:"id"`
	Type PersonType `json:"user_type"`
}

// Person is the uniform view over a Student or a Teacher.
type Person struct {
	PersonRef
	Name    string `json:"name"`
	Barcode string `json:"barcode"`
	Class   string `json:"class,omitempty"`
	Photo   string `json:"photo,omitempty"`
}

type Student struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"index;size:256;not null" json:"name"`
	Barcode      string    `gorm:"uniqueIndex;size:64;not null" json:"barcode"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Class        string    `gorm:"size:64" json:"class"`
	Photo        string    `gorm:"size:1024" json:"photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}

func (s Student) Person() Person {
	return Person{
		PersonRef: PersonRef{ID: s.ID, Type: PersonStudent},
		Name:      s.Name,
		Barcode:   s.Barcode,
		Class:     s.Class,
		Photo:     s.Photo,
	}
}

type Teacher struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"index;size:256;not null" json:"name"`
	Barcode      string    `gorm:"uniqueIndex;size:64;not null" json:"barcode"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Photo        string    `gorm:"size:1024" json:"photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Teacher) TableName() string {
	return "teachers"
}

func (t Teacher) Person() Person {
	return Person{
		PersonRef: PersonRef{ID: t.ID, Type: PersonTeacher},
		Name:      t.Name,
		Barcode:   t.Barcode,
		Photo:     t.Photo,
	}
}

// User is a staff account (Admin or Librarian). Staff log in by username.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Name         string    `gorm:"size:256" json:"name"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:20;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Actor is an authenticated caller: a staff user, student or teacher.
type Actor struct {
	ID   uint
	Role Role
}

// PersonRef returns the student or teacher the actor is. Staff are not people.
func (a Actor) PersonRef() (PersonRef, bool) {
	switch a.Role {
	case RoleStudent:
		return PersonRef{ID: a.ID, Type: PersonStudent}, true
	case RoleTeacher:
		return PersonRef{ID: a.ID, Type: PersonTeacher}, true
	}
	return PersonRef{}, false
}

// ActorFor returns the actor a person acts as when authenticated.
func ActorFor(ref PersonRef) Actor {
	return Actor{ID: ref.ID, Role: RoleFor(ref.Type)}
}
