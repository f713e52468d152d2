package models

import "time"

// User is owned by the identity service. PasswordHash never leaves the
// server; handlers return PublicUser instead.
type User struct {
	UserID       string    `dynamodbav:"userId" json:"_id" yaml:"id" validate:"required"`
	FullName     string    `dynamodbav:"fullName,omitempty" json:"fullName" yaml:"fullName" validate:"required"`
	Email        string    `dynamodbav:"email,omitempty" json:"email" yaml:"email" validate:"omitempty,email"`
	ProfilePic   string    `dynamodbav:"profilePic,omitempty" json:"profilePic" yaml:"profilePic"`
	PasswordHash string    `dynamodbav:"passwordHash,omitempty" json:"-" yaml:"-"`
	CreatedAt    time.Time `dynamodbav:"createdAt" json:"createdAt" yaml:"-"`
}

// UsersTable is the DynamoDB table name for users
const UsersTable = "Users"

// PublicUser is the profile-safe projection of a User.
type PublicUser struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Public strips credential fields.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.UserID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}
