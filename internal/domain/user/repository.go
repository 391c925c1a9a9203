package user

import "context"

type UserRepository interface {
	Create(ctx context.Context, u *User) error

	FindByEmail(ctx context.Context, email string) (*User, error)
}
