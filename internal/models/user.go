package models

import (
	"github.com/uptrace/bun"
)

// User is a login gate entry, nothing more. Passwords are stored and
// compared as-is; this gate keeps casual visitors out, not attackers.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,unique,notnull" json:"username"`
	Password string `bun:"password,notnull" json:"-"`
}
