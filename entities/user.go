package entities

type User struct {
	Username     string `db:"username"`
	Email        string `db:"email"`
	Name         string `db:"name"`
	PasswordHash string `db:"password_hash"`
	Avatar       []byte `db:"avatar"`
}
