package stores

import (
	"context"
	"encoding/json"

	"chat_server/models"

	"github.com/dgraph-io/badger/v4"
)

const usersPrefix = "user/"

// storedUser keeps the credential hash that User hides from JSON.
type storedUser struct {
	models.User
	PasswordHash string `json:"passwordHash,omitempty"`
}

func (u storedUser) user() models.User {
	out := u.User
	out.PasswordHash = u.PasswordHash
	return out
}

type BadgerUserDirectory struct {
	DB *badger.DB
}

func (d *BadgerUserDirectory) Get(ctx context.Context, userID string) (*models.User, error) {
	var su storedUser
	err := d.DB.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(usersPrefix+userID), &su)
	})
	if err != nil {
		return nil, err
	}
	u := su.user()
	return &u, nil
}

func (d *BadgerUserDirectory) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.DB.View(func(txn *badger.Txn) error {
		prefix := []byte(usersPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var su storedUser
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &su)
			}); err != nil {
				return err
			}
			users = append(users, su.user())
		}
		return nil
	})
	return users, err
}

func (d *BadgerUserDirectory) Put(ctx context.Context, user models.User) error {
	return d.DB.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(usersPrefix+user.UserID), storedUser{User: user, PasswordHash: user.PasswordHash})
	})
}
