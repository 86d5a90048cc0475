// Package user holds the static user table. Like the catalog it is loaded
// once at startup and read-only afterwards.
//
// Passwords are stored and compared in plaintext: this is demo data shipped
// in a fixture file, not an account system.
package user

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

// ErrBadCredentials is returned when the username is unknown or the password
// does not match. Callers must not distinguish the two cases.
var ErrBadCredentials = errors.New("bad credentials")

// User is one record of the static user table.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"usuario"`
	Password    string `json:"password"`
	DisplayName string `json:"nombre"`
}

// Store is the immutable in-memory user table.
type Store struct {
	byUsername map[string]*User
}

// NewStore builds a Store from already-loaded users.
func NewStore(users []User) *Store {
	byUsername := make(map[string]*User, len(users))
	for i := range users {
		byUsername[users[i].Username] = &users[i]
	}
	return &Store{byUsername: byUsername}
}

// Authenticate checks the credentials against the table. The password
// comparison is constant-time; the username lookup is not, which is fine for
// a table this size.
func (s *Store) Authenticate(username, password string) (*User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, ErrBadCredentials
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Len returns the number of users in the table.
func (s *Store) Len() int {
	return len(s.byUsername)
}

type usersFile struct {
	Users []User `json:"usuarios"`
}

// Load reads the user table from path, decompressing .gz files
// transparently. Errors are startup configuration errors.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open users file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer gz.Close()
		r = gz
	}

	return Parse(r)
}

// Parse decodes a user table document from r.
func Parse(r io.Reader) (*Store, error) {
	var doc usersFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	if len(doc.Users) == 0 {
		return nil, errors.New("user table is empty")
	}

	seen := make(map[string]struct{}, len(doc.Users))
	for _, u := range doc.Users {
		if u.Username == "" {
			return nil, errors.Errorf("user %d has no username", u.ID)
		}
		if _, dup := seen[u.Username]; dup {
			return nil, errors.Errorf("duplicate username %q", u.Username)
		}
		seen[u.Username] = struct{}{}
	}

	return NewStore(doc.Users), nil
}
