package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// User is one account in the users file. The password field holds a
// bcrypt hash on disk; a plaintext value is hashed in place the first
// time the file is loaded, so operators can set passwords by editing
// the file.
type User struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Role     string `toml:"role"` // admin or editor
	Created  string `toml:"created"`
}

type userFile struct {
	Users []User `toml:"users"`
}

// UserStore holds the accounts loaded from users.toml and writes the
// file back when accounts change.
type UserStore struct {
	mutex    sync.RWMutex
	users    map[string]*User
	filePath string
}

// NewUserStore loads the users file, creating it with a default admin
// account when it does not exist yet.
func NewUserStore(filePath string) (*UserStore, error) {
	us := &UserStore{
		users:    make(map[string]*User),
		filePath: filePath,
	}
	if err := us.load(); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return us, nil
}

// Authenticate verifies a username/password pair.
func (us *UserStore) Authenticate(username, password string) bool {
	us.mutex.RLock()
	user, exists := us.users[username]
	us.mutex.RUnlock()

	if !exists {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// GetUser returns the account's public record, with the password hash
// blanked. Nil when the user is unknown.
func (us *UserStore) GetUser(username string) *User {
	us.mutex.RLock()
	defer us.mutex.RUnlock()

	user, exists := us.users[username]
	if !exists {
		return nil
	}
	return &User{
		Username: user.Username,
		Role:     user.Role,
		Created:  user.Created,
	}
}

// RegisterUser creates an editor account and persists the users file.
func (us *UserStore) RegisterUser(username, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	us.mutex.Lock()
	defer us.mutex.Unlock()

	if _, exists := us.users[username]; exists {
		return fmt.Errorf("user already exists")
	}
	us.users[username] = &User{
		Username: username,
		Password: hash,
		Role:     "editor",
		Created:  time.Now().Format("2006-01-02 15:04:05"),
	}
	return us.writeLocked()
}

func (us *UserStore) load() error {
	if _, err := os.Stat(us.filePath); os.IsNotExist(err) {
		return us.bootstrapAdmin()
	}

	var file userFile
	if _, err := toml.DecodeFile(us.filePath, &file); err != nil {
		return fmt.Errorf("failed to parse users file: %w", err)
	}

	// Hash any plaintext passwords the operator added by hand.
	rehashed := false
	for i := range file.Users {
		user := &file.Users[i]
		if !isBcryptHash(user.Password) {
			hash, err := hashPassword(user.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password for user %s: %w", user.Username, err)
			}
			user.Password = hash
			rehashed = true
		}
		us.users[user.Username] = user
	}

	if rehashed {
		return us.writeLocked()
	}
	return nil
}

// bootstrapAdmin creates the users file with a single admin account and
// prints the generated password once.
func (us *UserStore) bootstrapAdmin() error {
	password, err := randomPassword(12)
	if err != nil {
		return fmt.Errorf("failed to generate default password: %w", err)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}

	us.users["admin"] = &User{
		Username: "admin",
		Password: hash,
		Role:     "admin",
		Created:  time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := us.writeLocked(); err != nil {
		return err
	}

	fmt.Printf("\n"+
		"=====================================\n"+
		"DEFAULT ADMIN USER CREATED\n"+
		"=====================================\n"+
		"Username: admin\n"+
		"Password: %s\n"+
		"=====================================\n"+
		"Please change this password by editing users.toml\n\n", password)
	return nil
}

// writeLocked rewrites the users file from the in-memory map. Caller
// holds the write lock (or is still single-threaded during load).
func (us *UserStore) writeLocked() error {
	file, err := os.Create(us.filePath)
	if err != nil {
		return fmt.Errorf("failed to create users file: %w", err)
	}
	defer file.Close()

	header := `# Cutroom Users Configuration
# This file contains user accounts for authentication.
# Passwords will be automatically hashed when the server starts.
# To add a new user, add a new [[users]] section with username and password.
# To change a password, replace the hashed password with a new plaintext password.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write users file header: %w", err)
	}

	out := userFile{Users: make([]User, 0, len(us.users))}
	for _, user := range us.users {
		out.Users = append(out.Users, *user)
	}
	if err := toml.NewEncoder(file).Encode(out); err != nil {
		return fmt.Errorf("failed to encode users to TOML: %w", err)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// isBcryptHash recognizes the $2a$/$2b$/$2x$/$2y$ prefixes so operator
// edits with a plaintext value get rehashed on the next load.
func isBcryptHash(password string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2x$", "$2y$"} {
		if strings.HasPrefix(password, prefix) {
			return true
		}
	}
	return false
}

func randomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}
