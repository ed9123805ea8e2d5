package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fasttrack/core/internal/infrastructure/database"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Auth errors surfaced to the HTTP layer.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type userRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	DisplayName  string `db:"display_name"`
	CreatedAt    int64  `db:"created_at"`
}

// CloudProvider authenticates against the users table with bcrypt
// password hashes.
type CloudProvider struct {
	broadcaster
	db     *database.DB
	logger *logger.Logger
}

// NewCloudProvider returns a provider with no signed-in user.
func NewCloudProvider(db *database.DB, log *logger.Logger) *CloudProvider {
	return &CloudProvider{broadcaster: newBroadcaster(), db: db, logger: log}
}

// SignUp creates a new account and signs it in.
func (p *CloudProvider) SignUp(ctx context.Context, email, password, displayName string) (*ports.Identity, error) {
	var existing userRow
	err := p.db.DB.GetContext(ctx, &existing, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = $1`, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := userRow{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    time.Now().UnixMilli(),
	}
	_, err = p.db.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	p.logger.Infow("User registered", "user_id", user.ID, "email", user.Email)

	identity := &ports.Identity{UID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
	p.set(identity)
	return identity, nil
}

// SignIn verifies the password and signs the account in.
func (p *CloudProvider) SignIn(ctx context.Context, email, password string) (*ports.Identity, error) {
	var user userRow
	err := p.db.DB.GetContext(ctx, &user, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		p.logger.Warnw("Login attempt with unknown email", "email", email)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.logger.Warnw("Login attempt with invalid password", "email", email, "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	p.logger.Infow("User logged in", "user_id", user.ID, "email", user.Email)

	identity := &ports.Identity{UID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
	p.set(identity)
	return identity, nil
}

// SignOut clears the current identity. Subscribers are notified
// synchronously before SignOut returns.
func (p *CloudProvider) SignOut(_ context.Context) error {
	p.set(nil)
	return nil
}

// Resolve looks an identity up by UID without changing the signed-in
// state; the HTTP middleware uses it to rebind bearer-token sessions.
func (p *CloudProvider) Resolve(ctx context.Context, uid string) (*ports.Identity, error) {
	var user userRow
	err := p.db.DB.GetContext(ctx, &user, `SELECT id, email, password_hash, display_name, created_at FROM users WHERE id = $1`, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &ports.Identity{UID: user.ID, Email: user.Email, DisplayName: user.DisplayName}, nil
}
