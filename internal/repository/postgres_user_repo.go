package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/marketman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, name, email, registration_id, password_hash,
	status, role, is_email_verified, bio, phone_number, profile_image,
	stripe_account_id, stripe_onboarding_complete, stripe_requirements_due,
	has_bank_account, identity_verified, stripe_connected,
	deauthorized_at, last_stripe_update, created_at, updated_at`

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Name, &user.Email, &user.RegistrationID,
		&user.PasswordHash, &user.Status, &user.Role, &user.IsEmailVerified,
		&user.Bio, &user.PhoneNumber, &user.ProfileImage,
		&user.StripeAccountID, &user.StripeOnboardingComplete,
		pq.Array(&user.StripeRequirementsDue),
		&user.HasBankAccount, &user.IdentityVerified, &user.StripeConnected,
		&user.DeauthorizedAt, &user.LastStripeUpdate,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByRegistrationID は登録IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByRegistrationID(ctx context.Context, registrationID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE registration_id = $1`, registrationID))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by registration ID: %w", err)
	}
	return user, nil
}

// FindByStripeAccountID はStripeアカウントIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByStripeAccountID(ctx context.Context, accountID string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_account_id = $1`, accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by stripe account ID: %w", err)
	}
	return user, nil
}

// List は全ユーザーを作成日時降順で取得する。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user := &model.User{}
		err := rows.Scan(
			&user.ID, &user.Username, &user.Name, &user.Email, &user.RegistrationID,
			&user.PasswordHash, &user.Status, &user.Role, &user.IsEmailVerified,
			&user.Bio, &user.PhoneNumber, &user.ProfileImage,
			&user.StripeAccountID, &user.StripeOnboardingComplete,
			pq.Array(&user.StripeRequirementsDue),
			&user.HasBankAccount, &user.IdentityVerified, &user.StripeConnected,
			&user.DeauthorizedAt, &user.LastStripeUpdate,
			&user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, name, email, registration_id, password_hash,
			status, role, is_email_verified, bio, phone_number, profile_image,
			stripe_account_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		user.ID, user.Username, user.Name, user.Email, user.RegistrationID,
		user.PasswordHash, user.Status, user.Role, user.IsEmailVerified,
		user.Bio, user.PhoneNumber, user.ProfileImage,
		user.StripeAccountID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーのプロフィール情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $1, name = $2, email = $3, password_hash = $4,
			status = $5, role = $6, is_email_verified = $7, bio = $8,
			phone_number = $9, profile_image = $10, updated_at = now()
		 WHERE id = $11`,
		user.Username, user.Name, user.Email, user.PasswordHash,
		user.Status, user.Role, user.IsEmailVerified, user.Bio,
		user.PhoneNumber, user.ProfileImage, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// UpdateStripeAccount はStripe連携状態を部分更新する。
// updateのnilフィールドはCOALESCEで既存の値を維持する。
func (r *PostgresUserRepo) UpdateStripeAccount(ctx context.Context, userID string, update *model.StripeAccountUpdate) error {
	var requirements interface{}
	if update.RequirementsDue != nil {
		requirements = pq.Array(update.RequirementsDue)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			stripe_account_id = COALESCE($1, stripe_account_id),
			stripe_onboarding_complete = COALESCE($2, stripe_onboarding_complete),
			stripe_requirements_due = COALESCE($3, stripe_requirements_due),
			has_bank_account = COALESCE($4, has_bank_account),
			identity_verified = COALESCE($5, identity_verified),
			stripe_connected = COALESCE($6, stripe_connected),
			deauthorized_at = COALESCE($7, deauthorized_at),
			last_stripe_update = now(),
			updated_at = now()
		 WHERE id = $8`,
		update.AccountID, update.OnboardingComplete, requirements,
		update.HasBankAccount, update.IdentityVerified, update.Connected,
		update.DeauthorizedAt, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stripe account state: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連する出品・メッセージはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
