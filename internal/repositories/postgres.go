package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gregaplay/backend/internal/db"
	"github.com/gregaplay/backend/internal/models"
)

// PostgresAccountRepository provides PostgreSQL-backed persistence for accounts.
type PostgresAccountRepository struct {
	pool db.Pool
}

// NewPostgresAccountRepository constructs an account repository backed by PostgreSQL.
func NewPostgresAccountRepository(pool db.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresAccountRepository) Create(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO accounts (id, email, password_hash, birth_date, is_premium, premium_expires_at, legacy_premium, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, account.ID, account.Email, account.Password, account.BirthDate, account.IsPremium, account.PremiumExpiresAt, account.LegacyPremium, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// FindByEmail fetches an account by its email address.
func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, birth_date, is_premium, premium_expires_at, legacy_premium, created_at, updated_at
        FROM accounts
        WHERE email = $1
    `, email)

	return scanAccount(row)
}

// FindByID fetches an account by its identifier.
func (r *PostgresAccountRepository) FindByID(ctx context.Context, id string) (models.Account, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Account{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, birth_date, is_premium, premium_expires_at, legacy_premium, created_at, updated_at
        FROM accounts
        WHERE id = $1
    `, id)

	return scanAccount(row)
}

// Update modifies an existing account record.
func (r *PostgresAccountRepository) Update(ctx context.Context, account models.Account) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET email = $2, password_hash = $3, updated_at = $4
        WHERE id = $1
    `, account.ID, account.Email, account.Password, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update account: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ActivatePremium opens (or extends) the account's premium window. The new
// entitlement applies to the next policy evaluation, never retroactively.
func (r *PostgresAccountRepository) ActivatePremium(ctx context.Context, accountID string, expiresAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE accounts
        SET is_premium = TRUE, premium_expires_at = $2, updated_at = NOW()
        WHERE id = $1
    `, accountID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("activate account premium: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var account models.Account
	var premiumExpires sql.NullTime
	if err := row.Scan(&account.ID, &account.Email, &account.Password, &account.BirthDate, &account.IsPremium, &premiumExpires, &account.LegacyPremium, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("select account: %w", err)
	}

	if premiumExpires.Valid {
		t := premiumExpires.Time.UTC()
		account.PremiumExpiresAt = &t
	}

	return account, nil
}

// PostgresEventRepository provides PostgreSQL-backed persistence for events.
type PostgresEventRepository struct {
	pool db.Pool
}

// NewPostgresEventRepository constructs an event repository backed by PostgreSQL.
func NewPostgresEventRepository(pool db.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

const eventColumns = `id, title, status, deadline, visibility, owner_id, is_premium, premium_expires_at, public_code, notify_on_upload, created_at, updated_at`

// Create persists a new event record.
func (r *PostgresEventRepository) Create(ctx context.Context, event models.Event) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO events (`+eventColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, event.ID, event.Title, event.Status, event.Deadline, event.Visibility, event.OwnerID,
		event.IsPremium, event.PremiumExpiresAt, nullString(event.PublicCode), event.NotifyOnUpload,
		event.CreatedAt, event.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// FindByID fetches an event by its identifier.
func (r *PostgresEventRepository) FindByID(ctx context.Context, id string) (models.Event, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Event{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+eventColumns+`
        FROM events
        WHERE id = $1
    `, id)

	return scanEvent(row)
}

// FindByCode fetches an event by its public share code.
func (r *PostgresEventRepository) FindByCode(ctx context.Context, code string) (models.Event, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Event{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+eventColumns+`
        FROM events
        WHERE public_code = $1
    `, code)

	return scanEvent(row)
}

// ListForOwner returns the owner's events, newest first.
func (r *PostgresEventRepository) ListForOwner(ctx context.Context, ownerID string) ([]models.Event, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+eventColumns+`
        FROM events
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}

// Update modifies an event's owner-editable fields.
func (r *PostgresEventRepository) Update(ctx context.Context, event models.Event) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE events
        SET title = $2, deadline = $3, visibility = $4, public_code = $5, notify_on_upload = $6, updated_at = $7
        WHERE id = $1
    `, event.ID, event.Title, event.Deadline, event.Visibility, nullString(event.PublicCode), event.NotifyOnUpload, event.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("update event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateStatus moves the event through its lifecycle.
func (r *PostgresEventRepository) UpdateStatus(ctx context.Context, eventID, status string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE events
        SET status = $2, updated_at = NOW()
        WHERE id = $1
    `, eventID, status)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ActivateBoost opens the event's individual premium window.
func (r *PostgresEventRepository) ActivateBoost(ctx context.Context, eventID string, expiresAt time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE events
        SET is_premium = TRUE, premium_expires_at = $2, updated_at = NOW()
        WHERE id = $1
    `, eventID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("activate event boost: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes the event; invitations and submissions cascade.
func (r *PostgresEventRepository) Delete(ctx context.Context, eventID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM events
        WHERE id = $1
    `, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var event models.Event
	var deadline, premiumExpires sql.NullTime
	var publicCode sql.NullString
	if err := row.Scan(&event.ID, &event.Title, &event.Status, &deadline, &event.Visibility, &event.OwnerID,
		&event.IsPremium, &premiumExpires, &publicCode, &event.NotifyOnUpload, &event.CreatedAt, &event.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Event{}, ErrNotFound
		}
		return models.Event{}, fmt.Errorf("select event: %w", err)
	}

	if deadline.Valid {
		t := deadline.Time.UTC()
		event.Deadline = &t
	}
	if premiumExpires.Valid {
		t := premiumExpires.Time.UTC()
		event.PremiumExpiresAt = &t
	}
	if publicCode.Valid {
		event.PublicCode = publicCode.String
	}

	return event, nil
}

// PostgresInvitationRepository provides PostgreSQL-backed persistence for invitations.
type PostgresInvitationRepository struct {
	pool db.Pool
}

// NewPostgresInvitationRepository constructs an invitation repository backed by PostgreSQL.
func NewPostgresInvitationRepository(pool db.Pool) *PostgresInvitationRepository {
	return &PostgresInvitationRepository{pool: pool}
}

// Create persists a new invitation.
func (r *PostgresInvitationRepository) Create(ctx context.Context, invitation models.Invitation) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO invitations (id, event_id, email, status, created_at, responded_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, invitation.ID, invitation.EventID, invitation.Email, invitation.Status, invitation.CreatedAt, invitation.RespondedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert invitation: %w", err)
	}

	return nil
}

// FindByID fetches an invitation by its identifier.
func (r *PostgresInvitationRepository) FindByID(ctx context.Context, id string) (models.Invitation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, event_id, email, status, created_at, responded_at
        FROM invitations
        WHERE id = $1
    `, id)

	return scanInvitation(row)
}

// FindByEventAndEmail fetches the invitation for an email on an event.
func (r *PostgresInvitationRepository) FindByEventAndEmail(ctx context.Context, eventID, email string) (models.Invitation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, event_id, email, status, created_at, responded_at
        FROM invitations
        WHERE event_id = $1 AND email = $2
    `, eventID, email)

	return scanInvitation(row)
}

// ListForEvent returns all invitations for the event, oldest first.
func (r *PostgresInvitationRepository) ListForEvent(ctx context.Context, eventID string) ([]models.Invitation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, event_id, email, status, created_at, responded_at
        FROM invitations
        WHERE event_id = $1
        ORDER BY created_at ASC
    `, eventID)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []models.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, invitation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}

	return invitations, nil
}

// UpdateStatus records the invited identity's response.
func (r *PostgresInvitationRepository) UpdateStatus(ctx context.Context, invitationID, status string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	respondedAt := sql.NullTime{}
	if status != models.InvitationStatusSent {
		respondedAt = sql.NullTime{Valid: true, Time: time.Now().UTC()}
	}

	tag, err := conn.Exec(ctx, `
        UPDATE invitations
        SET status = $2, responded_at = $3
        WHERE id = $1
    `, invitationID, status, respondedAt)
	if err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanInvitation(row pgx.Row) (models.Invitation, error) {
	var invitation models.Invitation
	var respondedAt sql.NullTime
	if err := row.Scan(&invitation.ID, &invitation.EventID, &invitation.Email, &invitation.Status, &invitation.CreatedAt, &respondedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invitation{}, ErrNotFound
		}
		return models.Invitation{}, fmt.Errorf("select invitation: %w", err)
	}

	if respondedAt.Valid {
		t := respondedAt.Time.UTC()
		invitation.RespondedAt = &t
	}

	return invitation, nil
}

// PostgresSubmissionRepository provides PostgreSQL-backed persistence for video submissions.
type PostgresSubmissionRepository struct {
	pool db.Pool
}

// NewPostgresSubmissionRepository constructs a submission repository backed by PostgreSQL.
func NewPostgresSubmissionRepository(pool db.Pool) *PostgresSubmissionRepository {
	return &PostgresSubmissionRepository{pool: pool}
}

const submissionColumns = `id, event_id, account_id, participant_name, location, size_bytes, duration_seconds, created_at`

// Create stores a new submission record.
func (r *PostgresSubmissionRepository) Create(ctx context.Context, submission models.VideoSubmission) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO video_submissions (`+submissionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, submission.ID, submission.EventID, submission.AccountID, submission.ParticipantName,
		submission.Location, submission.SizeBytes, submission.DurationSeconds, submission.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert submission: %w", err)
	}

	return nil
}

// FindByID fetches a submission by its identifier.
func (r *PostgresSubmissionRepository) FindByID(ctx context.Context, id string) (models.VideoSubmission, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoSubmission{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT `+submissionColumns+`
        FROM video_submissions
        WHERE id = $1
    `, id)

	var submission models.VideoSubmission
	if err := scanSubmission(row, &submission); err != nil {
		return models.VideoSubmission{}, err
	}
	return submission, nil
}

// SummaryFor returns the participant's submission count and latest clip.
func (r *PostgresSubmissionRepository) SummaryFor(ctx context.Context, eventID, accountID string) (int, *models.VideoSubmission, error) {
	submissions, err := r.ListForParticipant(ctx, eventID, accountID)
	if err != nil {
		return 0, nil, err
	}

	if len(submissions) == 0 {
		return 0, nil, nil
	}

	// ListForParticipant orders newest first.
	latest := submissions[0]
	return len(submissions), &latest, nil
}

// ListForEvent returns every submission on the event, newest first.
func (r *PostgresSubmissionRepository) ListForEvent(ctx context.Context, eventID string) ([]models.VideoSubmission, error) {
	return r.list(ctx, `
        SELECT `+submissionColumns+`
        FROM video_submissions
        WHERE event_id = $1
        ORDER BY created_at DESC
    `, eventID)
}

// ListForParticipant returns one participant's submissions on the event, newest first.
func (r *PostgresSubmissionRepository) ListForParticipant(ctx context.Context, eventID, accountID string) ([]models.VideoSubmission, error) {
	return r.list(ctx, `
        SELECT `+submissionColumns+`
        FROM video_submissions
        WHERE event_id = $1 AND account_id = $2
        ORDER BY created_at DESC
    `, eventID, accountID)
}

// Delete removes a submission record.
func (r *PostgresSubmissionRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM video_submissions
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *PostgresSubmissionRepository) list(ctx context.Context, query string, args ...any) ([]models.VideoSubmission, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []models.VideoSubmission
	for rows.Next() {
		var submission models.VideoSubmission
		if err := scanSubmission(rows, &submission); err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return submissions, nil
}

func scanSubmission(row pgx.Row, submission *models.VideoSubmission) error {
	if err := row.Scan(&submission.ID, &submission.EventID, &submission.AccountID, &submission.ParticipantName,
		&submission.Location, &submission.SizeBytes, &submission.DurationSeconds, &submission.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select submission: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: s}
}

var _ AccountRepository = (*PostgresAccountRepository)(nil)
var _ EventRepository = (*PostgresEventRepository)(nil)
var _ InvitationRepository = (*PostgresInvitationRepository)(nil)
var _ SubmissionRepository = (*PostgresSubmissionRepository)(nil)
