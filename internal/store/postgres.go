package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrSlugConflict reports an equipment insert that lost to an existing slug.
var ErrSlugConflict = errors.New("equipment slug already exists")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.Role, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, is_email_verified
		FROM users WHERE LOWER(email)=LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	return nil
}

// ---- sessions / token revocation ----

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.DisplayName, &user.Email, &user.Role)
	if err != nil {
		return User{}, err
	}
	if user.Role == "" {
		user.Role = "viewer"
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ---- reviews ----

func (s *PostgresStore) InsertReview(ctx context.Context, item Review) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, equipment_id, submitter_id, rating, title, body, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.EquipmentID, item.SubmitterID, item.Rating, item.Title, item.Body, item.Status)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReview(ctx context.Context, reviewID string) (Review, error) {
	var item Review
	err := s.db.QueryRowContext(ctx, `
		SELECT id, equipment_id, submitter_id, rating, title, body, status, published,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM reviews WHERE id=$1
	`, reviewID).Scan(
		&item.ID, &item.EquipmentID, &item.SubmitterID, &item.Rating, &item.Title, &item.Body,
		&item.Status, &item.Published, &item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Review{}, err
	}
	return item, nil
}

// MarkReviewAwaitingSecond advances a pending review to
// awaiting_second_approval. The status predicate makes the transition a
// compare-and-swap: a concurrent caller that already advanced the row causes
// this update to report false instead of clobbering it.
func (s *PostgresStore) MarkReviewAwaitingSecond(ctx context.Context, reviewID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET status=$2, updated_at=NOW()
		WHERE id=$1 AND status=$3
	`, reviewID, StatusAwaitingSecond, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark review awaiting second: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark review awaiting second rows: %w", err)
	}
	return affected > 0, nil
}

// PublishReview transitions a review to approved and applies the publication
// side effect in the same statement, so the two can never diverge. from lists
// the statuses the row may currently hold.
func (s *PostgresStore) PublishReview(ctx context.Context, reviewID, moderatorID string, from ...string) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("publish review: no source statuses")
	}
	placeholders := make([]string, len(from))
	args := []any{reviewID, moderatorID}
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, status)
	}
	query := fmt.Sprintf(`
		UPDATE reviews SET status='approved', published=TRUE, moderator_id=$2, updated_at=NOW()
		WHERE id=$1 AND status IN (%s)
	`, strings.Join(placeholders, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("publish review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish review rows: %w", err)
	}
	return affected > 0, nil
}

// RejectReview rejects a review still in pending. Rejection is defined from
// the initial stage only.
func (s *PostgresStore) RejectReview(ctx context.Context, reviewID, moderatorID, notes string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reviews SET status=$2, moderator_id=$3, moderator_notes=$4, updated_at=NOW()
		WHERE id=$1 AND status=$5
	`, reviewID, StatusRejected, moderatorID, notes, StatusPending)
	if err != nil {
		return false, fmt.Errorf("reject review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject review rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListReviewsByStatus(ctx context.Context, status string, limit, offset int) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, equipment_id, submitter_id, rating, title, body, status, published,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM reviews
		WHERE status=$1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	items := make([]Review, 0)
	for rows.Next() {
		var item Review
		if err := rows.Scan(
			&item.ID, &item.EquipmentID, &item.SubmitterID, &item.Rating, &item.Title, &item.Body,
			&item.Status, &item.Published, &item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ReviewStatusCounts(ctx context.Context) (StatusCounts, error) {
	return s.statusCounts(ctx, "reviews", StatusAwaitingSecond)
}

// ---- player edits ----

func (s *PostgresStore) InsertPlayerEdit(ctx context.Context, item PlayerEdit) error {
	fields, err := json.Marshal(item.Fields)
	if err != nil {
		return fmt.Errorf("marshal edit fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO player_edits (id, player_id, submitter_id, fields, status)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.PlayerID, item.SubmitterID, fields, item.Status)
	if err != nil {
		return fmt.Errorf("insert player edit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPlayerEdit(ctx context.Context, editID string) (PlayerEdit, error) {
	var item PlayerEdit
	var fields []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, player_id, submitter_id, fields, status,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM player_edits WHERE id=$1
	`, editID).Scan(
		&item.ID, &item.PlayerID, &item.SubmitterID, &fields, &item.Status,
		&item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return PlayerEdit{}, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &item.Fields); err != nil {
			return PlayerEdit{}, fmt.Errorf("unmarshal edit fields: %w", err)
		}
	}
	return item, nil
}

// MergePlayerFields applies a partial diff onto the player row. Only known
// columns are writable; unknown keys are rejected as bad submissions.
func (s *PostgresStore) MergePlayerFields(ctx context.Context, playerID string, fields map[string]string) error {
	allowed := map[string]string{
		"name":            "name",
		"country":         "country",
		"grip":            "grip",
		"blade":           "blade",
		"forehand_rubber": "forehand_rubber",
		"backhand_rubber": "backhand_rubber",
	}
	assignments := make([]string, 0, len(fields))
	args := []any{playerID}
	argN := 2
	for key, value := range fields {
		column, ok := allowed[key]
		if !ok {
			return fmt.Errorf("merge player fields: unknown field %q", key)
		}
		assignments = append(assignments, fmt.Sprintf("%s=$%d", column, argN))
		args = append(args, value)
		argN++
	}
	if len(assignments) == 0 {
		return fmt.Errorf("merge player fields: empty diff")
	}
	query := fmt.Sprintf(`UPDATE players SET %s, updated_at=NOW() WHERE id=$1`, strings.Join(assignments, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("merge player fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("merge player fields rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ApprovePlayerEdit(ctx context.Context, editID, moderatorID string) (bool, error) {
	return s.singleStageTransition(ctx, "player_edits", editID, StatusApproved, moderatorID, "")
}

func (s *PostgresStore) RejectPlayerEdit(ctx context.Context, editID, moderatorID, notes string) (bool, error) {
	return s.singleStageTransition(ctx, "player_edits", editID, StatusRejected, moderatorID, notes)
}

func (s *PostgresStore) ListPlayerEditsByStatus(ctx context.Context, status string, limit, offset int) ([]PlayerEdit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_id, submitter_id, fields, status,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM player_edits
		WHERE status=$1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list player edits: %w", err)
	}
	defer rows.Close()

	items := make([]PlayerEdit, 0)
	for rows.Next() {
		var item PlayerEdit
		var fields []byte
		if err := rows.Scan(
			&item.ID, &item.PlayerID, &item.SubmitterID, &fields, &item.Status,
			&item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan player edit: %w", err)
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &item.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal edit fields: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player edits: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) PlayerEditStatusCounts(ctx context.Context) (StatusCounts, error) {
	return s.statusCounts(ctx, "player_edits", "")
}

func (s *PostgresStore) GetPlayer(ctx context.Context, playerID string) (Player, error) {
	var item Player
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, country, grip, blade, forehand_rubber, backhand_rubber, updated_at
		FROM players WHERE id=$1
	`, playerID).Scan(
		&item.ID, &item.Slug, &item.Name, &item.Country, &item.Grip,
		&item.Blade, &item.ForehandRubber, &item.BackhandRubber, &item.UpdatedAt,
	)
	if err != nil {
		return Player{}, err
	}
	return item, nil
}

// ---- equipment submissions ----

func (s *PostgresStore) InsertEquipmentSubmission(ctx context.Context, item EquipmentSubmission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equipment_submissions (id, submitter_id, name, brand, category, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.SubmitterID, item.Name, item.Brand, item.Category, item.Description, item.Status)
	if err != nil {
		return fmt.Errorf("insert equipment submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEquipmentSubmission(ctx context.Context, submissionID string) (EquipmentSubmission, error) {
	var item EquipmentSubmission
	err := s.db.QueryRowContext(ctx, `
		SELECT id, submitter_id, name, brand, category, description, status,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM equipment_submissions WHERE id=$1
	`, submissionID).Scan(
		&item.ID, &item.SubmitterID, &item.Name, &item.Brand, &item.Category, &item.Description,
		&item.Status, &item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return EquipmentSubmission{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetEquipment(ctx context.Context, equipmentID string) (Equipment, error) {
	var item Equipment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, brand, category, description, created_by, created_at, updated_at
		FROM equipment WHERE id=$1
	`, equipmentID).Scan(
		&item.ID, &item.Slug, &item.Name, &item.Brand, &item.Category,
		&item.Description, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Equipment{}, err
	}
	return item, nil
}

// InsertEquipment materializes an approved submission. The slug carries a
// unique index; a collision surfaces as ErrSlugConflict so the caller can
// leave the submission pending.
func (s *PostgresStore) InsertEquipment(ctx context.Context, item Equipment) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO equipment (id, slug, name, brand, category, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (slug) DO NOTHING
	`, item.ID, item.Slug, item.Name, item.Brand, item.Category, item.Description, item.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert equipment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert equipment rows: %w", err)
	}
	if affected == 0 {
		return ErrSlugConflict
	}
	return nil
}

func (s *PostgresStore) ApproveEquipmentSubmission(ctx context.Context, submissionID, moderatorID string) (bool, error) {
	return s.singleStageTransition(ctx, "equipment_submissions", submissionID, StatusApproved, moderatorID, "")
}

func (s *PostgresStore) RejectEquipmentSubmission(ctx context.Context, submissionID, moderatorID, notes string) (bool, error) {
	return s.singleStageTransition(ctx, "equipment_submissions", submissionID, StatusRejected, moderatorID, notes)
}

func (s *PostgresStore) ListEquipmentSubmissionsByStatus(ctx context.Context, status string, limit, offset int) ([]EquipmentSubmission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submitter_id, name, brand, category, description, status,
			COALESCE(moderator_id, ''), COALESCE(moderator_notes, ''), created_at, updated_at
		FROM equipment_submissions
		WHERE status=$1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list equipment submissions: %w", err)
	}
	defer rows.Close()

	items := make([]EquipmentSubmission, 0)
	for rows.Next() {
		var item EquipmentSubmission
		if err := rows.Scan(
			&item.ID, &item.SubmitterID, &item.Name, &item.Brand, &item.Category, &item.Description,
			&item.Status, &item.ModeratorID, &item.ModeratorNotes, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan equipment submission: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equipment submissions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) EquipmentSubmissionStatusCounts(ctx context.Context) (StatusCounts, error) {
	return s.statusCounts(ctx, "equipment_submissions", "")
}

// ---- moderation action log ----

func (s *PostgresStore) InsertModerationAction(ctx context.Context, action ModerationAction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_actions (item_id, item_type, moderator_id, action, reason)
		VALUES ($1, $2, $3, $4, $5)
	`, action.ItemID, action.ItemType, action.ModeratorID, action.Action, action.Reason)
	if err != nil {
		return fmt.Errorf("insert moderation action: %w", err)
	}
	return nil
}

// ApprovedModerators returns the distinct moderator identities that have
// recorded an approval against the item. This backs the two-distinct-moderator
// consensus rule.
func (s *PostgresStore) ApprovedModerators(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT moderator_id FROM moderation_actions
		WHERE item_id=$1 AND action=$2
	`, itemID, ActionApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved moderators: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan moderator id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderators: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListModerationActions(ctx context.Context, itemID string, limit int) ([]ModerationAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, item_id, item_type, moderator_id, action, reason, created_at
		FROM moderation_actions
	`
	args := []any{}
	if itemID != "" {
		query += ` WHERE item_id=$1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, itemID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	defer rows.Close()

	items := make([]ModerationAction, 0)
	for rows.Next() {
		var item ModerationAction
		if err := rows.Scan(&item.ID, &item.ItemID, &item.ItemType, &item.ModeratorID, &item.Action, &item.Reason, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation actions: %w", err)
	}
	return items, nil
}

// ---- shared helpers ----

// singleStageTransition is the conditional update shared by the two
// single-stage kinds: pending is the only state either terminal can be
// reached from.
func (s *PostgresStore) singleStageTransition(ctx context.Context, table, id, to, moderatorID, notes string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET status=$2, moderator_id=$3, moderator_notes=$4, updated_at=NOW()
		WHERE id=$1 AND status=$5
	`, table)
	result, err := s.db.ExecContext(ctx, query, id, to, moderatorID, notes, StatusPending)
	if err != nil {
		return false, fmt.Errorf("transition %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition %s rows: %w", table, err)
	}
	return affected > 0, nil
}

// statusCounts aggregates a moderation table by status. awaitingStatus, when
// set, is folded into the pending bucket: a review awaiting its second
// approval is still queue work.
func (s *PostgresStore) statusCounts(ctx context.Context, table, awaitingStatus string) (StatusCounts, error) {
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM %s GROUP BY status`, table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, fmt.Errorf("scan %s count: %w", table, err)
		}
		switch status {
		case StatusPending:
			counts.Pending += count
		case StatusApproved:
			counts.Approved += count
		case StatusRejected:
			counts.Rejected += count
		default:
			if awaitingStatus != "" && status == awaitingStatus {
				counts.Pending += count
			}
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("iterate %s counts: %w", table, err)
	}
	return counts, nil
}
