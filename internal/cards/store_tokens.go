package cards

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrTokenInvalid covers unknown, expired, and wrong-organization tokens.
// Callers get one error for all three so a probing client learns nothing.
var ErrTokenInvalid = errors.New("scan token invalid or expired")

const tokenColumns = "token, org_id, user_id, expires_at, used_at, created_at"

// CreateScanToken mints a short-lived token a phone can redeem via QR code.
func (s *Store) CreateScanToken(ctx context.Context, orgID, userID string, ttl time.Duration) (*ScanToken, error) {
	if orgID == "" || userID == "" {
		return nil, errors.New("org and user are required")
	}
	now := time.Now().UTC()
	token := &ScanToken{
		Token:     uuid.NewString(),
		OrgID:     orgID,
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO scan_tokens (token, org_id, user_id, expires_at, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		token.Token,
		token.OrgID,
		token.UserID,
		token.ExpiresAt.Format(time.RFC3339Nano),
		token.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("create scan token: %w", err)
	}
	return token, nil
}

// RedeemScanToken validates a token against the organization of the session
// being joined and marks it used on first redemption. Expired tokens are
// deleted on sight; a periodic purge is unnecessary.
func (s *Store) RedeemScanToken(ctx context.Context, orgID, token string) (*ScanToken, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+tokenColumns+` FROM scan_tokens WHERE token = ?`,
		token,
	)
	record, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("load scan token: %w", err)
	}

	now := time.Now().UTC()
	if record.Expired(now) {
		_, _ = s.execWithRetry(ctx, `DELETE FROM scan_tokens WHERE token = ?`, token)
		return nil, ErrTokenInvalid
	}
	if record.OrgID != orgID {
		return nil, ErrTokenInvalid
	}

	if record.UsedAt == nil {
		usedAt := now
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE scan_tokens SET used_at = ? WHERE token = ? AND used_at IS NULL`,
			usedAt.Format(time.RFC3339Nano),
			token,
		); err != nil {
			return nil, fmt.Errorf("mark scan token used: %w", err)
		}
		record.UsedAt = &usedAt
	}
	return record, nil
}

// PurgeExpiredTokens removes every token past expiry. Called opportunistically
// when tokens are minted so the table stays small.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM scan_tokens WHERE expires_at < ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("purge scan tokens: %w", err)
	}
	return res.RowsAffected()
}

func scanToken(scanner interface{ Scan(dest ...any) error }) (*ScanToken, error) {
	var (
		token      string
		orgID      string
		userID     string
		expiresRaw string
		usedRaw    sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&token, &orgID, &userID, &expiresRaw, &usedRaw, &createdRaw); err != nil {
		return nil, err
	}

	record := &ScanToken{Token: token, OrgID: orgID, UserID: userID}
	if expires, err := parseTimeString(expiresRaw); err == nil {
		record.ExpiresAt = expires
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if usedRaw.Valid {
		if used, err := parseTimeString(usedRaw.String); err == nil {
			record.UsedAt = &used
		}
	}
	return record, nil
}
