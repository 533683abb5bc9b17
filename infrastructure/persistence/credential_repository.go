package persistence

import (
	"context"
	"database/sql"
	"time"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/crypto"
)

// CredentialRepository stores OAuth grants in PostgreSQL, encrypted at rest.
type CredentialRepository struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
	caps   SchemaCapabilities
}

func NewCredentialRepository(db *sql.DB, cipher *crypto.TokenCipher, caps SchemaCapabilities) *CredentialRepository {
	return &CredentialRepository{db: db, cipher: cipher, caps: caps}
}

const credentialColumns = `id, user_id, platform, identity_ref, identity_name, access_token, refresh_token, expires_at, scopes, created_at, updated_at`

// Get resolves (user, platform, identity): the explicitly linked row wins,
// otherwise any credential the user holds for the platform.
// Returns (nil, nil) on miss; decryption failures surface crypto.ErrDecrypt.
func (r *CredentialRepository) Get(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error) {
	if identity != nil && *identity != "" {
		row := r.db.QueryRowContext(ctx,
			`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 AND identity_ref=$3`,
			userID, platform, *identity)
		cred, err := r.scan(row)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 ORDER BY updated_at DESC LIMIT 1`,
		userID, platform)
	return r.scan(row)
}

func (r *CredentialRepository) scan(row *sql.Row) (*model.Credential, error) {
	cred := &model.Credential{}
	var identityRef, identityName, refreshEnc sql.NullString
	var accessEnc string
	var exp sql.NullTime
	err := row.Scan(&cred.ID, &cred.UserID, &cred.Platform, &identityRef, &identityName,
		&accessEnc, &refreshEnc, &exp, &cred.Scopes, &cred.CreatedAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if identityRef.Valid {
		v := identityRef.String
		cred.IdentityRef = &v
	}
	if identityName.Valid {
		v := identityName.String
		cred.IdentityName = &v
	}
	if exp.Valid {
		t := exp.Time
		cred.ExpiresAt = &t
	}
	if cred.AccessToken, err = r.cipher.Decrypt(accessEnc); err != nil {
		return nil, err
	}
	if refreshEnc.Valid {
		if cred.RefreshToken, err = r.cipher.Decrypt(refreshEnc.String); err != nil {
			return nil, err
		}
	}
	return cred, nil
}

// Upsert inserts or replaces the grant. When the schema carries the identity
// column the conflict target includes it; otherwise (user, platform) alone.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *model.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	accessEnc, err := r.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := r.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}

	if r.caps.HasIdentityColumn {
		q := `INSERT INTO oauth_credentials (user_id, platform, identity_ref, identity_name, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
			  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			  ON CONFLICT (user_id, platform, COALESCE(identity_ref, '')) DO UPDATE SET
				identity_name=EXCLUDED.identity_name,
				access_token=EXCLUDED.access_token,
				refresh_token=EXCLUDED.refresh_token,
				expires_at=EXCLUDED.expires_at,
				scopes=EXCLUDED.scopes,
				updated_at=EXCLUDED.updated_at`
		_, err = r.db.ExecContext(ctx, q, cred.UserID, cred.Platform, cred.IdentityRef, cred.IdentityName,
			accessEnc, nullIfEmpty(refreshEnc), cred.ExpiresAt, cred.Scopes, cred.CreatedAt, cred.UpdatedAt)
		return err
	}

	q := `INSERT INTO oauth_credentials (user_id, platform, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			updated_at=EXCLUDED.updated_at`
	_, err = r.db.ExecContext(ctx, q, cred.UserID, cred.Platform,
		accessEnc, nullIfEmpty(refreshEnc), cred.ExpiresAt, cred.Scopes, cred.CreatedAt, cred.UpdatedAt)
	return err
}

// UpdateTokens replaces the access token in place after a refresh, keeping
// the stored refresh token unless the provider rotated it.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, id int64, pair model.TokenPair) error {
	accessEnc, err := r.cipher.Encrypt(pair.AccessToken)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if pair.RefreshToken != "" {
		refreshEnc, err := r.cipher.Encrypt(pair.RefreshToken)
		if err != nil {
			return err
		}
		_, err = r.db.ExecContext(ctx,
			`UPDATE oauth_credentials SET access_token=$1, refresh_token=$2, expires_at=$3, updated_at=$4 WHERE id=$5`,
			accessEnc, refreshEnc, pair.ExpiresAt, now, id)
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE oauth_credentials SET access_token=$1, expires_at=$2, updated_at=$3 WHERE id=$4`,
		accessEnc, pair.ExpiresAt, now, id)
	return err
}

// Delete removes the grant on explicit disconnect.
func (r *CredentialRepository) Delete(ctx context.Context, userID string, platform model.Platform, identity *string) error {
	if identity != nil && *identity != "" {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM oauth_credentials WHERE user_id=$1 AND platform=$2 AND identity_ref=$3`,
			userID, platform, *identity)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_credentials WHERE user_id=$1 AND platform=$2`, userID, platform)
	return err
}

// ListForUser returns every credential the user holds, decrypted.
func (r *CredentialRepository) ListForUser(ctx context.Context, userID string) ([]model.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 ORDER BY platform, identity_ref`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Credential
	for rows.Next() {
		cred := model.Credential{}
		var identityRef, identityName, refreshEnc sql.NullString
		var accessEnc string
		var exp sql.NullTime
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.Platform, &identityRef, &identityName,
			&accessEnc, &refreshEnc, &exp, &cred.Scopes, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
			return nil, err
		}
		if identityRef.Valid {
			v := identityRef.String
			cred.IdentityRef = &v
		}
		if identityName.Valid {
			v := identityName.String
			cred.IdentityName = &v
		}
		if exp.Valid {
			t := exp.Time
			cred.ExpiresAt = &t
		}
		if cred.AccessToken, err = r.cipher.Decrypt(accessEnc); err != nil {
			return nil, err
		}
		if refreshEnc.Valid {
			if cred.RefreshToken, err = r.cipher.Decrypt(refreshEnc.String); err != nil {
				return nil, err
			}
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
