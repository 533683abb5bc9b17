package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/crypto"
)

// CredentialRepositoryMSSQL is the Azure SQL variant used in production.
type CredentialRepositoryMSSQL struct {
	db     *sql.DB
	cipher *crypto.TokenCipher
}

func NewCredentialRepositoryMSSQL(db *sql.DB, cipher *crypto.TokenCipher) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db, cipher: cipher}
}

// EnsureCredentialSchemaMSSQL creates the oauth_credentials table for SQL Server if it does not exist.
func EnsureCredentialSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.oauth_credentials') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[oauth_credentials] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        identity_ref NVARCHAR(128) NULL,
        identity_name NVARCHAR(255) NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NULL,
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_oauth_credentials_user_platform_identity
        ON dbo.[oauth_credentials](user_id, platform, identity_ref);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create oauth_credentials (mssql): %w", err)
	}
	return nil
}

func (r *CredentialRepositoryMSSQL) Get(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error) {
	if identity != nil && *identity != "" {
		row := r.db.QueryRowContext(ctx,
			`SELECT TOP 1 `+credentialColumns+` FROM oauth_credentials WHERE user_id=@p1 AND platform=@p2 AND identity_ref=@p3`,
			userID, string(platform), *identity)
		cred, err := r.scan(row)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 `+credentialColumns+` FROM oauth_credentials WHERE user_id=@p1 AND platform=@p2 ORDER BY updated_at DESC`,
		userID, string(platform))
	return r.scan(row)
}

func (r *CredentialRepositoryMSSQL) scan(row *sql.Row) (*model.Credential, error) {
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

// Upsert uses MERGE keyed by (user_id, platform, identity_ref).
func (r *CredentialRepositoryMSSQL) Upsert(ctx context.Context, cred *model.Credential) error {
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

	q := `MERGE dbo.[oauth_credentials] AS t
USING (SELECT @p1 AS user_id, @p2 AS platform, @p3 AS identity_ref) AS s
ON t.user_id = s.user_id AND t.platform = s.platform AND ISNULL(t.identity_ref,'') = ISNULL(s.identity_ref,'')
WHEN MATCHED THEN UPDATE SET
    identity_name=@p4, access_token=@p5, refresh_token=@p6, expires_at=@p7, scopes=@p8, updated_at=@p10
WHEN NOT MATCHED THEN INSERT (user_id, platform, identity_ref, identity_name, access_token, refresh_token, expires_at, scopes, created_at, updated_at)
    VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10);`
	_, err = r.db.ExecContext(ctx, q,
		cred.UserID, string(cred.Platform), cred.IdentityRef, cred.IdentityName,
		accessEnc, nullIfEmpty(refreshEnc), cred.ExpiresAt, cred.Scopes, cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (r *CredentialRepositoryMSSQL) UpdateTokens(ctx context.Context, id int64, pair model.TokenPair) error {
	accessEnc, err := r.cipher.Encrypt(pair.AccessToken)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if pair.RefreshToken != "" {
		refreshEnc, encErr := r.cipher.Encrypt(pair.RefreshToken)
		if encErr != nil {
			return encErr
		}
		_, err = r.db.ExecContext(ctx,
			`UPDATE oauth_credentials SET access_token=@p1, refresh_token=@p2, expires_at=@p3, updated_at=@p4 WHERE id=@p5`,
			accessEnc, refreshEnc, pair.ExpiresAt, now, id)
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE oauth_credentials SET access_token=@p1, expires_at=@p2, updated_at=@p3 WHERE id=@p4`,
		accessEnc, pair.ExpiresAt, now, id)
	return err
}

func (r *CredentialRepositoryMSSQL) Delete(ctx context.Context, userID string, platform model.Platform, identity *string) error {
	if identity != nil && *identity != "" {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM oauth_credentials WHERE user_id=@p1 AND platform=@p2 AND identity_ref=@p3`,
			userID, string(platform), *identity)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_credentials WHERE user_id=@p1 AND platform=@p2`, userID, string(platform))
	return err
}

func (r *CredentialRepositoryMSSQL) ListForUser(ctx context.Context, userID string) ([]model.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=@p1 ORDER BY platform, identity_ref`, userID)
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
