package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/api/polar"
	"github.com/endurain/backend/pkg/crypto"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PolarAccountRepository interface {
	GetOrCreate(ctx context.Context, userID string) (*entity.PolarAccount, error)
	GetByUserID(ctx context.Context, userID string) (*entity.PolarAccount, error)
	GetByState(ctx context.Context, state string) (*entity.PolarAccount, error)
	GetByPolarUserID(ctx context.Context, polarUserID int64) (*entity.PolarAccount, error)
	SetState(ctx context.Context, userID, state string) error
	SetClientCredentials(ctx context.Context, userID, clientID, clientSecret string) error
	StoreTokenPayload(ctx context.Context, account *entity.PolarAccount, payload polar.TokenPayload, scope string) error
	StoreRegistrationDetails(ctx context.Context, account *entity.PolarAccount, registration polar.Registration) error
	SetLastNotification(ctx context.Context, account *entity.PolarAccount, at time.Time) error
	Unlink(ctx context.Context, userID string) error
	DecryptClientCredentials(account *entity.PolarAccount) (clientID, clientSecret string, err error)
	DecryptAccessToken(account *entity.PolarAccount) (string, error)
}

// polarAccountRepository owns the encryption boundary. Secrets go through the
// cipher on the way in and out, nothing outside this package sees ciphertext.
type polarAccountRepository struct {
	cipher crypto.Cipher
}

func NewPolarAccountRepository(cipher crypto.Cipher) *polarAccountRepository {
	return &polarAccountRepository{cipher: cipher}
}

func (r *polarAccountRepository) GetOrCreate(
	ctx context.Context, userID string,
) (*entity.PolarAccount, error) {
	account, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if account != nil {
		return account, nil
	}

	account = &entity.PolarAccount{
		Base:     entity.Base{ID: uuid.NewString()},
		UserID:   userID,
		IsLinked: false,
	}

	if err := xcontext.DB(ctx).Create(account).Error; err != nil {
		// Another request may have created the row in between. Prefer the
		// winner over the creation error.
		if existing, ferr := r.GetByUserID(ctx, userID); ferr == nil && existing != nil {
			return existing, nil
		}

		return nil, err
	}

	return account, nil
}

func (r *polarAccountRepository) GetByUserID(
	ctx context.Context, userID string,
) (*entity.PolarAccount, error) {
	var result entity.PolarAccount
	if err := xcontext.DB(ctx).Take(&result, "user_id=?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &result, nil
}

func (r *polarAccountRepository) GetByState(
	ctx context.Context, state string,
) (*entity.PolarAccount, error) {
	if state == "" {
		return nil, nil
	}

	var result entity.PolarAccount
	if err := xcontext.DB(ctx).Take(&result, "state=?", state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &result, nil
}

func (r *polarAccountRepository) GetByPolarUserID(
	ctx context.Context, polarUserID int64,
) (*entity.PolarAccount, error) {
	if polarUserID == 0 {
		return nil, nil
	}

	var result entity.PolarAccount
	if err := xcontext.DB(ctx).Take(&result, "polar_user_id=?", polarUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &result, nil
}

// SetState stores the OAuth2 state handed out for the next authorization
// round trip. The literal string "null" and the empty string both clear it.
func (r *polarAccountRepository) SetState(ctx context.Context, userID, state string) error {
	account, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"state":           sql.NullString{},
		"state_issued_at": sql.NullTime{},
	}
	if state != "" && state != "null" {
		updates["state"] = sql.NullString{Valid: true, String: state}
		updates["state_issued_at"] = sql.NullTime{Valid: true, Time: time.Now()}
	}

	return xcontext.DB(ctx).Model(account).Updates(updates).Error
}

func (r *polarAccountRepository) SetClientCredentials(
	ctx context.Context, userID, clientID, clientSecret string,
) error {
	if clientID == "" || clientSecret == "" {
		return errorx.New(errorx.BadRequest, "Client ID and secret are required")
	}

	account, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	encryptedID, err := r.cipher.Encrypt(clientID)
	if err != nil {
		return err
	}

	encryptedSecret, err := r.cipher.Encrypt(clientSecret)
	if err != nil {
		return err
	}

	return xcontext.DB(ctx).Model(account).Updates(map[string]any{
		"client_id":     sql.NullString{Valid: true, String: encryptedID},
		"client_secret": sql.NullString{Valid: true, String: encryptedSecret},
	}).Error
}

// StoreTokenPayload persists a freshly exchanged access token and marks the
// account linked. The pending state is consumed in the same update.
func (r *polarAccountRepository) StoreTokenPayload(
	ctx context.Context, account *entity.PolarAccount, payload polar.TokenPayload, scope string,
) error {
	encryptedToken, err := r.cipher.Encrypt(payload.AccessToken)
	if err != nil {
		return err
	}

	issuedAt := time.Now()
	account.AccessToken = sql.NullString{Valid: true, String: encryptedToken}
	account.TokenType = sql.NullString{Valid: payload.TokenType != "", String: payload.TokenType}
	account.TokenScope = sql.NullString{Valid: scope != "", String: scope}
	account.TokenIssuedAt = sql.NullTime{Valid: true, Time: issuedAt}
	account.TokenExpiresAt = sql.NullTime{}
	if payload.ExpiresIn > 0 {
		account.TokenExpiresAt = sql.NullTime{
			Valid: true,
			Time:  issuedAt.Add(time.Duration(payload.ExpiresIn) * time.Second),
		}
	}
	account.XUserID = sql.NullInt64{Valid: payload.XUserID != 0, Int64: payload.XUserID}
	account.IsLinked = true
	account.State = sql.NullString{}
	account.StateIssuedAt = sql.NullTime{}

	return xcontext.DB(ctx).Save(account).Error
}

func (r *polarAccountRepository) StoreRegistrationDetails(
	ctx context.Context, account *entity.PolarAccount, registration polar.Registration,
) error {
	account.PolarUserID = sql.NullInt64{
		Valid: registration.PolarUserID != 0, Int64: registration.PolarUserID,
	}
	account.MemberID = sql.NullString{
		Valid: registration.MemberID != "", String: registration.MemberID,
	}

	// AccessLink reports the registration date as an ISO-8601 timestamp, a
	// trailing Z meaning UTC. A malformed value is a storage error, never
	// silently kept as text.
	account.RegistrationDate = sql.NullTime{}
	if registration.RegistrationDate != "" {
		parsed, err := time.Parse(time.RFC3339, registration.RegistrationDate)
		if err != nil {
			return fmt.Errorf("invalid registration date %q: %w",
				registration.RegistrationDate, err)
		}

		account.RegistrationDate = sql.NullTime{Valid: true, Time: parsed}
	}

	return xcontext.DB(ctx).Save(account).Error
}

func (r *polarAccountRepository) SetLastNotification(
	ctx context.Context, account *entity.PolarAccount, at time.Time,
) error {
	return xcontext.DB(ctx).Model(account).
		Update("last_notification_at", sql.NullTime{Valid: true, Time: at}).Error
}

// Unlink clears tokens, registration details, and any pending state. Client
// credentials are kept so the user can relink without re-entering them.
func (r *polarAccountRepository) Unlink(ctx context.Context, userID string) error {
	account, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if account == nil {
		return nil
	}

	return xcontext.DB(ctx).Model(account).Updates(map[string]any{
		"access_token":      sql.NullString{},
		"token_type":        sql.NullString{},
		"token_scope":       sql.NullString{},
		"token_issued_at":   sql.NullTime{},
		"token_expires_at":  sql.NullTime{},
		"x_user_id":         sql.NullInt64{},
		"polar_user_id":     sql.NullInt64{},
		"member_id":         sql.NullString{},
		"registration_date": sql.NullTime{},
		"is_linked":         false,
		"state":             sql.NullString{},
		"state_issued_at":   sql.NullTime{},
	}).Error
}

func (r *polarAccountRepository) DecryptClientCredentials(
	account *entity.PolarAccount,
) (string, string, error) {
	if !account.ClientID.Valid || !account.ClientSecret.Valid {
		return "", "", errorx.New(errorx.BadRequest, "Polar client ID and secret are not set")
	}

	clientID, err := r.cipher.Decrypt(account.ClientID.String)
	if err != nil {
		return "", "", err
	}

	clientSecret, err := r.cipher.Decrypt(account.ClientSecret.String)
	if err != nil {
		return "", "", err
	}

	return clientID, clientSecret, nil
}

func (r *polarAccountRepository) DecryptAccessToken(account *entity.PolarAccount) (string, error) {
	if !account.AccessToken.Valid {
		return "", errorx.New(errorx.FailedDependency, "Polar access token not found")
	}

	return r.cipher.Decrypt(account.AccessToken.String)
}
