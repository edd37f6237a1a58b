package repository

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tuition_billing/internal/config/connections/postgres"
)

var ErrTokenNotFound = errors.New("token not found")

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

// OperatorTokenableType is the owner type of tokens issued to school admins.
const OperatorTokenableType = "App\\Models\\User"

type PersonalAccessTokenRepository struct {
	pg     *postgres.Postgres
	logger *logrus.Logger
}

func NewPersonalAccessTokenRepository(pg *postgres.Postgres, logger *logrus.Logger) *PersonalAccessTokenRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PersonalAccessTokenRepository{pg: pg, logger: logger}
}

// SplitPlainToken separates the optional "<id>|" prefix of a Sanctum style
// token from its secret part.
func SplitPlainToken(plainToken string) (id *int64, secret string) {
	plainToken = strings.TrimSpace(plainToken)
	idx := strings.Index(plainToken, "|")
	if idx <= 0 {
		return nil, plainToken
	}
	n, err := strconv.ParseInt(plainToken[:idx], 10, 64)
	if err != nil {
		return nil, plainToken
	}
	return &n, plainToken[idx+1:]
}

func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func tokenMatches(stored, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(hash)) == 1
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*PersonalAccessToken, error) {
	tokenID, secret := SplitPlainToken(plainToken)
	if secret == "" {
		return nil, errors.New("empty token")
	}
	hash := HashToken(secret)

	var pat PersonalAccessToken
	if tokenID != nil {
		err := r.pg.Pool.QueryRow(ctx, `
			SELECT id, token, tokenable_id, abilities, expires_at
			FROM personal_access_tokens
			WHERE id = $1
			  AND tokenable_type = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		`, *tokenID, OperatorTokenableType, time.Now()).Scan(
			&pat.ID, &pat.TokenHash, &pat.UserID, &pat.Abilities, &pat.ExpiresAt,
		)
		if err == nil && tokenMatches(pat.TokenHash, hash) {
			return &pat, nil
		}
		r.logger.WithField("token_id", *tokenID).Debug("[TOKEN] lookup by id did not match")
	}

	err := r.pg.Pool.QueryRow(ctx, `
		SELECT id, token, tokenable_id, abilities, expires_at
		FROM personal_access_tokens
		WHERE tokenable_type = $1
		  AND token = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, OperatorTokenableType, hash, time.Now()).Scan(
		&pat.ID, &pat.TokenHash, &pat.UserID, &pat.Abilities, &pat.ExpiresAt,
	)
	if err != nil {
		return nil, ErrTokenNotFound
	}

	r.logger.WithFields(logrus.Fields{"token_id": pat.ID, "user_id": pat.UserID}).Debug("[TOKEN] found")
	return &pat, nil
}

// Issue stores a new token for an operator and returns it in "<id>|<secret>"
// form. The secret itself is only kept as a hash.
func (r *PersonalAccessTokenRepository) Issue(ctx context.Context, userID int64, name, secret string, expiresAt *time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("empty secret")
	}
	var id int64
	err := r.pg.Pool.QueryRow(ctx, `
		INSERT INTO personal_access_tokens (tokenable_type, tokenable_id, name, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, OperatorTokenableType, userID, name, HashToken(secret), expiresAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10) + "|" + secret, nil
}
