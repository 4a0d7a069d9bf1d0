package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gbrlsnchs/jwt/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidToken     = errors.New("invalid or expired session")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrInvalidOTP       = errors.New("the verification code is wrong or has expired")
	ErrEmailRequired    = errors.New("email is required")
)

const minPasswordLength = 6

// Identity is the authenticated user of a request.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"-"`
}

type sessionClaims struct {
	jwt.Payload
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// AuthService verifies session tokens issued by the managed auth service and
// proxies its password reset flow.
type AuthService struct {
	BaseURL string
	AnonKey string
	HTTP    *http.Client
	Log     zerolog.Logger
	Now     func() time.Time

	alg *jwt.HMACSHA
}

// NewAuthService returns an AuthService for a GoTrue compatible endpoint.
// secret is the HS256 key the endpoint signs sessions with.
func NewAuthService(baseURL, anonKey, secret string, log zerolog.Logger) *AuthService {
	return &AuthService{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AnonKey: anonKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		Log:     log.With().Str("component", "auth").Logger(),
		Now:     time.Now,
		alg:     jwt.NewHS256([]byte(secret)),
	}
}

// Verify checks the signature and expiry of token and returns its subject.
func (a *AuthService) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var claims sessionClaims
	_, err := jwt.Verify([]byte(token), a.alg, &claims,
		jwt.ValidatePayload(&claims.Payload, jwt.ExpirationTimeValidator(a.Now())))
	if err != nil {
		a.Log.Debug().Err(err).Msg("token rejected")
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, Token: token}, nil
}

// IssueToken signs a session for userID. Used by tooling and tests; production
// sessions come from the auth service.
func (a *AuthService) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	now := a.Now()
	token, err := jwt.Sign(sessionClaims{
		Payload: jwt.Payload{
			Subject:        userID,
			IssuedAt:       jwt.NumericDate(now),
			ExpirationTime: jwt.NumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  "authenticated",
	}, a.alg)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return string(token), nil
}

// SendPasswordResetOTP emails a one-time code to an existing user.
func (a *AuthService) SendPasswordResetOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	err := a.call(ctx, http.MethodPost, "/otp", "", map[string]interface{}{
		"email":       email,
		"create_user": false,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "send otp")
	}
	a.Log.Info().Str("email", email).Msg("📧 password reset code sent")
	return nil
}

// PasswordReset is the reset form.
type PasswordReset struct {
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ValidatePasswordReset checks the new password before any remote call.
func ValidatePasswordReset(r PasswordReset) error {
	if strings.TrimSpace(r.Email) == "" {
		return ErrEmailRequired
	}
	if len(r.Password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	return nil
}

// ResetPassword verifies the emailed code and sets the new password with the
// session it yields.
func (a *AuthService) ResetPassword(ctx context.Context, r PasswordReset) error {
	if err := ValidatePasswordReset(r); err != nil {
		return err
	}

	var session struct {
		AccessToken string `json:"access_token"`
	}
	err := a.call(ctx, http.MethodPost, "/verify", "", map[string]interface{}{
		"type":  "email",
		"email": strings.TrimSpace(r.Email),
		"token": strings.TrimSpace(r.OTP),
	}, &session)
	if err != nil {
		a.Log.Warn().Err(err).Msg("⚠️ otp verification failed")
		return ErrInvalidOTP
	}
	if session.AccessToken == "" {
		return ErrInvalidOTP
	}

	if err := a.call(ctx, http.MethodPut, "/user", session.AccessToken, map[string]interface{}{
		"password": r.Password,
	}, nil); err != nil {
		return errors.Wrap(err, "update password")
	}
	a.Log.Info().Msg("✅ password reset")
	return nil
}

// SignOut revokes the session token at the auth service.
func (a *AuthService) SignOut(ctx context.Context, token string) error {
	return errors.Wrap(a.call(ctx, http.MethodPost, "/logout", token, nil, nil), "sign out")
}

func (a *AuthService) call(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("apikey", a.AnonKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Msg              string `json:"msg"`
			ErrorDescription string `json:"error_description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := firstNonEmpty(apiErr.Msg, apiErr.ErrorDescription, http.StatusText(resp.StatusCode))
		return errors.Errorf("%s %s: %d %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
