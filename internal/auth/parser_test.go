package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestParseValidToken(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()
	token := signToken(t, Claims{
		UserID: userID.String(),
		OrgID:  orgID.String(),
		Role:   "COMPLIANCE_OFFICER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret, jwt.SigningMethodHS256)

	principal, err := NewParser(testSecret).Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if principal.UserID != userID {
		t.Errorf("user id = %s, want %s", principal.UserID, userID)
	}
	if principal.OrgID != orgID {
		t.Errorf("org id = %s, want %s", principal.OrgID, orgID)
	}
	if string(principal.Role) != "COMPLIANCE_OFFICER" {
		t.Errorf("role = %s", principal.Role)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token := signToken(t, Claims{
		UserID: uuid.NewString(),
		OrgID:  uuid.NewString(),
		Role:   "SUPPLIER",
	}, "other-secret", jwt.SigningMethodHS256)

	if _, err := NewParser(testSecret).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token := signToken(t, Claims{
		UserID: uuid.NewString(),
		OrgID:  uuid.NewString(),
		Role:   "SUPPLIER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, testSecret, jwt.SigningMethodHS256)

	if _, err := NewParser(testSecret).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsMalformedIDs(t *testing.T) {
	token := signToken(t, Claims{
		UserID: "not-a-uuid",
		OrgID:  uuid.NewString(),
		Role:   "SUPPLIER",
	}, testSecret, jwt.SigningMethodHS256)

	if _, err := NewParser(testSecret).Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := NewParser(testSecret).Parse("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
