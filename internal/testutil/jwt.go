package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// GenerateTestKeyPair generates an RSA key pair for testing JWT tokens
func GenerateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

// TestKeyID is the kid embedded in tokens signed by GenerateTestJWT.
const TestKeyID = "test-key-id"

// TestIssuer is the issuer claim used by test tokens.
const TestIssuer = "https://id.clinicore.dev/realms/clinicore"

// GenerateTestJWT creates a signed token carrying the given identity.
func GenerateTestJWT(t *testing.T, privateKey *rsa.PrivateKey, userID, tenantID, role string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  userID,
		"iss":  TestIssuer,
		"exp":  time.Now().Add(1 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
		"role": role,
	}
	if tenantID != "" {
		claims["tenant_id"] = tenantID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = TestKeyID

	tokenString, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}

// GenerateOwnerToken creates an OWNER token for a tenant.
func GenerateOwnerToken(t *testing.T, privateKey *rsa.PrivateKey, tenantID string) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, "owner-123", tenantID, "OWNER")
}

// GenerateDoctorToken creates a DOCTOR token for a tenant.
func GenerateDoctorToken(t *testing.T, privateKey *rsa.PrivateKey, tenantID string) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, "doctor-123", tenantID, "DOCTOR")
}

// GenerateReceptionistToken creates a RECEPTIONIST token for a tenant.
func GenerateReceptionistToken(t *testing.T, privateKey *rsa.PrivateKey, tenantID string) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, "reception-123", tenantID, "RECEPTIONIST")
}
