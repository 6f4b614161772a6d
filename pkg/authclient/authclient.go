package authclient

// authclient is used by the servers to turn a bearer token into the calling user's
// profile and to decide whether that user is an administrator

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	v1 "github.com/exordiom/talent-training/pkg/apis/training/v1"
	hferrors "github.com/exordiom/talent-training/pkg/errors"
	"github.com/exordiom/talent-training/pkg/store"
)

const tokenLifetime = 12 * time.Hour

var (
	ErrUnauthenticated = errors.New("authentication failed")
	ErrNotAdmin        = errors.New("admin access required")
)

type AuthClient struct {
	store      store.Store
	signingKey []byte
	clock      clock.PassiveClock
}

func NewAuthClient(s store.Store, signingKey string, c clock.PassiveClock) (*AuthClient, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("no jwt signing key configured")
	}
	return &AuthClient{store: s, signingKey: []byte(signingKey), clock: c}, nil
}

// GenerateJWT issues a token for profile. The subject is the profile id.
func (a AuthClient) GenerateJWT(profile v1.Profile) (string, error) {
	now := a.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   profile.Id,
		"email": profile.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenLifetime).Unix(),
	})

	// Sign and get the complete encoded token as a string using the secret
	tokenString, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func bearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	if len(token) == 0 {
		token = r.URL.Query().Get("auth")
	}

	splitToken := strings.Split(token, "Bearer")
	if len(splitToken) == 1 {
		return strings.TrimSpace(splitToken[0])
	}
	return strings.TrimSpace(splitToken[1])
}

// ValidateJWT checks the signature and expiry of tokenString and returns its claims.
func (a AuthClient) ValidateJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// AuthN returns the profile of the caller. A valid token for a user without a profile
// creates the profile from the token's email claim.
func (a AuthClient) AuthN(w http.ResponseWriter, r *http.Request) (v1.Profile, error) {
	token := bearerToken(r)
	if len(token) == 0 {
		glog.V(2).Infof("no bearer token passed, authentication failed")
		return v1.Profile{}, ErrUnauthenticated
	}

	claims, err := a.ValidateJWT(token)
	if err != nil {
		glog.Infof("could not validate token: %s", err)
		return v1.Profile{}, ErrUnauthenticated
	}
	id := claims["sub"].(string)

	profile := v1.Profile{}
	err = a.store.GetByID(r.Context(), id, &profile)
	if err == nil {
		return profile, nil
	}
	if !hferrors.IsNotFound(err) {
		glog.Errorf("error loading profile %s: %v", id, err)
		return v1.Profile{}, err
	}

	email, _ := claims["email"].(string)
	if email == "" {
		glog.Infof("token for unknown user %s carries no email", id)
		return v1.Profile{}, ErrUnauthenticated
	}
	now := a.clock.Now()
	profile = v1.Profile{Id: id, Email: email, CreatedAt: now, UpdatedAt: now}
	if err := a.store.Insert(r.Context(), &profile); err != nil {
		glog.Errorf("error creating profile for %s: %v", id, err)
		return v1.Profile{}, err
	}
	glog.V(2).Infof("created profile for %s", email)
	return profile, nil
}

// AuthNAdmin is AuthN restricted to profiles flagged as admin.
func (a AuthClient) AuthNAdmin(w http.ResponseWriter, r *http.Request) (v1.Profile, error) {
	profile, err := a.AuthN(w, r)
	if err != nil {
		return v1.Profile{}, err
	}
	if !profile.IsAdmin {
		glog.Infof("%s is not an admin", profile.Email)
		return v1.Profile{}, ErrNotAdmin
	}
	return profile, nil
}
