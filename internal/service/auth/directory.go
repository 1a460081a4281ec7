// internal/service/auth/directory.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"billing-service/internal/domain/identity"
	xerrors "billing-service/internal/pkg/errors"
	"billing-service/internal/pkg/jwt"
)

// TokenVerifier checks an access token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// DirectoryService resolves bearer tokens issued by the identity provider
// into users. Only the token is consulted; there is no local user table.
type DirectoryService struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

var _ identity.Directory = (*DirectoryService)(nil)

func NewDirectoryService(verifier TokenVerifier, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{verifier: verifier, logger: logger}
}

// VerifyCredential returns the token's user. Every failure is ErrUnauthorized.
func (s *DirectoryService) VerifyCredential(_ context.Context, token string) (*identity.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", xerrors.ErrUnauthorized)
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		s.logger.Warn("token subject is not a user id", zap.String("subject", claims.Subject))
		return nil, fmt.Errorf("invalid subject: %w", xerrors.ErrUnauthorized)
	}

	return &identity.User{
		ID:       id.String(),
		Email:    claims.Email,
		FullName: claims.DisplayName(),
	}, nil
}
