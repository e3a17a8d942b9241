//go:generate go run go.uber.org/mock/mockgen -source=auth.go -destination=../mocks/mock_authenticator.go -package=mocks
package auth

import "github.com/dkeye/Chat/internal/domain"

// Authenticator resolves a client credential to a user.
// An empty credential is an anonymous session: nil user, nil error.
// A credential that does not verify yields *domain.AuthenticationError.
type Authenticator interface {
	Authenticate(credential string) (*domain.User, error)
}
