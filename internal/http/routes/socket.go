package routes

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mo-amir99/lms-progress-server/internal/middleware"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/socketio"
)

var errAccountDisabled = errors.New("account is disabled")

// SocketAuthenticator resolves socket handshake tokens the same way the HTTP
// middleware does: a valid access token for an active account.
func SocketAuthenticator(db *gorm.DB, tokens jwt.Issuer) socketio.Authenticator {
	return func(ctx context.Context, token string) (socketio.Identity, error) {
		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			return socketio.Identity{}, err
		}

		var usr middleware.User
		if err := db.WithContext(ctx).First(&usr, "id = ?", claims.UserID).Error; err != nil {
			return socketio.Identity{}, err
		}
		if !usr.Active {
			return socketio.Identity{}, errAccountDisabled
		}

		return socketio.Identity{
			UserID:   usr.ID,
			FullName: usr.FullName,
			Email:    usr.Email,
			Staff:    usr.UserType.IsStaff(),
		}, nil
	}
}
