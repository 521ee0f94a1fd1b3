package middleware

import (
	"net/http"

	"github.com/angelmondragon/harvestlink-backend/api/responses"
	pkgAuth "github.com/angelmondragon/harvestlink-backend/pkg/auth"
	"github.com/angelmondragon/harvestlink-backend/pkg/auth/session"
	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
)

// Auth resolves the bearer token into a buyer or farmer actor.
func Auth(cfg config.JWTConfig, revocations session.RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor, err := authenticate(r, cfg, revocations)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			ctx = WithActor(ctx, actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor.ActorID().String(), string(actor.Role()))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, revocations session.RevocationChecker) (pkgAuth.Actor, error) {
	token, err := pkgAuth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	if revocations != nil {
		revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation")
		}
		if revoked {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked")
		}
	}

	actor, err := claims.Actor()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor")
	}
	return actor, nil
}
