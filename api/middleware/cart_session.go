package middleware

import (
	"net/http"

	"github.com/pyshop/pyshop-backend/internal/cart"
	"github.com/pyshop/pyshop-backend/pkg/config"
	"github.com/pyshop/pyshop-backend/pkg/logger"
)

// CartSession reads the anonymous cart cookie and stashes its token in the
// request context. Requests without one get a fresh token and cookie; the cart
// row itself is only created on the first write.
func CartSession(cartCfg config.CartConfig, appEnv string, logg *logger.Logger) func(http.Handler) http.Handler {
	secure := appEnv != config.AppEnvDev
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(cartCfg.SessionCookieName); err == nil {
				token = cookie.Value
			}

			if token == "" {
				minted, err := cart.NewSessionToken()
				if err != nil {
					if logg != nil {
						logg.Error(r.Context(), "minting cart session token", err)
					}
					next.ServeHTTP(w, r)
					return
				}
				token = minted
				http.SetCookie(w, &http.Cookie{
					Name:     cartCfg.SessionCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cartCfg.SessionTTL.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), token)))
		})
	}
}
