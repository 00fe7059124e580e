package middleware

import (
	"context"
	"errors"
	"net/http"

	"serotonyl.ru/stream-rewards/internal/common"
)

const adminLoginKey ctxKey = iota + 1

// Verifier проверяет логин и пароль.
type Verifier interface {
	Verify(ctx context.Context, login, password, remoteAddr string) error
}

// AdminLoginFrom возвращает логин администратора, прошедшего BasicAuth.
func AdminLoginFrom(ctx context.Context) string {
	login, _ := ctx.Value(adminLoginKey).(string)
	return login
}

// BasicAuth пропускает только запросы с верными логином и паролем администратора.
// После блокировки за перебор отвечает 429.
func BasicAuth(realm string, verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			login, password, ok := r.BasicAuth()
			if !ok {
				unauthorized(w, realm)
				return
			}

			err := verifier.Verify(r.Context(), login, password, r.RemoteAddr)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminLoginKey, login)))
			case errors.Is(err, common.ErrTooManyAttempts):
				http.Error(w, err.Error(), http.StatusTooManyRequests)
			case errors.Is(err, common.ErrWrongPassword):
				unauthorized(w, realm)
			default:
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, realm string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
