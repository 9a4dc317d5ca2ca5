package layout

import (
	"log/slog"
	"net/http"

	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
)

// LogoutHandler clears the session store and redirects to the login page.
// It never fails: logging out without a session is just the redirect.
func LogoutHandler(deps Deps) http.Handler {
	if deps.Stores == nil {
		deps.Stores = session.RequestProvider(deps.Logger, nil)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := deps.logger()
		store := deps.Stores(r)
		_, hadState := store.Get()
		if deps.Sessions != nil {
			if err := deps.Sessions.Logout(r.Context(), store); err != nil {
				logger.Warn("revoke credential", slog.Any("error", err))
			}
		} else {
			store.Clear()
		}

		if sess := shared.SessionFromContext(r.Context()); sess != nil && hadState {
			if deps.Sessions != nil {
				if err := deps.Sessions.RemoveSession(r.Context(), sess.ID); err != nil {
					logger.Warn("remove session", slog.Any("error", err))
				}
			}
			if deps.Manager != nil {
				deps.Manager.Renew(sess)
			}
			if deps.CSRF != nil {
				deps.CSRF.Rotate(sess)
			}
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Logged out successfully"})
		}
		http.Redirect(w, r, roles.LoginPath, http.StatusSeeOther)
	})
}
