package i18n

import "net/http"

const langCookie = "lang"

// Middleware injects a localizer into every request context. A lang query
// parameter switches the UI language and is remembered in a cookie; the
// cookie applies on later requests, and fallback covers everything else.
func Middleware(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := fallback
			if c, err := r.Cookie(langCookie); err == nil && c.Value != "" {
				lang = c.Value
			}
			if q := r.URL.Query().Get("lang"); q != "" {
				lang = q
				http.SetCookie(w, &http.Cookie{Name: langCookie, Value: q, Path: "/"})
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
