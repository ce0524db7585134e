package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const failurePage = `<!DOCTYPE html>
<html lang="pt">
<head><meta charset="utf-8"><title>Algo correu mal</title></head>
<body>
<h1>Algo correu mal</h1>
<p>Ocorreu um erro inesperado ao carregar esta página.</p>
<p><a href="javascript:window.location.reload()">Recarregar</a></p>
</body>
</html>
`

// Recover is the last-resort fault barrier: a panic anywhere below it is
// logged and answered with a generic failure page offering a reload.
func Recover(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				level.Error(logger).Log(
					"msg", "uncaught handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(failurePage))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
