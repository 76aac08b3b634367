// SPDX-FileCopyrightText: Copyright 2025 BriefDesk, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/briefdesk/briefdesk/pkg/logger"
)

// loginPage is a placeholder until the frontend owns the login flow. It
// preserves the redirect target so the eventual sign-in can return the
// user to where they started.
var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>BriefDesk - Sign in</title></head>
<body>
<h1>Sign in to BriefDesk</h1>
<p>Sign in with your organization account to continue{{if .Redirect}} to {{.Redirect}}{{end}}.</p>
</body>
</html>
`))

// LoginRouter sets up the login page route.
func LoginRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getLogin)
	return r
}

func getLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ Redirect string }{Redirect: r.URL.Query().Get("redirect")}
	if err := loginPage.Execute(w, data); err != nil {
		logger.Errorw("failed to render login page", "error", err)
	}
}
