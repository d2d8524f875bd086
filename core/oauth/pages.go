package oauth

import (
	"html/template"
	"net/http"
)

// The callback lands in a browser tab, so failures render as small HTML
// pages with a retry link rather than JSON.

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Connection failed</title>
<style>
body { font-family: sans-serif; max-width: 28em; margin: 4em auto; color: #333; }
h1 { font-size: 1.3em; }
a.retry { display: inline-block; margin-top: 1.5em; padding: 0.6em 1.2em; background: #1a73e8; color: #fff; text-decoration: none; border-radius: 4px; }
p.detail { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Could not connect {{.Provider}}</h1>
<p class="detail">{{.Message}}</p>
<a class="retry" href="{{.RetryURL}}">Try again</a>
</body>
</html>
`))

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Connected</title>
<style>
body { font-family: sans-serif; max-width: 28em; margin: 4em auto; color: #333; }
h1 { font-size: 1.3em; color: #188038; }
</style>
</head>
<body>
<h1>{{.Provider}} connected</h1>
<p>Signed in as {{.Account}}. You can close this tab.</p>
</body>
</html>
`))

type pageData struct {
	Provider string
	Message  string
	RetryURL string
	Account  string
}

func renderErrorPage(w http.ResponseWriter, status int, provider, message, retryURL string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPage.Execute(w, pageData{Provider: provider, Message: message, RetryURL: retryURL})
}

func renderSuccessPage(w http.ResponseWriter, provider, account string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = successPage.Execute(w, pageData{Provider: provider, Account: account})
}
