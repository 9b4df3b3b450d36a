package host

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/boozedog/loginflow/internal/guard"
)

type previewPage struct {
	Path           string
	SiteID         string
	EmailMarker    string
	PasswordMarker string
	LoginPage      bool
}

// Preview renders a stand-in site page that embeds the bridge script the
// way a real site would: login and logout buttons, marked inputs and a
// script tag carrying the site id.
func Preview(p previewPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, previewHTML(p))
		return err
	})
}

func previewHTML(p previewPage) string {
	esc := templ.EscapeString[string]
	html := `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>loginflow preview ` + esc(p.Path) + `</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 32rem; margin: 3rem auto; }
form, nav { display: flex; flex-direction: column; gap: .5rem; }
nav { flex-direction: row; gap: 1rem; margin-bottom: 2rem; }
</style>
</head>
<body>
<nav>
<a href="/">Home</a>
<a href="/dashboard">Dashboard</a>
<a href="/login">Login</a>
<button type="button" id="client-route">Client-side route</button>
</nav>
<main id="content">
<h1>` + esc(p.Path) + `</h1>
`
	if p.LoginPage {
		html += `<form>
<input ` + esc(p.EmailMarker) + ` placeholder="Email">
<input ` + esc(p.PasswordMarker) + ` placeholder="Password">
<button type="submit" id="btn-login">Sign in</button>
</form>
`
	} else {
		html += `<p>Protected content.</p>
<button type="button" id="btn-logout">Log out</button>
`
	}
	html += `</main>
<script>
document.getElementById('client-route').addEventListener('click', function () {
    var path = '/members/' + Math.random().toString(36).slice(2, 8);
    history.pushState(null, '', path);
    document.querySelector('#content h1').textContent = path;
});
</script>
<script src="/loginflow.js" site-id="` + esc(p.SiteID) + `"></script>
</body>
</html>
`
	return html
}

func newPreviewPage(path, siteID string, h *Hub) previewPage {
	cfg := h.Config()
	return previewPage{
		Path:           path,
		SiteID:         siteID,
		EmailMarker:    cfg.Login.EmailMarker,
		PasswordMarker: cfg.Login.PasswordMarker,
		LoginPage:      guard.IsLoginRoute(path, cfg.Login.Routes),
	}
}
