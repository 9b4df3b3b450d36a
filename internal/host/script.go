package host

import (
	"encoding/json"
	"strings"

	"github.com/boozedog/loginflow/internal/config"
)

// bridgeScript is served as /loginflow.js. The __EMAIL_MARKER__ and
// __PASSWORD_MARKER__ placeholders are replaced with JSON strings.
const bridgeScript = `
(function () {
    var EMAIL_MARKER = __EMAIL_MARKER__;
    var PASSWORD_MARKER = __PASSWORD_MARKER__;
    var TAB_KEY = 'loginflow-tab';

    var script = document.currentScript || document.querySelector('script[site-id]');
    var siteId = script ? script.getAttribute('site-id') : '';
    var base = new URL(script && script.src ? script.src : window.location.href);
    var wsURL = (base.protocol === 'https:' ? 'wss:' : 'ws:') + '//' + base.host + '/ws';

    var nativeAlert = window.alert;
    window.alert = function (message) {
        if (typeof message === 'string' &&
            (message.indexOf('Passwords cannot be submitted') !== -1 ||
             (message.indexOf('password') !== -1 && message.indexOf('submit') !== -1))) {
            return;
        }
        return nativeAlert.apply(window, arguments);
    };
    if (window.location.protocol === 'http:' && window.location.hostname !== 'localhost') {
        console.error('Site on HTTP. To maximize security use HTTPS.');
    }

    var ws = null;
    var queue = [];
    var btnLogin = null;

    function send(msg) {
        if (ws && ws.readyState === WebSocket.OPEN) {
            ws.send(JSON.stringify(msg));
        } else {
            queue.push(msg);
        }
    }

    function apply(cmd) {
        switch (cmd.type) {
        case 'hello':
            sessionStorage.setItem(TAB_KEY, cmd.tab);
            break;
        case 'navigate':
            window.location.href = cmd.url;
            break;
        case 'alert':
            window.alert(cmd.message);
            break;
        case 'control':
            if (btnLogin) {
                btnLogin.textContent = cmd.label;
                btnLogin.disabled = !!cmd.disabled;
            }
            break;
        }
    }

    function connect() {
        ws = new WebSocket(wsURL);
        ws.onopen = function () {
            ws.send(JSON.stringify({
                type: 'hello',
                tab: sessionStorage.getItem(TAB_KEY) || '',
                href: window.location.href,
                site_id: siteId || ''
            }));
            while (queue.length) {
                ws.send(JSON.stringify(queue.shift()));
            }
        };
        ws.onmessage = function (e) {
            try { apply(JSON.parse(e.data)); } catch (err) { console.error('loginflow:', err); }
        };
        ws.onclose = function () { setTimeout(connect, 1000); };
    }

    function field(marker) {
        return document.querySelector('[' + marker + ']');
    }

    function stop(e) {
        e.preventDefault();
        e.stopPropagation();
        e.stopImmediatePropagation();
    }

    function interceptFormSubmit() {
        var email = field(EMAIL_MARKER);
        var password = field(PASSWORD_MARKER);
        var form = (email && email.closest('form')) || (password && password.closest('form'));
        if (!form) {
            return;
        }
        form.addEventListener('submit', function (e) {
            stop(e);
            send({type: 'submit'});
            return false;
        }, true);
    }

    function bind() {
        interceptFormSubmit();

        btnLogin = document.getElementById('btn-login');
        if (btnLogin) {
            btnLogin.addEventListener('click', function (e) {
                stop(e);
                var fields = {};
                var email = field(EMAIL_MARKER);
                var password = field(PASSWORD_MARKER);
                if (email) fields[EMAIL_MARKER] = email.value;
                if (password) fields[PASSWORD_MARKER] = password.value;
                send({type: 'login', href: window.location.href, label: btnLogin.textContent, fields: fields});
            });
        }

        var btnLogout = document.getElementById('btn-logout');
        if (btnLogout) {
            btnLogout.addEventListener('click', function (e) {
                stop(e);
                send({type: 'logout'});
            });
        }

        window.addEventListener('popstate', function () {
            send({type: 'popstate', href: window.location.href});
        });

        var oldHref = document.location.href;
        new MutationObserver(function () {
            if (oldHref !== document.location.href) {
                oldHref = document.location.href;
                send({type: 'mutation', href: oldHref});
            }
        }).observe(document.body, {childList: true, subtree: true});
    }

    connect();
    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', bind);
    } else {
        bind();
    }
})();
`

// renderScript fills the field markers from cfg into the bridge script.
func renderScript(cfg *config.Config) string {
	email, _ := json.Marshal(cfg.Login.EmailMarker)
	password, _ := json.Marshal(cfg.Login.PasswordMarker)
	return strings.NewReplacer(
		"__EMAIL_MARKER__", string(email),
		"__PASSWORD_MARKER__", string(password),
	).Replace(bridgeScript)
}
