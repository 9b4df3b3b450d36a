package host

// Inbound message types sent by the bridge script.
const (
	MsgHello    = "hello"
	MsgPopstate = "popstate"
	MsgMutation = "mutation"
	MsgRoute    = "route"
	MsgLogin    = "login"
	MsgSubmit   = "submit"
	MsgLogout   = "logout"
)

// Outbound command types applied by the bridge script.
const (
	CmdHello    = "hello"
	CmdNavigate = "navigate"
	CmdAlert    = "alert"
	CmdControl  = "control"
)

// inbound is any message a tab sends. Only the fields relevant to Type are
// set.
type inbound struct {
	Type   string            `json:"type"`
	Tab    string            `json:"tab,omitempty"`
	Href   string            `json:"href,omitempty"`
	SiteID string            `json:"site_id,omitempty"`
	Label  string            `json:"label,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type outbound struct {
	Type     string `json:"type"`
	Tab      string `json:"tab,omitempty"`
	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
	Label    string `json:"label,omitempty"`
	Disabled *bool  `json:"disabled,omitempty"`
}
