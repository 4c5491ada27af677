package remote

import (
	"net/http"
	"os"
	"strings"
)

// credentials is how requests authenticate. The first source that yields
// something wins: YAKS_TOKEN as a bearer token, then YAKS_USERNAME and
// YAKS_PASSWORD, then the userinfo of the remote URL.
type credentials struct {
	token string
	user  string
	pass  string
}

func resolveCredentials(ep Endpoint) credentials {
	if token := strings.TrimSpace(os.Getenv("YAKS_TOKEN")); token != "" {
		return credentials{token: token}
	}
	if user := strings.TrimSpace(os.Getenv("YAKS_USERNAME")); user != "" {
		return credentials{user: user, pass: os.Getenv("YAKS_PASSWORD")}
	}
	return credentials{user: ep.user, pass: ep.pass}
}

// apply stamps the protocol headers and the Authorization header on req.
func (cr credentials) apply(req *http.Request) {
	req.Header.Set(headerProtocol, ProtocolVersion)
	req.Header.Set(headerCapabilities, ClientCapabilities)
	switch {
	case cr.token != "":
		req.Header.Set("Authorization", "Bearer "+cr.token)
	case cr.user != "":
		req.SetBasicAuth(cr.user, cr.pass)
	}
}
