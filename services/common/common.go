package common

import (
	"net/url"
	"strings"

	"github.com/urfave/cli"
)

var (
	DomainFlag        = "domain"
	SessionSecretFlag = "secret"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	f = append(f,
		cli.StringFlag{
			Name:   DomainFlag,
			Usage:  "domain",
			Value:  "http://localhost:8080",
			EnvVar: "DOMAIN",
		},
		cli.StringFlag{
			Name:   SessionSecretFlag,
			Usage:  "session secret",
			Value:  "secret123",
			EnvVar: "SESSION_SECRET",
		},
	)

	return f
}

const (
	ReturnURLParamName = "return-url"
	AuthPath           = "/auth"
)

func EscapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// LoginURL builds the sign-in URL that brings the user back to returnURL.
func LoginURL(returnURL string) string {
	if returnURL == "" || !strings.HasPrefix(returnURL, "/") || strings.HasPrefix(returnURL, "//") {
		return AuthPath
	}
	return AuthPath + "?" + ReturnURLParamName + "=" + url.QueryEscape(returnURL)
}

// SafeReturnURL only accepts local absolute paths.
func SafeReturnURL(u string, fallback string) string {
	if u == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") {
		return fallback
	}
	return u
}
