package web

import (
	"strings"
	"time"

	"github.com/urfave/cli"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
)

type Helper struct {
	domain string
}

func NewHelper(c *cli.Context) *Helper {
	return &Helper{
		domain: c.String(common.DomainFlag),
	}
}

func (s *Helper) Domain() string {
	return s.domain
}

func (s *Helper) Year() int {
	return time.Now().Year()
}

func (s *Helper) PageTitle(title string) string {
	if title == "" {
		return "ScreenVault"
	}
	return title + " · ScreenVault"
}

func (s *Helper) Initials(u *auth.User) string {
	name := u.DisplayName()
	if name == "" {
		return "?"
	}
	var res []rune
	for _, p := range strings.Fields(name) {
		res = append(res, []rune(strings.ToUpper(p))[0])
		if len(res) == 2 {
			break
		}
	}
	return string(res)
}

func (s *Helper) LoginURL(returnURL string) string {
	return common.LoginURL(returnURL)
}
