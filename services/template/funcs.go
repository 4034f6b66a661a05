package template

import (
	"html/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
)

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				return ""
			}
			return humanize.Bytes(uint64(n))
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		},
		"date": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"duration": func(d *float64) string {
			if d == nil {
				return ""
			}
			dur := time.Duration(*d * float64(time.Second)).Round(time.Second)
			return durafmt.Parse(dur).LimitFirstN(2).String()
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}
