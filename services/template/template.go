package template

import (
	"html/template"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/yargevad/filepathx"
)

// Context is what views are rendered with.
type Context interface {
	GetGinContext() *gin.Context
}

type Template[T Context] interface {
	HTML(code int, ctx T)
}

type Builder[T Context] interface {
	Build(name string) Template[T]
}

type Manager[T Context] struct {
	re        multitemplate.Renderer
	dir       string
	funcs     template.FuncMap
	mu        sync.Mutex
	patterns  []string
	layouts   map[string]struct{}
	templates map[string]struct{}
}

func NewManager[T Context](re multitemplate.Renderer) *Manager[T] {
	return &Manager[T]{
		re:        re,
		dir:       "templates",
		funcs:     defaultFuncs(),
		layouts:   map[string]struct{}{},
		templates: map[string]struct{}{},
	}
}

func (s *Manager[T]) WithDir(dir string) *Manager[T] {
	s.dir = dir
	return s
}

// WithHelper exposes every exported method of h as a template func named
// after the method with a lower-case first letter.
func (s *Manager[T]) WithHelper(h any) *Manager[T] {
	v := reflect.ValueOf(h)
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		s.funcs[lowerFirst(m.Name)] = v.Method(i).Interface()
	}
	return s
}

func lowerFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// MustRegisterViews adds views matching pattern relative to the views dir.
func (s *Manager[T]) MustRegisterViews(pattern string) *ViewBuilder[T] {
	if pattern == "" {
		panic("empty view pattern")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, pattern)
	return &ViewBuilder[T]{m: s}
}

func (s *Manager[T]) viewName(file string) string {
	rel, err := filepath.Rel(filepath.Join(s.dir, "views"), file)
	if err != nil {
		return file
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), ".html")
}

func (s *Manager[T]) glob(pattern string) ([]string, error) {
	return filepathx.Glob(filepath.Join(s.dir, pattern))
}

// Init registers every view with every used layout. It must run after all
// handlers are registered.
func (s *Manager[T]) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	partials, err := s.glob("partials/**/*.html")
	if err != nil {
		return errors.Wrap(err, "failed to find partials")
	}
	var views []string
	for _, p := range s.patterns {
		files, err := s.glob(filepath.Join("views", p+".html"))
		if err != nil {
			return errors.Wrapf(err, "failed to find views %v", p)
		}
		views = append(views, files...)
	}
	for l := range s.layouts {
		layout := filepath.Join(s.dir, "layouts", l+".html")
		for _, v := range views {
			name := l + "/" + s.viewName(v)
			if _, ok := s.templates[name]; ok {
				continue
			}
			files := append([]string{layout}, partials...)
			files = append(files, v)
			s.re.AddFromFilesFuncs(name, s.funcs, files...)
			s.templates[name] = struct{}{}
			log.WithField("name", name).Debug("template registered")
		}
	}
	return nil
}

func (s *Manager[T]) has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.templates[name]
	return ok
}

type ViewBuilder[T Context] struct {
	m *Manager[T]
}

func (s *ViewBuilder[T]) WithLayout(layout string) *BuilderWithLayout[T] {
	s.m.mu.Lock()
	s.m.layouts[layout] = struct{}{}
	s.m.mu.Unlock()
	return &BuilderWithLayout[T]{m: s.m, layout: layout}
}

type BuilderWithLayout[T Context] struct {
	m      *Manager[T]
	layout string
}

func (s *BuilderWithLayout[T]) Build(name string) Template[T] {
	return &view[T]{m: s.m, name: s.layout + "/" + name}
}

type view[T Context] struct {
	m    *Manager[T]
	name string
}

func (s *view[T]) HTML(code int, ctx T) {
	c := ctx.GetGinContext()
	if !s.m.has(s.name) {
		log.WithField("name", s.name).Error("template not found")
		c.Status(500)
		return
	}
	c.HTML(code, s.name, ctx)
}
