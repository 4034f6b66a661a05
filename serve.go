package main

import (
	"net/http"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	wau "github.com/webtor-io/screenvault/handlers/auth"
	wi "github.com/webtor-io/screenvault/handlers/index"
	p "github.com/webtor-io/screenvault/handlers/profile"
	sess "github.com/webtor-io/screenvault/handlers/session"
	wv "github.com/webtor-io/screenvault/handlers/videos"
	"github.com/webtor-io/screenvault/services/auth"
	"github.com/webtor-io/screenvault/services/common"
	"github.com/webtor-io/screenvault/services/pubsub"
	"github.com/webtor-io/screenvault/services/storage"
	"github.com/webtor-io/screenvault/services/template"
	"github.com/webtor-io/screenvault/services/video"
	w "github.com/webtor-io/screenvault/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves web server",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterPGFlags(c.Flags)
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterS3ClientFlags(c.Flags)
	c.Flags = cs.RegisterPprofFlags(c.Flags)
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = auth.RegisterFlags(c.Flags)
	c.Flags = sess.RegisterFlags(c.Flags)
	c.Flags = pubsub.RegisterFlags(c.Flags)
	c.Flags = storage.RegisterFlags(c.Flags)
	c.Flags = video.RegisterFlags(c.Flags)
	c.Flags = wv.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	// Setting DB
	pg := cs.NewPG(c)
	defer pg.Close()

	// Setting Migrations
	err := pgMigrate(c)
	if err != nil {
		return err
	}

	// Setting template renderer
	re := multitemplate.NewRenderer()

	// Setting TemplateManager
	tm := template.NewManager[*w.Context](re).
		WithHelper(w.NewHelper(c))

	var servers []cs.Servable
	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Pprof
	pprof := cs.NewPprof(c)
	if pprof != nil {
		servers = append(servers, pprof)
		defer pprof.Close()
	}

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false
	r.HTMLRender = re

	// Setting Web
	web, err := w.New(c, r)
	if err != nil {
		return err
	}
	servers = append(servers, web)
	defer web.Close()

	// Setting Session and CSRF
	sess.RegisterHandler(c, r, []string{"/api/auth/"})

	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting Broker
	broker, err := pubsub.New(c, redis)
	if err != nil {
		return err
	}
	defer func() {
		_ = broker.Close()
	}()

	// Setting Auth
	a := auth.New(c, broker)
	err = a.Init()
	if err != nil {
		return errors.Wrap(err, "failed to init auth")
	}
	a.RegisterHandler(r)

	// Setting AuthHandlers
	wau.RegisterHandler(r, tm, a, c.String(common.DomainFlag))

	// Setting SessionStream
	sess.RegisterStreamHandler(r, a, broker)

	// Setting S3 Storage
	st := storage.New(c, cs.NewS3Client(c, cl))
	if st == nil {
		return errors.New("s3 storage is not configured")
	}

	// Setting Videos
	vs := video.New(c, pg, st)
	wv.RegisterHandler(c, r, tm, vs, st, cl)

	// Setting ProfileHandler
	p.RegisterHandler(r, tm, a)

	// Setting IndexHandler
	wi.RegisterHandler(r, tm)

	// Render templates
	err = tm.Init()
	if err != nil {
		return err
	}

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
