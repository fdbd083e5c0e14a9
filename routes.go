package main

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/dilipdevops/portfolio/internal/content"
	"github.com/dilipdevops/portfolio/internal/log"
	"github.com/dilipdevops/portfolio/internal/page"
	"github.com/dilipdevops/portfolio/internal/submission"
)

//go:embed templates static
var assets embed.FS

// Pinger reports whether the backup store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds what the HTTP handlers share.
type App struct {
	Pages   *page.Registry
	Content *content.Store
	Health  Pinger
	// Done closes on shutdown so long-lived event streams let go.
	Done <-chan struct{}
}

func (app *App) Router() (*gin.Engine, error) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := submission.RegisterValidators(v); err != nil {
			return nil, err
		}
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(assets, "static")
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(static))

	r.GET("/", app.index)
	r.GET("/healthz", app.healthz)

	p := r.Group("/p/:page", app.loadPage)
	p.POST("/sections/:section/intersect", app.intersect)
	p.GET("/tech", app.techStack)

	p.GET("/contact", app.contactForm)
	p.POST("/contact", app.submitContact)
	p.GET("/contact/status", app.contactStatus)

	p.GET("/schedule", app.scheduleButton)
	p.POST("/schedule", app.startSchedule)

	p.GET("/interview", app.interviewModal)
	p.POST("/interview", app.submitInterview)
	p.POST("/interview/close", app.closeInterview)
	p.GET("/interview/status", app.interviewStatus)

	p.GET("/events", app.events)
	p.POST("/close", app.closePage)

	return r, nil
}

// requestLogger replaces gin's default logger with the shared logrus one.
// Static assets are only logged at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).Round(time.Microsecond).String(),
			"ip":      c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Warn(c.Errors.String())
			return
		}
		if c.FullPath() == "/static/*filepath" {
			entry.Debug("request")
			return
		}
		entry.Info("request")
	}
}

const pageKey = "page"

// loadPage resolves :page. An expired page asks htmx to reload the
// document, which mounts a fresh one.
func (app *App) loadPage(c *gin.Context) {
	p, err := app.Pages.Get(c.Param("page"))
	if err != nil {
		c.Header("HX-Refresh", "true")
		c.AbortWithStatus(http.StatusGone)
		return
	}
	c.Set(pageKey, p)
	c.Next()
}

func currentPage(c *gin.Context) *page.Page {
	return c.MustGet(pageKey).(*page.Page)
}

func (app *App) healthz(c *gin.Context) {
	if app.Health != nil {
		if err := app.Health.Ping(c.Request.Context()); err != nil {
			c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	body := gin.H{"status": "ok", "pages": app.Pages.Len()}
	if app.Content != nil {
		if site := app.Content.Site(); site != nil {
			body["sections"] = len(site.Sections)
		}
	}
	c.JSON(http.StatusOK, body)
}
