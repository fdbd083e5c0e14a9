package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dilipdevops/portfolio/internal/events"
	"github.com/dilipdevops/portfolio/internal/form"
	"github.com/dilipdevops/portfolio/internal/page"
	"github.com/dilipdevops/portfolio/internal/submission"
)

// Home page route; every load mounts a new page view.
func (app *App) index(c *gin.Context) {
	p, err := app.Pages.Create()
	if err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, "Something went wrong.")
		return
	}
	c.HTML(http.StatusOK, "index.html", newViewData(p, c.Query("category")))
}

// pageError maps page state errors onto a status code.
func pageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, page.ErrUnknownSection):
		c.AbortWithStatus(http.StatusNotFound)
	case errors.Is(err, page.ErrPageClosed):
		c.Header("HX-Refresh", "true")
		c.AbortWithStatus(http.StatusGone)
	case errors.Is(err, form.ErrBusy):
		c.AbortWithStatus(http.StatusConflict)
	default:
		c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

type intersectForm struct {
	Visible bool    `form:"visible"`
	Ratio   float64 `form:"ratio" binding:"gte=0,lte=1"`
}

// intersect receives one browser IntersectionObserver report and answers
// with the re-rendered section.
func (app *App) intersect(c *gin.Context) {
	p := currentPage(c)
	var in intersectForm
	if err := c.ShouldBind(&in); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	view, err := p.Intersect(c.Param("section"), in.Visible, in.Ratio)
	if err != nil {
		pageError(c, err)
		return
	}
	data := newViewData(p, c.Query("category"))
	data.View = view
	c.HTML(http.StatusOK, "section", data)
}

func (app *App) techStack(c *gin.Context) {
	p := currentPage(c)
	category := c.Query("category")
	if category != "" && category != "all" && !p.Site().Tech.HasCategory(category) {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}
	c.HTML(http.StatusOK, "tech-grid", newViewData(p, category))
}

func (app *App) contactForm(c *gin.Context) {
	c.HTML(http.StatusOK, "contact-form", newViewData(currentPage(c), ""))
}

func (app *App) contactStatus(c *gin.Context) {
	c.HTML(http.StatusOK, "contact-status", newViewData(currentPage(c), ""))
}

// submitContact validates at capture time; an invalid payload never reaches
// the pipeline and comes back as 422 with the typed values kept.
func (app *App) submitContact(c *gin.Context) {
	p := currentPage(c)
	var msg submission.ContactMessage
	if err := c.ShouldBind(&msg); err != nil {
		if editErr := p.EditContact(msg); editErr != nil {
			pageError(c, editErr)
			return
		}
		data := newViewData(p, "")
		data.ContactErrors = fieldErrors(err)
		c.HTML(http.StatusUnprocessableEntity, "contact-form", data)
		return
	}

	if _, err := p.SubmitContact(c.Request.Context(), msg); err != nil {
		pageError(c, err)
		return
	}
	c.HTML(http.StatusOK, "contact-form", newViewData(p, ""))
}

func (app *App) scheduleButton(c *gin.Context) {
	c.HTML(http.StatusOK, "schedule-button", newViewData(currentPage(c), ""))
}

func (app *App) startSchedule(c *gin.Context) {
	p := currentPage(c)
	p.StartSchedule()
	c.HTML(http.StatusOK, "schedule-button", newViewData(p, ""))
}

func (app *App) interviewModal(c *gin.Context) {
	c.HTML(http.StatusOK, "interview-modal", newViewData(currentPage(c), ""))
}

func (app *App) interviewStatus(c *gin.Context) {
	c.HTML(http.StatusOK, "interview-status", newViewData(currentPage(c), ""))
}

func (app *App) submitInterview(c *gin.Context) {
	p := currentPage(c)
	req := submission.NewInterviewRequest()
	if err := c.ShouldBind(&req); err != nil {
		if editErr := p.EditInterview(req); editErr != nil {
			pageError(c, editErr)
			return
		}
		data := newViewData(p, "")
		data.InterviewErrors = fieldErrors(err)
		c.HTML(http.StatusUnprocessableEntity, "interview-modal", data)
		return
	}

	if _, err := p.SubmitInterview(c.Request.Context(), req); err != nil {
		pageError(c, err)
		return
	}
	c.HTML(http.StatusOK, "interview-modal", newViewData(p, ""))
}

func (app *App) closeInterview(c *gin.Context) {
	p := currentPage(c)
	p.CloseInterview()
	c.HTML(http.StatusOK, "interview-modal", newViewData(p, ""))
}

// streamed is every bus event the browser reacts to.
var streamed = []string{
	events.OpenInterviewModal,
	page.InterviewModalClosed,
	page.ScheduleChanged,
	page.SectionChanged,
}

// events streams the page's bus to the browser as server-sent events until
// the client goes away or the server shuts down.
func (app *App) events(c *gin.Context) {
	p := currentPage(c)
	ch, stop := p.Listen(streamed...)
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", p.ID)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-ch:
			c.SSEvent(e.Name, ssePayload(e))
			return true
		case <-c.Request.Context().Done():
			return false
		case <-app.Done:
			return false
		}
	})
}

func ssePayload(e events.Event) any {
	if e.Payload == nil {
		return ""
	}
	return e.Payload
}

// closePage is the pagehide beacon: the page view unmounts.
func (app *App) closePage(c *gin.Context) {
	app.Pages.Close(currentPage(c).ID)
	c.Status(http.StatusNoContent)
}
