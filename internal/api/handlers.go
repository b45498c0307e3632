package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recap/internal/ingest"
	"recap/internal/services"
)

const healthProbeTimeout = 2 * time.Second

func (rt *router) health(c *gin.Context) {
	ctx := c.Request.Context()
	resp := FromStatusSummary(rt.pipeline.Status(ctx))
	status := http.StatusOK
	if rt.pinger != nil {
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		defer cancel()
		if err := rt.pinger.Ping(probeCtx); err != nil {
			resp.Status = "unavailable"
			resp.Database = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, resp)
}

func (rt *router) registerSession(c *gin.Context) {
	var body Session
	if err := c.ShouldBindJSON(&body); err != nil {
		rt.fail(c, services.Wrap(services.ErrInput, "api", "decode session", "", err))
		return
	}
	saved, err := rt.pipeline.RegisterSession(c.Request.Context(), body.Record())
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FromSession(saved))
}

func (rt *router) getSession(c *gin.Context) {
	session, err := rt.pipeline.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FromSession(session))
}

func (rt *router) ingest(c *gin.Context) {
	var body IngestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		rt.fail(c, services.Wrap(services.ErrInput, "api", "decode ingest request", "", err))
		return
	}
	req := ingest.Request{
		SessionID: c.Param("id"),
		SpeakerID: c.Param("speaker"),
		AudioURL:  body.AudioURL,
		Language:  body.Language,
	}
	res, err := rt.pipeline.Ingest(c.Request.Context(), req)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, IngestResponse{
		SessionID: req.SessionID,
		SpeakerID: req.SpeakerID,
		Segments:  res.Segments,
		Batches:   res.Batches,
		Skipped:   res.Skipped,
	})
}

func (rt *router) finalize(c *gin.Context) {
	id := c.Param("id")
	state, err := rt.pipeline.Finalize(c.Request.Context(), id)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "state": string(state)})
}

func (rt *router) run(c *gin.Context) {
	res, err := rt.pipeline.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FromRunResult(res))
}

func (rt *router) transcript(c *gin.Context) {
	id := c.Param("id")
	text, err := rt.pipeline.Transcript(c.Request.Context(), id)
	if err != nil {
		rt.fail(c, err)
		return
	}
	if c.Query("format") == "text" {
		c.String(http.StatusOK, text)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "transcript": text})
}

func (rt *router) analyze(c *gin.Context) {
	id := c.Param("id")
	report, err := rt.pipeline.Analyze(c.Request.Context(), id)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FromReport(id, report))
}

func (rt *router) summarize(c *gin.Context) {
	id := c.Param("id")
	text, err := rt.pipeline.Summarize(c.Request.Context(), id)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id, "summary": text})
}

func (rt *router) notify(c *gin.Context) {
	id := c.Param("id")
	res, err := rt.pipeline.Notify(c.Request.Context(), id)
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, FromDispatch(id, res))
}

func (rt *router) flags(c *gin.Context) {
	flags, err := rt.pipeline.Flags(c.Request.Context(), c.Param("id"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": FromFlags(flags)})
}

func (rt *router) notifications(c *gin.Context) {
	items, err := rt.pipeline.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		rt.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": FromNotifications(items)})
}
