package router

import (
	"net/http"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
)

const problemContentType = "application/problem+json"

// RespondProblem aborts the request with an RFC 7807 body. The detail is
// mirrored under "detail" so clients reading either key see the message.
func RespondProblem(c *gin.Context, problem *core.Problem) {
	p := core.NormalizeProblem(problem)
	if p.Detail != "" {
		p.Extras = core.MergeMaps(p.Extras, map[string]any{"detail": p.Detail})
	}
	if p.Instance == "" {
		p.Instance = c.Request.URL.Path
	}
	logProblem(c, p)
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(p.Status, core.BuildProblemBody(p))
}

// RespondProblemWithCode is RespondProblem for the common status, code and detail case.
func RespondProblemWithCode(c *gin.Context, status int, code string, detail string) {
	RespondProblem(c, &core.Problem{Status: status, Detail: detail, Code: code})
}

func logProblem(c *gin.Context, p *core.Problem) {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	log := logger.FromContext(c.Request.Context()).With(
		"status", p.Status,
		"code", p.Code,
		"route", route,
	)
	if p.Status >= http.StatusInternalServerError {
		log.Error("Request failed", "detail", p.Detail)
		return
	}
	log.Warn("Request rejected", "detail", p.Detail)
}
