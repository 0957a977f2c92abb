package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/compozy/docqa/engine/core"
	"github.com/compozy/docqa/engine/infra/server/router"
	"github.com/compozy/docqa/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// RunRequest is the body accepted by the run endpoints.
type RunRequest struct {
	Documents string   `json:"documents" binding:"required,http_url"`
	Questions []string `json:"questions" binding:"required,dive,required"`
}

// RunResponse carries one answer per question, in order.
type RunResponse struct {
	Answers []string `json:"answers"`
}

func (s *Server) handleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	questions := make([]string, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = strings.TrimSpace(q)
		if questions[i] == "" {
			router.RespondProblemWithCode(c, http.StatusBadRequest, router.CodeInvalidInput,
				fmt.Sprintf("questions[%d] must not be blank", i))
			return
		}
	}
	ctx := c.Request.Context()
	if s.config.Server.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Server.Timeout)
		defer cancel()
	}
	log := logger.FromContext(ctx)
	log.Info("Processing request", "document", core.RedactURL(req.Documents), "questions", len(questions))
	start := time.Now()
	answers, err := s.pipeline.Process(ctx, req.Documents, questions)
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.CodeProcessingFailed,
			"Failed to process request: "+core.RedactError(err))
		return
	}
	if answers == nil {
		answers = []string{}
	}
	log.Info("Request processed", "answers", len(answers), "duration", time.Since(start))
	c.JSON(http.StatusOK, RunResponse{Answers: answers})
}

func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		router.RespondProblemWithCode(c, http.StatusRequestEntityTooLarge, router.CodePayloadTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.CodeInvalidInput, strings.Join(msgs, "; "))
		return
	}
	router.RespondProblemWithCode(c, http.StatusBadRequest, router.CodeInvalidInput,
		"invalid request body: "+core.RedactError(err))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	if strings.HasPrefix(fe.Namespace(), "RunRequest.Questions[") {
		field = strings.ToLower(strings.TrimPrefix(fe.Namespace(), "RunRequest."))
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "http_url":
		return field + " must be an http or https URL"
	default:
		return field + " failed " + fe.Tag() + " validation"
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": s.info.Name + " is running"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"model":  s.info.Model,
		"services": gin.H{
			"document_processor": s.info.Services.DocumentProcessor,
			"embedding_service":  s.info.Services.Embedder,
			"llm_service":        s.info.Services.LLM,
		},
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "operational",
		"version":   s.info.Version,
		"model":     s.info.Model,
		"endpoints": RunRoutes(),
	})
}

func respondInternal(c *gin.Context) {
	router.RespondProblemWithCode(c, http.StatusInternalServerError, router.CodeInternal, "internal server error")
}
