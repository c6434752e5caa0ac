package feedback

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jimdaga/newsdigest/internal/models"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

const (
	colorSuccess template.CSS = "#10b981"
	colorFailure template.CSS = "#ef4444"
)

type page struct {
	Heading string
	Message string
	Detail  string
	Color   template.CSS
}

func successPage(message, detail string) page {
	return page{Heading: "Feedback Received!", Message: message, Detail: detail, Color: colorSuccess}
}

func failurePage(message string) page {
	return page{Heading: "Oops!", Message: message, Color: colorFailure}
}

// Handler serves GET /api/feedback/:token?rating=...
// It answers 200 for recorded, already submitted and expired links, 404 for
// unknown tokens and 400 for invalid input.
func Handler(svc *Service, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		out, err := svc.Submit(c.Request.Context(), c.Param("token"), c.Query("rating"))
		switch {
		case errors.Is(err, ErrInvalidRating):
			render(c, http.StatusBadRequest, failurePage("Invalid rating. Must be one of: "+ratingList()))
			return
		case errors.Is(err, ErrMalformedToken):
			render(c, http.StatusBadRequest, failurePage("This feedback link is not valid."))
			return
		case err != nil:
			logger.Error("failed to process feedback", "error", err)
			render(c, http.StatusInternalServerError, failurePage("Something went wrong recording your feedback. Please try again later."))
			return
		}

		switch out.Result {
		case ResultRecorded:
			render(c, http.StatusOK, successPage("Thank you for your feedback!", out.Message))
		case ResultAlreadySubmitted:
			render(c, http.StatusOK, successPage(out.Message, ""))
		case ResultExpired:
			render(c, http.StatusOK, failurePage(out.Message))
		default:
			render(c, http.StatusNotFound, failurePage(out.Message))
		}
	}
}

func render(c *gin.Context, status int, p page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func ratingList() string {
	names := make([]string, len(models.Ratings))
	for i, r := range models.Ratings {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
