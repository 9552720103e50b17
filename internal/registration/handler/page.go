package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"regform/internal/platform/middleware"
	"regform/internal/registration/models"
	"regform/internal/validation"
	"regform/pkg/platform/httputil"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// sanitizeText strips every tag from user-supplied text. The result is
// already HTML-escaped.
func sanitizeText(raw string) template.HTML {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return template.HTML(strings.TrimSpace(textPolicy.Sanitize(raw)))
}

type pageRow struct {
	Name       template.HTML
	Email      template.HTML
	BirthDate  string
	City       template.HTML
	PostalCode template.HTML
	Registered string
}

type pageData struct {
	Rows         []pageRow
	CountLine    string
	EarliestDate string
}

var listPage = template.Must(template.New("list").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Registered Users</title>
</head>
<body>
<h1>Registered Users</h1>
{{- if not .Rows}}
<p>No users registered yet.</p>
{{- else}}
<p>{{.CountLine}}</p>
<table>
<thead><tr><th>Name</th><th>Email</th><th>Birth date</th><th>City</th><th>Postal code</th><th>Registered</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr><td>{{.Name}}</td><td>{{.Email}}</td><td>{{.BirthDate}}</td><td>{{.City}}</td><td>{{.PostalCode}}</td><td>{{.Registered}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
<p><small>Birth dates from {{.EarliestDate}} are accepted.</small></p>
</body>
</html>
`))

func countLine(n int) string {
	if n == 1 {
		return "1 registered user"
	}
	return fmt.Sprintf("%d registered users", n)
}

func newPageData(regs []models.Registration) pageData {
	rows := make([]pageRow, 0, len(regs))
	for _, reg := range regs {
		row := pageRow{
			Name:       sanitizeText(reg.FullName()),
			Email:      sanitizeText(reg.Email),
			BirthDate:  reg.BirthDate.String(),
			City:       sanitizeText(reg.City),
			PostalCode: sanitizeText(reg.PostalCode),
		}
		if !reg.Timestamp.IsZero() {
			row.Registered = reg.Timestamp.UTC().Format("2006-01-02 15:04")
		}
		rows = append(rows, row)
	}
	return pageData{
		Rows:         rows,
		CountLine:    countLine(len(regs)),
		EarliestDate: validation.EarliestBirthDate.String(),
	}
}

// handleListPage renders the registered users as HTML.
func (h *Handler) handleListPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regs, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list users for page",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := listPage.Execute(&buf, newPageData(regs)); err != nil {
		h.logger.ErrorContext(ctx, "failed to render list page",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
