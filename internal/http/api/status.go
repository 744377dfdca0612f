package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"winsbygroup.com/keyverify/internal/version"
	"winsbygroup.com/keyverify/internal/viewmodels"
)

// GET /status
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	recs, err := h.StoreService.List(ctx, 0)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	view := viewmodels.Status{
		Version:       version.Version,
		DefaultMethod: h.DefaultMethod.String(),
		Licenses:      viewmodels.FromRecords(recs),
		Now:           time.Now(),
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return StatusPage(view).Render(ctx, c.Response())
}

// StatusPage renders the stored licenses as a plain HTML table.
func StatusPage(v viewmodels.Status) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>keyverify</title></head><body>`); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<h1>keyverify v%s</h1><p>Default sign method: %s</p>`,
			templ.EscapeString(v.Version), templ.EscapeString(v.DefaultMethod)); err != nil {
			return err
		}
		if err := licensesTable(v.Licenses, v.Now).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

func licensesTable(rows []viewmodels.StoredLicense, now time.Time) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(rows) == 0 {
			_, err := io.WriteString(w, `<p>No stored licenses.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table><thead><tr><th>Product</th><th>Key</th><th>Method</th><th>Received</th><th>Expires</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, r := range rows {
			class := "current"
			if r.IsExpired(now) {
				class = "expired"
			}
			_, err := fmt.Fprintf(w, `<tr class="%s"><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				class,
				r.ProductID,
				templ.EscapeString(r.MaskedKey),
				templ.EscapeString(r.SignMethod),
				templ.EscapeString(r.ReceivedAt),
				templ.EscapeString(r.ExpiresAt),
			)
			if err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}
