package templates

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

const layoutStyle = `font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;` +
	`max-width:600px;margin:0 auto;padding:24px;color:#1f2937;line-height:1.5`

// Notification renders a notification email body. Values are HTML-escaped;
// line breaks in message become <br> tags.
func Notification(title, greeting, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		lines := strings.Split(message, "\n")
		for i, l := range lines {
			lines[i] = templ.EscapeString(l)
		}

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(title))
		b.WriteString(`</title></head><body><div style="`)
		b.WriteString(layoutStyle)
		b.WriteString(`">`)
		if greeting != "" {
			b.WriteString(`<p>`)
			b.WriteString(templ.EscapeString(greeting))
			b.WriteString(`</p>`)
		}
		b.WriteString(`<p>`)
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString(`</p></div></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
