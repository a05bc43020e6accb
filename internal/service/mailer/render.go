package mailer

import (
	"strings"
)

const (
	plainFooter = "\n\n---\nUnsubscribe: {{unsubscribe_url}}"
	htmlFooter  = `<hr><p style="font-size:12px;color:#666;text-align:center;">Unsubscribe: <a href="{{unsubscribe_url}}">click here</a></p>`

	testPlainBanner = "[TEST EMAIL]\n\n"
	testHTMLBanner  = `<div style="background:#fff3cd;padding:15px;margin-bottom:20px;"><strong>TEST EMAIL</strong></div>`
)

// substitute fills the {{name}} and {{unsubscribe_url}} tokens, with
// or without inner spacing.
func substitute(template, name, unsubscribeURL string) string {
	return strings.NewReplacer(
		"{{name}}", name,
		"{{ name }}", name,
		"{{unsubscribe_url}}", unsubscribeURL,
		"{{ unsubscribe_url }}", unsubscribeURL,
	).Replace(template)
}

// renderPlain personalizes the plain-text body and appends the visible
// unsubscribe notice.
func renderPlain(body, name, unsubscribeURL string) string {
	return substitute(body+plainFooter, name, unsubscribeURL)
}

// renderHTML personalizes the HTML body and appends the unsubscribe
// footer.
func renderHTML(body, name, unsubscribeURL string) string {
	return substitute(body+htmlFooter, name, unsubscribeURL)
}
