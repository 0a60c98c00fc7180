package core

import (
	"bytes"
	"fmt"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"strings"
	"sync"
	texttmpl "text/template"
)

var (
	tmplInit        sync.Once
	textTemplates   *texttmpl.Template
	htmlTemplates   *htmltmpl.Template
	frontendBaseURL string
)

type (
	Attachment struct {
		Content     *bytes.Buffer
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // simple text/plain, non-templated content
		Attachments []Attachment

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses all email templates found in tmplFS under "templates/email".
func ParseEmailTemplates(tmplFS fs.FS, conf *Config, logger Logger) {
	tmplInit.Do(func() {
		frontendBaseURL = conf.FrontendBaseURL

		var err error
		if textTemplates, err = texttmpl.ParseFS(tmplFS, "templates/email/*.txt"); err != nil {
			logger.Fatal(fmt.Sprintf("parsing text email templates: %v", err), err)
		}
		if htmlTemplates, err = htmltmpl.ParseFS(tmplFS, "templates/email/*.html"); err != nil {
			logger.Fatal(fmt.Sprintf("parsing html email templates: %v", err), err)
		}
	})
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: frontendBaseURL,
		Data:            m.TemplateData,
	}
}

// Render resolves the message's final text & HTML contents;
// either from its template or from its plain body.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" && m.TemplateName == "" {
		m.TextContent = m.BodyStr
		return nil
	}

	var text bytes.Buffer
	if tmpl := textTemplates.Lookup(m.TemplateName + ".txt"); tmpl != nil {
		if err := tmpl.Execute(&text, m.getContextData()); err != nil {
			return err
		}
		m.TextContent = text.String()
	}

	var html bytes.Buffer
	if tmpl := htmlTemplates.Lookup(m.TemplateName + ".html"); tmpl != nil {
		if err := tmpl.Execute(&html, m.getContextData()); err != nil {
			return err
		}
		m.HTMLContent = html.String()
	}

	if m.TextContent == "" && m.HTMLContent == "" {
		return fmt.Errorf("email template not found: %s", m.TemplateName)
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool {
	return (len(m.To) + len(m.Cc) + len(m.Bcc)) > 0
}

func (m *EmailMessage) HasContent() bool {
	return m.BodyStr != "" || m.TextContent != "" || m.HTMLContent != ""
}

func (m *EmailMessage) HasAttachments() bool {
	return len(m.Attachments) > 0
}

func (m *EmailMessage) JoinAddresses(addrs []mail.Address) string {
	strs := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		strs = append(strs, addr.String())
	}
	return strings.Join(strs, ", ")
}
