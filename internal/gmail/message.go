package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/jkralik/invoiceflow/internal/domain/model"
)

// draft describes an outgoing message before MIME encoding
type draft struct {
	From           string
	To             string
	Cc             string
	Subject        string
	Body           string
	AttachmentPath string
	ThreadID       string
	InReplyTo      string
	References     string
}

// encode builds the RFC 2822 message and returns it base64url-encoded as the
// Gmail API expects
func (d draft) encode() (string, error) {
	var buf bytes.Buffer

	writeHeader := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&buf, "%s: %s\r\n", name, value)
		}
	}

	writeHeader("From", d.From)
	writeHeader("To", d.To)
	writeHeader("Cc", d.Cc)
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", d.Subject))
	writeHeader("In-Reply-To", d.InReplyTo)
	writeHeader("References", d.References)
	writeHeader("MIME-Version", "1.0")

	if d.AttachmentPath == "" {
		writeHeader("Content-Type", `text/plain; charset="utf-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(d.Body)
	} else {
		mw := multipart.NewWriter(&buf)
		writeHeader("Content-Type", fmt.Sprintf(`multipart/mixed; boundary="%s"`, mw.Boundary()))
		buf.WriteString("\r\n")

		textHeader := textproto.MIMEHeader{}
		textHeader.Set("Content-Type", `text/plain; charset="utf-8"`)
		textPart, err := mw.CreatePart(textHeader)
		if err != nil {
			return "", fmt.Errorf("failed to create text part: %w", err)
		}
		if _, err := textPart.Write([]byte(d.Body)); err != nil {
			return "", fmt.Errorf("failed to write body: %w", err)
		}

		data, err := os.ReadFile(d.AttachmentPath)
		if err != nil {
			return "", fmt.Errorf("failed to read attachment: %w", err)
		}

		name := filepath.Base(d.AttachmentPath)
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		attHeader := textproto.MIMEHeader{}
		attHeader.Set("Content-Type", contentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
		attPart, err := mw.CreatePart(attHeader)
		if err != nil {
			return "", fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := attPart.Write([]byte(base64.StdEncoding.EncodeToString(data))); err != nil {
			return "", fmt.Errorf("failed to write attachment: %w", err)
		}

		if err := mw.Close(); err != nil {
			return "", fmt.Errorf("failed to finalize message: %w", err)
		}
	}

	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// parseMessage converts a Gmail API message into the coordinator's EmailInfo
func parseMessage(msg *gmailapi.Message) model.EmailInfo {
	info := model.EmailInfo{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
	}

	if msg.Payload == nil {
		return info
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			addrs := extractAddresses(h.Value)
			if len(addrs) > 0 {
				info.From = addrs[0]
			}
		case "to":
			info.To = extractAddresses(h.Value)
		case "cc":
			info.Cc = extractAddresses(h.Value)
		case "subject":
			info.Subject = h.Value
		}
	}

	info.BodyText, info.BodyHTML = extractBodies(msg.Payload)
	info.Attachments = attachmentNames(msg.Payload)

	return info
}

// extractAddresses pulls bare lower-cased addresses out of a header value
// such as "Name <a@b.c>, d@e.f"
func extractAddresses(headerValue string) []string {
	var addrs []string
	for _, part := range strings.Split(headerValue, ",") {
		part = strings.TrimSpace(part)
		if open := strings.Index(part, "<"); open >= 0 {
			if close := strings.Index(part, ">"); close > open {
				addrs = append(addrs, strings.ToLower(part[open+1:close]))
				continue
			}
		}
		if strings.Contains(part, "@") {
			addrs = append(addrs, strings.ToLower(part))
		}
	}
	return addrs
}

// decodeBase64URL decodes base64url data with or without padding; the Gmail
// API returns both forms.
func decodeBase64URL(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func extractBodies(payload *gmailapi.MessagePart) (text, html string) {
	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Body != nil && part.Body.Data != "" {
			decoded, err := decodeBase64URL(part.Body.Data)
			if err == nil {
				switch part.MimeType {
				case "text/plain":
					if text == "" {
						text = string(decoded)
					}
				case "text/html":
					if html == "" {
						html = string(decoded)
					}
				}
			}
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)
	return text, html
}

func attachmentNames(payload *gmailapi.MessagePart) []string {
	var names []string
	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" {
			names = append(names, part.Filename)
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(payload)
	return names
}

// header finds a named header on a message, or ""
func header(msg *gmailapi.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
