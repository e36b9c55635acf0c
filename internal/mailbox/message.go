package mailbox

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-message/mail"

	// Register extended charsets so encoded headers and bodies in
	// non-UTF-8 encodings decode instead of erroring.
	_ "github.com/emersion/go-message/charset"
)

// Message is a normalized inbound email: transport encodings decoded,
// one textual body selected.
type Message struct {
	UID     uint32
	Subject string
	Sender  string
	Body    string
}

// Normalize decodes a raw RFC 822 message into plain subject, sender,
// and body text. It never fails: header decode errors degrade to the
// raw header value, a malformed part is skipped rather than sinking
// the whole message, and an unparsable message degrades to its raw
// bytes as the body.
func Normalize(uid uint32, raw []byte) Message {
	msg := Message{UID: uid}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		// Not parsable as a message at all; degrade to raw text.
		msg.Body = strings.TrimSpace(string(raw))
		return msg
	}
	_ = err // unknown charsets still yield a usable reader
	defer mr.Close()

	msg.Subject = decodeSubject(mr.Header)
	msg.Sender = decodeSender(mr.Header)

	textBody, htmlBody := collectBodies(mr)
	switch {
	case textBody != "":
		msg.Body = strings.TrimSpace(textBody)
	case htmlBody != "":
		msg.Body = stripHTML(htmlBody)
	}

	return msg
}

// decodeSubject returns the decoded subject, falling back to the raw
// header value when encoded-word decoding fails.
func decodeSubject(h mail.Header) string {
	subject, err := h.Subject()
	if err != nil || subject == "" {
		if raw := h.Get("Subject"); raw != "" {
			return raw
		}
	}
	return subject
}

// decodeSender returns the first From address as "Name <addr>" (or the
// bare address), degrading to the raw header on parse failure.
func decodeSender(h mail.Header) string {
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return h.Get("From")
	}

	from := addrs[0]
	if from.Name != "" {
		return from.Name + " <" + from.Address + ">"
	}
	return from.Address
}

// collectBodies walks the MIME parts and picks up the first text/plain
// and text/html bodies. Read or decode errors on a part skip that part
// only.
func collectBodies(mr *mail.Reader) (textBody, htmlBody string) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags and decodes common entities, providing a
// basic plain-text rendering of an HTML-only message.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
