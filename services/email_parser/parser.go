package email_parser

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/jhillyerd/enmime"

	"github.com/customeros/mailscan/interfaces"
	"github.com/customeros/mailscan/internal/logger"
	"github.com/customeros/mailscan/internal/models"
	"github.com/customeros/mailscan/internal/utils"
)

type parser struct {
	log logger.Logger
}

func NewEmailParser(log logger.Logger) interfaces.EmailParser {
	return &parser{log: log}
}

// Parse never fails: anything it cannot decode falls back to the defaults
// in models.
func (p *parser) Parse(raw models.RawMessage) models.ParsedEmail {
	parsed := models.ParsedEmail{
		MessageID: utils.ContentFingerprint(raw.Data),
		Subject:   models.DefaultSubject,
		Sender:    models.DefaultSender,
		Receiver:  models.DefaultReceiver,
		Body:      models.DefaultBody,
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw.Data))
	if err != nil || env == nil {
		p.log.Warnf("Message %d could not be decoded, using defaults: %v", raw.SeqNum, err)
		return parsed
	}
	for _, perr := range env.Errors {
		p.log.Debugf("Message %d parse warning: %s", raw.SeqNum, perr.Error())
	}

	if id := utils.NormalizeMessageID(env.GetHeader("Message-ID")); id != "" {
		parsed.MessageID = id
	}
	if subject := strings.TrimSpace(env.GetHeader("Subject")); subject != "" {
		parsed.Subject = subject
	}
	if sender := formatAddresses(env, "From"); sender != "" {
		parsed.Sender = sender
	}
	if receiver := formatAddresses(env, "To"); receiver != "" {
		parsed.Receiver = receiver
	}
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		utc := date.UTC()
		parsed.SentAt = &utc
	}

	parsed.Body = p.body(env, raw.SeqNum)
	parsed.Attachments = attachmentsInPartOrder(env)

	fitColumns(&parsed)
	return parsed
}

// fitColumns trims header values to their column widths and drops NUL
// bytes so a hostile or malformed message can still be stored.
func fitColumns(parsed *models.ParsedEmail) {
	parsed.MessageID = utils.TruncateRunes(utils.StripNUL(parsed.MessageID), models.MaxMessageIDLength)
	parsed.Subject = utils.TruncateRunes(utils.StripNUL(parsed.Subject), models.MaxSubjectLength)
	parsed.Sender = utils.TruncateRunes(utils.StripNUL(parsed.Sender), models.MaxSenderLength)
	parsed.Receiver = utils.StripNUL(parsed.Receiver)
	parsed.Body = utils.StripNUL(parsed.Body)
	for i := range parsed.Attachments {
		a := &parsed.Attachments[i]
		a.Filename = utils.TruncateRunes(utils.StripNUL(a.Filename), models.MaxFilenameLength)
		a.ContentType = utils.TruncateRunes(utils.StripNUL(a.ContentType), models.MaxContentTypeLength)
	}
}

func (p *parser) body(env *enmime.Envelope, seq uint32) string {
	if strings.TrimSpace(env.Text) != "" {
		return env.Text
	}
	if strings.TrimSpace(env.HTML) != "" {
		text, err := HTMLToPlainText(env.HTML)
		if err != nil {
			p.log.Warnf("Message %d html body could not be converted: %v", seq, err)
		} else if text != "" {
			return text
		}
	}
	return models.DefaultBody
}

// formatAddresses renders an address header as "Name <addr>, ...", cleaning
// each address with mailsherpa. Unparseable headers are returned verbatim.
func formatAddresses(env *enmime.Envelope, header string) string {
	list, err := env.AddressList(header)
	if err != nil || len(list) == 0 {
		return strings.TrimSpace(env.GetHeader(header))
	}

	formatted := make([]string, 0, len(list))
	for _, addr := range list {
		address := addr.Address
		if validation := mailvalidate.ValidateEmailSyntax(address); validation.IsValid && validation.CleanEmail != "" {
			address = validation.CleanEmail
		}
		if addr.Name != "" {
			formatted = append(formatted, fmt.Sprintf("%s <%s>", addr.Name, address))
		} else {
			formatted = append(formatted, address)
		}
	}
	return strings.Join(formatted, ", ")
}

// attachmentsInPartOrder walks the MIME tree depth first and returns every
// attachment or inline part in the order it appears in the message.
func attachmentsInPartOrder(env *enmime.Envelope) []models.AttachmentDescriptor {
	wanted := make(map[*enmime.Part]bool, len(env.Attachments)+len(env.Inlines))
	for _, part := range env.Attachments {
		wanted[part] = true
	}
	for _, part := range env.Inlines {
		wanted[part] = true
	}
	if len(wanted) == 0 {
		return nil
	}

	var out []models.AttachmentDescriptor
	seen := make(map[*enmime.Part]bool, len(wanted))
	var walk func(part *enmime.Part)
	walk = func(part *enmime.Part) {
		for ; part != nil; part = part.NextSibling {
			if wanted[part] && !seen[part] {
				seen[part] = true
				out = append(out, toDescriptor(part))
			}
			walk(part.FirstChild)
		}
	}
	walk(env.Root)

	// parts not reachable from the root keep enmime's order
	for _, group := range [][]*enmime.Part{env.Attachments, env.Inlines} {
		for _, part := range group {
			if !seen[part] {
				seen[part] = true
				out = append(out, toDescriptor(part))
			}
		}
	}
	return out
}

func toDescriptor(part *enmime.Part) models.AttachmentDescriptor {
	return models.AttachmentDescriptor{
		Filename:    part.FileName,
		ContentType: part.ContentType,
		Size:        len(part.Content),
		Data:        part.Content,
	}
}
