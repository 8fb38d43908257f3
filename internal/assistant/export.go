package assistant

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/zombor/card-assistant/internal/extraction"
)

const qrSize = 256

// CardVCard renders a card as a vCard 3.0 contact
func (s *Service) CardVCard(id string) (string, error) {
	card, err := s.db.GetCard(id)
	if err != nil {
		return "", fmt.Errorf("getting card: %w", err)
	}
	return VCard(card), nil
}

// CardQRCode encodes a card's vCard as a PNG QR code
func (s *Service) CardQRCode(id string) ([]byte, error) {
	vcard, err := s.CardVCard(id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(vcard, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}
	return png, nil
}

// VCard formats the fields that were found; missing fields are left out.
// Lines end in CRLF as RFC 2426 requires.
func VCard(c *Card) string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("BEGIN:VCARD")
	add("VERSION:3.0")

	name := c.Company
	if c.Has(extraction.FieldName) {
		name = c.Name
	}
	if !c.Has(extraction.FieldName) && !c.Has(extraction.FieldCompany) {
		name = "Unknown"
	}
	add("FN:%s", escapeVCard(name))
	if c.Has(extraction.FieldName) {
		add("N:%s;;;;", escapeVCard(c.Name))
	}
	if c.Has(extraction.FieldCompany) {
		add("ORG:%s", escapeVCard(c.Company))
	}
	if c.Has(extraction.FieldPosition) {
		add("TITLE:%s", escapeVCard(c.Position))
	}
	if c.Has(extraction.FieldPhone) {
		add("TEL;TYPE=CELL:%s", escapeVCard(c.Phone))
	}
	if c.Has(extraction.FieldEmail) {
		add("EMAIL;TYPE=INTERNET:%s", escapeVCard(c.Email))
	}
	if c.Has(extraction.FieldAddress) {
		add("ADR;TYPE=WORK:;;%s;;;;", escapeVCard(c.Address))
	}
	add("END:VCARD")

	return strings.Join(lines, "\r\n") + "\r\n"
}

var vcardEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`, ";", `\;`, "\n", `\n`)

func escapeVCard(s string) string {
	return vcardEscaper.Replace(s)
}
