package assistant

import (
	"bytes"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/card-assistant/internal/extraction"
)

var _ = Describe("VCard", func() {
	var card *Card

	BeforeEach(func() {
		r := extraction.NewRecord("")
		r.Name = "홍길동"
		r.Company = "한빛, 소프트"
		r.Phone = "010-1234-5678"
		card = &Card{ID: "c1", Record: *r}
	})

	It("should include only the fields that were found", func() {
		vcard := VCard(card)
		Expect(vcard).To(HavePrefix("BEGIN:VCARD\r\nVERSION:3.0\r\n"))
		Expect(vcard).To(ContainSubstring("FN:홍길동\r\n"))
		Expect(vcard).To(ContainSubstring("TEL;TYPE=CELL:010-1234-5678\r\n"))
		Expect(vcard).NotTo(ContainSubstring("EMAIL"))
		Expect(vcard).NotTo(ContainSubstring("TITLE"))
		Expect(vcard).To(HaveSuffix("END:VCARD\r\n"))
	})

	It("should escape separators", func() {
		Expect(VCard(card)).To(ContainSubstring(`ORG:한빛\, 소프트`))
	})

	It("should fall back to the company for the display name", func() {
		card.Name = extraction.NotFound
		vcard := VCard(card)
		Expect(vcard).To(ContainSubstring(`FN:한빛\, 소프트`))
		Expect(vcard).NotTo(ContainSubstring("\r\nN:"))
	})

	It("should name an empty card Unknown", func() {
		card.Name = extraction.NotFound
		card.Company = extraction.NotFound
		Expect(VCard(card)).To(ContainSubstring("FN:Unknown\r\n"))
	})
})

var _ = Describe("CardQRCode", func() {
	var (
		db      *mockDB
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		r := extraction.NewRecord("")
		r.Name = "홍길동"
		db.cards["c1"] = &Card{ID: "c1", Record: *r}
		service = NewService(db, newMockScanner(), newMockStorage(), &mockExtractor{}, newMockResponder())
	})

	It("should encode a PNG", func() {
		data, err := service.CardQRCode("c1")
		Expect(err).NotTo(HaveOccurred())
		img, err := png.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(qrSize))
	})

	It("should report a missing card", func() {
		_, err := service.CardQRCode("missing")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("should render the same contact as CardVCard", func() {
		vcard, err := service.CardVCard("c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Count(vcard, "\r\n")).To(Equal(5))
	})
})
