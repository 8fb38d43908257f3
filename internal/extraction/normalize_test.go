package extraction

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Normalize", func() {
	var (
		record      *Record
		corrections []Correction
	)

	BeforeEach(func() {
		record = NewRecord("")
	})

	JustBeforeEach(func() {
		corrections = Normalize(record)
	})

	When("the name holds a sector keyword and company is empty", func() {
		BeforeEach(func() {
			record.Name = "한국전자기술"
		})

		It("moves the name to company", func() {
			Expect(record.Company).To(Equal("한국전자기술"))
			Expect(record.Name).To(Equal(NotFound))
		})

		It("records the move", func() {
			Expect(corrections).To(ConsistOf(Correction{
				Rule: "name-sector-keyword", From: FieldName, To: FieldCompany, Value: "한국전자기술",
			}))
		})
	})

	When("the name holds an English sector word", func() {
		BeforeEach(func() {
			record.Name = "Bio Institute"
		})

		It("moves the name to company", func() {
			Expect(record.Company).To(Equal("Bio Institute"))
		})
	})

	When("the name is longer than ten characters", func() {
		BeforeEach(func() {
			record.Name = "abcdefghijk"
		})

		It("moves the name to company", func() {
			Expect(record.Company).To(Equal("abcdefghijk"))
			Expect(record.Name).To(Equal(NotFound))
			Expect(corrections[0].Rule).To(Equal("name-too-long"))
		})
	})

	When("company is already filled", func() {
		BeforeEach(func() {
			record.Name = "바이오연구소"
			record.Company = "KETI"
		})

		It("leaves both fields alone", func() {
			Expect(record.Name).To(Equal("바이오연구소"))
			Expect(record.Company).To(Equal("KETI"))
			Expect(corrections).To(BeEmpty())
		})
	})

	When("the name is missing but the email is known", func() {
		BeforeEach(func() {
			record.Email = "gildong.hong@example.com"
		})

		It("uses the local part as the name", func() {
			Expect(record.Name).To(Equal("gildong.hong"))
		})

		It("keeps a long derived name in the name field", func() {
			Expect(record.Company).To(Equal(NotFound))
		})
	})

	When("the email local part is a single character", func() {
		BeforeEach(func() {
			record.Email = "h@example.com"
		})

		It("does not derive a name", func() {
			Expect(record.Name).To(Equal(NotFound))
		})
	})

	When("the name was moved to company and an email exists", func() {
		BeforeEach(func() {
			record.Name = "삼성전자"
			record.Email = "hong@samsung.com"
		})

		It("fills the name from the email after the move", func() {
			Expect(record.Company).To(Equal("삼성전자"))
			Expect(record.Name).To(Equal("hong"))
			Expect(corrections).To(HaveLen(2))
		})
	})

	When("the phone has eleven digits without dashes", func() {
		BeforeEach(func() {
			record.Phone = "01012345678"
		})

		It("formats it", func() {
			Expect(record.Phone).To(Equal("010-1234-5678"))
		})
	})

	When("the phone is already formatted", func() {
		BeforeEach(func() {
			record.Phone = "010-1234-5678"
		})

		It("records no correction", func() {
			Expect(corrections).To(BeEmpty())
		})
	})

	When("the record is the failure record", func() {
		BeforeEach(func() {
			record = FailedRecord()
		})

		It("changes nothing", func() {
			Expect(record).To(Equal(FailedRecord()))
			Expect(corrections).To(BeEmpty())
		})
	})
})

var _ = Describe("FormatPhone", func() {
	DescribeTable("formatting",
		func(in, want string, ok bool) {
			got, formatted := FormatPhone(in)
			Expect(got).To(Equal(want))
			Expect(formatted).To(Equal(ok))
		},
		Entry("eleven digits", "01098765432", "010-9876-5432", true),
		Entry("eleven digits with spaces", "010 9876 5432", "010-9876-5432", true),
		Entry("ten digits", "0212345678", "0212345678", false),
		Entry("ten digits with dashes", "031-789-7000", "031-789-7000", false),
	)
})
