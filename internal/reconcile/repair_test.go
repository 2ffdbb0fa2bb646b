package reconcile

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/quarkcity/meal-ledger/internal/config"
	"github.com/quarkcity/meal-ledger/internal/extraction"
)

var _ = Describe("amount repair", func() {
	var (
		sim        *mockSimilarity
		reconciler *Reconciler
		records    []*extraction.RawExtraction
		out        []*Record
		err        error
	)

	BeforeEach(func() {
		sim = newMockSimilarity()
		reconciler = NewReconciler(sim, config.Default().Reconcile)
	})

	JustBeforeEach(func() {
		out, err = reconciler.Reconcile(context.Background(), records, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	When("one amount is an implausible OCR over-read", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "special veg thali", amount(50)),
				rawRecord("b", "", "special veg thali", amount(50)),
				rawRecord("c", "", "special veg thali", amount(999)),
			}
		})

		It("should replace it with the meal-type mode", func() {
			Expect(out[2].AmountPaid.Valid).To(BeTrue())
			Expect(out[2].AmountPaid.Decimal.Equal(decimal.NewFromInt(50))).To(BeTrue())
		})

		It("should leave two-digit amounts alone", func() {
			Expect(out[0].AmountPaid.Decimal.Equal(decimal.NewFromInt(50))).To(BeTrue())
			Expect(out[1].AmountPaid.Decimal.Equal(decimal.NewFromInt(50))).To(BeTrue())
		})
	})

	When("an over-read runs to four digits", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "special veg thali", amount(50)),
				rawRecord("b", "", "special veg thali", amount(50)),
				rawRecord("c", "", "special veg thali", amount(9999)),
			}
		})

		It("should replace it with the meal-type mode", func() {
			Expect(out[2].AmountPaid.Decimal.Equal(decimal.NewFromInt(50))).To(BeTrue())
		})
	})

	When("an amount is missing entirely", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "Special Packed M", amount(130)),
				rawRecord("b", "", "Special Packed M", amount(130)),
				rawRecord("c", "", "Special Packed M", decimal.NullDecimal{}),
			}
		})

		It("should fill it with the mode of the same meal type", func() {
			Expect(out[2].AmountPaid.Valid).To(BeTrue())
			Expect(out[2].AmountPaid.Decimal.Equal(decimal.NewFromInt(130))).To(BeTrue())
		})
	})

	When("modes are computed per meal type", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "Special Packed M", amount(110)),
				rawRecord("b", "", "Special Packed M", amount(110)),
				rawRecord("c", "", "Special Veg Thali", amount(130)),
				rawRecord("d", "", "Special Veg Thali", amount(130)),
				rawRecord("e", "", "Special Veg Thali", decimal.NullDecimal{}),
				rawRecord("f", "", "Special Packed M", decimal.NullDecimal{}),
			}
		})

		It("should use the mode of the record's own meal type", func() {
			Expect(out[4].AmountPaid.Decimal.Equal(decimal.NewFromInt(130))).To(BeTrue())
			Expect(out[5].AmountPaid.Decimal.Equal(decimal.NewFromInt(110))).To(BeTrue())
		})
	})

	When("no mode exists for the meal type", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "Special Veg Thali", decimal.NullDecimal{}),
			}
		})

		It("should leave the amount unresolved", func() {
			Expect(out[0].AmountPaid.Valid).To(BeFalse())
		})
	})

	When("the mode is ambiguous", func() {
		BeforeEach(func() {
			records = []*extraction.RawExtraction{
				rawRecord("a", "", "Special Veg Thali", amount(50)),
				rawRecord("b", "", "Special Veg Thali", amount(60)),
				rawRecord("c", "", "Special Veg Thali", decimal.NullDecimal{}),
			}
		})

		It("should pick the smallest of the most frequent values", func() {
			Expect(out[2].AmountPaid.Decimal.Equal(decimal.NewFromInt(50))).To(BeTrue())
		})
	})
})

var _ = Describe("repairCode", func() {
	prefixes := []string{"TGLP", "TGZM", "GZM", "GLP"}

	It("should replace o and s inside the code body", func() {
		Expect(repairCode("TGLPo5s2", prefixes)).To(Equal("TGLP0552"))
	})

	It("should repair uppercase confusions too", func() {
		Expect(repairCode("GZMO12S", prefixes)).To(Equal("GZM0125"))
	})

	It("should leave the prefix untouched", func() {
		Expect(repairCode("tglpoo11", prefixes)).To(Equal("tglp0011"))
	})

	It("should not touch codes outside the prefix family", func() {
		Expect(repairCode("TGM0so1", prefixes)).To(Equal("TGM0so1"))
	})

	It("should pass empty codes through", func() {
		Expect(repairCode("", prefixes)).To(BeEmpty())
	})
})

var _ = Describe("ParseRoster", func() {
	It("should parse well-formed rows", func() {
		rows := [][]string{
			{"Emp ID", "First Name", "Last Name", "UserID"},
			{"TGLP1234", "Jane", "Doe", "jdoe"},
			{"GZM0042", "Raj", "Patel", "rpatel"},
		}
		entries := ParseRoster(rows)
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].EmployeeID).To(Equal("TGLP1234"))
		Expect(entries[0].UserFolderID).To(Equal("jdoe"))
		Expect(entries[1].DisplayName()).To(Equal("Raj Patel"))
	})

	It("should tolerate missing columns", func() {
		rows := [][]string{
			{"Emp ID", "UserID"},
			{"TGLP1234", "jdoe"},
		}
		entries := ParseRoster(rows)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].FirstName).To(BeEmpty())
		Expect(entries[0].DisplayName()).To(BeEmpty())
	})

	It("should tolerate short rows", func() {
		rows := [][]string{
			{"Emp ID", "First Name", "Last Name", "UserID"},
			{"TGLP1234"},
		}
		entries := ParseRoster(rows)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].UserFolderID).To(BeEmpty())
	})

	It("should drop rows with neither identifier", func() {
		rows := [][]string{
			{"Emp ID", "First Name", "Last Name", "UserID"},
			{"", "Ghost", "Row", ""},
		}
		Expect(ParseRoster(rows)).To(BeEmpty())
	})

	It("should return nothing for a header-only sheet", func() {
		Expect(ParseRoster([][]string{{"Emp ID"}})).To(BeNil())
	})
})
