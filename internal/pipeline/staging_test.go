package pipeline

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/quarkcity/meal-ledger/internal/extraction"
)

var _ = Describe("BoltStaging", func() {
	var (
		staging *BoltStaging
		rec     *extraction.RawExtraction
	)

	BeforeEach(func() {
		tmpDir := GinkgoT().TempDir()
		var err error
		staging, err = NewBoltStaging(filepath.Join(tmpDir, "staging.db"))
		Expect(err).NotTo(HaveOccurred())

		date := time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC)
		rec = &extraction.RawExtraction{
			ImagePath:    "images/jdoe/October 2025/slip1.png",
			Date:         &date,
			EmployeeCode: "TGLP1234",
			Amount:       decimal.NullDecimal{Decimal: decimal.NewFromInt(130), Valid: true},
			MealType:     "Special Veg Thali",
			Company:      "Grazitti Intractive",
		}
	})

	AfterEach(func() {
		if staging != nil {
			staging.Close()
		}
	})

	Describe("Put", func() {
		It("should stage a record", func() {
			Expect(staging.Put(rec)).To(Succeed())

			staged, err := staging.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(staged).To(HaveLen(1))
			Expect(staged[0].ImagePath).To(Equal(rec.ImagePath))
			Expect(staged[0].EmployeeCode).To(Equal("TGLP1234"))
			Expect(staged[0].Amount.Valid).To(BeTrue())
			Expect(staged[0].Amount.Decimal.Equal(decimal.NewFromInt(130))).To(BeTrue())
			Expect(staged[0].Date).NotTo(BeNil())
		})

		It("should reject a second write for the same image path", func() {
			Expect(staging.Put(rec)).To(Succeed())

			dup := *rec
			dup.EmployeeCode = "TGLP9999"
			err := staging.Put(&dup)
			Expect(err).To(MatchError(ErrAlreadyStaged))

			staged, listErr := staging.List()
			Expect(listErr).NotTo(HaveOccurred())
			Expect(staged).To(HaveLen(1))
			Expect(staged[0].EmployeeCode).To(Equal("TGLP1234"))
		})

		It("should preserve nil fields round trip", func() {
			empty := &extraction.RawExtraction{ImagePath: "images/jdoe/October 2025/blank.png"}
			Expect(staging.Put(empty)).To(Succeed())

			staged, err := staging.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(staged).To(HaveLen(1))
			Expect(staged[0].Date).To(BeNil())
			Expect(staged[0].Amount.Valid).To(BeFalse())
		})
	})

	Describe("Reset", func() {
		It("should drop all staged records", func() {
			Expect(staging.Put(rec)).To(Succeed())
			Expect(staging.Reset()).To(Succeed())

			staged, err := staging.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(staged).To(BeEmpty())
		})

		It("should allow re-staging a path after reset", func() {
			Expect(staging.Put(rec)).To(Succeed())
			Expect(staging.Reset()).To(Succeed())
			Expect(staging.Put(rec)).To(Succeed())
		})
	})
})
