package gifticon

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gifticon", func() {
	var now time.Time

	BeforeEach(func() {
		now = time.Date(2025, 1, 10, 14, 30, 0, 0, kst)
	})

	Describe("NewGifticon", func() {
		It("should create an unused gifticon", func() {
			g := NewGifticon("CU", "바나나우유", now.AddDate(0, 0, 7), "img.png")
			Expect(g.IsUsed).To(BeFalse())
			Expect(g.Brand).To(Equal("CU"))
			Expect(g.ProductName).To(Equal("바나나우유"))
			Expect(g.ImagePath).To(Equal("img.png"))
			Expect(g.ID).To(BeEmpty())
		})
	})

	DescribeTable("Status",
		func(isUsed bool, expiration time.Duration, want Status) {
			g := &Gifticon{IsUsed: isUsed, ExpirationDate: now.Add(expiration)}
			Expect(g.Status(now)).To(Equal(want))
			Expect(g.IsAvailable(now)).To(Equal(want == StatusAvailable))
			Expect(g.IsUsedOrExpired(now)).To(Equal(want != StatusAvailable))
		},
		Entry("unused and in date", false, 24*time.Hour, StatusAvailable),
		Entry("one second before expiring", false, time.Second, StatusAvailable),
		Entry("at the expiration instant", false, time.Duration(0), StatusExpired),
		Entry("past the expiration", false, -time.Hour, StatusExpired),
		Entry("used and in date", true, 24*time.Hour, StatusUsed),
		Entry("used and expired", true, -time.Hour, StatusUsed),
	)

	Describe("Partition", func() {
		It("should place every gifticon in exactly one view", func() {
			var gifticons []*Gifticon
			for _, used := range []bool{true, false} {
				for _, days := range []int{-30, -1, 0, 1, 30} {
					gifticons = append(gifticons, &Gifticon{IsUsed: used, ExpirationDate: now.AddDate(0, 0, days)})
				}
			}

			available, usedOrExpired := Partition(gifticons, now)
			Expect(len(available) + len(usedOrExpired)).To(Equal(len(gifticons)))
			for _, g := range available {
				Expect(usedOrExpired).NotTo(ContainElement(BeIdenticalTo(g)))
				Expect(g.IsUsed).To(BeFalse())
				Expect(g.ExpirationDate.After(now)).To(BeTrue())
			}
			Expect(available).To(HaveLen(2))
		})

		It("should return empty views for no gifticons", func() {
			available, usedOrExpired := Partition(nil, now)
			Expect(available).To(BeEmpty())
			Expect(usedOrExpired).To(BeEmpty())
		})
	})

	Describe("ParseStatusFilter", func() {
		It("should default to all", func() {
			Expect(ParseStatusFilter("")).To(Equal(FilterAll))
		})

		It("should accept used and expired", func() {
			Expect(ParseStatusFilter("used")).To(Equal(FilterUsed))
			Expect(ParseStatusFilter("expired")).To(Equal(FilterExpired))
		})

		It("should reject unknown filters", func() {
			_, err := ParseStatusFilter("pending")
			Expect(err).To(MatchError(ErrInvalid))
		})
	})

	Describe("ParseSortOrder", func() {
		It("should use the default when empty", func() {
			Expect(ParseSortOrder("", SortDesc)).To(Equal(SortDesc))
		})

		It("should reject unknown orders", func() {
			_, err := ParseSortOrder("sideways", SortAsc)
			Expect(err).To(MatchError(ErrInvalid))
		})
	})
})
