package session

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/splitcheck/internal/receipt"
)

var _ = Describe("Aggregate", func() {
	var (
		sess    *Session
		summary Summary
	)

	BeforeEach(func() {
		sess = newSession("abc", dinnerReceipt(), time.Now())
	})

	JustBeforeEach(func() {
		summary = Aggregate(sess, receipt.NewCalculator())
	})

	participants := func() []string {
		var out []string
		for _, p := range summary.Participants {
			out = append(out, p.Participant)
		}
		return out
	}

	When("nobody selected anything", func() {
		It("is empty", func() {
			Expect(summary.Participants).To(BeEmpty())
			Expect(summary.Total.IsZero()).To(BeTrue())
			Expect(summary.Recomputed).To(BeFalse())
		})
	})

	When("results are stored", func() {
		BeforeEach(func() {
			sess.Results["bob"] = &Result{Total: price("13.75").Decimal}
			sess.Results["alice"] = &Result{Total: price("3.30").Decimal}
			sess.Results["carol"] = &Result{Total: price("25.74").Decimal}
			sess.Results["dave"] = &Result{Total: price("3.30").Decimal}
			// open selections are ignored once anyone confirmed
			sess.Selections["erin"] = receipt.Selection{1: 1}
		})

		It("orders by amount, highest first, ties by participant", func() {
			Expect(participants()).To(Equal([]string{"carol", "bob", "alice", "dave"}))
		})

		It("sums the stored totals", func() {
			Expect(summary.Total.StringFixed(2)).To(Equal("46.09"))
			Expect(summary.Recomputed).To(BeFalse())
		})
	})

	When("only selections exist", func() {
		BeforeEach(func() {
			sess.Selections["alice"] = receipt.Selection{0: 2}
			sess.Selections["bob"] = receipt.Selection{1: 1}
			sess.Selections["idle"] = receipt.Selection{}
		})

		It("recomputes every non-empty selection", func() {
			Expect(summary.Recomputed).To(BeTrue())
			Expect(participants()).To(Equal([]string{"bob", "alice"}))
			Expect(summary.Participants[0].Total.StringFixed(2)).To(Equal("13.75"))
			Expect(summary.Participants[1].Total.StringFixed(2)).To(Equal("6.60"))
			Expect(summary.Participants[1].Breakdown).To(ContainElement("Total: 6.60"))
		})

		It("sums the recomputed totals", func() {
			Expect(summary.Total.StringFixed(2)).To(Equal("20.35"))
		})
	})
})
