package scanning

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseRawReceipt", func() {
	var (
		text string
		raw  RawReceipt
		err  error
	)

	JustBeforeEach(func() {
		raw, err = parseRawReceipt(text)
	})

	When("the reply is plain JSON", func() {
		BeforeEach(func() {
			text = `{"items": [{"description": "Cola", "quantity": 2, "unit_price": 3.00}], "total_check_amount": 6.00}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps numbers as their decimal text", func() {
			Expect(raw["total_check_amount"]).To(Equal(json.Number("6.00")))
		})

		It("decodes the item list", func() {
			items, ok := raw["items"].([]any)
			Expect(ok).To(BeTrue())
			Expect(items).To(HaveLen(1))
			Expect(items[0]).To(HaveKeyWithValue("description", "Cola"))
			Expect(items[0]).To(HaveKeyWithValue("unit_price", json.Number("3.00")))
		})
	})

	When("the reply is wrapped in a markdown code block", func() {
		BeforeEach(func() {
			text = "```json\n{\"items\": [], \"service_charge_percent\": \"10\"}\n```"
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the object inside", func() {
			Expect(raw).To(HaveKeyWithValue("service_charge_percent", "10"))
		})
	})

	When("the reply has text around the object", func() {
		BeforeEach(func() {
			text = "Here is the receipt:\n{\"items\": [{\"description\": \"Tea\"}]}\nHope this helps!"
		})

		It("extracts the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(HaveKey("items"))
		})
	})

	When("the reply holds no object", func() {
		BeforeEach(func() {
			text = "I cannot read this image."
		})

		It("returns ErrNoJSON", func() {
			Expect(err).To(MatchError(ErrNoJSON))
		})
	})

	When("the object is malformed", func() {
		BeforeEach(func() {
			text = `{"items": [1, 2,}`
		})

		It("returns the error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrNoJSON))
		})
	})
})
