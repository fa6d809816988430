package session

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/splitcheck/internal/receipt"
)

func describeStore(name string, newStore func() Store) {
	Describe(name, func() {
		var (
			store     Store
			createdAt time.Time
			sess      *Session
		)

		BeforeEach(func() {
			store = newStore()
			createdAt = time.Date(2024, 3, 20, 19, 30, 0, 0, time.UTC)
			sess = newSession("abc", dinnerReceipt(), createdAt)
			sess.Selections["alice"] = receipt.Selection{0: 2, 2: 1}
			sess.Results["bob"] = &Result{
				Total:       price("13.75").Decimal,
				Subtotal:    price("12.50").Decimal,
				Breakdown:   []string{"Pizza × 1 = 12.50", "Service charge 10%: +1.25", "Total: 13.75"},
				Selection:   receipt.Selection{1: 1},
				ConfirmedAt: createdAt.Add(time.Minute),
			}
			sess.Photo = "abc.jpg"
			Expect(store.Put(sess)).To(Succeed())
		})

		AfterEach(func() {
			Expect(store.Close()).To(Succeed())
		})

		Describe("Get", func() {
			When("the session exists", func() {
				var (
					got *Session
					err error
				)

				JustBeforeEach(func() {
					got, err = store.Get("abc")
				})

				It("should not return an error", func() {
					Expect(err).NotTo(HaveOccurred())
				})

				It("keeps selections keyed by participant and item index", func() {
					Expect(got.Selections).To(HaveKeyWithValue("alice", receipt.Selection{0: 2, 2: 1}))
				})

				It("keeps results", func() {
					Expect(got.Results).To(HaveKey("bob"))
					Expect(got.Results["bob"].Total.StringFixed(2)).To(Equal("13.75"))
					Expect(got.Results["bob"].Breakdown).To(HaveLen(3))
					Expect(got.Results["bob"].Selection).To(Equal(receipt.Selection{1: 1}))
					Expect(got.Results["bob"].ConfirmedAt).To(BeTemporally("==", createdAt.Add(time.Minute)))
				})

				It("keeps the receipt", func() {
					Expect(got.Receipt.Items).To(HaveLen(3))
					Expect(got.Receipt.Items[2].TotalAmount.Decimal.StringFixed(2)).To(Equal("23.40"))
					Expect(got.Receipt.TotalDiscountAmount.Valid).To(BeFalse())
					Expect(got.Receipt.ServiceChargePercent.Decimal.StringFixed(0)).To(Equal("10"))
				})

				It("keeps the metadata", func() {
					Expect(got.Key).To(Equal("abc"))
					Expect(got.Photo).To(Equal("abc.jpg"))
					Expect(got.CreatedAt).To(BeTemporally("==", createdAt))
				})
			})

			When("the session does not exist", func() {
				It("returns ErrNotFound", func() {
					_, err := store.Get("missing")
					Expect(err).To(MatchError(ErrNotFound))
				})
			})
		})

		Describe("Update", func() {
			It("persists the change", func() {
				Expect(store.Update("abc", func(s *Session) error {
					s.selection("carol")[1] = 1
					return nil
				})).To(Succeed())

				got, err := store.Get("abc")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Selections).To(HaveKeyWithValue("carol", receipt.Selection{1: 1}))
			})

			It("writes nothing when fn fails", func() {
				failure := errors.New("boom")
				err := store.Update("abc", func(s *Session) error {
					s.Selections["alice"][0] = 1
					delete(s.Results, "bob")
					return failure
				})
				Expect(err).To(MatchError(failure))

				got, err := store.Get("abc")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Selections["alice"]).To(Equal(receipt.Selection{0: 2, 2: 1}))
				Expect(got.Results).To(HaveKey("bob"))
			})

			It("returns ErrNotFound for a missing session", func() {
				err := store.Update("missing", func(*Session) error { return nil })
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		Describe("Delete", func() {
			It("removes the session", func() {
				Expect(store.Delete("abc")).To(Succeed())
				_, err := store.Get("abc")
				Expect(err).To(MatchError(ErrNotFound))
			})

			It("ignores missing sessions", func() {
				Expect(store.Delete("missing")).To(Succeed())
			})
		})

		Describe("DeleteWhere", func() {
			BeforeEach(func() {
				Expect(store.Put(newSession("old", dinnerReceipt(), createdAt.Add(-72*time.Hour)))).To(Succeed())
				Expect(store.Put(newSession("older", dinnerReceipt(), createdAt.Add(-96*time.Hour)))).To(Succeed())
			})

			It("removes only matching sessions", func() {
				deleted, err := store.DeleteWhere(func(s *Session) bool {
					return s.CreatedAt.Before(createdAt)
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(ConsistOf("old", "older"))

				_, err = store.Get("old")
				Expect(err).To(MatchError(ErrNotFound))
				_, err = store.Get("abc")
				Expect(err).NotTo(HaveOccurred())
			})

			It("returns nothing when nothing matches", func() {
				deleted, err := store.DeleteWhere(func(*Session) bool { return false })
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeEmpty())
			})
		})
	})
}

var _ = Describe("Store", func() {
	describeStore("MemoryStore", func() Store {
		return NewMemoryStore()
	})

	describeStore("BoltStore", func() Store {
		store, err := NewBoltStore(filepath.Join(GinkgoT().TempDir(), "sessions.db"))
		Expect(err).NotTo(HaveOccurred())
		return store
	})
})

var _ = Describe("MemoryStore", func() {
	It("hands out copies", func() {
		store := NewMemoryStore()
		Expect(store.Put(newSession("abc", dinnerReceipt(), time.Now()))).To(Succeed())

		got, err := store.Get("abc")
		Expect(err).NotTo(HaveOccurred())
		got.selection("alice")[0] = 2

		again, err := store.Get("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Selections).NotTo(HaveKey("alice"))
	})
})

var _ = Describe("BoltStore", func() {
	It("reloads sessions after reopening", func() {
		path := filepath.Join(GinkgoT().TempDir(), "sessions.db")
		store, err := NewBoltStore(path)
		Expect(err).NotTo(HaveOccurred())

		sess := newSession("abc", dinnerReceipt(), time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))
		sess.Selections["alice"] = receipt.Selection{0: 1}
		Expect(store.Put(sess)).To(Succeed())
		Expect(store.Close()).To(Succeed())

		store, err = NewBoltStore(path)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		got, err := store.Get("abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Selections["alice"]).To(Equal(receipt.Selection{0: 1}))
	})

	It("fails on an unwritable path", func() {
		_, err := NewBoltStore(filepath.Join(GinkgoT().TempDir(), "missing", "sessions.db"))
		Expect(err).To(HaveOccurred())
	})
})
