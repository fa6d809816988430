package session

import (
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/splitcheck/internal/receipt"
)

var _ = Describe("concurrent selection updates", func() {
	const perParticipant = 40

	// bulkReceipt has items with enough units that no increment rolls over
	bulkReceipt := func() *receipt.Receipt {
		return &receipt.Receipt{
			Items: []receipt.Item{
				{Description: "Dumpling", Quantity: 100, UnitPrice: price("0.50"), TotalAmount: price("50.00")},
				{Description: "Bao", Quantity: 100, UnitPrice: price("1.20"), TotalAmount: price("120.00")},
			},
		}
	}

	DescribeTable("never lose an update",
		func(newStore func() Store) {
			store := newStore()
			DeferCleanup(store.Close)

			clock := &fakeClock{now: time.Date(2024, 3, 20, 19, 0, 0, 0, time.UTC)}
			service := NewServiceWithDeps(store, nil, nil, receipt.NewCalculator(), &sequenceIDs{}, clock)
			_, err := service.Create("abc", bulkReceipt())
			Expect(err).NotTo(HaveOccurred())

			writers := []struct {
				participant string
				index       int
			}{
				{"alice", 0},
				{"alice", 1},
				{"bob", 0},
			}

			var wg sync.WaitGroup
			errs := make(chan error, len(writers)*perParticipant)
			for _, w := range writers {
				for i := 0; i < perParticipant; i++ {
					wg.Add(1)
					go func(participant string, index int) {
						defer wg.Done()
						if _, err := service.IncrementSelection("abc", participant, index); err != nil {
							errs <- err
						}
					}(w.participant, w.index)
				}
			}
			wg.Wait()
			close(errs)
			Expect(errs).To(BeEmpty())

			alice, err := service.GetSelection("abc", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(alice).To(Equal(receipt.Selection{0: perParticipant, 1: perParticipant}))

			bob, err := service.GetSelection("abc", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(bob).To(Equal(receipt.Selection{0: perParticipant}))
		},
		Entry("MemoryStore", func() Store {
			return NewMemoryStore()
		}),
		Entry("BoltStore", func() Store {
			store, err := NewBoltStore(filepath.Join(GinkgoT().TempDir(), "sessions.db"))
			Expect(err).NotTo(HaveOccurred())
			return store
		}),
	)
})
