package growth_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/popsim/internal/dynamo"
	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/integrators"
	"github.com/san-kum/popsim/internal/models"
)

func increasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}

func decreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] >= xs[i-1] {
			return false
		}
	}
	return true
}

var _ = Describe("Logistic growth", func() {
	const capacity = 100000.0

	Context("with a zero growth rate", func() {
		It("keeps the population constant", func() {
			traj, err := growth.Simulate(50000, 0, capacity, []float64{0, 10, 20})
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Population).To(Equal([]float64{50000, 50000, 50000}))
		})
	})

	Context("when the population starts above capacity", func() {
		It("decays monotonically toward capacity", func() {
			traj, err := growth.Simulate(150000, 0.02, capacity, []float64{0, 50})
			Expect(err).NotTo(HaveOccurred())
			Expect(decreasing(traj.Population)).To(BeTrue())
			Expect(traj.Final()).To(BeNumerically(">", capacity))
			Expect(traj.Final()).To(BeNumerically("<", 150000))
		})

		It("approaches capacity over a long horizon", func() {
			grid, err := growth.Linspace(0, 1000, 50)
			Expect(err).NotTo(HaveOccurred())
			traj, err := growth.Simulate(150000, 0.02, capacity, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(decreasing(traj.Population)).To(BeTrue())
			Expect(traj.Final()).To(BeNumerically("~", capacity, 1e-3))
		})
	})

	Context("on the design grid", func() {
		var grid []float64

		BeforeEach(func() {
			grid = growth.DefaultGrid()
		})

		It("traces an S-curve below capacity", func() {
			traj, err := growth.Simulate(10000, 0.03, capacity, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(traj.Len()).To(Equal(100))
			Expect(increasing(traj.Population)).To(BeTrue())
			Expect(traj.Final()).To(BeNumerically(">", 10000))
			Expect(traj.Final()).To(BeNumerically("<", capacity))
		})

		It("declines toward zero for a negative rate", func() {
			traj, err := growth.Simulate(60000, -0.05, capacity, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(decreasing(traj.Population)).To(BeTrue())
			Expect(traj.Final()).To(BeNumerically(">", 0))
		})

		DescribeTable("agrees with the closed form",
			func(p0, r float64) {
				traj, err := growth.Simulate(p0, r, capacity, grid)
				Expect(err).NotTo(HaveOccurred())

				exact := models.NewLogistic(r, capacity)
				for i, t := range grid {
					want := exact.Exact(p0, t)
					Expect(traj.Population[i]).To(BeNumerically("~", want, want*1e-5))
				}
			},
			Entry("slow growth", 10000.0, 0.01),
			Entry("design rate", 10000.0, 0.03),
			Entry("fast growth", 5000.0, 0.5),
			Entry("overshoot", 150000.0, 0.02),
			Entry("decline", 90000.0, -0.03),
		)

		It("returns identical trajectories for identical inputs", func() {
			a, err := growth.Simulate(42000, 0.021, capacity, grid)
			Expect(err).NotTo(HaveOccurred())
			b, err := growth.Simulate(42000, 0.021, capacity, grid)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})
	})

	Context("with invalid inputs", func() {
		DescribeTable("rejects the arguments",
			func(p0, k float64, grid []float64) {
				_, err := growth.Simulate(p0, 0.02, k, grid)
				Expect(err).To(MatchError(dynamo.ErrInvalidArgument))
			},
			Entry("zero capacity", 1000.0, 0.0, []float64{0, 1}),
			Entry("negative capacity", 1000.0, -1.0, []float64{0, 1}),
			Entry("zero population", 0.0, capacity, []float64{0, 1}),
			Entry("empty grid", 1000.0, capacity, []float64{}),
			Entry("unsorted grid", 1000.0, capacity, []float64{0, 5, 3}),
		)
	})

	Context("with a fixed-step method", func() {
		It("stays close to the adaptive solution", func() {
			sim, err := growth.NewSimulator(growth.WithMethod(integrators.MethodRK4))
			Expect(err).NotTo(HaveOccurred())

			p := growth.Params{Initial: 10000, Rate: 0.03, Capacity: capacity}
			fixed, err := sim.Simulate(context.Background(), p, growth.DefaultGrid())
			Expect(err).NotTo(HaveOccurred())

			adaptive, err := growth.Simulate(p.Initial, p.Rate, p.Capacity, growth.DefaultGrid())
			Expect(err).NotTo(HaveOccurred())
			Expect(fixed.Final()).To(BeNumerically("~", adaptive.Final(), 1e-3))
		})
	})
})
