package sim_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
)

// meanSpeedError runs 30 s at dt=0.01 and returns mean |RPM_main − RPM_follower|.
func meanSpeedError(setup sim.Setup, mode sim.Mode) float64 {
	tw := newTwin(setup)
	tw.AddMetric(metrics.NewMeanSpeedError())
	res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 30, Mode: mode})
	Expect(err).NotTo(HaveOccurred())
	Expect(res.Anomalies).To(BeZero())
	return res.Metrics["mean_speed_error_rpm"]
}

var _ = Describe("Closed-loop scenarios", func() {
	var setup sim.Setup

	BeforeEach(func() {
		setup = sim.DefaultSetup()
		setup.Field.Wavelength = 150
		setup.Field.DriftVelocity = 50
		setup.Field.Octaves = 4
		setup.Field.Seed = field.DefaultSeed
	})

	It("sees different densities at the two rotor positions", func() {
		f, err := field.New(setup.Field)
		Expect(err).NotTo(HaveOccurred())
		differ := 0
		for t := 0.0; t < 30; t += 0.5 {
			if f.Sample(setup.Main.X, setup.Main.Y, t) != f.Sample(setup.Follower.X, setup.Follower.Y, t) {
				differ++
			}
		}
		Expect(differ).To(BeNumerically(">", 50))
	})

	It("A: uncontrolled speed mismatch exceeds the baseline's", func() {
		setup.Field.Seed = 7
		off := meanSpeedError(setup, sim.Off)
		on := meanSpeedError(setup, sim.ModeBaseline)
		Expect(off).To(BeNumerically(">", 0))
		Expect(off).To(BeNumerically(">", on))
	})

	It("B: the baseline cuts mean speed mismatch by at least 40%", func() {
		off := meanSpeedError(setup, sim.Off)
		on := meanSpeedError(setup, sim.ModeBaseline)
		Expect(off).To(BeNumerically(">", 0))
		Expect(on).To(BeNumerically("<=", 0.6*off))
	})

	It("C: the PFD variant does not regress against the baseline", func() {
		baseline := meanSpeedError(setup, sim.ModeBaseline)
		pfd := meanSpeedError(setup, sim.ModePFD)
		Expect(pfd).To(BeNumerically("<=", 1.15*baseline+0.05))
	})

	It("keeps the follower target inside the safety band throughout", func() {
		tw := newTwin(setup)
		lo, hi := tw.Follower().TargetBandRPM()
		res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 30, Mode: sim.ModeAdaptive})
		Expect(err).NotTo(HaveOccurred())
		for _, s := range res.Samples {
			Expect(s.Follower.TargetRPM).To(BeNumerically(">=", lo-1e-9))
			Expect(s.Follower.TargetRPM).To(BeNumerically("<=", hi+1e-9))
		}
	})
})
