package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
)

const dt = 0.01

func newTwin(setup sim.Setup) *sim.Twin {
	tw, err := sim.New(setup)
	Expect(err).NotTo(HaveOccurred())
	return tw
}

var _ = Describe("Twin", func() {
	var tw *sim.Twin

	BeforeEach(func() {
		tw = newTwin(sim.DefaultSetup())
	})

	It("starts off at t=0 with both rotors at nominal", func() {
		Expect(tw.Mode()).To(Equal(sim.Off))
		Expect(tw.Time()).To(BeZero())
		Expect(tw.Main().RPM()).To(BeNumerically("~", 2400, 1e-9))
		Expect(tw.Follower().RPM()).To(BeNumerically("~", 2400, 1e-9))
	})

	It("keeps the follower on nominal while off", func() {
		for i := 0; i < 200; i++ {
			s := tw.Step(dt)
			Expect(s.Correction).To(BeZero())
			Expect(s.Follower.TargetRPM).To(BeNumerically("~", 2400, 1e-9))
		}
		Expect(tw.Time()).To(BeNumerically("~", 2.0, 1e-9))
	})

	It("applies nominal plus correction to the follower target", func() {
		Expect(tw.SetMode(sim.ModeBaseline)).To(Succeed())
		for i := 0; i < 500; i++ {
			s := tw.Step(dt)
			Expect(s.Follower.TargetRPM).To(BeNumerically("~", 2400+s.Correction, 1e-9))
			Expect(s.Control.Output).To(Equal(s.Correction))
			Expect(s.Main.TargetRPM).To(BeNumerically("~", 2400, 1e-9))
		}
	})

	It("resets the follower target and the controller on mode switch", func() {
		Expect(tw.SetMode(sim.ModePFD)).To(Succeed())
		for i := 0; i < 300; i++ {
			tw.Step(dt)
		}

		Expect(tw.SetMode(sim.ModeBaseline)).To(Succeed())
		Expect(tw.Follower().TargetRPM()).To(BeNumerically("~", 2400, 1e-9))
		Expect(tw.Correction()).To(BeZero())
		Expect(tw.Controller(sim.ModePFD).Enabled()).To(BeFalse())
		Expect(tw.Controller(sim.ModeBaseline).Enabled()).To(BeTrue())

		s := tw.Step(dt)
		Expect(math.Abs(s.Correction)).To(BeNumerically("<=", 20*dt+1e-12))
	})

	It("rejects unknown modes", func() {
		Expect(tw.SetMode("bang-bang")).To(MatchError(dynamo.ErrUnknownVariant))
	})

	It("counts invalid steps as anomalies without advancing", func() {
		tw.Step(0)
		tw.Step(math.NaN())
		Expect(tw.Time()).To(BeZero())
		Expect(tw.Anomalies()).To(Equal(2))
	})

	It("counts non-finite rotor steps as anomalies and keeps time moving", func() {
		s := sim.DefaultSetup()
		s.Main.Inertia = 1e-308
		s.Main.BaseTorque = 9000
		bad := newTwin(s)
		before := bad.Main().AngularVelocity()

		bad.Step(dt)
		bad.Step(dt)

		Expect(bad.Anomalies()).To(Equal(2))
		Expect(bad.Main().Err()).To(MatchError(dynamo.ErrInvalidState))
		Expect(bad.Main().AngularVelocity()).To(Equal(before))
		Expect(bad.Follower().Rejected()).To(BeZero())
		Expect(bad.Time()).To(BeNumerically("~", 2*dt, 1e-12))
	})

	It("primes both rotors at the middle of the density band", func() {
		lo, hi := tw.Field().Bounds()
		Expect(tw.Main().LocalDensity()).To(BeNumerically("~", (lo+hi)/2, 1e-12))
		Expect(tw.Follower().LocalDensity()).To(BeNumerically("~", (lo+hi)/2, 1e-12))
	})

	It("reports blade-pass and beat frequencies", func() {
		s := tw.Step(dt)
		Expect(s.BPFMain).To(BeNumerically("~", s.Main.RPM/60*3, 1e-9))
		Expect(s.BeatFrequency).To(BeNumerically("~", math.Abs(s.BPFMain-s.BPFFollower), 1e-12))
	})
})

var _ = Describe("Run", func() {
	It("records every tick plus the initial state", func() {
		tw := newTwin(sim.DefaultSetup())
		res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 2, Mode: sim.ModeBaseline})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StepsTaken).To(Equal(200))
		Expect(res.Samples).To(HaveLen(201))
		Expect(res.Duration).To(BeNumerically("~", 2, 1e-9))
		Expect(res.Mode).To(Equal(sim.ModeBaseline))
		Expect(res.Seed).To(Equal(int64(42)))
	})

	It("decimates recorded samples", func() {
		tw := newTwin(sim.DefaultSetup())
		res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 2, RecordEvery: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Samples).To(HaveLen(21))
	})

	It("switches on at SwitchAt", func() {
		tw := newTwin(sim.DefaultSetup())
		res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 4, Mode: sim.ModePFD, SwitchAt: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.SwitchTime).To(BeNumerically("~", 2, dt))
		for _, s := range res.Samples {
			if s.Time < 1.99 {
				Expect(s.Mode).To(Equal(sim.Off))
			} else if s.Time > 2.01 {
				Expect(s.Mode).To(Equal(sim.ModePFD))
			}
		}
	})

	It("stops on cancellation with a partial result", func() {
		tw := newTwin(sim.DefaultSetup())
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		tw.AddObserver(observerFunc(func(s sim.Sample) {
			calls++
			if calls == 50 {
				cancel()
			}
		}))

		res, err := tw.Run(ctx, sim.Config{Dt: dt, Duration: 10})
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.StepsTaken).To(Equal(50))
	})

	It("stops when the callback returns false", func() {
		tw := newTwin(sim.DefaultSetup())
		n := 0
		err := tw.RunWithCallback(context.Background(), sim.Config{Dt: dt, Duration: 10, Mode: sim.ModeAdaptive}, func(s sim.Sample) bool {
			n++
			return n < 25
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(25))
		Expect(tw.Time()).To(BeNumerically("~", 0.25, 1e-9))
	})

	DescribeTable("rejects invalid configs",
		func(cfg sim.Config) {
			tw := newTwin(sim.DefaultSetup())
			_, err := tw.Run(context.Background(), cfg)
			Expect(err).To(HaveOccurred())
		},
		Entry("zero dt", sim.Config{Dt: 0, Duration: 1}),
		Entry("negative duration", sim.Config{Dt: dt, Duration: -1}),
		Entry("switch after end", sim.Config{Dt: dt, Duration: 1, SwitchAt: 2}),
		Entry("unknown mode", sim.Config{Dt: dt, Duration: 1, Mode: "fuzzy"}),
		Entry("nan dt", sim.Config{Dt: math.NaN(), Duration: 1}),
	)

	It("is deterministic for a given seed", func() {
		run := func() float64 {
			tw := newTwin(sim.DefaultSetup())
			tw.AddMetric(metrics.NewMeanSpeedError())
			res, err := tw.Run(context.Background(), sim.Config{Dt: dt, Duration: 3, Mode: sim.ModeBaseline})
			Expect(err).NotTo(HaveOccurred())
			return res.Metrics["mean_speed_error_rpm"]
		}
		Expect(run()).To(Equal(run()))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one twin per seed", func() {
		seeds := []int64{1, 2, 3}
		e := sim.NewEnsemble(sim.DefaultSetup(), seeds, func() []sim.Metric {
			return []sim.Metric{metrics.NewMeanSpeedError()}
		})
		results, err := e.Run(context.Background(), sim.Config{Dt: dt, Duration: 1, Mode: sim.ModeBaseline})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(3))
		for i, r := range results {
			Expect(r.Seed).To(Equal(seeds[i]))
			Expect(r.Metrics).To(HaveKey("mean_speed_error_rpm"))
		}
		Expect(sim.MeanMetric(results, "mean_speed_error_rpm")).To(BeNumerically(">=", 0))
	})
})

type observerFunc func(sim.Sample)

func (f observerFunc) OnStep(s sim.Sample) { f(s) }
