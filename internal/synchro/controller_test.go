package synchro_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/synchro/internal/dynamo"
	"github.com/san-kum/synchro/internal/synchro"
)

const dt = 0.01

// lead builds a measurement where main leads follower by e radians at
// matched shaft speeds.
func lead(e float64) synchro.Measurement {
	omega := dynamo.RPMToRadS(2400)
	return synchro.Measurement{ThetaMain: 1.0 + e, ThetaFollower: 1.0, OmegaMain: omega, OmegaFollower: omega}
}

func mustNew(v synchro.Variant, g synchro.Gains) synchro.Controller {
	c, err := synchro.New(v, g)
	Expect(err).NotTo(HaveOccurred())
	return c
}

var _ = Describe("PhaseError", func() {
	It("takes the short way across the 0/2π seam", func() {
		Expect(synchro.PhaseError(0.05, 2*math.Pi-0.05)).To(BeNumerically("~", 0.10, 1e-12))
		Expect(synchro.PhaseError(2*math.Pi-0.05, 0.05)).To(BeNumerically("~", -0.10, 1e-12))
	})

	It("stays within (-π, π]", func() {
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 1000; i++ {
			e := synchro.PhaseError(rng.Float64()*20-10, rng.Float64()*20-10)
			Expect(e).To(BeNumerically(">=", -math.Pi))
			Expect(e).To(BeNumerically("<=", math.Pi))
		}
	})
})

var _ = Describe("ParseVariant", func() {
	DescribeTable("known names",
		func(in string, expected synchro.Variant) {
			v, err := synchro.ParseVariant(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(expected))
		},
		Entry("baseline", "baseline", synchro.Baseline),
		Entry("upper case", "PFD", synchro.PFD),
		Entry("advanced alias", "advanced", synchro.PFD),
		Entry("adaptive", " adaptive ", synchro.Adaptive),
	)

	It("rejects unknown names", func() {
		_, err := synchro.ParseVariant("bang-bang")
		Expect(err).To(MatchError(dynamo.ErrUnknownVariant))
	})
})

var _ = Describe("New", func() {
	It("rejects invalid gains with a ConfigError", func() {
		g := synchro.DefaultGains()
		g.RateLimit = 0
		_, err := synchro.New(synchro.Baseline, g)
		var cerr *dynamo.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cerr))
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
	})

	It("rejects an unknown derivative source", func() {
		g := synchro.DefaultGains()
		g.Derivative = "setpoint"
		_, err := synchro.New(synchro.PFD, g)
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
	})

	It("rejects an unknown variant", func() {
		_, err := synchro.New("fuzzy", synchro.DefaultGains())
		Expect(err).To(MatchError(dynamo.ErrUnknownVariant))
	})
})

var _ = Describe("Controllers", func() {
	for _, variant := range synchro.Variants() {
		variant := variant

		Describe(string(variant), func() {
			var (
				c synchro.Controller
				g synchro.Gains
			)

			BeforeEach(func() {
				g = synchro.DefaultGainsFor(variant)
				c = mustNew(variant, g)
			})

			It("reports its variant and starts disabled", func() {
				Expect(c.Variant()).To(Equal(variant))
				Expect(c.Enabled()).To(BeFalse())
			})

			It("returns zero while disabled", func() {
				for i := 0; i < 10; i++ {
					Expect(c.Update(lead(1.0), dt)).To(BeZero())
				}
				Expect(c.Telemetry().Updates).To(BeZero())
			})

			It("corrects toward the leading propeller", func() {
				c.Enable()
				var u float64
				for i := 0; i < 50; i++ {
					u = c.Update(lead(0.3), dt)
				}
				Expect(u).To(BeNumerically(">", 0))

				c.Disable()
				c.Enable()
				for i := 0; i < 50; i++ {
					u = c.Update(lead(-0.3), dt)
				}
				Expect(u).To(BeNumerically("<", 0))
			})

			It("re-enables bumplessly", func() {
				c.Enable()
				for i := 0; i < 500; i++ {
					c.Update(lead(0.8), dt)
				}
				Expect(c.Telemetry().Output).To(BeNumerically("~", g.OutputLimit, 1e-9))

				c.Disable()
				Expect(c.Update(lead(0.8), dt)).To(BeZero())

				c.Enable()
				u := c.Update(lead(0.8), dt)
				tel := c.Telemetry()
				Expect(math.Abs(u)).To(BeNumerically("<=", g.RateLimit*dt+1e-12))
				Expect(tel.D).To(BeZero())
				Expect(tel.Integral).To(BeNumerically("~", 0.8*dt, 1e-12))
			})

			It("limits the per-tick change and the magnitude of the output", func() {
				rng := rand.New(rand.NewSource(42))
				c.Enable()
				prev := 0.0
				for i := 0; i < 5000; i++ {
					m := synchro.Measurement{
						ThetaMain:     rng.Float64() * 2 * math.Pi,
						ThetaFollower: rng.Float64() * 2 * math.Pi,
						OmegaMain:     240 + rng.Float64()*20,
						OmegaFollower: 240 + rng.Float64()*20,
					}
					step := dt * (0.5 + rng.Float64())
					u := c.Update(m, step)
					Expect(math.Abs(u - prev)).To(BeNumerically("<=", g.RateLimit*step+1e-9))
					Expect(math.Abs(u)).To(BeNumerically("<=", g.OutputLimit))
					prev = u
				}
			})

			It("zeroes P and D inside the deadband and decays the integrator", func() {
				c.Enable()
				for i := 0; i < 10; i++ {
					c.Update(lead(0.2), dt)
				}
				before := c.Telemetry().Integral
				Expect(before).To(BeNumerically("~", 0.02, 1e-12))

				c.Update(lead(g.Deadband/2), dt)
				tel := c.Telemetry()
				Expect(tel.InDeadband).To(BeTrue())
				Expect(tel.P).To(BeZero())
				Expect(tel.D).To(BeZero())
				Expect(tel.Integral).To(BeNumerically("~", before*g.IntegratorDecay, 1e-12))

				c.Update(lead(-g.Deadband/2), dt)
				Expect(c.Telemetry().Integral).To(BeNumerically("~", before*g.IntegratorDecay*g.IntegratorDecay, 1e-12))
			})

			It("holds the last good output on bad input", func() {
				c.Enable()
				var u float64
				for i := 0; i < 20; i++ {
					u = c.Update(lead(0.4), dt)
				}
				integral := c.Telemetry().Integral

				bad := lead(0.4)
				bad.ThetaFollower = math.NaN()
				Expect(c.Update(bad, dt)).To(Equal(u))
				Expect(c.Update(lead(0.4), 0)).To(Equal(u))
				Expect(c.Update(lead(0.4), -dt)).To(Equal(u))

				bad = lead(0.4)
				bad.OmegaMain = math.Inf(1)
				Expect(c.Update(bad, dt)).To(Equal(u))

				tel := c.Telemetry()
				Expect(tel.Anomalies).To(Equal(4))
				Expect(tel.Integral).To(Equal(integral))
				Expect(tel.Updates).To(Equal(20))
			})

			It("flags saturation instead of failing", func() {
				c.Enable()
				for i := 0; i < 2000; i++ {
					c.Update(lead(1.0), dt)
				}
				tel := c.Telemetry()
				Expect(tel.IntegratorSaturated).To(BeTrue())
				Expect(tel.Integral).To(BeNumerically("~", g.IntegratorLimit, 1e-12))
				Expect(tel.OutputSaturated).To(BeTrue())
				Expect(tel.Saturated()).To(BeTrue())
				Expect(tel.MaxAbsError).To(BeNumerically("~", 1.0, 1e-12))
			})

			It("reports the rate limiter while slewing", func() {
				c.Enable()
				c.Update(lead(0.5), dt)
				Expect(c.Telemetry().RateLimited).To(BeTrue())
			})
		})
	}
})

var _ = Describe("Derivative source", func() {
	It("differentiates the deadbanded error by default", func() {
		g := synchro.DefaultGains()
		c := mustNew(synchro.Baseline, g)
		c.Enable()
		c.Update(lead(0.005), dt)
		c.Update(lead(0.02), dt)
		// rate = (0.02 - 0)/dt
		Expect(c.Telemetry().D).To(BeNumerically("~", g.Kd*g.DerivativeAlpha*0.02/dt, 1e-9))
	})

	It("differentiates the raw measurement when selected", func() {
		g := synchro.DefaultGains()
		g.Derivative = synchro.DerivativeOnMeasurement
		c := mustNew(synchro.Baseline, g)
		c.Enable()
		c.Update(lead(0.005), dt)
		c.Update(lead(0.02), dt)
		// rate = (0.02 - 0.005)/dt
		Expect(c.Telemetry().D).To(BeNumerically("~", g.Kd*g.DerivativeAlpha*0.015/dt, 1e-9))
	})

	It("does not spike when the error crosses the ±π seam", func() {
		c := mustNew(synchro.Baseline, synchro.DefaultGains())
		c.Enable()
		c.Update(lead(math.Pi-0.01), dt)
		c.Update(lead(-math.Pi+0.01), dt)
		// wrapped difference is 0.02 rad, not 2π
		Expect(math.Abs(c.Telemetry().D)).To(BeNumerically("<", 1.0))
	})
})

var _ = Describe("PFD", func() {
	It("adds a filtered frequency term in RPM", func() {
		g := synchro.DefaultGains()
		c := mustNew(synchro.PFD, g)
		c.Enable()

		m := synchro.Measurement{ThetaMain: 2, ThetaFollower: 2, OmegaMain: 252, OmegaFollower: 250}
		c.Update(m, dt)
		expected := g.Kf * g.FrequencyAlpha * 2 * 60 / (2 * math.Pi)
		Expect(c.Telemetry().FrequencyTerm).To(BeNumerically("~", expected, 1e-12))

		var u float64
		for i := 0; i < 200; i++ {
			u = c.Update(m, dt)
		}
		Expect(u).To(BeNumerically(">", 0))
		pfd := c.(*synchro.PFDController)
		Expect(pfd.FrequencyError()).To(BeNumerically("~", 2, 1e-6))
	})

	It("clears the frequency filter on re-enable", func() {
		c := mustNew(synchro.PFD, synchro.DefaultGains()).(*synchro.PFDController)
		c.Enable()
		for i := 0; i < 50; i++ {
			c.Update(synchro.Measurement{OmegaMain: 260, OmegaFollower: 250}, dt)
		}
		c.Disable()
		c.Enable()
		Expect(c.FrequencyError()).To(BeZero())
	})
})

var _ = Describe("Adaptive", func() {
	var (
		g synchro.Gains
		c synchro.Controller
	)

	BeforeEach(func() {
		g = synchro.DefaultGainsFor(synchro.Adaptive)
		c = mustNew(synchro.Adaptive, g)
		c.Enable()
	})

	It("starts from the medium gain set", func() {
		tel := c.Telemetry()
		Expect(tel.Kp).To(Equal(g.Medium.Kp))
		Expect(tel.Ki).To(Equal(g.Medium.Ki))
		Expect(tel.Kd).To(Equal(g.Medium.Kd))
	})

	It("blends toward the large set on large errors", func() {
		c.Update(lead(0.3), dt)
		tel := c.Telemetry()
		Expect(tel.Schedule).To(Equal("large"))
		Expect(tel.Kp).To(BeNumerically("~", g.Medium.Kp+g.TransitionRate*(g.Large.Kp-g.Medium.Kp), 1e-12))

		for i := 0; i < 300; i++ {
			c.Update(lead(0.3), dt)
		}
		Expect(c.Telemetry().Kp).To(BeNumerically("~", g.Large.Kp, 1e-6))
	})

	It("blends toward the small set on small errors", func() {
		for i := 0; i < 300; i++ {
			c.Update(lead(0.015), dt)
		}
		tel := c.Telemetry()
		Expect(tel.Schedule).To(Equal("small"))
		Expect(tel.Kd).To(BeNumerically("~", g.Small.Kd, 1e-6))
	})

	It("tracks a sliding window of |error|", func() {
		for i := 0; i < g.Window; i++ {
			c.Update(lead(0.5), dt)
		}
		for i := 0; i < g.Window; i++ {
			c.Update(lead(0.1), dt)
		}
		Expect(c.Telemetry().WindowMeanAbsError).To(BeNumerically("~", 0.1, 1e-9))
		Expect(c.Telemetry().MeanAbsError).To(BeNumerically("~", 0.3, 1e-9))
	})

	It("resets the schedule on re-enable", func() {
		for i := 0; i < 100; i++ {
			c.Update(lead(0.3), dt)
		}
		c.Disable()
		c.Enable()
		tel := c.Telemetry()
		Expect(tel.Kp).To(Equal(g.Medium.Kp))
		Expect(tel.WindowMeanAbsError).To(BeZero())
	})
})

var _ = Describe("GainsFromParams", func() {
	It("overlays known parameters", func() {
		g, err := synchro.GainsFromParams(synchro.DefaultGains(), map[string]float64{"kp": 2, "kd": 0.25, "window": 50})
		Expect(err).NotTo(HaveOccurred())
		Expect(g.Kp).To(Equal(2.0))
		Expect(g.Kd).To(Equal(0.25))
		Expect(g.Window).To(Equal(50))
		Expect(g.Ki).To(Equal(synchro.DefaultGains().Ki))
	})

	It("rejects unknown parameters", func() {
		_, err := synchro.GainsFromParams(synchro.DefaultGains(), map[string]float64{"kz": 1})
		Expect(err).To(MatchError(dynamo.ErrUnknownParam))
	})

	It("validates the result", func() {
		_, err := synchro.GainsFromParams(synchro.DefaultGains(), map[string]float64{"kp": -1})
		Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
	})

	It("round-trips through Params", func() {
		params := synchro.DefaultGains().Params()
		Expect(params).To(HaveKeyWithValue("kp", 1.0))
		Expect(params).To(HaveKeyWithValue("phase_scale", 30.0))
		Expect(params).To(HaveKeyWithValue("window", 100.0))
		Expect(params).NotTo(HaveKey("large"))

		g, err := synchro.GainsFromParams(synchro.DefaultGains(), params)
		Expect(err).NotTo(HaveOccurred())
		Expect(g).To(Equal(synchro.DefaultGains()))
	})
})
