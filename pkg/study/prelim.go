package study

import (
	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/matcher"
	"github.com/synaptica-ai/ehrextract/pkg/temporal"
)

const vaxDoses = 3

// vaxChain is the dose sequence for one vaccine selector. Dose 1 is the
// first on or after vax1_earliest; each later dose is the first strictly
// after the previous one.
type vaxChain struct {
	label string
	src   func(p *patient) events.Source
	m     *matcher.Matcher
}

type prelim struct {
	death  temporal.Date
	doses  map[string][vaxDoses]temporal.Date
	counts map[string]int
}

func (e *Engine) vaxChains() []vaxChain {
	targets := func(p *patient) events.Source { return p.vaxTargets }
	products := func(p *patient) events.Source { return p.vaxProducts }
	return []vaxChain{
		{label: "covid", src: targets, m: e.lib.get(covidTarget)},
		{label: "Pfizer", src: products, m: e.lib.get(pfizerProduct)},
		{label: "AstraZeneca", src: products, m: e.lib.get(azProduct)},
		{label: "Moderna", src: products, m: e.lib.get(modernaProduct)},
	}
}

func (e *Engine) prelim(p *patient) prelim {
	start := e.refs.Date(PandemicStart)
	primaryCare := temporal.Case(p.rec.Patient.DateOfDeath.OnOrAfter(start), p.rec.Patient.DateOfDeath)
	ons := temporal.Case(p.onsDeathDate().OnOrAfter(start), p.onsDeathDate())

	out := prelim{
		death:  temporal.MinimumOf(primaryCare, ons),
		doses:  make(map[string][vaxDoses]temporal.Date, len(e.chains)),
		counts: make(map[string]int, len(e.chains)),
	}
	for _, chain := range e.chains {
		src := chain.src(p)
		var doses [vaxDoses]temporal.Date
		window := temporal.OnOrAfter(e.refs.Date(Vax1Earliest))
		for i := range doses {
			doses[i] = chain.m.First(src, window).Date
			window = temporal.After(doses[i])
		}
		out.doses[chain.label] = doses
		out.counts[chain.label] = chain.m.Count(src, temporal.Always())
	}
	return out
}

func (pr prelim) dose(label string, n int) temporal.Date {
	return pr.doses[label][n-1]
}
