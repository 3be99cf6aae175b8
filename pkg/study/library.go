package study

import (
	"fmt"

	"github.com/synaptica-ai/ehrextract/pkg/events"
	"github.com/synaptica-ai/ehrextract/pkg/matcher"
	"github.com/synaptica-ai/ehrextract/pkg/terminology"
)

// library holds one matcher per code set. APC matchers for COVID need the
// primary/secondary scope and get their own entries.
type library struct {
	matchers map[string]*matcher.Matcher

	covidAPC        *matcher.Matcher
	covidAPCPrimary *matcher.Matcher
	positiveTest    *matcher.Matcher
}

type derivedSet struct {
	name    string
	members []string
}

var derivedSets = []derivedSet{
	{covidPrimaryCare, []string{CovidPrimaryCareCode, CovidPrimaryCarePositive, CovidPrimaryCareSequelae}},
	{demAnySNOMED, []string{DemAlzSNOMED, DemVascSNOMED, DemLBSNOMED, DemOtherSNOMED, DemUnspecSNOMED}},
	{demAnyICD10, []string{DemAlzICD10, DemVascICD10, DemOtherICD10, DemUnspecICD10}},
	{amiAnyICD10, []string{AMIICD10, AMIPriorICD10}},
	{hrtCOCPDrugs, []string{COCPDrugs, HRTDrugs}},
}

func newLibrary(table *terminology.Table) (*library, error) {
	if err := table.Require(RequiredCodeSets...); err != nil {
		return nil, err
	}
	lib := &library{matchers: make(map[string]*matcher.Matcher, len(RequiredCodeSets)+16)}

	add := func(set *terminology.CodeSet, opts ...matcher.Option) error {
		m, err := matcher.New(set, opts...)
		if err != nil {
			return err
		}
		lib.matchers[set.Name()] = m
		return nil
	}
	for _, name := range RequiredCodeSets {
		set, err := table.Get(name)
		if err != nil {
			return nil, err
		}
		if err := add(set); err != nil {
			return nil, err
		}
	}
	for _, d := range derivedSets {
		set, err := table.Union(d.name, d.members...)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", d.name, err)
		}
		if err := add(set); err != nil {
			return nil, err
		}
	}

	smoking, err := table.Get(SmokingClear)
	if err != nil {
		return nil, err
	}
	ever, err := smoking.FilterByCategory(smokingEver, "S", "E")
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", smokingEver, err)
	}
	if err := add(ever); err != nil {
		return nil, err
	}

	literal := map[string][]string{
		covidTarget:    {CovidTargetDisease},
		pfizerProduct:  {PfizerProductName},
		azProduct:      {AZProductName},
		modernaProduct: {ModernaProductName},
		attendedStatus: AttendedStatuses,
	}
	for name, values := range literal {
		set, err := terminology.NewCodeSet(name, values)
		if err != nil {
			return nil, err
		}
		if err := add(set); err != nil {
			return nil, err
		}
	}

	covid, err := table.Get(CovidICD10)
	if err != nil {
		return nil, err
	}
	if lib.covidAPC, err = matcher.New(covid, matcher.WithScope(events.ScopePrimary|events.ScopeSecondary)); err != nil {
		return nil, err
	}
	if lib.covidAPCPrimary, err = matcher.New(covid, matcher.WithScope(events.ScopePrimary)); err != nil {
		return nil, err
	}
	lib.positiveTest = matcher.Unfiltered(matcher.Where(isPositive))
	return lib, nil
}

// get panics on an unknown name: every name is checked in newLibrary.
func (l *library) get(name string) *matcher.Matcher {
	m, ok := l.matchers[name]
	if !ok {
		panic(fmt.Sprintf("study: matcher %q not built", name))
	}
	return m
}
