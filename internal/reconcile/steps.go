package reconcile

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// ratioPlaces is the number of decimal places kept in the ratio
const ratioPlaces = 2

// zeroCountMarker is how SIDRA writes a numeric zero
const zeroCountMarker = "-"

// EconomicPoint is one economic row after projection and type normalization
type EconomicPoint struct {
	Local               string
	Year                domain.Year
	ActiveBusinessCount int64
}

// JoinedRow is one (local, year) pair present in both sources
type JoinedRow struct {
	Local               string
	Year                domain.Year
	Population          float64
	ActiveBusinessCount int64
}

// FilterPopulation keeps the rows inside the age band, in the allow-list and
// carrying the both-sexes marker. Locals are returned in normalized form.
func FilterPopulation(records []domain.RawPopulationRecord, opts Options) []domain.RawPopulationRecord {
	allowed := opts.allowedSet()
	marker := textnorm.Key(opts.BothSexesMarker)

	out := make([]domain.RawPopulationRecord, 0, len(records))
	for _, r := range records {
		if r.Age < opts.AgeMin || r.Age > opts.AgeMax {
			continue
		}
		local := textnorm.Key(r.Local)
		if _, ok := allowed[local]; !ok {
			continue
		}
		if textnorm.Key(r.Sex) != marker {
			continue
		}
		r.Local = local
		out = append(out, r)
	}
	return out
}

// AggregatePopulation sums the filtered rows per local for every year column
// inside [YearStart, YearEnd] and returns the long form sorted by local then
// year. A missing cell contributes zero but its year is still emitted.
func AggregatePopulation(filtered []domain.RawPopulationRecord, yearColumns []int, opts Options) []domain.PopulationPoint {
	years := make([]int, 0, len(yearColumns))
	seen := make(map[int]struct{}, len(yearColumns))
	for _, y := range yearColumns {
		if y < opts.YearStart || y > opts.YearEnd {
			continue
		}
		if _, dup := seen[y]; dup {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Ints(years)

	sums := make(map[string]map[int]float64)
	for _, r := range filtered {
		acc, ok := sums[r.Local]
		if !ok {
			acc = make(map[int]float64, len(years))
			sums[r.Local] = acc
		}
		for _, y := range years {
			acc[y] += r.Values[y]
		}
	}

	locals := make([]string, 0, len(sums))
	for local := range sums {
		locals = append(locals, local)
	}
	sort.Strings(locals)

	points := make([]domain.PopulationPoint, 0, len(locals)*len(years))
	for _, local := range locals {
		for _, y := range years {
			points = append(points, domain.PopulationPoint{
				Local:      local,
				Year:       domain.Year(y),
				Population: sums[local][y],
			})
		}
	}
	return points
}

// CompareKeys returns the symmetric difference between the locals of the raw
// economic source and those of the aggregated population
func CompareKeys(econ domain.EconomicTable, pop []domain.PopulationPoint) domain.KeyMismatch {
	econKeys := make(map[string]struct{}, len(econ))
	for _, r := range econ {
		econKeys[textnorm.Key(r.FederativeUnit)] = struct{}{}
	}
	popKeys := make(map[string]struct{}, len(pop))
	for _, p := range pop {
		popKeys[p.Local] = struct{}{}
	}

	mismatch := domain.KeyMismatch{
		OnlyInEconomic:   difference(econKeys, popKeys),
		OnlyInPopulation: difference(popKeys, econKeys),
	}
	return mismatch
}

func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ProjectEconomic renames the economic columns to the panel's fields and
// coerces year and business count. The first malformed value fails the whole
// projection with a TYPE_COERCION error.
func ProjectEconomic(econ domain.EconomicTable) ([]EconomicPoint, error) {
	points := make([]EconomicPoint, 0, len(econ))
	for i, r := range econ {
		local := textnorm.Key(r.FederativeUnit)

		year, err := domain.ParseYear(r.Year)
		if err != nil {
			return nil, apperrors.NewTypeCoercionError("year", r.Year, err).
				WithContext("row", i).
				WithContext("local", local)
		}

		count, err := ParseBusinessCount(r.ActiveBusinessCount)
		if err != nil {
			return nil, apperrors.NewTypeCoercionError("active_business_count", r.ActiveBusinessCount, err).
				WithContext("row", i).
				WithContext("local", local).
				WithContext("year", year.Int())
		}

		points = append(points, EconomicPoint{Local: local, Year: year, ActiveBusinessCount: count})
	}
	return points, nil
}

// ParseBusinessCount coerces a SIDRA value cell to an integer. "-" is SIDRA's
// numeric zero; an integral float such as "120.0" is accepted. Suppression
// markers ("X", "..", "...") and fractional values are rejected.
func ParseBusinessCount(s string) (int64, error) {
	v := strings.TrimSpace(s)
	if v == zeroCountMarker {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, strconv.ErrSyntax
	}
	return int64(f), nil
}

// Join pairs economic points with population points on (local, year). Every
// economic point with a partner yields one row, in economic order; unmatched
// rows on either side are only counted.
func Join(econ []EconomicPoint, pop []domain.PopulationPoint) (joined []JoinedRow, droppedEcon, droppedPop int) {
	type key struct {
		local string
		year  domain.Year
	}

	popIndex := make(map[key]float64, len(pop))
	for _, p := range pop {
		popIndex[key{p.Local, p.Year}] = p.Population
	}

	matched := make(map[key]struct{}, len(pop))
	joined = make([]JoinedRow, 0, len(econ))
	for _, e := range econ {
		k := key{e.Local, e.Year}
		population, ok := popIndex[k]
		if !ok {
			droppedEcon++
			continue
		}
		matched[k] = struct{}{}
		joined = append(joined, JoinedRow{
			Local:               e.Local,
			Year:                e.Year,
			Population:          population,
			ActiveBusinessCount: e.ActiveBusinessCount,
		})
	}

	for _, p := range pop {
		if _, ok := matched[key{p.Local, p.Year}]; !ok {
			droppedPop++
		}
	}
	return joined, droppedEcon, droppedPop
}

// DeriveRatios computes the rounded ratio per joined row and keeps only
// {local, year, ratio}. Zero business counts produce a sentinel ratio and a
// DivisionSentinel entry instead of an error.
func DeriveRatios(joined []JoinedRow) ([]domain.PanelRow, []domain.DivisionSentinel) {
	rows := make([]domain.PanelRow, 0, len(joined))
	sentinels := []domain.DivisionSentinel{}

	for _, j := range joined {
		if j.ActiveBusinessCount == 0 {
			sentinels = append(sentinels, domain.DivisionSentinel{
				Local:      j.Local,
				Year:       j.Year,
				Population: j.Population,
			})
			rows = append(rows, domain.PanelRow{Local: j.Local, Year: j.Year, Ratio: zeroDivision(j.Population)})
			continue
		}
		rows = append(rows, domain.PanelRow{
			Local: j.Local,
			Year:  j.Year,
			Ratio: RoundRatio(j.Population, j.ActiveBusinessCount),
		})
	}
	return rows, sentinels
}

// RoundRatio returns population/count rounded to two decimal places, half
// away from zero, computed in decimal so 1005/1000 rounds to 1.01
func RoundRatio(population float64, count int64) float64 {
	ratio := decimal.NewFromFloat(population).
		Div(decimal.NewFromInt(count)).
		Round(ratioPlaces)
	f, _ := ratio.Float64()
	return f
}

func zeroDivision(population float64) float64 {
	switch {
	case population > 0:
		return math.Inf(1)
	case population < 0:
		return math.Inf(-1)
	default:
		return math.NaN()
	}
}
