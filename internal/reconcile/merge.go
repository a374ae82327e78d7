package reconcile

import (
	"sort"
	"strconv"

	"registrar/internal/metrics"
	"registrar/internal/records"
)

// ConflictWarning reports an identity field that disagreed across the year
// records of one student. Kept is the value written; Discarded lost.
type ConflictWarning struct {
	RegNo             string
	Field             string
	Kept              string
	Discarded         string
	KeptYearFlag      int
	DiscardedYearFlag int
}

type identityField struct {
	name string
	get  func(records.StudentIdentity) string
}

// conflictFields are compared across year records. Year of completion is
// per-year by nature and photo references may legitimately move, so both are
// taken from the most recent record without a warning.
var conflictFields = []identityField{
	{"name", func(s records.StudentIdentity) string { return s.Name }},
	{"program", func(s records.StudentIdentity) string { return s.Program }},
	{"admission_year", func(s records.StudentIdentity) string {
		if s.AdmissionYear == 0 {
			return ""
		}
		return strconv.Itoa(s.AdmissionYear)
	}},
}

// group collects summaries by registration number in first-seen order.
func group(summaries []Summary) [][]Summary {
	index := make(map[string]int)
	var groups [][]Summary
	for _, s := range summaries {
		i, ok := index[s.Identity.RegNo]
		if !ok {
			i = len(groups)
			index[s.Identity.RegNo] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}

// merge folds one student's year summaries into a consolidated summary.
// Members are ordered by (admission year, year flag); the last is the most
// recent and wins every disagreement.
func merge(members []Summary) (Summary, []ConflictWarning) {
	ordered := append([]Summary(nil), members...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Identity, ordered[j].Identity
		if a.AdmissionYear != b.AdmissionYear {
			return a.AdmissionYear < b.AdmissionYear
		}
		return a.YearFlag < b.YearFlag
	})
	latest := ordered[len(ordered)-1]

	identity := latest.Identity
	var warnings []ConflictWarning
	for _, field := range conflictFields {
		kept, keptFlag := "", 0
		for i := len(ordered) - 1; i >= 0; i-- {
			if v := field.get(ordered[i].Identity); v != "" {
				kept, keptFlag = v, ordered[i].Identity.YearFlag
				break
			}
		}
		reported := map[string]bool{}
		for i := len(ordered) - 1; i >= 0; i-- {
			v := field.get(ordered[i].Identity)
			if v == "" || v == kept || reported[v] {
				continue
			}
			reported[v] = true
			warnings = append(warnings, ConflictWarning{
				RegNo:             identity.RegNo,
				Field:             field.name,
				Kept:              kept,
				Discarded:         v,
				KeptYearFlag:      keptFlag,
				DiscardedYearFlag: ordered[i].Identity.YearFlag,
			})
		}
		applyField(&identity, field.name, kept)
	}
	if identity.PhotoRef == "" {
		for i := len(ordered) - 1; i >= 0; i-- {
			if ref := ordered[i].Identity.PhotoRef; ref != "" {
				identity.PhotoRef = ref
				break
			}
		}
	}
	identity.YearFlag = 0
	identity.Consolidated = true

	return Summary{Identity: identity, Transcript: unionSemesters(ordered)}, warnings
}

func applyField(identity *records.StudentIdentity, field, value string) {
	switch field {
	case "name":
		identity.Name = value
	case "program":
		identity.Program = value
	case "admission_year":
		if year, err := strconv.Atoi(value); err == nil {
			identity.AdmissionYear = year
		}
	}
}

// unionSemesters keeps each semester id once, in first-seen position, with
// the content of the most recent member that reported it.
func unionSemesters(ordered []Summary) metrics.TranscriptSummary {
	index := make(map[string]int)
	var semesters []metrics.SemesterSummary
	precision := 0
	for _, member := range ordered {
		precision = member.Transcript.Precision
		for _, sem := range member.Transcript.Semesters {
			if i, ok := index[sem.SemesterID]; ok {
				semesters[i] = sem
				continue
			}
			index[sem.SemesterID] = len(semesters)
			semesters = append(semesters, sem)
		}
	}
	return metrics.Aggregate(semesters, precision)
}
