package records

import (
	"context"
	"fmt"
	"math/big"
	"strings"
)

// CourseRecord is one student's result in one offered course.
type CourseRecord struct {
	RegNo        string
	YearFlag     int
	Code         string
	Title        string
	Credits      *big.Rat
	Grade        string
	Marks        string
	SemesterID   string
	AcademicYear string
	Month        int
}

// StudentIdentity carries the fields printed on a document and the composite
// key used by the external store.
type StudentIdentity struct {
	RegNo            string
	Name             string
	Program          string
	AdmissionYear    int
	YearOfCompletion string
	YearFlag         int
	Consolidated     bool
	PhotoRef         string
}

// Key returns the composite unique key of the identity.
func (s StudentIdentity) Key() Key {
	return Key{RegNo: s.RegNo, YearFlag: s.YearFlag}
}

// Key is the (registration number, year flag) pair identifying an external record.
type Key struct {
	RegNo    string
	YearFlag int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.RegNo, k.YearFlag)
}

// Valid reports whether the key can address a record.
func (k Key) Valid() bool {
	return strings.TrimSpace(k.RegNo) != "" && k.YearFlag >= 0
}

// Request scopes a fetch. YearFlag zero selects the student's whole history;
// a positive year flag selects that year's identity row and every course row
// up to and including that year.
type Request struct {
	RegNo    string
	YearFlag int
}

// Fetcher loads a student's identity and course rows.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (StudentIdentity, []CourseRecord, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req Request) (StudentIdentity, []CourseRecord, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req Request) (StudentIdentity, []CourseRecord, error) {
	return f(ctx, req)
}

// Filter narrows a student listing. Zero values match everything.
type Filter struct {
	YearFlag      int
	AdmissionYear int
	Program       string
	Consolidated  bool
}
