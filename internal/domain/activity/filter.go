package activity

import (
	"fmt"
	"time"
)

// Unbounded is the DaysAgo value that disables the time bound.
const Unbounded = -1

// FilterParams is the caller-supplied filter. Nil fields are unset.
type FilterParams struct {
	ActivityType *string `json:"activityType,omitempty" jsonschema:"one of api_call, api_event, content_script, dom_access, dom_event, web_request, any (default any)"`
	ExtensionID  *string `json:"extensionId,omitempty" jsonschema:"exact extension id"`
	APICall      *string `json:"apiCall,omitempty" jsonschema:"exact API call name"`
	PageURL      *string `json:"pageUrl,omitempty" jsonschema:"page URL prefix"`
	ArgURL       *string `json:"argUrl,omitempty" jsonschema:"argument URL prefix"`
	DaysAgo      *int    `json:"daysAgo,omitempty" jsonschema:"0 for today, n for the day n days ago; negative for no bound"`
}

// Filter is a conjunctive query over stored actions. Empty strings are
// unset fields.
type Filter struct {
	Type        ActionType
	ExtensionID string
	APICall     string
	PageURL     string
	ArgURL      string
	DaysAgo     int
}

// AnyFilter matches every action.
func AnyFilter() Filter {
	return Filter{Type: TypeAny, DaysAgo: Unbounded}
}

// Filter applies defaults and translates the activity type tag. An unknown
// tag is rejected rather than widened to TypeAny.
func (p FilterParams) Filter() (Filter, error) {
	f := AnyFilter()
	if p.ActivityType != nil {
		t, err := ParseActionType(*p.ActivityType)
		if err != nil {
			return Filter{}, err
		}
		f.Type = t
	}
	f.ExtensionID = deref(p.ExtensionID)
	f.APICall = deref(p.APICall)
	f.PageURL = deref(p.PageURL)
	f.ArgURL = deref(p.ArgURL)
	if p.DaysAgo != nil && *p.DaysAgo >= 0 {
		f.DaysAgo = *p.DaysAgo
	}
	return f, nil
}

// TimeBounds returns the half-open [from, to) window selected by DaysAgo,
// measured in now's location. ok is false when the filter is unbounded.
// Day 0 runs from local midnight on; day n is the whole local day n days
// before today.
func (f Filter) TimeBounds(now time.Time) (from, to time.Time, ok bool) {
	if f.DaysAgo < 0 {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if f.DaysAgo == 0 {
		return midnight, time.Time{}, true
	}
	from = midnight.AddDate(0, 0, -f.DaysAgo)
	to = midnight.AddDate(0, 0, -f.DaysAgo+1)
	return from, to, true
}

func (f Filter) String() string {
	return fmt.Sprintf("type=%s extension=%q api=%q page=%q arg=%q days_ago=%d",
		f.Type, f.ExtensionID, f.APICall, f.PageURL, f.ArgURL, f.DaysAgo)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
