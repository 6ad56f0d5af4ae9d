package activity

import (
	"fmt"
	"strconv"
	"time"
)

// EventOnExtensionActivity is the event broadcast for every newly stored
// Action.
const EventOnExtensionActivity = "activityLogPrivate.onExtensionActivity"

// ActionType classifies an observed extension behavior.
type ActionType string

const (
	TypeAPICall       ActionType = "api_call"
	TypeAPIEvent      ActionType = "api_event"
	TypeContentScript ActionType = "content_script"
	TypeDOMAccess     ActionType = "dom_access"
	TypeDOMEvent      ActionType = "dom_event"
	TypeWebRequest    ActionType = "web_request"
	// TypeAny matches every type. Filters only.
	TypeAny ActionType = "any"
)

var actionTypes = map[ActionType]struct{}{
	TypeAPICall:       {},
	TypeAPIEvent:      {},
	TypeContentScript: {},
	TypeDOMAccess:     {},
	TypeDOMEvent:      {},
	TypeWebRequest:    {},
	TypeAny:           {},
}

// ParseActionType maps a wire tag onto the taxonomy.
func ParseActionType(tag string) (ActionType, error) {
	t := ActionType(tag)
	if _, ok := actionTypes[t]; !ok {
		return "", fmt.Errorf("%w: unknown activity type %q", ErrInvalidParams, tag)
	}
	return t, nil
}

// Storable reports whether an Action may carry this type.
func (t ActionType) Storable() bool {
	_, ok := actionTypes[t]
	return ok && t != TypeAny
}

// Action is one recorded extension behavior. Stored actions are never
// edited, only deleted.
type Action struct {
	ID          int64      `json:"id"`
	ExtensionID string     `json:"extension_id"`
	Type        ActionType `json:"type"`
	APICall     string     `json:"api_call,omitempty"`
	Args        string     `json:"args,omitempty"`
	PageURL     string     `json:"page_url,omitempty"`
	PageTitle   string     `json:"page_title,omitempty"`
	ArgURL      string     `json:"arg_url,omitempty"`
	Other       string     `json:"other,omitempty"`
	Time        time.Time  `json:"time"`
}

// Validate checks the fields a producer must supply.
func (a *Action) Validate() error {
	if a.ExtensionID == "" {
		return fmt.Errorf("%w: extension id is required", ErrInvalidAction)
	}
	if !a.Type.Storable() {
		return fmt.Errorf("%w: type %q cannot be stored", ErrInvalidAction, a.Type)
	}
	return nil
}

// ExtensionActivity is the externalized form of an Action handed to
// listeners and query callers.
type ExtensionActivity struct {
	ActivityID   string     `json:"activityId,omitempty"`
	ExtensionID  string     `json:"extensionId"`
	ActivityType ActionType `json:"activityType"`
	APICall      string     `json:"apiCall,omitempty"`
	Args         string     `json:"args,omitempty"`
	PageURL      string     `json:"pageUrl,omitempty"`
	PageTitle    string     `json:"pageTitle,omitempty"`
	ArgURL       string     `json:"argUrl,omitempty"`
	Other        string     `json:"other,omitempty"`
	// Time is milliseconds since the Unix epoch.
	Time float64 `json:"time"`
}

// ToExtensionActivity converts a to its externalized form.
func (a Action) ToExtensionActivity() ExtensionActivity {
	out := ExtensionActivity{
		ExtensionID:  a.ExtensionID,
		ActivityType: a.Type,
		APICall:      a.APICall,
		Args:         a.Args,
		PageURL:      a.PageURL,
		PageTitle:    a.PageTitle,
		ArgURL:       a.ArgURL,
		Other:        a.Other,
		Time:         float64(a.Time.UnixMilli()),
	}
	if a.ID > 0 {
		out.ActivityID = strconv.FormatInt(a.ID, 10)
	}
	return out
}

// ActivityResultSet is the answer to a filtered query, in store order.
type ActivityResultSet struct {
	Activities []ExtensionActivity `json:"activities"`
}

// NewResultSet externalizes actions without reordering them.
func NewResultSet(actions []Action) ActivityResultSet {
	out := ActivityResultSet{Activities: make([]ExtensionActivity, 0, len(actions))}
	for _, a := range actions {
		out.Activities = append(out.Activities, a.ToExtensionActivity())
	}
	return out
}
