package mcp

import (
	"github.com/rpggio/activitylog/internal/domain/activity"
)

// Method names exposed over JSON-RPC.
const (
	MethodGetExtensionActivities = "activityLogPrivate.getExtensionActivities"
	MethodDeleteActivities       = "activityLogPrivate.deleteActivities"
	MethodDeleteDatabase         = "activityLogPrivate.deleteDatabase"
	MethodDeleteURLs             = "activityLogPrivate.deleteUrls"
	MethodRecordAction           = "activityLog.recordAction"
)

type GetExtensionActivitiesParams struct {
	Filter *activity.FilterParams `json:"filter" jsonschema:"query filter; every field is optional"`
}

type DeleteActivitiesParams struct {
	ActivityIDs []string `json:"activityIds" jsonschema:"decimal activity ids; unparseable ids are skipped"`
}

type DeleteDatabaseParams struct{}

type DeleteURLsParams struct {
	URLs []string `json:"urls" jsonschema:"absolute URLs; actions whose page or argument URL equals one are removed"`
}

type RecordActionParams struct {
	ExtensionID  string   `json:"extensionId,omitempty" jsonschema:"acting extension; defaults to the caller's extension"`
	ActivityType string   `json:"activityType" jsonschema:"one of api_call, api_event, content_script, dom_access, dom_event, web_request"`
	APICall      string   `json:"apiCall,omitempty"`
	Args         string   `json:"args,omitempty"`
	PageURL      string   `json:"pageUrl,omitempty"`
	PageTitle    string   `json:"pageTitle,omitempty"`
	ArgURL       string   `json:"argUrl,omitempty"`
	Other        string   `json:"other,omitempty"`
	Time         *float64 `json:"time,omitempty" jsonschema:"milliseconds since the Unix epoch; defaults to now"`
}

// StatusResponse acknowledges a request that has no other result.
type StatusResponse struct {
	Status string `json:"status"`
}

type RecordActionResponse struct {
	ActivityID string `json:"activityId"`
}

var statusOK = StatusResponse{Status: "ok"}
