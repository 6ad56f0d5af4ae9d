package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/repository"
)

// Tool names.
const (
	ToolGetExtensionActivities = "get_extension_activities"
	ToolDeleteActivities       = "delete_activities"
	ToolDeleteDatabase         = "delete_database"
	ToolDeleteURLs             = "delete_urls"
	ToolRecordAction           = "record_action"
)

func registerTools(server *sdkmcp.Server, h *Handler) {
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolGetExtensionActivities,
		Description: "Query recorded extension activity for the caller's profile, newest first",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetExtensionActivitiesParams) (*sdkmcp.CallToolResult, activity.ActivityResultSet, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, activity.ActivityResultSet{}, err
		}
		set, err := h.GetExtensionActivities(ctx, caller, in)
		return nil, set, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolDeleteActivities,
		Description: "Delete recorded activities by activity id",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeleteActivitiesParams) (*sdkmcp.CallToolResult, StatusResponse, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, StatusResponse{}, err
		}
		resp, err := h.DeleteActivities(ctx, caller, in)
		return nil, resp, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolDeleteDatabase,
		Description: "Delete every recorded activity of the caller's profile",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, _ DeleteDatabaseParams) (*sdkmcp.CallToolResult, StatusResponse, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, StatusResponse{}, err
		}
		resp, err := h.DeleteDatabase(ctx, caller)
		return nil, resp, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolDeleteURLs,
		Description: "Delete activities whose page or argument URL matches one of the given URLs",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeleteURLsParams) (*sdkmcp.CallToolResult, StatusResponse, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, StatusResponse{}, err
		}
		resp, err := h.DeleteURLs(ctx, caller, in)
		return nil, resp, err
	})

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        ToolRecordAction,
		Description: "Record an extension action for the caller's profile",
	}, func(ctx context.Context, _ *sdkmcp.CallToolRequest, in RecordActionParams) (*sdkmcp.CallToolResult, RecordActionResponse, error) {
		caller, err := callerFrom(ctx)
		if err != nil {
			return nil, RecordActionResponse{}, err
		}
		resp, err := h.RecordAction(ctx, caller, in)
		return nil, resp, err
	})
}

func callerFrom(ctx context.Context) (repository.Caller, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok || caller.ProfileID == "" {
		return repository.Caller{}, mapError(ErrUnauthorized)
	}
	return caller, nil
}
