package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/repository"
)

// ActivityService defines activity log operations needed by MCP.
type ActivityService interface {
	IsExtensionWhitelisted(extensionID string) bool
	QueryActivities(ctx context.Context, filter activity.Filter) (activity.ActivityResultSet, error)
	DeleteActivities(ctx context.Context, ids []int64) error
	DeleteDatabase(ctx context.Context) error
	DeleteURLs(ctx context.Context, urls []activity.URL) error
}

// ServiceResolver finds the activity log service of a profile.
type ServiceResolver interface {
	ServiceFor(profileID string) (ActivityService, error)
}

// ActionRecorder appends producer actions to a profile's store.
type ActionRecorder interface {
	RecordAction(ctx context.Context, profileID string, action *activity.Action) error
}

type activityResolver struct {
	r *activity.Resolver
}

// FromActivityResolver adapts an activity.Resolver to a ServiceResolver.
func FromActivityResolver(r *activity.Resolver) ServiceResolver {
	return activityResolver{r: r}
}

func (a activityResolver) ServiceFor(profileID string) (ActivityService, error) {
	svc, err := a.r.ServiceFor(profileID)
	if err != nil || svc == nil {
		return nil, err
	}
	return svc, nil
}

// Handler dispatches activity log commands.
type Handler struct {
	services ServiceResolver
	recorder ActionRecorder
	logger   *slog.Logger
}

// NewHandler creates a new handler. recorder may be nil, which disables
// recordAction.
func NewHandler(services ServiceResolver, recorder ActionRecorder, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{services: services, recorder: recorder, logger: logger}
}

// Handle dispatches a request by method name. Gated methods resolve the
// service and check the whitelist before parameters are decoded.
func (h *Handler) Handle(ctx context.Context, caller repository.Caller, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodGetExtensionActivities, MethodDeleteActivities, MethodDeleteDatabase, MethodDeleteURLs:
	case MethodRecordAction:
		var req RecordActionParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.RecordAction(ctx, caller, req)
	default:
		return nil, mapError(fmt.Errorf("%w: %s", ErrUnknownMethod, method))
	}

	svc, err := h.authorize(caller, method)
	if err != nil {
		return nil, err
	}

	switch method {
	case MethodGetExtensionActivities:
		var req GetExtensionActivitiesParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.getExtensionActivities(ctx, svc, req)
	case MethodDeleteActivities:
		var req DeleteActivitiesParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.deleteActivities(ctx, svc, req)
	case MethodDeleteURLs:
		var req DeleteURLsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return h.deleteURLs(ctx, svc, req)
	case MethodDeleteDatabase:
		return h.deleteDatabase(ctx, svc)
	default:
		return nil, mapError(fmt.Errorf("%w: %s", ErrUnknownMethod, method))
	}
}

// GetExtensionActivities answers a filtered query.
func (h *Handler) GetExtensionActivities(ctx context.Context, caller repository.Caller, req GetExtensionActivitiesParams) (activity.ActivityResultSet, error) {
	svc, err := h.authorize(caller, MethodGetExtensionActivities)
	if err != nil {
		return activity.ActivityResultSet{}, err
	}
	return h.getExtensionActivities(ctx, svc, req)
}

func (h *Handler) getExtensionActivities(ctx context.Context, svc ActivityService, req GetExtensionActivitiesParams) (activity.ActivityResultSet, error) {
	if req.Filter == nil {
		return activity.ActivityResultSet{}, mapError(fmt.Errorf("%w: filter is required", activity.ErrInvalidParams))
	}
	filter, err := req.Filter.Filter()
	if err != nil {
		return activity.ActivityResultSet{}, mapError(err)
	}

	set, err := svc.QueryActivities(ctx, filter)
	if err != nil {
		return activity.ActivityResultSet{}, mapError(err)
	}
	return set, nil
}

// DeleteActivities removes activities by id. Ids that do not parse as
// base-10 integers are skipped.
func (h *Handler) DeleteActivities(ctx context.Context, caller repository.Caller, req DeleteActivitiesParams) (StatusResponse, error) {
	svc, err := h.authorize(caller, MethodDeleteActivities)
	if err != nil {
		return StatusResponse{}, err
	}
	return h.deleteActivities(ctx, svc, req)
}

func (h *Handler) deleteActivities(ctx context.Context, svc ActivityService, req DeleteActivitiesParams) (StatusResponse, error) {
	if req.ActivityIDs == nil {
		return StatusResponse{}, mapError(fmt.Errorf("%w: activityIds is required", activity.ErrInvalidParams))
	}

	ids := make([]int64, 0, len(req.ActivityIDs))
	for _, raw := range req.ActivityIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.logger.Debug("skipping unparseable activity id", "activity_id", raw)
			continue
		}
		ids = append(ids, id)
	}

	if err := svc.DeleteActivities(ctx, ids); err != nil {
		return StatusResponse{}, mapError(err)
	}
	return statusOK, nil
}

// DeleteDatabase purges the caller's profile.
func (h *Handler) DeleteDatabase(ctx context.Context, caller repository.Caller) (StatusResponse, error) {
	svc, err := h.authorize(caller, MethodDeleteDatabase)
	if err != nil {
		return StatusResponse{}, err
	}
	return h.deleteDatabase(ctx, svc)
}

func (h *Handler) deleteDatabase(ctx context.Context, svc ActivityService) (StatusResponse, error) {
	if err := svc.DeleteDatabase(ctx); err != nil {
		return StatusResponse{}, mapError(err)
	}
	return statusOK, nil
}

// DeleteURLs removes activities referencing the given URLs. Strings that are
// not URLs match nothing.
func (h *Handler) DeleteURLs(ctx context.Context, caller repository.Caller, req DeleteURLsParams) (StatusResponse, error) {
	svc, err := h.authorize(caller, MethodDeleteURLs)
	if err != nil {
		return StatusResponse{}, err
	}
	return h.deleteURLs(ctx, svc, req)
}

func (h *Handler) deleteURLs(ctx context.Context, svc ActivityService, req DeleteURLsParams) (StatusResponse, error) {
	if req.URLs == nil {
		return StatusResponse{}, mapError(fmt.Errorf("%w: urls is required", activity.ErrInvalidParams))
	}
	if len(req.URLs) == 0 {
		return statusOK, nil
	}

	urls := make([]activity.URL, 0, len(req.URLs))
	for _, raw := range req.URLs {
		u := activity.ParseURL(raw)
		if !u.IsValid() {
			h.logger.Debug("ignoring invalid url", "url", raw)
		}
		urls = append(urls, u)
	}

	if err := svc.DeleteURLs(ctx, urls); err != nil {
		return StatusResponse{}, mapError(err)
	}
	return statusOK, nil
}

// RecordAction appends an action to the caller's profile.
func (h *Handler) RecordAction(ctx context.Context, caller repository.Caller, req RecordActionParams) (RecordActionResponse, error) {
	if h.recorder == nil {
		return RecordActionResponse{}, mapError(fmt.Errorf("%w: %s", ErrUnknownMethod, MethodRecordAction))
	}
	if caller.ProfileID == "" {
		return RecordActionResponse{}, mapError(ErrUnauthorized)
	}

	actionType, err := activity.ParseActionType(req.ActivityType)
	if err != nil {
		return RecordActionResponse{}, mapError(err)
	}
	action := &activity.Action{
		ExtensionID: req.ExtensionID,
		Type:        actionType,
		APICall:     req.APICall,
		Args:        req.Args,
		PageURL:     req.PageURL,
		PageTitle:   req.PageTitle,
		ArgURL:      req.ArgURL,
		Other:       req.Other,
	}
	if action.ExtensionID == "" {
		action.ExtensionID = caller.ExtensionID
	}
	if req.Time != nil {
		action.Time = time.UnixMilli(int64(*req.Time))
	}
	if err := action.Validate(); err != nil {
		return RecordActionResponse{}, mapError(err)
	}

	if err := h.recorder.RecordAction(ctx, caller.ProfileID, action); err != nil {
		return RecordActionResponse{}, mapError(err)
	}
	return RecordActionResponse{ActivityID: strconv.FormatInt(action.ID, 10)}, nil
}

// authorize resolves the caller's service and checks the whitelist. The
// store is never touched when either step fails.
func (h *Handler) authorize(caller repository.Caller, method string) (ActivityService, error) {
	if caller.ProfileID == "" {
		return nil, mapError(ErrUnauthorized)
	}
	svc, err := h.services.ServiceFor(caller.ProfileID)
	if err != nil {
		h.logger.Error("activity log service lookup failed", "method", method, "profile_id", caller.ProfileID, "error", err)
		return nil, mapError(err)
	}
	if svc == nil {
		h.logger.Error("no activity log service for profile", "method", method, "profile_id", caller.ProfileID)
		return nil, mapError(activity.ErrNoService)
	}
	if !svc.IsExtensionWhitelisted(caller.ExtensionID) {
		h.logger.Warn("rejected non-whitelisted extension", "method", method, "profile_id", caller.ProfileID, "extension_id", caller.ExtensionID)
		return nil, mapError(activity.ErrNotWhitelisted)
	}
	return svc, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return mapError(fmt.Errorf("%w: %v", activity.ErrInvalidParams, err))
	}
	return nil
}
