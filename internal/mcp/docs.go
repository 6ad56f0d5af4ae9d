package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `activitylog records what browser extensions do and lets privileged callers inspect or erase that record.

Core concepts:
- Profile: an isolated browsing context. Your API key binds you to one profile and one extension id.
- Action: one observed extension behavior (an API call, a DOM access, a web request...). Stored actions are only ever deleted, never edited.
- Whitelist: only extensions listed for the activityLogPrivate feature may query or delete.

Tools:
- get_extension_activities: filtered query, newest first, capped at the server's result limit.
- delete_activities / delete_urls / delete_database: erase by id, by exact URL, or everything.
- record_action: producers append actions; not whitelist-gated.

Docs:
- activitylog://docs/taxonomy
- activitylog://docs/filters
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "activitylog://docs/taxonomy",
		Name:        "docs_taxonomy",
		Title:       "Activity taxonomy",
		Description: "The kinds of extension activity that are recorded.",
		Content: `# Activity taxonomy

| activityType | Meaning |
|---|---|
| api_call | the extension called an extension API |
| api_event | an extension API event fired into the extension |
| content_script | a content script was injected into a page |
| dom_access | a content script read or wrote a DOM property |
| dom_event | a content script dispatched or handled a DOM event |
| web_request | the extension modified a network request |

Filters also accept ` + "`any`" + `, which matches every type.

Each activity carries: activityId, extensionId, activityType, time (ms since epoch), and optionally apiCall, args, pageUrl, pageTitle, argUrl, other.
`,
	},
	{
		URI:         "activitylog://docs/filters",
		Name:        "docs_filters",
		Title:       "Query filters",
		Description: "How get_extension_activities filters combine.",
		Content: `# Query filters

All fields are optional and combine with AND.

- activityType: one taxonomy tag or ` + "`any`" + ` (default). Unknown tags are rejected.
- extensionId: exact match.
- apiCall: exact match.
- pageUrl / argUrl: prefix match.
- daysAgo: 0 selects today since local midnight; n selects the whole local day n days ago; omit or pass a negative value for no time bound.

Results are ordered newest first.

Deleting by URL matches the page or argument URL exactly after normalization. Strings that are not absolute URLs match nothing.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
