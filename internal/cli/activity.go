package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/rpggio/activitylog/internal/domain/activity"
	"github.com/rpggio/activitylog/internal/events"
	"github.com/rpggio/activitylog/internal/mcp"
	"github.com/spf13/cobra"
)

// AddConnectionFlags registers the persistent flags shared by server commands.
func AddConnectionFlags(root *cobra.Command) {
	root.PersistentFlags().String("server", envOr("ACTIVITYLOG_SERVER", "http://localhost:8080"), "Server base URL")
	root.PersistentFlags().String("token", os.Getenv("ACTIVITYLOG_TOKEN"), "API token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func clientFrom(cmd *cobra.Command) *Client {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return NewClient(server, token)
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded extension activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := activity.FilterParams{}
			for flag, dst := range map[string]**string{
				"type":      &params.ActivityType,
				"extension": &params.ExtensionID,
				"api":       &params.APICall,
				"page-url":  &params.PageURL,
				"arg-url":   &params.ArgURL,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*dst = &v
				}
			}
			if cmd.Flags().Changed("days-ago") {
				v, _ := cmd.Flags().GetInt("days-ago")
				params.DaysAgo = &v
			}

			var set activity.ActivityResultSet
			err := clientFrom(cmd).Call(cmd.Context(), mcp.MethodGetExtensionActivities,
				mcp.GetExtensionActivitiesParams{Filter: &params}, &set)
			if err != nil {
				return fmt.Errorf("failed to list activities: %w", err)
			}

			if len(set.Activities) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No activity found")
				return nil
			}
			printActivities(cmd.OutOrStdout(), set.Activities)
			return nil
		},
	}
	cmd.Flags().StringP("type", "t", "", "Activity type (api_call, api_event, content_script, dom_access, dom_event, web_request, any)")
	cmd.Flags().StringP("extension", "e", "", "Filter by extension id")
	cmd.Flags().String("api", "", "Filter by API call")
	cmd.Flags().String("page-url", "", "Filter by page URL prefix")
	cmd.Flags().String("arg-url", "", "Filter by argument URL prefix")
	cmd.Flags().IntP("days-ago", "d", -1, "Only the day n days ago (0 for today)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [activity-id...]",
		Short: "Delete activities by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := clientFrom(cmd).Call(cmd.Context(), mcp.MethodDeleteActivities,
				mcp.DeleteActivitiesParams{ActivityIDs: args}, nil)
			if err != nil {
				return fmt.Errorf("failed to delete activities: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Requested deletion of %d id%s\n", len(args), plural(len(args), "", "s"))
			return nil
		},
	}
	return cmd
}

func newDeleteURLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-urls [url...]",
		Short: "Delete activities whose page or argument URL matches",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := clientFrom(cmd).Call(cmd.Context(), mcp.MethodDeleteURLs,
				mcp.DeleteURLsParams{URLs: args}, nil)
			if err != nil {
				return fmt.Errorf("failed to delete urls: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Requested deletion of activity for %d url%s\n", len(args), plural(len(args), "", "s"))
			return nil
		},
	}
	return cmd
}

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all activity of the token's profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to purge without --yes")
			}
			if err := clientFrom(cmd).Call(cmd.Context(), mcp.MethodDeleteDatabase, mcp.DeleteDatabaseParams{}, nil); err != nil {
				return fmt.Errorf("failed to purge: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Activity log purged")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting everything")
	return cmd
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record [activity-type]",
		Short: "Record an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := mcp.RecordActionParams{ActivityType: args[0]}
			req.ExtensionID, _ = cmd.Flags().GetString("extension")
			req.APICall, _ = cmd.Flags().GetString("api")
			req.Args, _ = cmd.Flags().GetString("args")
			req.PageURL, _ = cmd.Flags().GetString("page-url")
			req.PageTitle, _ = cmd.Flags().GetString("page-title")
			req.ArgURL, _ = cmd.Flags().GetString("arg-url")
			req.Other, _ = cmd.Flags().GetString("other")

			var resp mcp.RecordActionResponse
			if err := clientFrom(cmd).Call(cmd.Context(), mcp.MethodRecordAction, req, &resp); err != nil {
				return fmt.Errorf("failed to record activity: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Recorded activity %s\n", resp.ActivityID)
			return nil
		},
	}
	cmd.Flags().StringP("extension", "e", "", "Extension id (defaults to the token's)")
	cmd.Flags().String("api", "", "API call or event name")
	cmd.Flags().String("args", "", "JSON-encoded arguments")
	cmd.Flags().String("page-url", "", "Page URL")
	cmd.Flags().String("page-title", "", "Page title")
	cmd.Flags().String("arg-url", "", "URL argument")
	cmd.Flags().String("other", "", "Extra data")
	return cmd
}

func newTailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream new activity as it is recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			return clientFrom(cmd).Subscribe(ctx, func(evt *events.Event) {
				for _, a := range decodeActivities(evt) {
					fmt.Fprintln(out, formatActivity(a))
				}
			})
		},
	}
	return cmd
}

// ActivityCmds returns the commands that talk to a running server.
func ActivityCmds() []*cobra.Command {
	return []*cobra.Command{newListCmd(), newDeleteCmd(), newDeleteURLsCmd(), newPurgeCmd(), newRecordCmd(), newTailCmd()}
}

func printActivities(out io.Writer, activities []activity.ExtensionActivity) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTYPE\tEXTENSION\tAPI\tURL")
	fmt.Fprintln(w, "--\t----\t----\t---------\t---\t---")
	for _, a := range activities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ActivityID, formatTime(a.Time), typeLabel(a.ActivityType), a.ExtensionID, dash(a.APICall), dash(firstNonEmpty(a.PageURL, a.ArgURL)))
	}
	w.Flush()
}

func formatActivity(a activity.ExtensionActivity) string {
	return fmt.Sprintf("%s %s %s %s %s",
		formatTime(a.Time), typeLabel(a.ActivityType), a.ExtensionID, dash(a.APICall), dash(firstNonEmpty(a.PageURL, a.ArgURL)))
}

func decodeActivities(evt *events.Event) []activity.ExtensionActivity {
	var out []activity.ExtensionActivity
	for _, arg := range evt.Args {
		raw, err := json.Marshal(arg)
		if err != nil {
			continue
		}
		var a activity.ExtensionActivity
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

func typeLabel(t activity.ActionType) string {
	label := strings.ToUpper(string(t))
	switch t {
	case activity.TypeAPICall, activity.TypeAPIEvent:
		return color.New(color.FgHiBlue).Sprint(label)
	case activity.TypeContentScript:
		return color.New(color.FgYellow).Sprint(label)
	case activity.TypeDOMAccess, activity.TypeDOMEvent:
		return color.New(color.FgHiMagenta).Sprint(label)
	case activity.TypeWebRequest:
		return color.New(color.FgCyan).Sprint(label)
	default:
		return label
	}
}

func formatTime(ms float64) string {
	return time.UnixMilli(int64(ms)).Format("2006-01-02 15:04:05")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
