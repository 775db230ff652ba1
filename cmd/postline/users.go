package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"postline/internal/app"
	"postline/internal/domain"
)

func usersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage identity links"}
	users.AddCommand(usersSyncCmd())
	users.AddCommand(usersLinksCmd())
	users.AddCommand(usersLinkCmd())
	users.AddCommand(usersUnlinkCmd())
	users.AddCommand(usersPostsCmd())
	return users
}

func usersSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Link --user-id to the Notion user with --email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.SyncUser(ctx, callerFromFlags())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	return cmd
}

func usersLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List stored identity links",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				links, err := a.Links.ListLinks(ctx)
				if err != nil {
					return err
				}
				return printLinks(links...)
			})
		},
	}
	return cmd
}

func usersLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link <local-user-id>",
		Short: "Show the stored link of a local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				link, err := a.Links.GetLink(ctx, args[0])
				if err != nil {
					return fmt.Errorf("link %s: %w", args[0], err)
				}
				return printLinks(link)
			})
		},
	}
	return cmd
}

func usersUnlinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlink <local-user-id>",
		Short: "Delete the stored link of a local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Links.DeleteLink(ctx, args[0]); err != nil {
					return fmt.Errorf("unlink %s: %w", args[0], err)
				}
				fmt.Println("unlinked", args[0])
				return nil
			})
		},
	}
	return cmd
}

func usersPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts <local-user-id>",
		Short: "List completed posts of a linked local user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Engine.ListPostsByLocalUser(ctx, callerFromFlags(), args[0])
				if err != nil {
					return err
				}
				return printPostList(list)
			})
		},
	}
	return cmd
}

func printLinks(links ...domain.IdentityLink) error {
	if viper.GetBool("json") {
		if links == nil {
			links = []domain.IdentityLink{}
		}
		return printJSON(links)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Local user", "Notion user", "Last synced"})
	for _, l := range links {
		tw.AppendRow(table.Row{l.LocalUserID, l.RemoteUserID, l.LastSyncedAt.Local().Format(time.DateTime)})
	}
	tw.Render()
	return nil
}
