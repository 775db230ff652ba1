package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"postline/internal/app"
	"postline/internal/domain"
	"postline/internal/engine"
)

func postsCmd() *cobra.Command {
	posts := &cobra.Command{Use: "posts", Short: "Read and write posts"}
	posts.AddCommand(postsListCmd())
	posts.AddCommand(postsGetCmd())
	posts.AddCommand(postsUpsertCmd())
	posts.AddCommand(postsMineCmd())
	posts.AddCommand(postsMediaCmd())
	return posts
}

func postsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Engine.ListPosts(ctx, callerFromFlags())
				if err != nil {
					return err
				}
				return printPostList(list)
			})
		},
	}
	return cmd
}

func postsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <page-id>",
		Short: "Show a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				post, err := a.Engine.GetPost(ctx, callerFromFlags(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(post)
			})
		},
	}
	return cmd
}

func postsUpsertCmd() *cobra.Command {
	var (
		in                                    domain.UpsertInput
		canvaURL, status, imagePath, category string
		clearFields                           []string
	)
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create a post, or update it when --id is given",
		Long: `Only flags that are passed are written; other optional properties keep their value.
Use --clear with canva-url, category, status or image-path to empty a property.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("canva-url") {
				in.CanvaURL = domain.Some(canvaURL)
			}
			if flags.Changed("category") {
				in.Categories = domain.Some([]string{category})
			}
			if flags.Changed("status") {
				in.Status = domain.Some(status)
			}
			if flags.Changed("image-path") {
				in.ImagePath = domain.Some(imagePath)
			}
			for _, field := range clearFields {
				switch field {
				case "canva-url":
					in.CanvaURL = domain.Some("")
				case "category":
					in.Categories = domain.Some([]string{})
				case "status":
					in.Status = domain.Some("")
				case "image-path":
					in.ImagePath = domain.Some("")
				default:
					return fmt.Errorf("--clear: unknown field %q", field)
				}
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.UpsertPost(ctx, callerFromFlags(), in)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("%s %s\n", res.Message, res.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "page id to update")
	cmd.Flags().StringVar(&in.Title, "title", "", "post title")
	cmd.Flags().BoolVar(&in.FirstCheck, "first-check", false, "first check done")
	cmd.Flags().BoolVar(&in.SecondCheck, "second-check", false, "second check done")
	cmd.Flags().StringVar(&canvaURL, "canva-url", "", "Canva design URL")
	cmd.Flags().StringVar(&category, "category", "", "category")
	cmd.Flags().StringVar(&status, "status", "", "status name")
	cmd.Flags().StringVar(&imagePath, "image-path", "", "image path")
	cmd.Flags().StringSliceVar(&clearFields, "clear", nil, "properties to empty")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func postsMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List completed posts authored by --email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				list, err := a.Engine.ListMyPosts(ctx, callerFromFlags())
				if err != nil {
					return err
				}
				return printPostList(list)
			})
		},
	}
	return cmd
}

func postsMediaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media <page-id>",
		Short: "Print the first file URL of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.GetMediaURL(ctx, callerFromFlags(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"url": u})
				}
				fmt.Println(u)
				return nil
			})
		},
	}
	return cmd
}

func printPostList(list engine.PostList) error {
	if viper.GetBool("json") {
		return printJSON(list)
	}
	if list.Reason != "" {
		fmt.Fprintln(os.Stderr, "note:", list.Reason)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Category", "Authors", "Created"})
	for _, p := range list.Posts {
		created := ""
		if p.CreatedTime != nil {
			created = p.CreatedTime.Local().Format(time.DateTime)
		}
		tw.AppendRow(table.Row{p.ID, p.Title, deref(p.Status), strings.Join(p.Categories, ","), strings.Join(p.Authors, ","), created})
	}
	tw.Render()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
