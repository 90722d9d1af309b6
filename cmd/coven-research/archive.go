// ABOUTME: Commands over the session archive: history, show, and delete
// ABOUTME: Each opens the SQLite archive named in the config for the duration of the command

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-research/internal/store"
)

const timeLayout = "2006-01-02 15:04"

func newHistoryCommand(a *app) *cobra.Command {
	var opts store.ListOptions

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ls"},
		Short:   "List archived research sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openArchive()
			if err != nil {
				return err
			}
			defer st.Close()
			return listSessions(cmd.Context(), st, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Only sessions whose title contains this text")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum sessions to list (0 for all)")

	return cmd
}

func listSessions(ctx context.Context, st store.Store, w io.Writer, opts store.ListOptions) error {
	sessions, err := st.ListSessions(ctx, opts)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tEFFORT\tSTATUS\tENTRIES\tTITLE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.CreatedAt.Local().Format(timeLayout),
			s.Effort,
			s.Phase,
			s.EntryCount,
			s.Title)
	}
	return tw.Flush()
}

func newShowCommand(a *app) *cobra.Command {
	var reportOnly bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print an archived session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openArchive()
			if err != nil {
				return err
			}
			defer st.Close()
			return showSession(cmd.Context(), st, cmd.OutOrStdout(), args[0], reportOnly)
		},
	}

	cmd.Flags().BoolVarP(&reportOnly, "report", "r", false, "Print only the final report")

	return cmd
}

func showSession(ctx context.Context, st store.Store, w io.Writer, id string, reportOnly bool) error {
	sess, err := st.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no session with id %s", id)
	}
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if reportOnly {
		fmt.Fprintln(w, sess.FinalReport())
		return nil
	}

	color.New(color.Bold).Fprintln(w, sess.Title)
	systemColor.Fprintf(w, "%s  %s  %s  %s\n\n",
		sess.ID,
		sess.CreatedAt.Local().Format(timeLayout),
		sess.Effort,
		sess.Phase)

	p := &printer{w: w, echoUser: true}
	p.archived(sess.Entries)
	return nil
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an archived session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openArchive()
			if err != nil {
				return err
			}
			defer st.Close()
			return deleteSession(cmd.Context(), st, cmd.OutOrStdout(), args[0])
		},
	}
}

func deleteSession(ctx context.Context, st store.Store, w io.Writer, id string) error {
	err := st.DeleteSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no session with id %s", id)
	}
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	fmt.Fprintf(w, "Deleted session %s\n", id)
	return nil
}
