package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Progenics2025/LIMS-sub003/internal/recycle"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var entityType string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recycle bin entries, newest deletion first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			view := recycle.NewConsumer(c.engine, c.bus)
			view.Mount(cmd.Context())
			defer view.Unmount()

			entries := view.Entries()
			if entityType != "" {
				filtered := entries[:0]
				for _, entry := range entries {
					if entry.EntityType == entityType {
						filtered = append(filtered, entry)
					}
				}
				entries = filtered
			}

			out := cmd.OutOrStdout()
			renderEntries(out, entries)
			renderOutcome(out, view.Outcome())
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "only show entries of this entity type")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		payload recycle.Payload
		data    string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a soft-deleted entity in the recycle bin",
		Example: `  recyclectl add --type leads --id L-1 --name "Acme Labs" --data '{"id":"L-1","organization":"Acme Labs"}'
  recyclectl add --type samples --id S-100 --offline`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(data) != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data must be a JSON document")
				}
				payload.Data = json.RawMessage(data)
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			entry, outcome, err := c.engine.Add(cmd.Context(), payload)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", text.FgGreen.Sprint("Added:"), entry.UID)
			renderOutcome(out, outcome)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&payload.EntityType, "type", "", "entity type, e.g. leads or samples (required)")
	flags.StringVar(&payload.EntityID, "id", "", "id of the deleted entity (required)")
	flags.StringVar(&payload.Name, "name", "", "display name; derived from --data when empty")
	flags.StringVar(&payload.OriginalPath, "path", "", "path the entity was deleted from")
	flags.StringVar(&payload.CreatedBy, "by", "", "user who deleted the entity")
	flags.StringVar(&data, "data", "", "snapshot of the deleted record as JSON")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove UID [UID...]",
		Aliases: []string{"rm"},
		Short:   "Remove entries from the recycle bin",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, uid := range args {
				outcome := c.engine.Remove(cmd.Context(), uid)
				fmt.Fprintf(out, "%s %s\n", text.FgGreen.Sprint("Removed:"), uid)
				renderOutcome(out, outcome)
			}
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the recycle bin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear the recycle bin without --yes")
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			outcome := c.engine.Clear(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, text.FgGreen.Sprint("Recycle bin cleared"))
			renderOutcome(out, outcome)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing every entry")
	return cmd
}

func newPendingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List offline changes the API has not seen yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			renderEntries(out, c.engine.Provisional())
			if removals := c.local.PendingRemovals(); len(removals) > 0 {
				fmt.Fprintf(out, "%s %s\n", text.FgYellow.Sprint("Pending removals:"), strings.Join(removals, ", "))
			}
			return nil
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push offline additions and removals to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.offline {
				return fmt.Errorf("sync needs the API; drop --offline")
			}

			c, err := opts.client(cmd)
			if err != nil {
				return err
			}

			pending := len(c.engine.Provisional()) + len(c.local.PendingRemovals())
			outcome := c.engine.Sync(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %d of %d pending changes\n",
				text.FgGreen.Sprint("Synced:"), pending-outcome.Failed, pending)
			renderOutcome(out, outcome)
			return nil
		},
	}
}
