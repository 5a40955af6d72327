package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/blakeyoder/alfred/internal/calls"
	"github.com/blakeyoder/alfred/internal/callstore"
	"github.com/blakeyoder/alfred/internal/config"
	"github.com/blakeyoder/alfred/internal/db"
	"github.com/blakeyoder/alfred/internal/provider"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place and inspect outbound calls",
	}

	cmd.AddCommand(newCallPlaceCmd())
	cmd.AddCommand(newCallListCmd())
	return cmd
}

func newCallPlaceCmd() *cobra.Command {
	var configPath string
	var params calls.PlaceParams

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place an outbound call",
		Long:  "Validates the destination number, creates a call record, and asks the provider to dial.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallPlace(cmd, configPath, params)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alfred.yaml", "path to Alfred config file")
	cmd.Flags().StringVar(&params.ToNumber, "to", "", "destination number in E.164 (e.g. +15551234567)")
	cmd.Flags().StringVar(&params.ToName, "name", "", "who is being called")
	cmd.Flags().StringVar(&params.Purpose, "purpose", "", "what the call is for")
	cmd.Flags().StringVar(&params.Instructions, "instructions", "", "free-text instructions for the agent")
	cmd.Flags().StringVar(&params.GroupID, "group", "", "owning group for notifications")
	cmd.Flags().StringVar(&params.RequestedBy, "requested-by", "", "who asked for the call")
	cmd.MarkFlagRequired("to")
	return cmd
}

func runCallPlace(cmd *cobra.Command, configPath string, params calls.PlaceParams) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	store := callstore.New(gormDB)
	client := provider.NewHTTPClient(cfg.Provider)
	initiator := calls.NewInitiator(store, client, cfg.Provider)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Provider.RequestTimeout())
	defer cancel()

	rec, err := initiator.Place(ctx, params)
	if err != nil {
		if rec != nil {
			fmt.Fprintf(out, "Call %s failed: %v\n", rec.ID, err)
			return nil
		}
		return err
	}

	fmt.Fprintf(out, "Call %s placed (state %s", rec.ID, rec.State)
	if rec.ConversationID != nil {
		fmt.Fprintf(out, ", conversation %s", *rec.ConversationID)
	}
	fmt.Fprintf(out, ")\n")
	return nil
}

func newCallListCmd() *cobra.Command {
	var configPath string
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallList(cmd, configPath, state, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alfred.yaml", "path to Alfred config file")
	cmd.Flags().StringVar(&state, "state", "", "filter by state (pending, initiated, in_progress, processing, done, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "max records to show")
	return cmd
}

func runCallList(cmd *cobra.Command, configPath, state string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	store := callstore.New(gormDB)

	recs, err := store.ListRecent(state, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTO\tOUTCOME\tCREATED")
	for _, rec := range recs {
		outcome := "-"
		if rec.Outcome != nil {
			outcome = *rec.Outcome
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.State, rec.ToNumber, outcome, rec.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
