package main

import (
	"fmt"
	"strings"
	"time"

	"shelterlink/backend/internal/models"

	"github.com/spf13/cobra"
)

func parseRole(s string) (models.Role, error) {
	switch r := models.Role(strings.ToUpper(s)); r {
	case models.RoleHost, models.RoleSeeker, models.RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("role must be HOST, SEEKER or ADMIN, got %q", s)
	}
}

func tokenCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			tok, exp, err := app.tokens.Issue(args[0], r)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Println(tok)
			fmt.Printf("expires: %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleSeeker), "Role claim (HOST, SEEKER, ADMIN)")
	return cmd
}

func seedUserCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "seed-user <user_id> <name>",
		Short: "Create or update a user record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			if !models.ValidUserID(args[0]) {
				return fmt.Errorf("user id %q must be non-empty and contain no ':'", args[0])
			}
			user := &models.User{ID: args[0], Name: args[1], Role: r}
			if err := app.store.SaveUser(app.ctx, user); err != nil {
				return fmt.Errorf("failed to save user: %w", err)
			}
			fmt.Printf("User %s (%s) saved as %s\n", user.ID, user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleSeeker), "Role (HOST, SEEKER, ADMIN)")
	return cmd
}

// matchFlags registers the shared --max-distance and --limit flags. Unset
// flags fall back to the configured defaults.
func matchFlags(cmd *cobra.Command, maxKm *float64, limit *int) {
	cmd.Flags().Float64Var(maxKm, "max-distance", 0, "Search radius in km")
	cmd.Flags().IntVar(limit, "limit", 0, "Maximum matches per request")
}

func optional[T any](cmd *cobra.Command, name string, v *T) *T {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return v
}

func seekerMatchesCmd() *cobra.Command {
	var maxKm float64
	var limit int
	cmd := &cobra.Command{
		Use:   "seeker-matches <seeker_id>",
		Short: "List ranked shelters for each of a seeker's pending requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := app.matching.ParamsFrom(optional(cmd, "max-distance", &maxKm), optional(cmd, "limit", &limit))
			res, err := app.matching.MatchesForSeeker(app.ctx, args[0], p)
			if err != nil {
				return err
			}
			fmt.Printf("\n%d matches within %.1f km\n", res.TotalMatches, res.MaxDistanceKm)
			for _, g := range res.Groups {
				fmt.Printf("\nRequest %s (%s, %d people):\n", g.Request.ID, g.Request.Date.Format("2006-01-02"), g.Request.NumberOfPeople)
				for i, m := range g.Matches {
					fmt.Printf("  %2d. %s  %-30s %6.2f km  capacity %d\n", i+1, m.Shelter.ID, m.Shelter.Title, m.DistanceKm, m.Shelter.Capacity)
				}
			}
			return nil
		},
	}
	matchFlags(cmd, &maxKm, &limit)
	return cmd
}

func shelterMatchesCmd() *cobra.Command {
	var maxKm float64
	var limit int
	cmd := &cobra.Command{
		Use:   "shelter-matches <host_id> <shelter_id>",
		Short: "List pending requests a host's shelter can serve",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := app.matching.ParamsFrom(optional(cmd, "max-distance", &maxKm), optional(cmd, "limit", &limit))
			matches, err := app.matching.RequestsForShelter(app.ctx, args[0], args[1], p)
			if err != nil {
				return err
			}
			fmt.Printf("\nFound %d requests:\n\n", len(matches))
			for i, m := range matches {
				fmt.Printf("  %2d. %s  seeker %s  %s  %d people  %6.2f km\n",
					i+1,
					m.Request.ID,
					m.Request.SeekerID,
					m.Request.Date.Format("2006-01-02"),
					m.Request.NumberOfPeople,
					m.DistanceKm,
				)
			}
			return nil
		},
	}
	matchFlags(cmd, &maxKm, &limit)
	return cmd
}

func connectionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connection-status <user_a> <user_b>",
		Short: "Show the connection between two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.connections.CheckStatus(app.ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if st.Status == nil {
				fmt.Println("no connection")
				return nil
			}
			fmt.Printf("%s  status=%s  connected=%t\n", st.ConnectionID, *st.Status, st.Connected)
			return nil
		},
	}
}

func unreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread <user_id>",
		Short: "Show a user's inbox with unread counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := app.messages.UnreadCount(app.ctx, args[0])
			if err != nil {
				return err
			}
			convs, err := app.messages.ListConversations(app.ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\n%d unread across %d conversations\n\n", total, len(convs))
			for _, c := range convs {
				fmt.Printf("- %s with %s  unread %d  last %s\n",
					c.ConversationID, c.OtherUserID, c.UnreadCount, c.LastMessage.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
