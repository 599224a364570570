package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/covercompare/membergate/pkg/schema"
	"github.com/covercompare/membergate/pkg/sdk"
	"github.com/spf13/cobra"
)

var note string

func main() {
	if err := newRootCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. connect is replaced in tests.
func newRootCmd(connect func() (sdk.Membergate, error)) *cobra.Command {
	if connect == nil {
		connect = func() (sdk.Membergate, error) { return sdk.NewFromEnv() }
	}

	root := &cobra.Command{
		Use:   "membergate",
		Short: "Administer memberships through a membergated daemon",
		Long: `Administer memberships through a membergated daemon.

The daemon address is read from MEMBERGATE_ADDR (default http://localhost:7002)
and the bearer token from MEMBERGATE_TOKEN.`,
		SilenceUsage: true,
	}

	withClient := func(run func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return run(ctx, c, cmd.OutOrStdout(), args)
		}
	}

	setStatus := &cobra.Command{
		Use:   "set-status <accountId> <active|pending|suspended|deleted>",
		Short: "Change an account's membership status",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			res, err := c.SetMembershipStatus(ctx, args[0], args[1], optional(note))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, res.Message)
			return nil
		}),
	}
	setStatus.Flags().StringVar(&note, "note", "", "note stored with the change")

	confirm := &cobra.Command{
		Use:   "confirm-payment <accountId> <paidUntil>",
		Short: "Record a payment and activate the account until paidUntil (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			res, err := c.ConfirmPayment(ctx, args[0], args[1], optional(note))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, res.Message)
			return nil
		}),
	}
	confirm.Flags().StringVar(&note, "note", "", "payment note")

	profile := &cobra.Command{
		Use:   "profile",
		Short: "Print your own profile as JSON",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			p, err := c.Profile(ctx)
			if err != nil {
				return err
			}
			return printJSON(out, p)
		}),
	}

	banner := &cobra.Command{
		Use:   "banner",
		Short: "Print your membership banner",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			b, err := c.Banner(ctx)
			if err != nil {
				return err
			}
			if b.Severity == schema.SeverityNone {
				fmt.Fprintln(out, "no banner")
				return nil
			}
			fmt.Fprintf(out, "[%s] %s\n", b.Severity, b.Message)
			return nil
		}),
	}

	list := &cobra.Command{
		Use:   "list [all|active|pending|deleted]",
		Short: "List profiles, optionally filtered by status",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = args[0]
			}
			profiles, err := c.ListProfiles(ctx, filter)
			if err != nil {
				return err
			}
			return printTable(out, profiles)
		}),
	}

	watch := &cobra.Command{
		Use:   "watch",
		Short: "Print dashboard filter changes as they happen",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, c sdk.Membergate, out io.Writer, args []string) error {
			ch, err := c.StreamFilters(ctx)
			if err != nil {
				return err
			}
			for ev := range ch {
				fmt.Fprintln(out, ev.Filter)
			}
			return nil
		}),
	}

	root.AddCommand(setStatus, confirm, profile, banner, list, watch)
	return root
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, profiles []schema.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tUSERNAME\tROLE\tSTATUS\tPAID UNTIL")
	for _, p := range profiles {
		paid := "-"
		if p.PaidUntil != nil {
			paid = p.PaidUntil.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.AccountID, p.Username, p.Role, p.Status, paid)
	}
	return tw.Flush()
}
