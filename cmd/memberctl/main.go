// memberctl is a small operator CLI over the membersdk client: sign in to a
// marketplace backend, inspect the stored session, and exercise the member
// and vendor operations from a terminal.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/harborperks/membersdk/internal/app"
	"github.com/harborperks/membersdk/pkg/slogx"
	"github.com/harborperks/membersdk/pkg/wpauth"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var a *app.App

	cliApp := &cli.App{
		Name:    "memberctl",
		Usage:   "membership marketplace client",
		Version: app.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to YAML config file",
				Value:   "membersdk.yaml",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := app.LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			a, err = app.New(cfg)
			if err != nil {
				return err
			}
			c.Context = slogx.WithContext(c.Context, a.Logger)
			return nil
		},
		After: func(*cli.Context) error {
			if a != nil {
				return a.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "sign in with username/email and password",
				ArgsUsage: "<identifier> <password>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "remember",
						Usage: "store credentials for silent re-login",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.ShowSubcommandHelp(c)
					}
					sess, err := a.Client.LoginWithPassword(
						c.Context,
						c.Args().Get(0),
						c.Args().Get(1),
						wpauth.LoginOptions{Remember: c.Bool("remember")},
					)
					if err != nil {
						return err
					}
					return printJSON(sess.User)
				},
			},
			{
				Name:      "register",
				Usage:     "create a member or vendor account",
				ArgsUsage: "<email> <password>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Value: string(wpauth.RegisterMember),
						Usage: "member or vendor",
					},
					&cli.StringFlag{
						Name:  "business",
						Usage: "business name (vendor registrations)",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.ShowSubcommandHelp(c)
					}
					sess, err := a.Client.Register(c.Context, wpauth.RegistrationRequest{
						Kind:         wpauth.RegistrationKind(c.String("kind")),
						Email:        c.Args().Get(0),
						Password:     c.Args().Get(1),
						BusinessName: c.String("business"),
					})
					if err != nil {
						return err
					}
					if sess == nil {
						fmt.Println("registered, awaiting approval")
						return nil
					}
					return printJSON(sess.User)
				},
			},
			{
				Name:  "whoami",
				Usage: "print the signed-in user from the persisted session",
				Action: func(c *cli.Context) error {
					sess, err := a.Client.CurrentSession(c.Context)
					if err != nil {
						return err
					}
					if sess.User == nil {
						return fmt.Errorf("not signed in")
					}
					return printJSON(sess.User)
				},
			},
			{
				Name:  "refresh",
				Usage: "refetch the user profile from the backend",
				Action: func(c *cli.Context) error {
					user, err := a.Client.RefreshProfile(c.Context)
					if err != nil {
						return err
					}
					return printJSON(user)
				},
			},
			{
				Name:  "logout",
				Usage: "destroy the session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "forget",
						Usage: "also remove remembered credentials",
					},
				},
				Action: func(c *cli.Context) error {
					return a.Client.Logout(c.Context, c.Bool("forget"))
				},
			},
			{
				Name:  "discount",
				Usage: "discount operations",
				Subcommands: []*cli.Command{
					{
						Name:      "lookup",
						Usage:     "quote the member discount at a vendor",
						ArgsUsage: "<vendor-id> <amount>",
						Action: func(c *cli.Context) error {
							if c.NArg() != 2 {
								return cli.ShowSubcommandHelp(c)
							}
							vendorID, err := strconv.ParseInt(c.Args().Get(0), 10, 64)
							if err != nil {
								return fmt.Errorf("vendor-id must be numeric: %w", err)
							}
							amount, err := strconv.ParseFloat(c.Args().Get(1), 64)
							if err != nil {
								return fmt.Errorf("amount must be numeric: %w", err)
							}
							quote, err := a.Client.LookupDiscount(c.Context, wpauth.ScopeMember, vendorID, amount)
							if quote == nil {
								return err
							}
							return printJSON(quote)
						},
					},
					{
						Name:  "history",
						Usage: "list recorded redemptions",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "scope",
								Value: string(wpauth.ScopeMember),
								Usage: "member or vendor",
							},
						},
						Action: func(c *cli.Context) error {
							records, err := a.Client.TransactionHistory(c.Context, wpauth.DiscountScope(c.String("scope")))
							if err != nil {
								return err
							}
							return printJSON(records)
						},
					},
				},
			},
			{
				Name:  "orders",
				Usage: "list the member's storefront orders",
				Action: func(c *cli.Context) error {
					orders, err := a.Client.MemberOrders(c.Context)
					if err != nil {
						return err
					}
					return printJSON(orders)
				},
			},
			{
				Name:      "buy",
				Usage:     "purchase a membership tier by product SKU",
				ArgsUsage: "<tier-sku>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					user, err := a.Client.PurchaseMembership(c.Context, c.Args().Get(0))
					if err != nil {
						return err
					}
					return printJSON(user)
				},
			},
			{
				Name:  "vendors",
				Usage: "print the vendor-tier catalog",
				Action: func(c *cli.Context) error {
					tiers, err := a.Client.VendorTiers(c.Context)
					if err != nil {
						return err
					}
					return printJSON(tiers)
				},
			},
			{
				Name:  "qr",
				Usage: "member QR pass operations",
				Subcommands: []*cli.Command{
					{
						Name:  "issue",
						Usage: "issue a pass with the current rolling code",
						Action: func(c *cli.Context) error {
							pass, err := a.Client.IssueQRPass(c.Context)
							if err != nil {
								return err
							}
							return printJSON(pass)
						},
					},
					{
						Name:      "validate",
						Usage:     "validate a scanned pass (vendor side)",
						ArgsUsage: "<payload> <code>",
						Action: func(c *cli.Context) error {
							if c.NArg() != 2 {
								return cli.ShowSubcommandHelp(c)
							}
							member, err := a.Client.ValidateQRPass(c.Context, c.Args().Get(0), c.Args().Get(1))
							if err != nil {
								return err
							}
							if member == nil {
								fmt.Println("valid")
								return nil
							}
							return printJSON(member)
						},
					},
				},
			},
			{
				Name:  "lock",
				Usage: "engage or release the device session lock",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "release",
						Usage: "release instead of engage",
					},
				},
				Action: func(c *cli.Context) error {
					return a.Client.SetLocked(c.Context, !c.Bool("release"))
				},
			},
		},
	}

	return cliApp.Run(args)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
