package commands

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/marketplace"
)

// readSession is a chain connection plus the snapshot of one account.
type readSession struct {
	*chain
	account common.Address
	state   *marketplace.State
	printer *printer
}

func withReadSession(cmd *cobra.Command, conf *config.Config, logger log.Logger, run func(s *readSession) error) error {
	account, err := resolveAccount(cmd, conf)
	if err != nil {
		return err
	}
	c, err := dialChain(cmd.Context(), conf)
	if err != nil {
		return err
	}
	defer c.Close()

	p, err := newPrinter(cmd, c.decimals, c.symbol)
	if err != nil {
		return err
	}
	return run(&readSession{
		chain:   c,
		account: account,
		state:   marketplace.NewState(logger, c.reader, account),
		printer: p,
	})
}

func addReadFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().String(flagAccount, "", "account to show; defaults to the configured key")
	AddChainFlags(cmd, conf)
}

// MakeProductsCommand lists marketplace products.
func MakeProductsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List marketplace products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mine, err := cmd.Flags().GetBool("mine")
			if err != nil {
				return err
			}
			return withReadSession(cmd, conf, logger, func(s *readSession) error {
				products, err := s.reader.Products(cmd.Context())
				if err != nil {
					return err
				}
				if mine {
					snap := &marketplace.Snapshot{Products: products}
					products = snap.FarmerProducts(s.account)
				}
				return s.printer.products(products)
			})
		},
	}
	cmd.Flags().Bool("mine", false, "only show products listed by the account")
	addReadFlags(cmd, conf)
	return cmd
}

// MakeOrdersCommand lists the orders of the account.
func MakeOrdersCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List the orders placed by the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReadSession(cmd, conf, logger, func(s *readSession) error {
				orders, err := s.reader.Orders(cmd.Context(), s.account)
				if err != nil {
					return err
				}
				return s.printer.orders(orders)
			})
		},
	}
	addReadFlags(cmd, conf)
	return cmd
}

// MakeBidsCommand lists the bids of the account, or the bids on its products.
func MakeBidsCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bids",
		Short: "List the bids placed by the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			incoming, err := cmd.Flags().GetBool("incoming")
			if err != nil {
				return err
			}
			return withReadSession(cmd, conf, logger, func(s *readSession) error {
				if !incoming {
					bids, err := s.reader.Bids(cmd.Context(), s.account)
					if err != nil {
						return err
					}
					return s.printer.bids(bids)
				}
				snap, err := s.state.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				return s.printer.bids(snap.IncomingBids(s.account))
			})
		},
	}
	cmd.Flags().Bool("incoming", false, "show bids on the account's products")
	addReadFlags(cmd, conf)
	return cmd
}

// MakeFeeCommand shows the marketplace operation fee.
func MakeFeeCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fee",
		Short: "Show the marketplace operation fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dialChain(cmd.Context(), conf)
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := newPrinter(cmd, c.decimals, c.symbol)
			if err != nil {
				return err
			}
			fee, err := c.reader.OperationFee(cmd.Context())
			if err != nil {
				return err
			}
			if p.json {
				return p.writeJSON(map[string]*big.Int{"fee": fee})
			}
			_, err = fmt.Fprintf(p.out, "Operation fee: %s\n", p.amount(fee))
			return err
		},
	}
	AddChainFlags(cmd, conf)
	return cmd
}

// MakeBalanceCommand shows the token balance and marketplace allowance.
func MakeBalanceCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the token balance and marketplace allowance of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReadSession(cmd, conf, logger, func(s *readSession) error {
				ctx := cmd.Context()
				balance, err := s.reader.Balance(ctx, s.account)
				if err != nil {
					return err
				}
				allowance, err := s.reader.Allowance(ctx, s.account, s.reader.Spender())
				if err != nil {
					return err
				}
				owner, err := s.reader.TokenOwner(ctx)
				if err != nil {
					return err
				}
				if s.printer.json {
					return s.printer.writeJSON(struct {
						Account   common.Address `json:"account"`
						Balance   *big.Int       `json:"balance"`
						Allowance *big.Int       `json:"allowance"`
						IsOwner   bool           `json:"isOwner"`
					}{s.account, balance, allowance, owner == s.account})
				}
				fmt.Fprintf(s.printer.out, "Account:   %s\n", s.account.Hex())
				fmt.Fprintf(s.printer.out, "Balance:   %s\n", s.printer.amount(balance))
				fmt.Fprintf(s.printer.out, "Allowance: %s\n", s.printer.amount(allowance))
				if owner == s.account {
					fmt.Fprintln(s.printer.out, "Role:      token owner")
				}
				return nil
			})
		},
	}
	addReadFlags(cmd, conf)
	return cmd
}

// MakeTransactionsCommand lists journaled transactions. It does not need the
// chain.
func MakeTransactionsCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List submitted transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := cmd.Flags().GetBool("pending")
			if err != nil {
				return err
			}
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}

			journal, err := openJournal(conf)
			if err != nil {
				return err
			}
			defer journal.Close()

			p, err := newPrinter(cmd, 0, "")
			if err != nil {
				return err
			}
			if pending {
				recs, err := journal.Pending()
				if err != nil {
					return err
				}
				return p.records(recs)
			}
			recs, err := journal.List(limit)
			if err != nil {
				return err
			}
			return p.records(recs)
		},
	}
	cmd.Flags().Bool("pending", false, "only show transactions whose outcome was never observed")
	cmd.Flags().Int("limit", 20, "maximum number of transactions to show")
	return cmd
}
