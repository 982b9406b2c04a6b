package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/config"
	"github.com/agrimarket/agridash/libs/events"
	"github.com/agrimarket/agridash/libs/log"
	tmos "github.com/agrimarket/agridash/libs/os"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/types"
	"github.com/agrimarket/agridash/wallet"
)

const (
	flagYes = "yes"

	cliListenerID = "cli"
)

var errInterrupted = errors.New("interrupted")

func addWriteFlags(cmd *cobra.Command, conf *config.Config) {
	cmd.Flags().BoolP(flagYes, "y", false, "sign without asking for confirmation")
	AddChainFlags(cmd, conf)
}

// runSequence drives the intent returned by build to a terminal state,
// printing every transition. An interrupt resets the sequencer, lists the
// transactions that may still confirm and fails the command.
func runSequence(
	cmd *cobra.Command,
	conf *config.Config,
	logger log.Logger,
	build func(n *node) (types.Intent, error),
) error {
	yes, err := cmd.Flags().GetBool(flagYes)
	if err != nil {
		return err
	}
	key, err := loadSigner(conf)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var signer wallet.Signer = key
	if !yes {
		signer = wallet.NewPromptSigner(key, confirmPrompt(bufio.NewReader(cmd.InOrStdin()), out))
	}

	ctx := cmd.Context()
	n, err := newNode(ctx, conf, logger, signer, sequencer.NopMetrics())
	if err != nil {
		return err
	}
	defer n.Close()

	intent, err := build(n)
	if err != nil {
		return err
	}
	if err := n.evsw.AddListenerForEvent(cliListenerID, sequencer.EventStateChange, printTransition(out)); err != nil {
		return err
	}
	defer n.evsw.RemoveListener(cliListenerID)

	sigs, stop := tmos.NotifyInterrupt()
	defer stop()

	done, err := n.sequencer.ExecuteAsync(ctx, intent)
	if err != nil {
		return err
	}
	return awaitSequence(out, logger, n.sequencer, done, sigs)
}

type resetter interface {
	Reset() []types.TxHandle
}

// awaitSequence waits for the outcome on done. On a signal it resets the
// sequencer and still waits for done, so the journal is never closed while
// the sequence goroutine may write to it.
func awaitSequence(
	out io.Writer,
	logger log.Logger,
	seq resetter,
	done <-chan *sequencer.Result,
	sigs <-chan os.Signal,
) error {
	select {
	case res := <-done:
		printResult(out, res, res.Err)
		return res.Err
	case sig := <-sigs:
		logger.Info("captured signal, stopping the sequence", "signal", sig)
		printUnresolved(out, seq.Reset())
		<-done
		return errInterrupted
	}
}

// confirmPrompt asks on out and reads the answer from in.
func confirmPrompt(in *bufio.Reader, out io.Writer) wallet.ConfirmFunc {
	type reply struct {
		answer string
		err    error
	}
	return func(ctx context.Context, req wallet.SignRequest) (bool, error) {
		tx := req.Tx
		fmt.Fprintf(out, "Sign %s to %s (nonce %d, gas %d at %s gwei)? [y/N]: ",
			req.Method, tx.To().Hex(), tx.Nonce(), tx.Gas(), gwei(tx.GasPrice()))

		replies := make(chan reply, 1)
		go func() {
			answer, err := in.ReadString('\n')
			replies <- reply{answer, err}
		}()
		var answer string
		var err error
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return false, ctx.Err()
		case r := <-replies:
			answer, err = r.answer, r.err
		}
		if err != nil && answer == "" {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}

func gwei(wei *big.Int) string {
	return types.FormatUnits(wei, 9)
}

func printTransition(out io.Writer) events.EventCallback {
	return func(data events.EventData) error {
		change, ok := data.(sequencer.StateChange)
		if !ok {
			return nil
		}
		line := fmt.Sprintf("[%s] %s -> %s", change.Kind, change.From, change.To)
		switch change.To {
		case sequencer.StateAwaitingApproveConfirmation:
			if h := change.Status.Approve; h != nil {
				line += " (" + h.Hash.Hex() + ")"
			}
		case sequencer.StateAwaitingActionConfirmation:
			if h := change.Status.Action; h != nil {
				line += " (" + h.Hash.Hex() + ")"
			}
		}
		_, err := fmt.Fprintln(out, line)
		return err
	}
}

func printUnresolved(out io.Writer, handles []types.TxHandle) {
	if len(handles) == 0 {
		fmt.Fprintln(out, "Sequence reset; nothing was submitted.")
		return
	}
	fmt.Fprintln(out, "Sequence reset. These transactions were submitted and may still confirm:")
	for _, h := range handles {
		fmt.Fprintf(out, "  %s %s\n", h.Method, h.Hash.Hex())
	}
}

func printResult(out io.Writer, res *sequencer.Result, err error) {
	switch {
	case res == nil:
		return
	case sequencer.IsReset(err):
		fmt.Fprintln(out, "Sequence reset.")
	case err != nil:
		fmt.Fprintf(out, "Failed: %v\n", err)
	default:
		if res.ApprovalSkipped && res.Pending != nil && res.Pending.Intent.Kind.NeedsAllowance() {
			fmt.Fprintln(out, "Allowance already covered the required amount; approval skipped.")
		}
		if res.Action != nil {
			fmt.Fprintf(out, "Completed: %s confirmed in %s\n", res.Action.Method, res.Action.Hash.Hex())
		}
	}
}

func parseBig(name, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q: must be a whole number", name, s)
	}
	return v, nil
}

// MakeBuyCommand places an order for a product.
func MakeBuyCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy <product-id> <quantity>",
		Short: "Order a product, approving the marketplace first if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("product id", args[0])
			if err != nil {
				return err
			}
			qty, err := parseBig("quantity", args[1])
			if err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewOrderIntent(id, qty), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeBidCommand bids on a product.
func MakeBidCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bid <product-id> <amount>",
		Short: "Bid on a product, approving the marketplace first if needed",
		Long:  "Bid on a product. The amount is given in token base units.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("product id", args[0])
			if err != nil {
				return err
			}
			amount, err := parseBig("amount", args[1])
			if err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewBidIntent(id, amount), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeAcceptBidCommand accepts a bid on one of the farmer's products.
func MakeAcceptBidCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept-bid <bid-id>",
		Short: "Accept a bid on one of your products",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("bid id", args[0])
			if err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewAcceptBidIntent(id), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeCompleteBidCommand settles an accepted bid.
func MakeCompleteBidCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-bid <bid-id>",
		Short: "Complete an accepted bid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBig("bid id", args[0])
			if err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewCompleteBidIntent(id), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeCreateProductCommand lists a new product.
func MakeCreateProductCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var name, unit, price, quantity, stock string
	cmd := &cobra.Command{
		Use:   "create-product",
		Short: "List a new product; a stock of 0 lists a growing crop open to bids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l := types.Listing{Name: name, Unit: unit}
			var err error
			if l.Price, err = parseBig("price", price); err != nil {
				return err
			}
			if l.Quantity, err = parseBig("quantity", quantity); err != nil {
				return err
			}
			if l.Stock, err = parseBig("stock", stock); err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewCreateProductIntent(l), nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "product name")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of sale, e.g. kg, piece, bundle")
	cmd.Flags().StringVar(&price, "price", "", "price per unit in token base units")
	cmd.Flags().StringVar(&quantity, "quantity", "1", "quantity per unit")
	cmd.Flags().StringVar(&stock, "stock", "0", "units in stock")
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeSetFeeCommand changes the marketplace operation fee.
func MakeSetFeeCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-fee <fee>",
		Short: "Set the marketplace operation fee in token base units (token owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fee, err := parseBig("fee", args[0])
			if err != nil {
				return err
			}
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewSetFeeIntent(fee), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeTransferCommand sends tokens to another account.
func MakeTransferCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer <recipient> <amount>",
		Short: "Send tokens; the amount is in whole tokens, e.g. 12.5",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !common.IsHexAddress(args[0]) {
				return fmt.Errorf("%w: invalid wallet address %q", types.ErrInvalidIntent, args[0])
			}
			recipient := common.HexToAddress(args[0])
			return runSequence(cmd, conf, logger, func(n *node) (types.Intent, error) {
				amount, err := types.ParseUnits(args[1], n.decimals)
				if err != nil {
					return types.Intent{}, err
				}
				return types.NewTransferIntent(recipient, amount), nil
			})
		},
	}
	addWriteFlags(cmd, conf)
	return cmd
}

// MakeSetProfileCommand stores the user's name and contact details.
func MakeSetProfileCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var name, contact string
	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Store your name and contact details on the marketplace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, conf, logger, func(*node) (types.Intent, error) {
				return types.NewSetProfileIntent(types.Profile{Name: name, ContactInfo: contact}), nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&contact, "contact", "", "contact details")
	addWriteFlags(cmd, conf)
	return cmd
}
