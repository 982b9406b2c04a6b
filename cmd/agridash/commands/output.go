package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agrimarket/agridash/libs/cli"
	"github.com/agrimarket/agridash/types"
)

const (
	outputText = "text"
	outputJSON = "json"

	flagAccount = "account"
)

// printer renders command results as aligned text or as JSON.
type printer struct {
	out      io.Writer
	json     bool
	decimals uint8
	symbol   string
}

func newPrinter(cmd *cobra.Command, decimals uint8, symbol string) (*printer, error) {
	format, err := cmd.Flags().GetString(cli.OutputFlag)
	if err != nil {
		return nil, err
	}
	switch format {
	case outputText, outputJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q (must be %q or %q)", format, outputText, outputJSON)
	}
	return &printer{
		out:      cmd.OutOrStdout(),
		json:     format == outputJSON,
		decimals: decimals,
		symbol:   symbol,
	}, nil
}

func (p *printer) amount(v *big.Int) string {
	return types.FormatUnits(v, p.decimals) + " " + p.symbol
}

func (p *printer) writeJSON(v interface{}) error {
	bz, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, string(bz))
	return err
}

// table writes a header and rows through a tabwriter.
func (p *printer) table(header string, rows func(w io.Writer)) error {
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (p *printer) products(products []types.Product) error {
	if p.json {
		return p.writeJSON(products)
	}
	return p.table("ID\tNAME\tPRICE\tUNIT\tSTOCK\tFARMER", func(w io.Writer) {
		for _, pr := range products {
			stock := pr.Stock.String()
			if !pr.InStock(nil) {
				stock = "growing"
			}
			fmt.Fprintf(w, "%v\t%s\t%s\t%s\t%s\t%s\n", pr.ID, pr.Name, p.amount(pr.Price), pr.Unit, stock, pr.Farmer.Hex())
		}
	})
}

func (p *printer) orders(orders []types.Order) error {
	if p.json {
		return p.writeJSON(orders)
	}
	return p.table("ID\tPRODUCT\tQUANTITY\tTOTAL\tFULFILLED", func(w io.Writer) {
		for _, o := range orders {
			fmt.Fprintf(w, "%v\t%v\t%v\t%s\t%t\n", o.ID, o.ProductID, o.Quantity, p.amount(o.TotalPrice), o.Fulfilled)
		}
	})
}

func (p *printer) bids(bids []types.Bid) error {
	if p.json {
		return p.writeJSON(bids)
	}
	return p.table("ID\tPRODUCT\tAMOUNT\tBIDDER\tSTATUS", func(w io.Writer) {
		for _, b := range bids {
			fmt.Fprintf(w, "%v\t%v\t%s\t%s\t%s\n", b.ID, b.ProductID, p.amount(b.Amount), b.Bidder.Hex(), b.Status())
		}
	})
}

func (p *printer) records(recs []types.TxRecord) error {
	if p.json {
		return p.writeJSON(recs)
	}
	return p.table("SUBMITTED\tINTENT\tMETHOD\tSTATUS\tHASH", func(w io.Writer) {
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.SubmittedAt.Format("2006-01-02 15:04:05"), r.IntentKind, r.Method, r.Status, r.Hash.Hex())
		}
	})
}
