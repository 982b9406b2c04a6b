package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agrimarket/agridash/marketplace"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/types"
	"github.com/agrimarket/agridash/version"
)

const defaultTransactionsLimit = 50

// StatusResponse describes the account and the sequencer.
type StatusResponse struct {
	Account   common.Address   `json:"account"`
	ChainID   *big.Int         `json:"chainId"`
	Symbol    string           `json:"symbol"`
	Decimals  uint8            `json:"decimals"`
	Version   version.Info     `json:"version"`
	Sequencer sequencer.Status `json:"sequencer"`
}

// FeeResponse is the current operation fee.
type FeeResponse struct {
	Fee       *big.Int `json:"fee"`
	Formatted string   `json:"formatted"`
}

// BalanceResponse is the token position of the account.
type BalanceResponse struct {
	Balance            *big.Int `json:"balance"`
	BalanceFormatted   string   `json:"balanceFormatted"`
	Allowance          *big.Int `json:"allowance"`
	AllowanceFormatted string   `json:"allowanceFormatted"`
	IsOwner            bool     `json:"isOwner"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Account:   s.env.Account,
		ChainID:   s.env.ChainID,
		Symbol:    s.env.Symbol,
		Decimals:  s.env.Decimals,
		Version:   version.Get(),
		Sequencer: s.env.Sequencer.Status(),
	})
}

// snapshot returns the cached marketplace state, refetching it first when the
// request carries refresh=true.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*marketplace.Snapshot, bool) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := s.env.State.Invalidate(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err)
			return nil, false
		}
	}
	snap, err := s.env.State.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return nil, false
	}
	return snap, true
}

func (s *Server) products(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, nonNil(snap.Products))
	}
}

func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.env.Products.Product(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) farmerProducts(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, nonNil(snap.FarmerProducts(s.env.Account)))
	}
}

func (s *Server) orders(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, nonNil(snap.Orders))
	}
}

func (s *Server) bids(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, nonNil(snap.Bids))
	}
}

func (s *Server) incomingBids(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, nonNil(snap.IncomingBids(s.env.Account)))
	}
}

func (s *Server) fee(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, FeeResponse{
			Fee:       snap.Fee,
			Formatted: s.format(snap.Fee),
		})
	}
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w, r); ok {
		writeJSON(w, http.StatusOK, BalanceResponse{
			Balance:            snap.Balance,
			BalanceFormatted:   s.format(snap.Balance),
			Allowance:          snap.Allowance,
			AllowanceFormatted: s.format(snap.Allowance),
			IsOwner:            snap.IsOwner(),
		})
	}
}

func (s *Server) transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		recs []types.TxRecord
		err  error
	)
	if q.Get("pending") == "true" {
		recs, err = s.env.Journal.Pending()
	} else {
		limit := defaultTransactionsLimit
		if l := q.Get("limit"); l != "" {
			limit, err = strconv.Atoi(l)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", l))
				return
			}
		}
		recs, err = s.env.Journal.List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(recs))
}

func (s *Server) format(v *big.Int) string {
	return types.FormatUnits(v, s.env.Decimals) + " " + s.env.Symbol
}

func pathID(r *http.Request) (*big.Int, error) {
	raw := r.PathValue("id")
	id, ok := new(big.Int).SetString(raw, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// nonNil renders empty lists as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
