package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agrimarket/agridash/analysis"
	"github.com/agrimarket/agridash/sequencer"
	"github.com/agrimarket/agridash/types"
)

var errAnalysisDisabled = errors.New("market analysis is disabled")

// bigInt decodes a base-10 integer given as a JSON number or string. Token
// amounts in base units do not fit a float64, so clients should send strings.
type bigInt struct {
	*big.Int
}

func (b *bigInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid integer %s", data)
	}
	b.Int = v
	return nil
}

// AcceptedResponse is returned when a sequence has been admitted.
type AcceptedResponse struct {
	IntentID string           `json:"intentId"`
	Kind     types.IntentKind `json:"kind"`
}

// ResetResponse lists writes that were submitted before a reset and may
// still confirm.
type ResetResponse struct {
	Unresolved []types.TxHandle `json:"unresolved"`
}

type orderRequest struct {
	ProductID bigInt `json:"productId"`
	Quantity  bigInt `json:"quantity"`
}

type bidRequest struct {
	ProductID bigInt `json:"productId"`
	Amount    bigInt `json:"amount"`
}

type productRequest struct {
	Name     string `json:"name"`
	Price    bigInt `json:"price"`
	Unit     string `json:"unit"`
	Quantity bigInt `json:"quantity"`
	Stock    bigInt `json:"stock"`
}

type feeRequest struct {
	Fee bigInt `json:"fee"`
}

// transferRequest carries a decimal token amount, e.g. "12.5".
type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type profileRequest struct {
	Name        string `json:"name"`
	ContactInfo string `json:"contactInfo"`
}

type analysisRequest struct {
	// Products defaults to the account's own listings.
	Products []analysis.ProductInput `json:"products"`
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if decode(w, r, &req) {
		s.start(w, types.NewOrderIntent(req.ProductID.Int, req.Quantity.Int))
	}
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	var req bidRequest
	if decode(w, r, &req) {
		s.start(w, types.NewBidIntent(req.ProductID.Int, req.Amount.Int))
	}
}

func (s *Server) acceptBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.start(w, types.NewAcceptBidIntent(id))
}

func (s *Server) completeBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.start(w, types.NewCompleteBidIntent(id))
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if decode(w, r, &req) {
		s.start(w, types.NewCreateProductIntent(types.Listing{
			Name:     req.Name,
			Price:    req.Price.Int,
			Unit:     req.Unit,
			Quantity: req.Quantity.Int,
			Stock:    req.Stock.Int,
		}))
	}
}

func (s *Server) setFee(w http.ResponseWriter, r *http.Request) {
	var req feeRequest
	if decode(w, r, &req) {
		s.start(w, types.NewSetFeeIntent(req.Fee.Int))
	}
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.Recipient) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid wallet address", types.ErrInvalidIntent))
		return
	}
	amount, err := types.ParseUnits(req.Amount, s.env.Decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", types.ErrInvalidIntent, err))
		return
	}
	s.start(w, types.NewTransferIntent(common.HexToAddress(req.Recipient), amount))
}

func (s *Server) setProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if decode(w, r, &req) {
		s.start(w, types.NewSetProfileIntent(types.Profile{Name: req.Name, ContactInfo: req.ContactInfo}))
	}
}

// start admits intent and answers before the sequence completes. Progress is
// reported over the websocket.
func (s *Server) start(w http.ResponseWriter, intent types.Intent) {
	done, err := s.env.Sequencer.ExecuteAsync(s.ctx, intent)
	switch {
	case errors.Is(err, sequencer.ErrSequenceInFlight):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, types.ErrInvalidIntent):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		res := <-done
		if res.Err != nil && !sequencer.IsReset(res.Err) {
			s.logger.Debug("sequence started over the API failed", "intent", res.IntentID, "err", res.Err)
		}
	}()
	writeJSON(w, http.StatusAccepted, AcceptedResponse{IntentID: intent.ID, Kind: intent.Kind})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ResetResponse{Unresolved: nonNil(s.env.Sequencer.Reset())})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	if s.env.Analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, errAnalysisDisabled)
		return
	}

	var req analysisRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if len(req.Products) == 0 {
		snap, ok := s.snapshot(w, r)
		if !ok {
			return
		}
		req.Products = analysis.ProductInputs(snap.FarmerProducts(s.env.Account), s.env.Decimals)
	}

	report, err := s.env.Analyzer.Analyze(r.Context(), analysis.Request{
		Products: req.Products,
		Symbol:   s.env.Symbol,
	})
	switch {
	case errors.Is(err, analysis.ErrNoProducts):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
