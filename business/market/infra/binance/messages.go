// Package binance implements the ExchangeClient interface for the Binance spot API.
package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/railgun-trading/railgun/business/market/domain"
	"github.com/railgun-trading/railgun/internal/apperror"
)

// REST response messages

// bookTickerResponse is one entry of GET /api/v3/ticker/bookTicker.
type bookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

func (r *bookTickerResponse) toDomain(now time.Time) (domain.BookTicker, error) {
	bid, err := decimal.NewFromString(r.BidPrice)
	if err != nil {
		return domain.BookTicker{}, err
	}
	bidQty, err := decimal.NewFromString(r.BidQty)
	if err != nil {
		return domain.BookTicker{}, err
	}
	ask, err := decimal.NewFromString(r.AskPrice)
	if err != nil {
		return domain.BookTicker{}, err
	}
	askQty, err := decimal.NewFromString(r.AskQty)
	if err != nil {
		return domain.BookTicker{}, err
	}

	return domain.BookTicker{
		Symbol:    r.Symbol,
		BidPrice:  bid,
		BidQty:    bidQty,
		AskPrice:  ask,
		AskQty:    askQty,
		UpdatedAt: now,
	}, nil
}

// exchangeInfoResponse is GET /api/v3/exchangeInfo.
type exchangeInfoResponse struct {
	Symbols []symbolInfo `json:"symbols"`
}

type symbolInfo struct {
	Symbol     string         `json:"symbol"`
	Status     string         `json:"status"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Filters    []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty"`
	MaxQty     string `json:"maxQty"`
	StepSize   string `json:"stepSize"`
	TickSize   string `json:"tickSize"`
}

const symbolStatusTrading = "TRADING"

const (
	filterLotSize     = "LOT_SIZE"
	filterPriceFilter = "PRICE_FILTER"
)

func (s *symbolInfo) toDomain() (domain.SymbolConstraints, bool, error) {
	if s.Status != symbolStatusTrading {
		return domain.SymbolConstraints{}, false, nil
	}

	var stepQty, minQty, maxQty, tickSize string
	for _, f := range s.Filters {
		switch f.FilterType {
		case filterLotSize:
			stepQty = f.StepSize
			minQty = f.MinQty
			maxQty = f.MaxQty
		case filterPriceFilter:
			tickSize = f.TickSize
		}
	}
	if stepQty == "" || tickSize == "" {
		return domain.SymbolConstraints{}, false, nil
	}

	c, err := domain.NewSymbolConstraints(s.Symbol, s.BaseAsset, s.QuoteAsset, stepQty, tickSize, minQty, maxQty)
	if err != nil {
		return domain.SymbolConstraints{}, false, err
	}
	return c, true, nil
}

// accountResponse is GET /api/v3/account.
type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// orderResponse is the order report shared by POST, GET and DELETE
// /api/v3/order.
type orderResponse struct {
	Symbol             string `json:"symbol"`
	OrderID            int64  `json:"orderId"`
	ClientOrderID      string `json:"clientOrderId"`
	OrigClientOrderID  string `json:"origClientOrderId"`
	TransactTime       int64  `json:"transactTime"`
	Price              string `json:"price"`
	OrigQty            string `json:"origQty"`
	ExecutedQty        string `json:"executedQty"`
	CummulativeQuoteQty string `json:"cummulativeQuoteQty"`
	Status             string `json:"status"`
	Type               string `json:"type"`
	Side               string `json:"side"`
}

func (r *orderResponse) toDomain() (domain.Order, error) {
	status, err := domain.ParseOrderStatus(r.Status)
	if err != nil {
		return domain.Order{}, apperror.New(apperror.CodeUnknownOrderStatus,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("symbol=%s order_id=%d", r.Symbol, r.OrderID)),
		)
	}

	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.Order{}, err
	}
	origQty, err := decimal.NewFromString(r.OrigQty)
	if err != nil {
		return domain.Order{}, err
	}
	execQty, err := decimal.NewFromString(r.ExecutedQty)
	if err != nil {
		return domain.Order{}, err
	}
	cumQuote := decimal.Zero
	if r.CummulativeQuoteQty != "" {
		cumQuote, err = decimal.NewFromString(r.CummulativeQuoteQty)
		if err != nil {
			return domain.Order{}, err
		}
	}

	clientID := r.ClientOrderID
	if clientID == "" {
		clientID = r.OrigClientOrderID
	}

	return domain.Order{
		Symbol:        r.Symbol,
		OrderID:       r.OrderID,
		ClientOrderID: clientID,
		Side:          domain.Side(r.Side),
		Type:          domain.OrderType(r.Type),
		Status:        status,
		Price:         price,
		OrigQty:       origQty,
		ExecutedQty:   execQty,
		CumQuoteQty:   cumQuote,
		TransactTime:  time.UnixMilli(r.TransactTime),
	}, nil
}

// apiError is the error payload the exchange returns with non-2xx status.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Exchange error codes that need dedicated handling.
const (
	codeTooManyRequests   = -1003
	codeInsufficientFunds = -2010
	codeCancelRejected    = -2011
	codeNoSuchOrder       = -2013
	codeMarginInsufficient = -2019
)

// mapAPIError converts an exchange error payload to an AppError.
func mapAPIError(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		if statusCode == 429 || statusCode == 418 {
			return apperror.New(apperror.CodeRateLimited,
				apperror.WithContext(fmt.Sprintf("status=%d", statusCode)))
		}
		return apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(fmt.Sprintf("status=%d body=%s", statusCode, body)))
	}

	opts := []apperror.Option{
		apperror.WithMessage(apiErr.Msg),
		apperror.WithContext(fmt.Sprintf("exchange_code=%d status=%d", apiErr.Code, statusCode)),
	}

	switch apiErr.Code {
	case codeTooManyRequests:
		return apperror.New(apperror.CodeRateLimited, opts...)
	case codeInsufficientFunds, codeMarginInsufficient:
		return apperror.New(apperror.CodeInsufficientFunds, opts...)
	case codeCancelRejected, codeNoSuchOrder:
		return apperror.New(apperror.CodeOrderNotFound, opts...)
	}

	if statusCode == 429 || statusCode == 418 {
		return apperror.New(apperror.CodeRateLimited, opts...)
	}

	return apperror.New(apperror.CodeExchangeAPIError, opts...)
}

// WebSocket stream messages

// wsRequest is a stream subscription request.
type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// bookTickerEvent is one <symbol>@bookTicker stream update.
type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// combinedStreamEvent wraps messages from a combined stream endpoint.
type combinedStreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}
