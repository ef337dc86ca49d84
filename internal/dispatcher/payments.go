package dispatcher

import (
	"context"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/internal/response"
	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// invoiceParams validates the invoice fields shared by sendInvoice and
// createInvoiceLink.
func invoiceParams(p botapi.Params) (botapi.Invoice, string, error) {
	inv := botapi.Invoice{
		Title:          p.String("title"),
		Description:    p.String("description"),
		StartParameter: p.String("start_parameter"),
		Currency:       p.String("currency"),
	}
	payload := p.String("payload")
	if n := utf8.RuneCountInString(inv.Title); n == 0 || n > 32 {
		return inv, "", botapi.InvalidArgument("INVOICE_TITLE_INVALID")
	}
	if n := utf8.RuneCountInString(inv.Description); n == 0 || n > 255 {
		return inv, "", botapi.InvalidArgument("INVOICE_DESCRIPTION_INVALID")
	}
	if n := len(payload); n == 0 || n > 128 {
		return inv, "", botapi.InvalidArgument("INVOICE_PAYLOAD_INVALID")
	}
	if !currencyPattern.MatchString(inv.Currency) {
		return inv, "", botapi.InvalidArgument("CURRENCY_INVALID")
	}
	var prices []botapi.LabeledPrice
	if _, err := p.Decode("prices", &prices); err != nil {
		return inv, "", botapi.InvalidArgument("can't parse prices JSON object")
	}
	if len(prices) == 0 {
		return inv, "", botapi.InvalidArgument("CURRENCY_TOTAL_AMOUNT_INVALID")
	}
	if inv.Currency == botapi.CurrencyStars {
		if len(prices) != 1 {
			return inv, "", botapi.InvalidArgument("STARS_INVOICE_INVALID")
		}
		if p.String("provider_token") != "" {
			return inv, "", botapi.InvalidArgument("provider_token must be empty for payments in Telegram Stars")
		}
	}
	for _, pr := range prices {
		if pr.Label == "" {
			return inv, "", botapi.InvalidArgument("price label must be non-empty")
		}
		inv.TotalAmount += pr.Amount
	}
	if inv.TotalAmount <= 0 {
		return inv, "", botapi.InvalidArgument("CURRENCY_TOTAL_AMOUNT_INVALID")
	}
	return inv, payload, nil
}

func (s *Server) handleSendInvoice(_ context.Context, call *Call) (any, error) {
	p := call.Params
	out, err := s.prepareSend(p, sendOther)
	if err != nil {
		return nil, err
	}
	inv, payload, err := invoiceParams(p)
	if err != nil {
		return nil, err
	}
	out.msg.Invoice = &inv
	msg, err := s.commit(call, out)
	if err != nil {
		return nil, err
	}
	s.Payments.AddInvoice(store.SentInvoice{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Invoice:   inv,
		Payload:   payload,
	})
	return msg, nil
}

func (s *Server) handleCreateInvoiceLink(_ context.Context, call *Call) (any, error) {
	inv, payload, err := invoiceParams(call.Params)
	if err != nil {
		return nil, err
	}
	return s.Payments.CreateInvoiceLink(inv, payload).URL, nil
}

// checkoutAnswer enforces that a declined checkout explains why.
func checkoutAnswer(p botapi.Params) (bool, string, error) {
	if !p.Has("ok") {
		return false, "", botapi.InvalidArgument("ok is required")
	}
	ok := p.Bool("ok")
	msg := p.String("error_message")
	if !ok && msg == "" {
		return false, "", botapi.InvalidArgument("ERROR_MESSAGE_EMPTY")
	}
	return ok, msg, nil
}

func (s *Server) handleAnswerPreCheckoutQuery(_ context.Context, call *Call) (any, error) {
	p := call.Params
	id := p.String("pre_checkout_query_id")
	ok, msg, err := checkoutAnswer(p)
	if err != nil {
		return nil, err
	}
	if _, err := s.Payments.AnswerPreCheckout(id, ok, msg); err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddCheckoutAnswer(checkout(id, false, ok, msg))
	return true, nil
}

func (s *Server) handleAnswerShippingQuery(_ context.Context, call *Call) (any, error) {
	p := call.Params
	id := p.String("shipping_query_id")
	ok, msg, err := checkoutAnswer(p)
	if err != nil {
		return nil, err
	}
	var options []botapi.ShippingOption
	if _, err := p.Decode("shipping_options", &options); err != nil {
		return nil, botapi.InvalidArgument("can't parse shipping options JSON object")
	}
	if ok && len(options) == 0 {
		return nil, botapi.InvalidArgument("SHIPPING_OPTIONS_EMPTY")
	}
	if _, err := s.Payments.AnswerShipping(id, ok, options, msg); err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddCheckoutAnswer(checkout(id, true, ok, msg))
	return true, nil
}

func checkout(id string, shipping, ok bool, msg string) response.CheckoutAnswer {
	return response.CheckoutAnswer{QueryID: id, Shipping: shipping, OK: ok, ErrorMessage: msg}
}

const maxTransactions = 100

func (s *Server) handleGetStarTransactions(_ context.Context, call *Call) (any, error) {
	p := call.Params
	offset := p.IntOr("offset", 0)
	limit := p.IntOr("limit", maxTransactions)
	if offset < 0 {
		return nil, botapi.InvalidArgument("offset must be non-negative")
	}
	if limit < 1 || limit > maxTransactions {
		return nil, botapi.InvalidArgument("limit must be 1-100")
	}
	// Refunds appear as outgoing entries next to the payments they reverse.
	var all []botapi.StarTransaction
	for _, tx := range s.Payments.Transactions(0, 0) {
		payer := s.memberUser(tx.PayerID)
		all = append(all, botapi.StarTransaction{
			ID:     tx.ChargeID,
			Amount: tx.Amount,
			Date:   tx.Date,
			Source: &botapi.TransactionPartner{Type: "user", User: &payer},
		})
		if tx.Refunded {
			all = append(all, botapi.StarTransaction{
				ID:       tx.ChargeID,
				Amount:   tx.Amount,
				Date:     tx.RefundedAt,
				Receiver: &botapi.TransactionPartner{Type: "user", User: &payer},
			})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date > all[j].Date })
	page := []botapi.StarTransaction{}
	if offset < len(all) {
		page = all[offset:min(offset+limit, len(all))]
	}
	return botapi.StarTransactions{Transactions: page}, nil
}

func (s *Server) handleRefundStarPayment(_ context.Context, call *Call) (any, error) {
	p := call.Params
	u, err := s.resolveUser(p, "user_id")
	if err != nil {
		return nil, err
	}
	charge := p.String("telegram_payment_charge_id")
	if charge == "" {
		return nil, botapi.InvalidArgument("telegram_payment_charge_id is empty")
	}
	if _, err := s.Payments.Refund(u.ID, charge); err != nil {
		return nil, mapStoreErr(err)
	}
	call.Response.AddRefund(charge)
	return true, nil
}
