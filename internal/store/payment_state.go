package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botsim/internal/clock"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// StarTransaction is one star payment received by the bot.
type StarTransaction struct {
	ChargeID   string
	PayerID    int64
	ReceiverID int64
	Amount     int
	Payload    string
	Date       int64
	Refunded   bool
	RefundedAt int64
}

// PreCheckout is a pre-checkout query and the bot's answer to it.
type PreCheckout struct {
	Query        botapi.PreCheckoutQuery
	Answered     bool
	OK           bool
	ErrorMessage string
}

// ShippingAnswer is a shipping query and the bot's answer to it.
type ShippingAnswer struct {
	Query        botapi.ShippingQuery
	Answered     bool
	OK           bool
	Options      []botapi.ShippingOption
	ErrorMessage string
}

// InvoiceLink is a link produced by createInvoiceLink.
type InvoiceLink struct {
	URL     string
	Invoice botapi.Invoice
	Payload string
}

// SentInvoice is an invoice message the bot sent, with its hidden payload.
type SentInvoice struct {
	ChatID    int64
	MessageID int
	Invoice   botapi.Invoice
	Payload   string
}

// PaymentState owns invoices, checkout queries and star transactions.
type PaymentState struct {
	mu           sync.Mutex
	clock        clock.Clock
	preCheckouts map[string]*PreCheckout
	shipping     map[string]*ShippingAnswer
	transactions map[string]*StarTransaction
	order        []string
	invoiceLinks map[string]InvoiceLink
	invoices     map[messageKey]SentInvoice
}

// NewPaymentState creates an empty payment store.
func NewPaymentState(clk clock.Clock) *PaymentState {
	s := &PaymentState{clock: clk}
	s.reset()
	return s
}

func (s *PaymentState) reset() {
	s.preCheckouts = make(map[string]*PreCheckout)
	s.shipping = make(map[string]*ShippingAnswer)
	s.transactions = make(map[string]*StarTransaction)
	s.order = nil
	s.invoiceLinks = make(map[string]InvoiceLink)
	s.invoices = make(map[messageKey]SentInvoice)
}

// Reset drops every payment record.
func (s *PaymentState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// CreateInvoiceLink stores an invoice and returns its shareable link.
func (s *PaymentState) CreateInvoiceLink(inv botapi.Invoice, payload string) InvoiceLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := InvoiceLink{
		URL:     "https://t.me/$" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20],
		Invoice: inv,
		Payload: payload,
	}
	s.invoiceLinks[l.URL] = l
	return l
}

// InvoiceLink returns a stored invoice link.
func (s *PaymentState) InvoiceLink(url string) (InvoiceLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.invoiceLinks[url]
	return l, ok
}

// AddInvoice remembers the payload of an invoice message.
func (s *PaymentState) AddInvoice(inv SentInvoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[messageKey{inv.ChatID, inv.MessageID}] = inv
}

// Invoice returns the invoice sent as the given message.
func (s *PaymentState) Invoice(chatID int64, messageID int) (SentInvoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[messageKey{chatID, messageID}]
	return inv, ok
}

// NewPreCheckout opens a pre-checkout query for the bot to answer.
func (s *PaymentState) NewPreCheckout(from botapi.User, currency string, amount int, payload string) botapi.PreCheckoutQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := botapi.PreCheckoutQuery{
		ID:             uuid.NewString(),
		From:           from,
		Currency:       currency,
		TotalAmount:    amount,
		InvoicePayload: payload,
	}
	s.preCheckouts[q.ID] = &PreCheckout{Query: q}
	return q
}

// AnswerPreCheckout records the bot's answer. Each query is answered once.
func (s *PaymentState) AnswerPreCheckout(id string, ok bool, errMsg string) (PreCheckout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, found := s.preCheckouts[id]
	if !found {
		return PreCheckout{}, ErrQueryNotFound
	}
	if pc.Answered {
		return PreCheckout{}, ErrQueryAnswered
	}
	pc.Answered = true
	pc.OK = ok
	pc.ErrorMessage = errMsg
	return *pc, nil
}

// PreCheckout returns a pre-checkout query with its answer state.
func (s *PaymentState) PreCheckout(id string) (PreCheckout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.preCheckouts[id]
	if !ok {
		return PreCheckout{}, false
	}
	return *pc, true
}

// NewShippingQuery opens a shipping query for the bot to answer.
func (s *PaymentState) NewShippingQuery(from botapi.User, payload string, addr botapi.ShippingAddress) botapi.ShippingQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := botapi.ShippingQuery{ID: uuid.NewString(), From: from, InvoicePayload: payload, ShippingAddress: addr}
	s.shipping[q.ID] = &ShippingAnswer{Query: q}
	return q
}

// AnswerShipping records the bot's shipping answer. Each query is answered once.
func (s *PaymentState) AnswerShipping(id string, ok bool, options []botapi.ShippingOption, errMsg string) (ShippingAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sa, found := s.shipping[id]
	if !found {
		return ShippingAnswer{}, ErrQueryNotFound
	}
	if sa.Answered {
		return ShippingAnswer{}, ErrQueryAnswered
	}
	sa.Answered = true
	sa.OK = ok
	sa.Options = options
	sa.ErrorMessage = errMsg
	return *sa, nil
}

// RecordStarPayment stores a completed star payment from payer to receiver.
func (s *PaymentState) RecordStarPayment(payerID, receiverID int64, amount int, payload string) StarTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &StarTransaction{
		ChargeID:   "stxn_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		PayerID:    payerID,
		ReceiverID: receiverID,
		Amount:     amount,
		Payload:    payload,
		Date:       s.clock.Now().Unix(),
	}
	s.transactions[tx.ChargeID] = tx
	s.order = append(s.order, tx.ChargeID)
	return *tx
}

// Transaction returns one transaction by charge id.
func (s *PaymentState) Transaction(chargeID string) (StarTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[chargeID]
	if !ok {
		return StarTransaction{}, false
	}
	return *tx, true
}

// Transactions lists transactions newest first, skipping offset and returning at
// most limit entries (0 = all).
func (s *PaymentState) Transactions(offset, limit int) []StarTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StarTransaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.transactions[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Refund marks a charge refunded. The charge must belong to userID and can be
// refunded only once.
func (s *PaymentState) Refund(userID int64, chargeID string) (StarTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[chargeID]
	if !ok {
		return StarTransaction{}, ErrTransactionNotFound
	}
	if tx.PayerID != userID {
		return StarTransaction{}, ErrChargeUserMismatch
	}
	if tx.Refunded {
		return StarTransaction{}, ErrAlreadyRefunded
	}
	tx.Refunded = true
	tx.RefundedAt = s.clock.Now().Unix()
	return *tx, nil
}
