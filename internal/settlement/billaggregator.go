package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// BillAggregator pays bills through a bill aggregator.
//
// The aggregator has no idempotency support, so a call is never repeated.
type BillAggregator struct {
	client client
}

// NewBillAggregator returns a BillAggregator adapter for the API at baseURL.
func NewBillAggregator(baseURL, apiKey string, httpClient *http.Client) *BillAggregator {
	return &BillAggregator{client: newClient(baseURL, apiKey, httpClient)}
}

type billPaymentRequest struct {
	RequestID  string            `json:"requestId"`
	BillerCode string            `json:"billerCode"`
	CustomerID string            `json:"customerId"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Extra      map[string]string `json:"extra,omitempty"`
}

type billPaymentResponse struct {
	ResponseCode        string `json:"responseCode"`
	ResponseDescription string `json:"responseDescription"`
	PaymentReference    string `json:"paymentReference"`
}

// billApproved is the aggregator response code of a successful payment.
const billApproved = "00"

// Name implements Provider.
func (b *BillAggregator) Name() string { return "billaggregator" }

// RetrySafe implements Provider.
func (b *BillAggregator) RetrySafe() bool { return false }

// PayBill implements BillPayer.
func (b *BillAggregator) PayBill(ctx context.Context, arg domain.PayBillParams) (domain.SettlementResult, error) {
	req := billPaymentRequest{
		RequestID:  arg.IdempotencyKey,
		BillerCode: arg.Biller,
		CustomerID: arg.Metadata["customer_id"],
		Amount:     arg.Amount,
		Currency:   arg.Currency,
		Extra:      arg.Metadata,
	}

	raw, code, err := b.client.post(ctx, "/payments", arg.IdempotencyKey, req)
	if err != nil {
		return domain.SettlementResult{}, err
	}

	var resp billPaymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return domain.SettlementResult{}, fmt.Errorf("failed to decode bill payment response: %w", err)
	}

	result := domain.SettlementResult{
		Provider:          b.Name(),
		ProviderReference: resp.PaymentReference,
		Status:            domain.SettlementRejected,
		RawResponse:       raw,
	}

	if isSuccess(code) && resp.ResponseCode == billApproved {
		result.Status = domain.SettlementAccepted
	}

	return result, nil
}
