package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"9876543210", true},
		{"919876543210", true},
		{"123456789012345", true},
		{"987654321", false},
		{"1234567890123456", false},
		{"98765abc10", false},
		{"+919876543210", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidPhone(tt.phone))
		})
	}
}

func TestWallet_Debit(t *testing.T) {
	tests := []struct {
		name    string
		balance string
		amount  string
		want    string
		wantErr error
	}{
		{"exact balance", "100.00", "100.00", "0", nil},
		{"partial", "100.00", "30.50", "69.5", nil},
		{"overdraw", "50.00", "60.00", "50", ErrInsufficientBalance},
		{"too low", "50.00", "0.001", "50", ErrAmountTooLow},
		{"zero", "50.00", "0", "50", ErrAmountTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{Balance: d(tt.balance)}
			err := w.Debit(d(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, d(tt.want).Equal(w.Balance), "balance %s", w.Balance)
		})
	}
}

func TestWallet_Credit_RoundsToTwoPlaces(t *testing.T) {
	w := &Wallet{Balance: d("10.00")}
	require.NoError(t, w.Credit(d("0.015")))
	assert.Equal(t, "10.02", w.Balance.StringFixed(2))

	assert.ErrorIs(t, w.Credit(d("0.001")), ErrAmountTooLow)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusCompleted, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusCompleted, false},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransaction_Transition(t *testing.T) {
	tx := &Transaction{Status: TransactionStatusPending}
	require.NoError(t, tx.Transition(TransactionStatusCompleted))
	assert.Equal(t, TransactionStatusCompleted, tx.Status)

	err := tx.Transition(TransactionStatusCompleted)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TransactionStatusCompleted, te.From)
	assert.Equal(t, TransactionStatusCompleted, tx.Status)
}

func TestTransaction_CompletionCredit(t *testing.T) {
	dep := &Transaction{Type: TransactionTypeDeposit, Amount: d("50")}
	wd := &Transaction{Type: TransactionTypeWithdrawal, Amount: d("50")}

	assert.True(t, d("50").Equal(dep.CompletionCredit()))
	assert.True(t, wd.CompletionCredit().IsZero())
}

// Balance equals completed deposits minus withdrawals created, with pending deposits excluded.
func TestLedgerInvariant_Sequence(t *testing.T) {
	w := &Wallet{Balance: decimal.Zero}
	var history []*Transaction

	deposit := func(amount string) *Transaction {
		tx := &Transaction{Type: TransactionTypeDeposit, Amount: d(amount), Status: TransactionStatusPending}
		history = append(history, tx)
		return tx
	}
	complete := func(tx *Transaction) {
		require.NoError(t, tx.Transition(TransactionStatusCompleted))
		if credit := tx.CompletionCredit(); credit.IsPositive() {
			require.NoError(t, w.Credit(credit))
		}
	}
	withdraw := func(amount string) error {
		if err := w.Debit(d(amount)); err != nil {
			return err
		}
		history = append(history, &Transaction{Type: TransactionTypeWithdrawal, Amount: d(amount), Status: TransactionStatusPending})
		return nil
	}

	d1 := deposit("100")
	assert.True(t, w.Balance.IsZero(), "pending deposit does not move balance")
	complete(d1)
	require.NoError(t, withdraw("30"))
	assert.ErrorIs(t, withdraw("80"), ErrInsufficientBalance)
	d2 := deposit("20.25")
	complete(d2)
	assert.Error(t, d2.Transition(TransactionStatusCompleted), "second completion rejected")
	deposit("999")

	expected := decimal.Zero
	for _, tx := range history {
		switch {
		case tx.Type == TransactionTypeDeposit && tx.Status == TransactionStatusCompleted:
			expected = expected.Add(tx.Amount)
		case tx.Type == TransactionTypeWithdrawal:
			expected = expected.Sub(tx.Amount)
		}
	}
	assert.True(t, expected.Equal(w.Balance), "expected %s got %s", expected, w.Balance)
	assert.Equal(t, "90.25", w.Balance.StringFixed(2))
}

func TestPaymentIntent_Accepts(t *testing.T) {
	p := &PaymentIntent{Amount: d("20")}
	assert.True(t, p.Accepts(d("25")))
	assert.True(t, p.Accepts(d("20.00")))
	assert.False(t, p.Accepts(d("19.99")))
	assert.False(t, p.Accepts(d("19.995")))
	assert.False(t, p.Accepts(d("19.9999999")))
}

func TestCreditAmount_NeverExceedsReceived(t *testing.T) {
	assert.Equal(t, "20.00", CreditAmount(d("20.009")).StringFixed(2))
	assert.Equal(t, "20.00", CreditAmount(d("20.005")).StringFixed(2))
	assert.Equal(t, "25.10", CreditAmount(d("25.1")).StringFixed(2))
}

func TestWebhookCreditID(t *testing.T) {
	id := WebhookCreditID("feedbeef01")
	assert.Equal(t, "webhook:feedbeef01", id)
	assert.True(t, IsReservedTransactionID(id))
	assert.False(t, IsReservedTransactionID("feedbeef01"))
	assert.Equal(t, MaxTransactionIDLength, len(WebhookCreditID(strings.Repeat("a", MaxProviderTxIDLength))))
}

func TestQRCodeURL(t *testing.T) {
	assert.Equal(t, "https://quickchart.io/qr?margin=1&size=300&text=TXyz123", QRCodeURL("TXyz123"))
}

func TestParseOTPRecord(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		code    string
		wantErr bool
	}{
		{"string code", `{"otp":"123456","status":"sent"}`, "123456", false},
		{"numeric code", `{"otp":654321}`, "654321", false},
		{"missing code", `{"status":"sent"}`, "", false},
		{"not json", `oops`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseOTPRecord([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.payload, string(rec.Payload))
		})
	}
}
