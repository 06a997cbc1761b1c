package services

import (
	"strings"
	"testing"

	"github.com/coinvault/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSettlementService_CreatePacs008(t *testing.T) {
	s := NewSettlementService()

	t.Run("builds a credit transfer from a withdrawal", func(t *testing.T) {
		transaction := &models.Transaction{
			ID:        "tx-1",
			UserID:    "user-1",
			Type:      models.TypeWithdrawal,
			Amount:    decimal.RequireFromString("250.75"),
			Currency:  models.CurrencyUSD,
			Status:    models.StatusCompleted,
			Method:    "wireTransfer",
			Reference: "wire-000123",
			PaymentDetails: map[string]any{
				"routingNumber":     "021000021",
				"bankAccountNumber": "000123456789",
			},
		}

		doc, err := s.CreatePacs008(transaction)

		assert.NoError(t, err)
		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, "USD", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
		assert.InDelta(t, 250.75, doc.GrpHdr.TtlIntrBkSttlmAmt.Value, 0.001)
		assert.Len(t, doc.CdtTrfTxInf, 1)

		tx := doc.CdtTrfTxInf[0]
		assert.Equal(t, "wire-000123", string(tx.PmtId.EndToEndId))
		assert.Equal(t, "tx-1", string(*tx.PmtId.TxId))
		assert.Equal(t, "021000021", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
		assert.Equal(t, "000123456789", string(*tx.Cdtr.Nm))
	})

	t.Run("falls back to the transaction ID without a reference", func(t *testing.T) {
		transaction := &models.Transaction{
			ID:       "tx-2",
			UserID:   "user-1",
			Type:     models.TypeWithdrawal,
			Amount:   decimal.NewFromInt(10),
			Currency: models.CurrencyUSD,
		}

		doc, err := s.CreatePacs008(transaction)

		assert.NoError(t, err)
		tx := doc.CdtTrfTxInf[0]
		assert.Equal(t, "tx-2", string(tx.PmtId.EndToEndId))
		assert.Equal(t, "UNKNOWN", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	})

	t.Run("rejects non-USD withdrawals", func(t *testing.T) {
		_, err := s.CreatePacs008(&models.Transaction{
			ID:       "tx-4",
			Type:     models.TypeWithdrawal,
			Amount:   decimal.NewFromInt(1),
			Currency: models.CurrencyBTC,
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "only applies to USD withdrawals")
	})

	t.Run("rejects deposits", func(t *testing.T) {
		_, err := s.CreatePacs008(&models.Transaction{
			ID:     "tx-3",
			Type:   models.TypeDeposit,
			Amount: decimal.NewFromInt(10),
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "only applies to withdrawals")
	})
}

func TestSettlementService_ConvertToXML(t *testing.T) {
	s := NewSettlementService()

	transaction := &models.Transaction{
		ID:       "tx-1",
		UserID:   "user-1",
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(100),
		Currency: models.CurrencyUSD,
	}

	doc, err := s.CreatePacs008(transaction)
	assert.NoError(t, err)

	xmlStr, err := s.ConvertToXML(doc)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlStr, "<?xml"))
	assert.Contains(t, xmlStr, "USD")
}

func TestSettlementService_ExportWithdrawal(t *testing.T) {
	s := NewSettlementService()

	err := s.ExportWithdrawal(&models.Transaction{
		ID:       "tx-1",
		UserID:   "user-1",
		Type:     models.TypeWithdrawal,
		Amount:   decimal.NewFromInt(50),
		Currency: models.CurrencyUSD,
	})

	assert.NoError(t, err)
}
