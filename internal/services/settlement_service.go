package services

import (
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/coinvault/backend/internal/models"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

// SettlementService converts completed wire-transfer withdrawals into
// ISO 20022 pacs.008 credit-transfer messages for the banking settlement
// boundary.
type SettlementService struct{}

func NewSettlementService() *SettlementService {
	return &SettlementService{}
}

// ExportWithdrawal builds and sends the pacs.008 message for a completed
// withdrawal.
func (s *SettlementService) ExportWithdrawal(t *models.Transaction) error {
	doc, err := s.CreatePacs008(t)
	if err != nil {
		return err
	}
	return s.SendToSettlement(doc)
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
// from a withdrawal transaction. Creditor details come from the
// transaction's payment details when present.
func (s *SettlementService) CreatePacs008(t *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if t.Type != models.TypeWithdrawal {
		return nil, fmt.Errorf("settlement export only applies to withdrawals, got %s", t.Type)
	}
	// pacs.008 carries ISO 4217 currency codes; BTC withdrawals settle
	// on-chain and never cross the banking boundary.
	if t.Currency != models.CurrencyUSD {
		return nil, fmt.Errorf("settlement export only applies to USD withdrawals, got %s", t.Currency)
	}

	msgID := uuid.New().String()
	now := time.Now()
	amount := t.Amount.InexactFloat64()

	endToEndID := t.Reference
	if endToEndID == "" {
		endToEndID = t.ID
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(t.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&now),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(t.ID)}[0],
					EndToEndId: common.Max35Text(endToEndID),
					TxId:       &[]common.Max35Text{common.Max35Text(t.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(t.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&now),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("COINVLT")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(t.UserID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(s.detail(t, "routingNumber", "UNKNOWN")),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(s.detail(t, "bankAccountNumber", t.UserID))}[0],
				},
			},
		},
	}

	return doc, nil
}

// SendToSettlement serializes the message for the settlement system.
func (s *SettlementService) SendToSettlement(doc any) error {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal XML: %w", err)
	}

	// TODO: deliver to the bank's settlement endpoint once credentials are provisioned
	log.Printf("[SETTLEMENT] Sending message (%d bytes)", len(xmlData))
	return nil
}

// ConvertToXML converts an ISO 20022 document to an XML string.
func (s *SettlementService) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}

func (s *SettlementService) detail(t *models.Transaction, key, fallback string) string {
	if t.PaymentDetails != nil {
		if v, ok := t.PaymentDetails[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}
