package domain

// TxType is the direction of a transaction as inferred at extraction time.
type TxType string

const (
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// UnknownAccount is used when the owning account cannot be inferred from the statement.
const UnknownAccount = "Unknown Account"

// Transaction is the normalized record that flows from extraction, through transfer
// matching, into the ledger store.
//
// ID is empty until the record has been written to a store. IsTransfer and LinkedTxID
// always change together: a confirmed transfer carries its partner's persisted ID.
type Transaction struct {
	ID                string  `json:"_id,omitempty"`
	Date              string  `json:"date"`
	Description       string  `json:"description"`
	Amount            float64 `json:"amount"` // income positive, expense negative
	Type              TxType  `json:"type"`
	Category          string  `json:"category"`
	Merchant          *string `json:"merchant,omitempty"`
	AccountName       string  `json:"account_name"`
	IsTransfer        bool    `json:"is_transfer"`
	PotentialTransfer bool    `json:"potential_transfer"`
	LinkedTxID        *string `json:"linked_tx_id"`
}

// Clone returns a deep copy so stores never share pointers with callers.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.Merchant != nil {
		m := *t.Merchant
		c.Merchant = &m
	}
	if t.LinkedTxID != nil {
		l := *t.LinkedTxID
		c.LinkedTxID = &l
	}
	return &c
}

// LinkTo marks t as one side of a confirmed transfer with partnerID.
func (t *Transaction) LinkTo(partnerID string) {
	id := partnerID
	t.IsTransfer = true
	t.LinkedTxID = &id
}

// Unlink clears both transfer fields.
func (t *Transaction) Unlink() {
	t.IsTransfer = false
	t.LinkedTxID = nil
}

// PartnerID returns the linked partner's ID, or "" when unlinked.
func (t *Transaction) PartnerID() string {
	if t.LinkedTxID == nil {
		return ""
	}
	return *t.LinkedTxID
}

// TypeForAmount derives the transaction type from the sign convention.
func TypeForAmount(amount float64) TxType {
	if amount < 0 {
		return TypeExpense
	}
	return TypeIncome
}

// TransferPair is a persisted transfer presented once, with Source as the outgoing side.
type TransferPair struct {
	Source *Transaction `json:"source"`
	Target *Transaction `json:"target"`
}
