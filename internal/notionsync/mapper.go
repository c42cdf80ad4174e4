package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fintrack/internal/domain"
)

// Property names of the Notion transactions database.
const (
	PropDescription       = "Description"
	PropTransactionID     = "Transaction ID"
	PropDate              = "Date"
	PropAmount            = "Amount"
	PropType              = "Type"
	PropCategory          = "Category"
	PropMerchant          = "Merchant"
	PropAccount           = "Account"
	PropIsTransfer        = "Is Transfer"
	PropPotentialTransfer = "Potential Transfer"
	PropLinkedTransaction = "Linked Transaction"
)

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// TransactionToNotionProperties maps a stored transaction to a page of the transactions
// database. Linked Transaction is always written, empty when unlinked, so an unlink
// clears it on the next sync.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: richText(tx.Description),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(tx.ID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: tx.Amount,
		},
		PropIsTransfer: notionapi.CheckboxProperty{
			Checkbox: tx.IsTransfer,
		},
		PropPotentialTransfer: notionapi.CheckboxProperty{
			Checkbox: tx.PotentialTransfer,
		},
		PropLinkedTransaction: notionapi.RichTextProperty{
			RichText: richText(tx.PartnerID()),
		},
	}

	// Dates that never normalized are left blank rather than guessed.
	if d, err := time.Parse("2006-01-02", tx.Date); err == nil {
		start := notionapi.Date(d)
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &start},
		}
	}

	if tx.Type != "" {
		props[PropType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(tx.Type)},
		}
	}
	if tx.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.Category},
		}
	}
	if tx.AccountName != "" {
		props[PropAccount] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: tx.AccountName},
		}
	}
	if tx.Merchant != nil && *tx.Merchant != "" {
		props[PropMerchant] = notionapi.RichTextProperty{
			RichText: richText(*tx.Merchant),
		}
	}

	return props
}

// plainText reads a rich text or title property, "" when absent.
func plainText(page notionapi.Page, name string) string {
	switch prop := page.Properties[name].(type) {
	case *notionapi.RichTextProperty:
		if len(prop.RichText) > 0 {
			return prop.RichText[0].PlainText
		}
	case *notionapi.TitleProperty:
		if len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return ""
}

// extractTransactionID returns the ledger ID a page was created for.
func extractTransactionID(page notionapi.Page) string {
	return plainText(page, PropTransactionID)
}

// extractLinkedID returns the partner ID last written to the page.
func extractLinkedID(page notionapi.Page) string {
	return plainText(page, PropLinkedTransaction)
}
