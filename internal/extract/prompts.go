package extract

// dataExtractionPrompt is sent ahead of the raw statement text.
const dataExtractionPrompt = "You are a financial data extraction assistant.\n" +
	"Extract transactions from the provided raw text into a JSON list.\n" +
	"Each item in the list must have these fields:\n" +
	"- \"date\": string (ISO format \"YYYY-MM-DD\" if possible, otherwise as it appears)\n" +
	"- \"description\": string (original description)\n" +
	"- \"amount\": number (positive for income, negative for expense)\n" +
	"- \"type\": string (\"income\" or \"expense\")\n" +
	"- \"category\": string (infer a category like \"Food\", \"Transport\", \"Utilities\", \"Salary\", \"Transfer\")\n" +
	"- \"merchant\": string or null (merchant name)\n" +
	"- \"account_name\": string (MANDATORY: infer the account, e.g. \"Chase Checking\", \"Amex Gold\". " +
	"If not stated, use \"Unknown Account\")\n" +
	"- \"is_transfer\": boolean (true if the transaction looks like a transfer between the user's own accounts, " +
	"e.g. \"Payment to Credit Card\", \"Transfer to Savings\")\n" +
	"- \"potential_transfer\": boolean (true if the description contains keywords like \"Transfer\", \"Acct\", " +
	"\"Savings\", \"IRA\", \"Investment\", \"EFT\", \"Contribution\")\n\n" +
	"Rules:\n" +
	"- If the text is messy, do your best to identify transaction rows.\n" +
	"- Ignore header or footer lines that are not transactions.\n" +
	"- If the statement has separate \"paid out\" / \"paid in\" columns, convert to a single signed \"amount\".\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// commandInterpreterPrompt classifies a chat message as a bulk category update or not.
const commandInterpreterPrompt = "You are a command interpreter for a finance tracker.\n" +
	"Decide whether the user's message asks to update transaction categories in bulk.\n\n" +
	"If it IS a bulk update request (e.g. \"Change Walmart to Groceries\", \"Update all Uber rides to Transport\"), " +
	"return a JSON object with:\n" +
	"- \"vendor_keyword\": the keyword to match in the description (e.g. \"Walmart\", \"Uber\")\n" +
	"- \"new_category\": the category to assign (e.g. \"Groceries\", \"Transport\")\n\n" +
	"If it is NOT a bulk update request (e.g. \"How much did I spend?\", \"Hello\"), return null.\n\n" +
	"Output ONLY the JSON object or null.\n"

func extractionPrompt(rawText string) string {
	return dataExtractionPrompt + "\nDATA:\n" + rawText
}

func commandPrompt(message string) string {
	return commandInterpreterPrompt + "\nUSER MESSAGE: " + message
}
