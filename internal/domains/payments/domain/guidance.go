package domain

import "fmt"

// BankAccount is the operator-configured transfer destination shown in
// ATM guidance.
type BankAccount struct {
	Bank          string
	AccountNumber string
	AccountName   string
}

// Guidance builds the method-specific payment instructions returned to
// the client after checkout. Purely presentational, never authoritative.
func Guidance(m Method, orderID, amount int64, bank BankAccount) map[string]any {
	switch m {
	case MethodMomo:
		return map[string]any{
			"method":    string(MethodMomo),
			"amount":    amount,
			"reference": fmt.Sprintf("MM%d", orderID),
			"note":      "Chuyển khoản MoMo với nội dung là mã tham chiếu",
		}
	case MethodATM:
		return map[string]any{
			"method":        string(MethodATM),
			"amount":        amount,
			"reference":     fmt.Sprintf("DH%d", orderID),
			"bank":          bank.Bank,
			"accountNumber": bank.AccountNumber,
			"accountName":   bank.AccountName,
			"note":          "Chuyển khoản với nội dung là mã tham chiếu",
		}
	case MethodCard:
		return map[string]any{
			"method": string(MethodCard),
			"amount": amount,
			"fields": []string{"cardNumber", "cardExpiry", "cardCvv"},
		}
	default:
		return map[string]any{
			"method": string(MethodCOD),
			"amount": amount,
			"note":   "Thanh toán khi nhận hàng",
		}
	}
}
