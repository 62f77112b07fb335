package services

import "github.com/shopspring/decimal"

type CategoryShare struct {
	Key    string
	Share  decimal.Decimal
	Amount int64
}

// BudgetPlan is advice only; nothing but the income is persisted.
type BudgetPlan struct {
	Income     int64
	Needs      int64
	Wants      int64
	Savings    int64
	Categories []CategoryShare
}

var (
	needsShare   = decimal.RequireFromString("0.50")
	wantsShare   = decimal.RequireFromString("0.30")
	savingsShare = decimal.RequireFromString("0.20")
)

// category keys double as catalog keys (budget_cat_<key>)
var categoryShares = []struct {
	key   string
	share decimal.Decimal
}{
	{"housing", decimal.RequireFromString("0.25")},
	{"food", decimal.RequireFromString("0.15")},
	{"transport", decimal.RequireFromString("0.10")},
	{"health", decimal.RequireFromString("0.05")},
	{"leisure", decimal.RequireFromString("0.15")},
	{"savings", decimal.RequireFromString("0.20")},
	{"other", decimal.RequireFromString("0.10")},
}

func part(income decimal.Decimal, share decimal.Decimal) int64 {
	return income.Mul(share).Round(0).IntPart()
}

// RecommendBudget derives the 50/30/20 split and the seven-category split of a monthly income.
func RecommendBudget(income int64) BudgetPlan {
	in := decimal.NewFromInt(income)
	plan := BudgetPlan{
		Income:  income,
		Needs:   part(in, needsShare),
		Wants:   part(in, wantsShare),
		Savings: part(in, savingsShare),
	}
	for _, c := range categoryShares {
		plan.Categories = append(plan.Categories, CategoryShare{
			Key:    c.key,
			Share:  c.share,
			Amount: part(in, c.share),
		})
	}
	return plan
}
