package models

// Currency is only a labelling preference: amounts are never converted.
type Currency struct {
	Code   string
	Symbol string
	Prefix bool
}

var currencies = []Currency{
	{Code: "UZS", Symbol: "so'm"},
	{Code: "USD", Symbol: "$", Prefix: true},
	{Code: "EUR", Symbol: "€"},
	{Code: "RUB", Symbol: "₽"},
	{Code: "KZT", Symbol: "₸"},
	{Code: "TRY", Symbol: "₺"},
	{Code: "CNY", Symbol: "¥"},
}

func Currencies() []Currency {
	out := make([]Currency, len(currencies))
	copy(out, currencies)
	return out
}

func LookupCurrency(code string) (Currency, bool) {
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

func IsLanguage(lang string) bool {
	return lang == LangUz || lang == LangRu || lang == LangEn
}
