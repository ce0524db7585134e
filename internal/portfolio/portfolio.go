// Package portfolio holds the fixed holdings data of the dashboard. The
// values are not persisted anywhere; they feed the portfolio endpoint and the
// assistant's system context.
package portfolio

import (
	"fmt"
	"math"
	"strings"
)

type Category string

const (
	CategoryRealEstate    Category = "Imobiliário"
	CategoryStocks        Category = "Ações Int. & ETFs"
	CategoryLocalEquity   Category = "Ações Nacionais (Bodiva)"
	CategoryBonds         Category = "Obrigações & Tesouro"
	CategoryPrivateEquity Category = "Private Equity"
	CategoryArt           Category = "Arte & Colecionáveis"
	CategoryCrypto        Category = "Criptoativos"
	CategoryCash          Category = "Liquidez & Depósitos"
	CategoryVehicles      Category = "Veículos & Transportes"
)

// USDToAOA is the conversion applied to the offshore holdings.
const USDToAOA = 910

// Asset values are always in AOA; Currency is the denomination of the
// underlying account.
type Asset struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Category          Category `json:"category"`
	Value             float64  `json:"value"`
	Currency          string   `json:"currency"`
	LastValuationDate string   `json:"lastValuationDate"`
	ROI               float64  `json:"roi"`
}

type Alert struct {
	ID             string `json:"id"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Date           string `json:"date"`
	ActionRequired bool   `json:"actionRequired"`
}

type FiscalReserve struct {
	CurrentBalance      float64 `json:"currentBalance"`
	EstimatedObligation float64 `json:"estimatedObligation"`
	NextPaymentDate     string  `json:"nextPaymentDate"`
}

// Provider serves a fixed set of holdings.
type Provider struct {
	assets  []Asset
	alerts  []Alert
	reserve FiscalReserve
}

func New(assets []Asset, alerts []Alert, reserve FiscalReserve) *Provider {
	return &Provider{assets: assets, alerts: alerts, reserve: reserve}
}

// Default returns the provider loaded with the family holdings.
func Default() *Provider {
	return New(defaultAssets(), defaultAlerts(), defaultReserve())
}

func (p *Provider) Assets() []Asset {
	return append([]Asset(nil), p.assets...)
}

func (p *Provider) Alerts() []Alert {
	return append([]Alert(nil), p.alerts...)
}

func (p *Provider) Reserve() FiscalReserve {
	return p.reserve
}

func (p *Provider) TotalWealth() float64 {
	var total float64
	for _, a := range p.assets {
		total += a.Value
	}
	return total
}

// ByCategory sums asset values per category.
func (p *Provider) ByCategory() map[Category]float64 {
	out := make(map[Category]float64)
	for _, a := range p.assets {
		out[a.Category] += a.Value
	}
	return out
}

// Summary renders the holdings as the plain-text block used in the
// assistant's system context.
func (p *Provider) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patrimônio Total: %s\n\n", FormatAOA(p.TotalWealth()))

	b.WriteString("Carteira de Ativos:\n")
	for _, a := range p.assets {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Name, a.Category, FormatAOA(a.Value))
	}

	b.WriteString("\nAlertas Ativos:\n")
	for _, a := range p.alerts {
		fmt.Fprintf(&b, "- [%s] %s\n", strings.ToUpper(a.Severity), a.Message)
	}
	return b.String()
}

// FormatAOA formats an amount in kwanza with no decimals, space grouped,
// e.g. "650 000 000 Kz".
func FormatAOA(v float64) string {
	n := int64(math.Round(v))
	neg := n < 0
	if neg {
		n = -n
	}

	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	b.WriteString(" Kz")
	return b.String()
}
