package portfolio

func defaultAssets() []Asset {
	return []Asset{
		{ID: "prop_1", Name: "Residência Ingombotas (Rua Nicolau G Spencer)", Category: CategoryRealEstate, Value: 650000000, Currency: "AOA", LastValuationDate: "2025-12-01", ROI: 0.08},
		{ID: "prop_2", Name: "Casa Jardim do Éden (Arrendada)", Category: CategoryRealEstate, Value: 125000000, Currency: "AOA", LastValuationDate: "2026-01-20", ROI: 0.0216},
		{ID: "veh_1", Name: "Ford Escort", Category: CategoryVehicles, Value: 7000000, Currency: "AOA", LastValuationDate: "2026-01-20", ROI: -0.10},
		{ID: "ibkr_1", Name: "Interactive Brokers Portfolio (SCHD, KBWY, VXUS)", Category: CategoryStocks, Value: 3155.62 * USDToAOA, Currency: "USD", LastValuationDate: "2026-01-09", ROI: 0.081},
		{ID: "chevron_1", Name: "Chevron FCU (Checking/Savings/CDs)", Category: CategoryCash, Value: 2379.92 * USDToAOA, Currency: "USD", LastValuationDate: "2025-12-31", ROI: 0.038},
		{ID: "bai_dp_1", Name: "BAI Depósitos a Prazo (Mobile)", Category: CategoryCash, Value: 1160000, Currency: "AOA", LastValuationDate: "2026-01-06", ROI: 0.025},
		{ID: "bic_dp_1", Name: "Banco BIC Depósito a Prazo", Category: CategoryCash, Value: 7000000, Currency: "AOA", LastValuationDate: "2026-01-09", ROI: 0.14},
		{ID: "std_fund_1", Name: "Standard Bank Carteira (Tesouraria/Obrigações)", Category: CategoryBonds, Value: 2647984, Currency: "AOA", LastValuationDate: "2026-01-26", ROI: 0.095},
		{ID: "bfa_eq_1", Name: "BFA Custódia Ações (BAI + BCGA)", Category: CategoryLocalEquity, Value: 379717, Currency: "AOA", LastValuationDate: "2026-01-09", ROI: 0.12},
		{ID: "bfa_bonds_1", Name: "BFA Carteira Obrigações do Tesouro (OTs)", Category: CategoryBonds, Value: 45000000, Currency: "AOA", LastValuationDate: "2026-01-10", ROI: 0.175},
	}
}

func defaultAlerts() []Alert {
	return []Alert{
		{ID: "a1", Severity: "info", Message: "Cupão OT-2026 (OI15J30C) pago: 303.025,00 AOA", Date: "2026-01-15"},
		{ID: "a2", Severity: "warning", Message: "Revolut: Transferência $800 para IBKR confirmada.", Date: "2026-01-07"},
		{ID: "a3", Severity: "info", Message: "BFA: Compra de Títulos Bodiva executada.", Date: "2026-01-08"},
		{ID: "a4", Severity: "error", Message: "Vencimento Depósito BIC em 09/01/2026. Necessária instrução.", Date: "2026-01-08", ActionRequired: true},
	}
}

func defaultReserve() FiscalReserve {
	return FiscalReserve{
		CurrentBalance:      900000,
		EstimatedObligation: 50918,
		NextPaymentDate:     "2026-01-31",
	}
}
