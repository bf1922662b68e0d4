package metrics

import (
	"io"
	"math"
	"strconv"
	"text/template"
)

var reportFuncs = template.FuncMap{
	"pf": func(x float64) string {
		if math.IsInf(x, +1) {
			return "inf"
		}
		return strconv.FormatFloat(x, 'f', 2, 64)
	},
}

// WriteReport renders r as a plain-text summary.
func WriteReport(w io.Writer, r Report) error {
	t, err := template.New("report").Funcs(reportFuncs).Parse(reportTemplate)
	if err != nil {
		return err
	}
	return t.Execute(w, r)
}

const reportTemplate = `BACKTEST SUMMARY
================
Initial capital:    {{printf "%.2f" .InitialCapital}}
Final capital:      {{printf "%.2f" .FinalCapital}}
Total return:       {{printf "%.2f" .TotalReturnPct}}%
Annualized return:  {{printf "%.2f" .AnnualizedReturnPct}}%

Trades:             {{.Trades}} ({{.Wins}} wins / {{.Losses}} losses)
Win rate:           {{printf "%.2f" .WinRatePct}}%
Avg trade:          {{printf "%.2f" .AvgTradePct}}%
Best trade:         {{printf "%.2f" .BestTradePct}}%
Worst trade:        {{printf "%.2f" .WorstTradePct}}%
Avg hold:           {{printf "%.1f" .AvgHoldDays}} days
Profit factor:      {{pf .ProfitFactor}}

Volatility (ann.):  {{printf "%.2f" .VolatilityPct}}%
Sharpe:             {{printf "%.2f" .Sharpe}}
Max drawdown:       {{printf "%.2f" .MaxDrawdownPct}}% over {{.MaxDrawdownPeriods}} periods
Calmar:             {{printf "%.2f" .Calmar}}
`
