package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"tycoon/internal/api"
	"tycoon/internal/game"
	"tycoon/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader           = bufio.NewReader(os.Stdin)
	stdout      io.Writer = os.Stdout
	accent                = color.New(color.FgCyan, color.Bold)
	success               = color.New(color.FgGreen, color.Bold)
	warn                  = color.New(color.FgYellow, color.Bold)
	danger                = color.New(color.FgRed, color.Bold)
	neutral               = color.New(color.FgHiWhite)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func printSuccess(msg string) {
	success.Fprintln(stdout, msg)
}

func printWarn(msg string) {
	warn.Fprintln(stdout, msg)
}

func printError(msg string) {
	danger.Fprintln(stdout, msg)
}

func printInfo(msg string) {
	neutral.Fprintln(stdout, msg)
}

func readLine() (string, error) {
	text, err := stdinReader.ReadString('\n')
	if err != nil && !(err == io.EOF && text != "") {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Fprintf(stdout, "%s: ", label)
		text, err := readLine()
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]string, len(options)*2)
	for _, opt := range options {
		opt = strings.ToLower(strings.TrimSpace(opt))
		normalized[opt] = opt
		if _, taken := normalized[opt[:1]]; !taken {
			normalized[opt[:1]] = opt
		}
	}
	for {
		fmt.Fprintf(stdout, "%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := readLine()
		if err != nil {
			return "", err
		}
		text = strings.ToLower(text)
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if opt, ok := normalized[text]; ok {
			return opt, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt(label string, def int) (int, error) {
	for {
		fmt.Fprintf(stdout, "%s [%d]: ", label, def)
		text, err := readLine()
		if err != nil {
			return 0, err
		}
		if text == "" {
			return def, nil
		}
		v, err := strconv.Atoi(strings.ReplaceAll(text, ",", ""))
		if err != nil || v < 0 {
			printWarn("Enter a whole number >= 0.")
			continue
		}
		return v, nil
	}
}

func promptMoney(label string, def float64) (float64, error) {
	for {
		fmt.Fprintf(stdout, "%s [%s]: ", label, humanize.FormatFloat("#,###.##", def))
		text, err := readLine()
		if err != nil {
			return 0, err
		}
		if text == "" {
			return def, nil
		}
		text = strings.TrimPrefix(strings.ReplaceAll(text, ",", ""), "$")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			printWarn("Enter an amount >= 0.")
			continue
		}
		return v, nil
	}
}

func promptConfirm(label string, def bool) (bool, error) {
	defText := "n"
	if def {
		defText = "y"
	}
	choice, err := promptChoice(label, []string{"yes", "no"}, defText)
	if err != nil {
		return false, err
	}
	return choice == "yes", nil
}

// promptDecision walks the player through one turn's choices. Price
// defaults to the current price tag.
func promptDecision(d game.Dashboard) (game.Decision, error) {
	var out game.Decision
	var err error
	p := d.Player

	if out.Hire, err = promptInt("Workers to hire", 0); err != nil {
		return out, err
	}
	if p.Workers > 0 {
		if out.Fire, err = promptInt("Workers to fire", 0); err != nil {
			return out, err
		}
	}
	capacity := max(p.Workers+out.Hire-out.Fire, 0) * p.ProdPerWorker
	if out.Produce, err = promptInt(fmt.Sprintf("Units to produce (capacity now %d)", capacity), capacity); err != nil {
		return out, err
	}
	if out.Price, err = promptMoney("Sale price", game.MicrosToDollars(p.PriceMicros)); err != nil {
		return out, err
	}
	if out.MarketingSpend, err = promptMoney(fmt.Sprintf("Marketing spend (next level %s)", formatMicros(p.NextMarketingCostMicros)), 0); err != nil {
		return out, err
	}
	if out.RndSpend, err = promptMoney(fmt.Sprintf("R&D spend (%s per point)", formatMicros(p.RndCostPerPointMicros)), 0); err != nil {
		return out, err
	}
	if out.RndSpend > 0 || p.RndPoints > 0 {
		choice, err := promptChoice("Breakthrough goes to", []string{"quality", "cost"}, "quality")
		if err != nil {
			return out, err
		}
		if out.Breakthrough, err = game.ParseBreakthroughChoice(choice); err != nil {
			return out, err
		}
	}
	if out.LoanDraw, err = promptMoney(fmt.Sprintf("Loan draw (limit %s)", formatMicros(p.MaxLoanMicros)), 0); err != nil {
		return out, err
	}
	if p.LoanMicros > 0 {
		if out.LoanRepay, err = promptMoney(fmt.Sprintf("Loan repayment (owed %s)", formatMicros(p.LoanMicros)), 0); err != nil {
			return out, err
		}
	}
	return out, nil
}

func renderDashboard(d game.Dashboard) {
	p := d.Player
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("%s · Turn %d/%d", p.Name, d.Turn, d.MaxTurns)))
	fmt.Fprintf(&b, "Cash        %s\n", formatMicros(p.CashMicros))
	fmt.Fprintf(&b, "Loan        %s %s\n", formatMicros(p.LoanMicros), dimStyle.Render("(limit "+formatMicros(p.MaxLoanMicros)+")"))
	fmt.Fprintf(&b, "Inventory   %d units @ %s\n", p.InventoryUnits, formatMicros(p.InventoryValueMicros))
	fmt.Fprintf(&b, "Net worth   %s %s\n", colorizeMicros(p.NetWorthMicros), dimStyle.Render("(target "+formatMicros(d.TargetNetWorthMicros)+")"))
	fmt.Fprintf(&b, "Workers     %d %s\n", p.Workers, dimStyle.Render(fmt.Sprintf("(capacity %d)", p.Capacity)))
	fmt.Fprintf(&b, "Unit cost   %s   Price %s\n", formatMicros(p.UnitCostMicros), formatMicros(p.PriceMicros))
	fmt.Fprintf(&b, "Quality     %s\n", levelBar(p.Quality))
	fmt.Fprintf(&b, "Marketing   %s\n", levelBar(p.Marketing))
	fmt.Fprintf(&b, "R&D points  %d\n", p.RndPoints)
	fmt.Fprintf(&b, "Last sold   %s units   Total net income %s", humanize.Comma(int64(p.LastUnitsSold)), colorizeMicros(p.TotalNetIncomeMicros))
	fmt.Fprintln(stdout, panelStyle.Render(b.String()))

	c := d.Climate
	fmt.Fprintf(stdout, "Market trend %s   wage index %s\n", trendText(c.Trend), strconv.FormatFloat(c.WageIndex, 'f', 2, 64))
	if c.Event != "" {
		warn.Fprintf(stdout, "News: %s\n", c.EventMessage)
	}
	if d.Market.AveragePrice > 0 {
		fmt.Fprintf(stdout, "Average price %s   last demand %s units (%s unmet)\n",
			formatDollars(d.Market.AveragePrice), humanize.Comma(int64(d.Market.LastTotalDemand)), humanize.Comma(int64(d.Market.LastLostDemand)))
	}

	if len(d.Rivals) > 0 {
		fmt.Fprintln(stdout)
		accent.Fprintln(stdout, "Competitors")
		fmt.Fprintf(stdout, "%-22s %12s %8s %10s %10s\n", "NAME", "PRICE", "QUALITY", "MARKETING", "LAST SOLD")
		for _, r := range d.Rivals {
			fmt.Fprintf(stdout, "%-22s %12s %8d %10d %10s\n",
				truncate(r.Name, 22), formatMicros(r.PriceMicros), r.Quality, r.Marketing, humanize.Comma(int64(r.LastUnitsSold)))
		}
	}
	fmt.Fprintln(stdout)
}

func renderWarnings(ws []game.ClampWarning) {
	for _, w := range ws {
		warn.Fprintf(stdout, "  ! %s\n", w.String())
	}
}

func renderTurn(res api.TurnResult) {
	st := res.Statement
	accent.Fprintf(stdout, "\n== TURN %d RESULTS ==\n", res.Turn)
	if res.Conditions.Event.Kind != game.EventNone {
		warn.Fprintf(stdout, "News: %s\n", res.Conditions.Event.String())
	}
	renderWarnings(res.Command.Warnings)
	fmt.Fprintf(stdout, "Market demand   %s units, %s sold, %s unmet\n",
		humanize.Comma(int64(res.Market.TotalDemand)), humanize.Comma(int64(res.Market.UnitsSold)), humanize.Comma(int64(res.Market.LostDemand)))
	fmt.Fprintf(stdout, "Produced        %s units\n", humanize.Comma(int64(st.UnitsProduced)))
	fmt.Fprintf(stdout, "Sold            %s of %s demanded @ %s (share %s)\n",
		humanize.Comma(int64(st.UnitsSold)), humanize.Comma(int64(st.UnitsDemanded)), formatDollars(st.Price), percent(st.Share))
	fmt.Fprintf(stdout, "Revenue         %s\n", formatDollars(st.Revenue))
	fmt.Fprintf(stdout, "Cost of goods   %s\n", formatDollars(-st.COGS))
	fmt.Fprintf(stdout, "Salaries        %s\n", formatDollars(-st.Salaries))
	if st.HiringCost+st.FiringCost > 0 {
		fmt.Fprintf(stdout, "Hiring/firing   %s\n", formatDollars(-(st.HiringCost + st.FiringCost)))
	}
	if st.Marketing > 0 {
		fmt.Fprintf(stdout, "Marketing       %s (+%d levels)\n", formatDollars(-st.Marketing), st.MarketingLevels)
	}
	if st.Rnd > 0 {
		fmt.Fprintf(stdout, "R&D             %s (+%d points)\n", formatDollars(-st.Rnd), st.RndPointsGained)
	}
	if st.LoanInterest > 0 {
		fmt.Fprintf(stdout, "Loan interest   %s\n", formatDollars(-st.LoanInterest))
	}
	if st.InterestEarned > 0 {
		fmt.Fprintf(stdout, "Interest earned %s\n", formatDollars(st.InterestEarned))
	}
	fmt.Fprintf(stdout, "Net income      %s\n", colorizeDollars(st.NetIncome))
	for _, b := range st.Breakthroughs {
		success.Fprintf(stdout, "Breakthrough: %s\n", breakthroughText(b))
	}
	for _, r := range res.Respawns {
		printWarn(fmt.Sprintf("%s went bankrupt; %s takes its place.", r.OldName, r.NewName))
	}
	if st.Bankrupt {
		printError("Your company is bankrupt.")
	}
	fmt.Fprintln(stdout)
}

func renderOutcome(outcome game.Outcome, d game.Dashboard) {
	switch outcome {
	case game.OutcomeWon:
		printSuccess(fmt.Sprintf("You reached %s net worth on turn %d. You win!", formatMicros(d.Player.NetWorthMicros), d.Turn-1))
	case game.OutcomeBankrupt:
		printError("Game over: bankrupt.")
	case game.OutcomeTimeUp:
		printWarn(fmt.Sprintf("Time is up. Final net worth %s against a target of %s.",
			formatMicros(d.Player.NetWorthMicros), formatMicros(d.TargetNetWorthMicros)))
	}
}

func renderSaves(saves []store.SaveInfo) {
	accent.Fprintln(stdout, "\n== SAVES ==")
	if len(saves) == 0 {
		printInfo("No saved games.")
		return
	}
	fmt.Fprintf(stdout, "%-24s %9s %-12s %14s %s\n", "NAME", "TURN", "OUTCOME", "NET WORTH", "SAVED")
	for _, s := range saves {
		fmt.Fprintf(stdout, "%-24s %9s %-12s %14s %s\n",
			truncate(s.Name, 24),
			fmt.Sprintf("%d/%d", s.Turn, s.MaxTurns),
			s.Outcome,
			formatMicros(s.NetWorthMicros),
			humanize.Time(s.SavedAt),
		)
	}
	fmt.Fprintln(stdout)
}

func renderStandings(name string, standings []store.Standing) {
	accent.Fprintf(stdout, "\n== %s ==\n", strings.ToUpper(name))
	fmt.Fprintf(stdout, "%-3s %-22s %14s %12s %10s %8s %10s\n", "#", "FIRM", "NET WORTH", "CASH", "PRICE", "QUALITY", "MARKETING")
	for i, st := range standings {
		label := st.Name
		if !st.AI {
			label += " *"
		}
		fmt.Fprintf(stdout, "%-3d %-22s %14s %12s %10s %8d %10d\n",
			i+1, truncate(label, 22), colorizeMicros(st.NetWorthMicros), formatMicros(st.CashMicros),
			formatMicros(st.PriceMicros), st.Quality, st.Marketing)
	}
	fmt.Fprintln(stdout)
}

func levelBar(level int) string {
	level = min(max(level, 0), game.MaxLevel)
	return fmt.Sprintf("%s%s %d/%d", strings.Repeat("■", level), dimStyle.Render(strings.Repeat("□", game.MaxLevel-level)), level, game.MaxLevel)
}

func trendText(trend float64) string {
	text := strconv.FormatFloat(trend, 'f', 2, 64)
	switch {
	case trend > 1.05:
		return success.Sprint(text + " ↑")
	case trend < 0.95:
		return danger.Sprint(text + " ↓")
	default:
		return neutral.Sprint(text)
	}
}

func breakthroughText(b game.BreakthroughChoice) string {
	if b == game.BreakthroughCost {
		return "production cost reduced"
	}
	return "product quality improved"
}

func colorizeMicros(v int64) string {
	text := formatMicros(v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizeDollars(v float64) string {
	return colorizeMicros(game.DollarsToMicros(v))
}

func formatMicros(v int64) string {
	return formatDollars(game.MicrosToDollars(v))
}

func formatDollars(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", v)
}

func percent(v float64) string {
	return humanize.FtoaWithDigits(v*100, 1) + "%"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
