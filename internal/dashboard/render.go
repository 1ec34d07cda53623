// Package dashboard renders the reconciled opportunity set as a styled
// terminal table. It is a pure consumer of reconciled state: all diffing and
// emphasis decay happens upstream in the reconcile package.
package dashboard

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"arbdash/internal/domain"
	"arbdash/internal/stream"
)

// Styles.
var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	symbolStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	increasedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	decreasedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	profitStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	alertStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

// Renderer writes the dashboard to out. Safe for concurrent use; renders are
// serialized.
type Renderer struct {
	out io.Writer
	mu  sync.Mutex
}

// NewRenderer creates a Renderer writing to out (normally os.Stdout).
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Render redraws the opportunity table. A disconnected channel and an empty
// set get placeholder lines instead of a table.
func (r *Renderer) Render(status stream.Status, set []domain.ReconciledOpportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder

	// Clear screen and home the cursor.
	b.WriteString("\033[2J\033[H")

	if status != stream.StatusConnected {
		b.WriteString(dimStyle.Render("Connecting to server...") + "\n")
		fmt.Fprint(r.out, b.String())
		return
	}

	if len(set) == 0 {
		b.WriteString(dimStyle.Render("No opportunities found. The scanner is running...") + "\n")
		fmt.Fprint(r.out, b.String())
		return
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"%-12s %-14s %-14s %12s %12s %10s %12s %-8s",
		"PAIR", "BUY", "SELL", "BUY PX", "SELL PX", "SPREAD%", "PROFIT", "TYPE",
	)) + "\n")

	for _, rec := range set {
		spread := rec.SpreadPercentage
		switch rec.Emphasis {
		case domain.EmphasisIncreased:
			spread = increasedStyle.Render(fmt.Sprintf("%10s", spread))
		case domain.EmphasisDecreased:
			spread = decreasedStyle.Render(fmt.Sprintf("%10s", spread))
		default:
			spread = fmt.Sprintf("%10s", spread)
		}

		b.WriteString(fmt.Sprintf(
			"%s %-14s %-14s %12s %12s %s %s %-8s\n",
			symbolStyle.Render(fmt.Sprintf("%-12s", rec.TradingPair.Symbol)),
			rec.BuyExchange.DisplayName,
			rec.SellExchange.DisplayName,
			rec.BuyPrice,
			rec.SellPrice,
			spread,
			profitStyle.Render(fmt.Sprintf("%12s", rec.ProfitAfterFees)),
			rec.MarketType,
		))
	}

	fmt.Fprint(r.out, b.String())
}

// RenderAlert appends an alert line below the table.
func (r *Renderer) RenderAlert(n stream.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", alertStyle.Render("[ALERT]"), n.Message)
}

// RenderSystemMessage appends a system broadcast line below the table.
func (r *Renderer) RenderSystemMessage(m stream.SystemMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", dimStyle.Render("[SYSTEM]"), m.Message)
}
