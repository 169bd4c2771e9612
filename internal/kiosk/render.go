package kiosk

import (
	"fmt"
	"io"
	"strings"
)

// Renderer draws the four kiosk screens to a terminal. It is intentionally
// dumb: every decision is already in the Snapshot.
type Renderer struct {
	out io.Writer
}

func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) Render(s Snapshot) {
	var b strings.Builder

	// Clear screen and home the cursor.
	b.WriteString("\033[2J\033[H")

	switch s.State {
	case StateInit:
		b.WriteString("Connecting...\n")

	case StateAwaitingPair:
		b.WriteString("  CHAOS OPS\n\n")
		b.WriteString("  Pair this display with your organisation.\n")
		b.WriteString("  Enter this code in the admin dashboard:\n\n")
		fmt.Fprintf(&b, "      %s\n", formatCode(s.PairingCode))

	case StatePairedNoPlan:
		if s.DeviceName != "" {
			fmt.Fprintf(&b, "  %s\n\n", s.DeviceName)
		}
		b.WriteString("  Paired. Waiting for a day plan...\n")

	case StatePlanAssigned:
		r.renderPlan(&b, s)
	}

	fmt.Fprint(r.out, b.String())
}

func (r *Renderer) renderPlan(b *strings.Builder, s Snapshot) {
	fmt.Fprintf(b, "  %s\n\n", s.Plan.Title)

	switch s.Phase {
	case PhaseCountdown:
		c := s.Countdown
		b.WriteString("  Starting in\n\n")
		fmt.Fprintf(b, "      %dd %02dh %02dm %02ds\n", c.Days, c.Hours, c.Minutes, c.Seconds)

	case PhaseRunning:
		fmt.Fprintf(b, "  %s\n\n", s.Now.Format("15:04:05"))
		for i, item := range s.Plan.Items {
			marker := "   "
			if i == s.CurrentItem {
				marker = " > "
			}
			fmt.Fprintf(b, "%s%s  %s\n", marker, item.EffectiveStart().Format("15:04"), item.Title)
		}

	case PhaseEnded:
		b.WriteString("  The event has ended.\n")
		b.WriteString("  Thanks for being part of it!\n")
	}
}

func formatCode(code string) string {
	if len(code) == 6 {
		return code[:3] + " " + code[3:]
	}
	return code
}
