package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kode4food/stepflow/pkg/api"
)

// printer writes one line per step status change as a run progresses
type printer struct {
	out    io.Writer
	seen   map[api.StepID]api.StepStatus
	styles map[string]lipgloss.Style
	dim    lipgloss.Style
	bold   lipgloss.Style
}

func newPrinter(out io.Writer) *printer {
	r := lipgloss.NewRenderer(out)
	color := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}
	return &printer{
		out:  out,
		seen: map[api.StepID]api.StepStatus{},
		styles: map[string]lipgloss.Style{
			string(api.StepRunning):   color("#F2C94C"),
			string(api.StepCompleted): color("#27AE60"),
			string(api.StepError):     color("#EB5757"),
			string(api.StepSkipped):   color("#828282"),
			string(api.RunCancelled):  color("#828282"),
		},
		dim:  color("#AAAAAA"),
		bold: r.NewStyle().Bold(true),
	}
}

func (p *printer) plan(order []api.StepID) {
	fmt.Fprintf(p.out, "%s %v\n", p.bold.Render("Plan:"), order)
}

// update is a run subscriber
func (p *printer) update(st *api.RunState) {
	for _, step := range st.Steps {
		if p.seen[step.StepID] == step.Status {
			continue
		}
		p.seen[step.StepID] = step.Status
		if step.Status == api.StepPending {
			continue
		}
		p.step(step)
	}
}

func (p *printer) step(s *api.StepState) {
	line := fmt.Sprintf("  %-10s %s", p.status(string(s.Status)), s.StepID)
	switch s.Status {
	case api.StepCompleted:
		line += p.dim.Render(fmt.Sprintf(" (%s)", round(s.Duration)))
	case api.StepError:
		line += ": " + s.Error
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) summary(st *api.RunState) {
	line := fmt.Sprintf("%s %s %s in %s",
		p.bold.Render("Run"), st.ID, p.status(string(st.Status)),
		round(st.Duration),
	)
	if st.Error != "" {
		line += ": " + st.Error
	}
	fmt.Fprintln(p.out, line)
}

func (p *printer) status(s string) string {
	if style, ok := p.styles[s]; ok {
		return style.Render(s)
	}
	return s
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Millisecond)
}
