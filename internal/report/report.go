// Package report renders grading results for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/essaygrade/internal/essay"
	"github.com/abhisek/essaygrade/internal/features"
	"github.com/abhisek/essaygrade/internal/pipeline"
	"github.com/abhisek/essaygrade/internal/proficiency"
	"github.com/abhisek/essaygrade/internal/ui/theme"
)

// BarWidth is the width of sub-score bars, label included.
const BarWidth = 44

// maxFindings caps the findings listed per kind.
const maxFindings = 8

// GradeCard renders one graded essay.
func GradeCard(out pipeline.Outcome) string {
	res := out.Calibration
	var b strings.Builder

	score := lipgloss.NewStyle().Bold(true).Foreground(theme.ScoreColor(res.FinalScore)).
		Render(fmt.Sprintf("%d  %s", res.FinalScore, res.Grade))
	b.WriteString(theme.Title.Render("Essay grade") + "   " + score)
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("  ±%d", res.UncertaintyRange)))
	b.WriteString("\n")
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("%d words · %d sentences · %d paragraphs",
		out.Summary.Words, out.Summary.Sentences, out.Summary.Paragraphs)))
	b.WriteString("\n")
	b.WriteString(sourceBadges(out))
	b.WriteString("\n")

	b.WriteString(theme.Section.Render("Quality"))
	b.WriteString("\n")
	for _, d := range essay.Dimensions {
		b.WriteString(Bar(string(d), res.AdjustedQuality.Get(d), BarWidth))
		b.WriteString("\n")
	}

	if res.GrammarErrors+res.SpellingErrors > 0 {
		b.WriteString(theme.Section.Render(fmt.Sprintf("Corrections (%d grammar, %d spelling)",
			res.GrammarErrors, res.SpellingErrors)))
		b.WriteString("\n")
		writeFindings(&b, out.Analysis.Grammar)
		writeFindings(&b, out.Analysis.Spelling)
	}
	if len(out.Analysis.Style) > 0 {
		b.WriteString(theme.Section.Render("Style suggestions"))
		b.WriteString("\n")
		writeFindings(&b, out.Analysis.Style)
	}

	if len(out.Weaknesses) > 0 {
		names := make([]string, len(out.Weaknesses))
		for i, w := range out.Weaknesses {
			names[i] = string(w)
		}
		b.WriteString(theme.Section.Render("Focus on"))
		b.WriteString("\n")
		b.WriteString(theme.Caution.Render("  " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}

	if p := out.Proficiency; p != nil {
		b.WriteString(theme.Section.Render("Proficiency"))
		b.WriteString("\n")
		b.WriteString(EventLine(p.Event))
		b.WriteString("\n")
	}

	return theme.Card.Render(strings.TrimRight(b.String(), "\n"))
}

func sourceBadges(out pipeline.Outcome) string {
	badges := []string{theme.Badge.Render("scorer: " + string(out.Inference.Source))}
	if out.Inference.Degraded() {
		badges[0] = theme.Badge.Foreground(theme.Warning).Render("scorer: " + string(out.Inference.Source))
	}
	badges = append(badges, theme.Badge.Render("analysis: "+string(out.Analysis.Stage)))
	return strings.Join(badges, " ")
}

func writeFindings(b *strings.Builder, fs []essay.ErrorFinding) {
	for i, f := range fs {
		if i == maxFindings {
			b.WriteString(theme.Hint.Render(fmt.Sprintf("  … %d more", len(fs)-maxFindings)))
			b.WriteString("\n")
			return
		}
		line := fmt.Sprintf("  %s → %s", theme.Bad.Render(f.Original), theme.Good.Render(f.Correction))
		if f.Reason != "" {
			line += theme.Hint.Render("  " + f.Reason)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// Bar renders a labelled horizontal bar for v in [0,1].
func Bar(label string, v float64, width int) string {
	prefix := theme.Label.Render(label)
	barWidth := width - lipgloss.Width(prefix) - 6
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * essay.Clamp01(v))
	empty := barWidth - filled

	return prefix +
		theme.BarFilled.Render(strings.Repeat("█", filled)) +
		theme.BarEmpty.Render(strings.Repeat("░", empty)) +
		theme.Subtitle.Render(fmt.Sprintf(" %4.2f", v))
}

// EventLine describes a proficiency event in one line.
func EventLine(ev proficiency.Event) string {
	switch ev.Kind {
	case proficiency.EventPromote:
		return theme.Good.Render(fmt.Sprintf("  ▲ %s → %s", ev.From, ev.To)) + "  " + theme.Body.Render(ev.Message)
	case proficiency.EventDemote:
		return theme.Bad.Render(fmt.Sprintf("  ▼ %s → %s", ev.From, ev.To)) + "  " + theme.Body.Render(ev.Message)
	case proficiency.EventWarn:
		return theme.Caution.Render("  ! "+string(ev.To)) + "  " + theme.Body.Render(ev.Message)
	case proficiency.EventDuplicate:
		return theme.Hint.Render("  already recorded")
	default:
		return theme.Body.Render("  "+string(ev.To)) + "  " + theme.Hint.Render(ev.Message)
	}
}

// LearnerCard renders a learner's current state.
func LearnerCard(s proficiency.State, now time.Time) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render(s.LearnerID) + "   " + theme.Badge.Render(string(s.Level)))
	b.WriteString("\n")
	if !s.UpdatedAt.IsZero() {
		b.WriteString(theme.Subtitle.Render("updated " + s.UpdatedAt.Format("Jan 02, 2006 15:04")))
		b.WriteString("\n")
	}

	b.WriteString(theme.Section.Render("Recent scores"))
	b.WriteString("\n")
	if len(s.RecentScores) == 0 {
		b.WriteString(theme.Hint.Render("  No essays graded yet."))
		b.WriteString("\n")
	} else {
		parts := make([]string, len(s.RecentScores))
		for i, sc := range s.RecentScores {
			parts[i] = lipgloss.NewStyle().Foreground(theme.ScoreColor(sc)).Render(fmt.Sprintf("%d", sc))
		}
		b.WriteString("  " + strings.Join(parts, " "))
		b.WriteString("\n")
	}

	active := 0
	for _, w := range s.Warnings {
		if w.Expired(now) {
			continue
		}
		if active == 0 {
			b.WriteString(theme.Section.Render("Warnings"))
			b.WriteString("\n")
		}
		active++
		left := w.IssuedAt.Add(w.ExpiresAfter).Sub(now).Round(time.Hour)
		b.WriteString(theme.Caution.Render("  "+string(w.Kind)) + theme.Hint.Render(fmt.Sprintf("  expires in %s", left)))
		b.WriteString("\n")
	}

	if len(s.History) > 0 {
		b.WriteString(theme.Section.Render("Level changes"))
		b.WriteString("\n")
		for _, t := range s.History {
			b.WriteString(theme.Body.Render(fmt.Sprintf("  %s  %s → %s", t.At.Format("Jan 02, 2006"), t.From, t.To)))
			b.WriteString(theme.Hint.Render("  " + t.Reason))
			b.WriteString("\n")
		}
	}

	return theme.Card.Render(strings.TrimRight(b.String(), "\n"))
}

// FeatureTable lists named slots grouped by feature group. With nonZero
// only slots with a value are shown. An empty group shows every group.
func FeatureTable(v features.Vector, group string, nonZero bool) string {
	var b strings.Builder
	current := ""
	for _, nv := range features.Describe(v) {
		if group != "" && nv.Group != group {
			continue
		}
		if nonZero && nv.Value == 0 {
			continue
		}
		if nv.Group != current {
			current = nv.Group
			b.WriteString(theme.Section.Render(current))
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  %3d  %-28s %s\n", nv.Index, nv.Name,
			theme.Body.Render(fmt.Sprintf("%.4f", nv.Value))))
	}
	if b.Len() == 0 {
		return theme.Hint.Render("No matching features.")
	}
	return strings.TrimRight(b.String(), "\n")
}
