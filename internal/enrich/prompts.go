package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hakivo/enricher/internal/storage"
)

const quickSystemPrompt = `You explain news and legislation to ordinary citizens in plain, neutral language.
Respond with a single JSON object and nothing else:
{
  "summary": "2-3 sentence plain-language summary",
  "key_points": ["most important facts, in order"],
  "benefits": ["who or what gains and how"],
  "concerns": ["risks, costs or objections"],
  "affected_groups": ["short lowercase group names, e.g. seniors, veterans, small businesses"]
}`

const deepSystemPrompt = `You are a nonpartisan legislative analyst. Analyze the bill for an informed citizen.
Respond with a single JSON object and nothing else, using exactly these keys:
{
  "executive_summary": "one paragraph",
  "status_quo_vs_change": "what the law is today and what this bill changes",
  "section_breakdown": ["one entry per major section"],
  "mechanism_of_action": "how the bill achieves its goal",
  "agency_powers": ["new or changed agency authorities"],
  "fiscal_impact": {"estimated_cost": "", "funding_source": "", "timeframe": ""},
  "stakeholder_impact": {"group": "effect on that group"},
  "unintended_consequences": ["plausible side effects"],
  "arguments_for": ["strongest arguments in favor"],
  "arguments_against": ["strongest arguments against"],
  "implementation_challenges": ["practical obstacles"],
  "passage_likelihood": 0,
  "passage_reasoning": "why the likelihood (0-100) is what it is"%s
}`

const federalDeepFields = `,
  "recent_developments": ["latest actions and news"],
  "state_impacts": {"state": "effect on that state"}`

func deepSystemPromptFor(federal bool) string {
	if federal {
		return fmt.Sprintf(deepSystemPrompt, federalDeepFields)
	}
	return fmt.Sprintf(deepSystemPrompt, "")
}

func newsPrompt(a storage.NewsArticle, body string) string {
	var sb strings.Builder
	sb.WriteString("Summarize this news article.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", a.Title)
	if a.Source != "" {
		fmt.Fprintf(&sb, "Source: %s\n", a.Source)
	}
	if a.PublishedAt != nil {
		fmt.Fprintf(&sb, "Published: %s\n", a.PublishedAt.Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&sb, "\nArticle:\n%s\n", body)
	return sb.String()
}

func billMetadata(sb *strings.Builder, b storage.Bill) {
	fmt.Fprintf(sb, "Bill: %s %s (%d%s Congress)\n", strings.ToUpper(b.BillType), b.BillNumber, b.Congress, ordinalSuffix(b.Congress))
	fmt.Fprintf(sb, "Title: %s\n", b.Title)
	if b.SponsorName != "" {
		fmt.Fprintf(sb, "Sponsor: %s (%s)\n", b.SponsorName, b.SponsorParty)
	}
	if b.IntroducedDate != "" {
		fmt.Fprintf(sb, "Introduced: %s\n", b.IntroducedDate)
	}
	if b.PolicyArea != "" {
		fmt.Fprintf(sb, "Policy area: %s\n", b.PolicyArea)
	}
	if b.LatestActionText != nil {
		fmt.Fprintf(sb, "Latest action: %s %s\n", b.LatestActionDate, *b.LatestActionText)
	}
	if counts := b.PartyCounts(); len(counts) > 0 {
		parties := make([]string, 0, len(counts))
		for p, n := range counts {
			parties = append(parties, fmt.Sprintf("%s %d", p, n))
		}
		sort.Strings(parties)
		fmt.Fprintf(sb, "Cosponsors: %d (%s)\n", len(b.Cosponsors), strings.Join(parties, ", "))
	}
}

func billPrompt(b storage.Bill, text string) string {
	var sb strings.Builder
	sb.WriteString("Summarize this bill.\n\n")
	billMetadata(&sb, b)
	if text != "" {
		fmt.Fprintf(&sb, "\nBill text:\n%s\n", text)
	}
	return sb.String()
}

func billAnalysisPrompt(b storage.Bill, text string) string {
	var sb strings.Builder
	sb.WriteString("Provide a deep analysis of this federal bill.\n\n")
	billMetadata(&sb, b)
	if text != "" {
		fmt.Fprintf(&sb, "\nFull text:\n%s\n", text)
	}
	return sb.String()
}

func stateBillAnalysisPrompt(b storage.StateBill, text string) string {
	var sb strings.Builder
	sb.WriteString("Provide a deep analysis of this state bill.\n\n")
	fmt.Fprintf(&sb, "State: %s\n", strings.ToUpper(b.State))
	fmt.Fprintf(&sb, "Session: %s\n", b.Session)
	fmt.Fprintf(&sb, "Bill: %s\n", b.Identifier)
	fmt.Fprintf(&sb, "Title: %s\n", b.Title)
	if b.Abstract != "" {
		fmt.Fprintf(&sb, "Abstract: %s\n", b.Abstract)
	}
	if len(b.Subjects) > 0 {
		fmt.Fprintf(&sb, "Subjects: %s\n", strings.Join(b.Subjects, ", "))
	}
	if b.LatestAction != nil {
		fmt.Fprintf(&sb, "Latest action: %s\n", *b.LatestAction)
	}
	if text != "" {
		fmt.Fprintf(&sb, "\nFull text:\n%s\n", text)
	}
	return sb.String()
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}
