package dialogue

import (
	"strings"

	"github.com/m3rciful/reviewbot/internal/action"
	"github.com/m3rciful/reviewbot/internal/chat"
	"github.com/m3rciful/reviewbot/internal/review"
)

func (o *Orchestrator) languageMessage() chat.Message {
	var row []string
	for _, l := range o.cat.Languages() {
		row = append(row, l.Label)
	}
	return chat.Message{
		Text:  o.cat.T(o.cat.DefaultLanguage(), "choose_language"),
		Reply: [][]string{row},
	}
}

func (o *Orchestrator) cityMessage(lang string) chat.Message {
	var rows [][]string
	for _, c := range o.cat.Cities(lang) {
		rows = append(rows, []string{c.Name})
	}
	return chat.Message{Text: o.cat.T(lang, "choose_city"), Reply: rows}
}

func (o *Orchestrator) menuMessage(lang, text string) chat.Message {
	return chat.Message{
		Text: text,
		Reply: [][]string{
			{o.cat.Button(lang, "leave_review")},
			{o.cat.Button(lang, "find_reviews")},
			{o.cat.Button(lang, "change_settings")},
		},
	}
}

func (o *Orchestrator) resultsMessage(lang string, res *review.SearchResult) chat.Message {
	name := res.MatchedEmployer
	if len(res.Reviews) > 0 {
		name = res.Reviews[0].Employer
	}

	var b strings.Builder
	b.WriteString(o.cat.T(lang, "search_results_header", name, res.TotalReviews, res.AverageRating))
	for _, r := range res.Reviews {
		b.WriteString("\n\n")
		b.WriteString(o.cat.T(lang, "review_line", r.Rating, r.SubmittedAt.Format("2006-01-02"), r.Comment))
	}
	if res.TotalPages > 1 {
		b.WriteString("\n\n")
		b.WriteString(o.cat.T(lang, "search_page", res.CurrentPage+1, res.TotalPages))
	}

	msg := chat.Message{Text: b.String()}
	var nav []chat.Button
	if res.HasPrev {
		nav = append(nav, chat.Button{Text: o.cat.Button(lang, "prev"), Action: action.SearchPrev{Page: res.CurrentPage}})
	}
	if res.HasNext {
		nav = append(nav, chat.Button{Text: o.cat.Button(lang, "next"), Action: action.SearchNext{Page: res.CurrentPage}})
	}
	if len(nav) > 0 {
		msg.Inline = [][]chat.Button{nav}
	}
	return msg
}
