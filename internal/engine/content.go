package engine

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"html"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"creetonbiz/internal/domain"
)

// Content generation is deterministic: the same profile always yields the
// same idea and deliverables, which keeps runs reproducible and testable.

func profileSeed(p domain.Profile) uint64 {
	h := fnv.New64a()
	h.Write([]byte(p.Sector))
	h.Write([]byte{0})
	h.Write([]byte(p.Objective))
	for _, s := range p.Skills {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	return h.Sum64()
}

func pick(seed uint64, salt string, options []string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%s", seed, salt)
	return options[h.Sum64()%uint64(len(options))]
}

var (
	namePrefixes = []string{"Nova", "Boost", "Clair", "Alto", "Pulse", "Lumen"}
	nameSuffixes = []string{"ly", "Lab", "Flow", "Hub", "Go", "Base"}
	personas     = []string{
		"independent professionals building their first online presence",
		"small teams that outgrew spreadsheets",
		"solo founders validating a niche offer",
		"local businesses moving their services online",
	}
	slogans = []string{
		"Less friction, more traction.",
		"Your idea, launched this week.",
		"Built for the way you actually work.",
		"From zero to first client.",
	}
)

func buildIdea(p domain.Profile) domain.Idea {
	seed := profileSeed(p)
	name := pick(seed, "name-prefix", namePrefixes) + pick(seed, "name-suffix", nameSuffixes)
	return domain.Idea{
		Sector:    p.Sector,
		Objective: p.Objective,
		Skills:    p.Skills,
		Name:      name,
		Slogan:    pick(seed, "slogan", slogans),
		Persona:   pick(seed, "persona", personas),
		Summary: fmt.Sprintf("%s is a %s service for %s. It turns the founder's strengths (%s) into a focused offer aimed at: %s.",
			name, p.Sector, pick(seed, "persona", personas), strings.Join(p.Skills, ", "), p.Objective),
		Rating: 3.5 + float64(seed%15)/10,
	}
}

type deliverableContent struct {
	Title   string
	Content map[string]any
}

func buildDeliverableContent(kind domain.DeliverableKind, p domain.Profile, project domain.Project) deliverableContent {
	seed := profileSeed(p)
	switch kind {
	case domain.KindOffer:
		return deliverableContent{
			Title: "Offre irrésistible",
			Content: map[string]any{
				"promise":   fmt.Sprintf("Help %s reach %q without hiring.", pick(seed, "persona", personas), p.Objective),
				"deliverables": []string{
					"Kickoff audit of the current situation",
					"90-day action plan",
					"Weekly follow-up call",
				},
				"pricing": map[string]any{
					"starter":  490,
					"standard": 990,
					"premium":  1990,
					"currency": "EUR",
				},
				"guarantee": "First milestone delivered within 14 days or the setup fee is refunded.",
			},
		}
	case domain.KindModel:
		return deliverableContent{
			Title: "Business model",
			Content: map[string]any{
				"revenue_streams": []string{"monthly retainer", "one-time setup", "affiliate tools"},
				"cost_structure":  []string{"tooling", "ads", "subcontracting"},
				"channels":        []string{"LinkedIn", "SEO", "partnerships"},
				"key_metric":      "monthly recurring revenue",
				"sector":          p.Sector,
			},
		}
	case domain.KindBrand:
		return deliverableContent{
			Title: "Identité de marque",
			Content: map[string]any{
				"name":    project.Title,
				"slogan":  pick(seed, "slogan", slogans),
				"tone":    pick(seed, "tone", []string{"direct and warm", "expert and calm", "bold and playful"}),
				"palette": []string{"#1F2937", "#4F46E5", "#F9FAFB"},
				"values":  []string{"clarity", "momentum", "proof"},
			},
		}
	case domain.KindLanding:
		return deliverableContent{
			Title: "Landing page",
			Content: map[string]any{
				"headline":    fmt.Sprintf("%s: %s", project.Title, pick(seed, "slogan", slogans)),
				"subheadline": fmt.Sprintf("For %s.", pick(seed, "persona", personas)),
				"cta":         "Réserver un appel",
				"sections":    []string{"hero", "pain", "offer", "proof", "faq", "cta"},
			},
		}
	case domain.KindMarketing:
		return deliverableContent{
			Title: "Plan marketing 30 jours",
			Content: map[string]any{
				"week1": "Publish positioning post and DM 20 prospects",
				"week2": "Launch lead magnet tied to the offer",
				"week3": "Collect 3 testimonials, publish case study",
				"week4": "Retarget engaged leads, book discovery calls",
				"channels": []string{
					pick(seed, "channel-a", []string{"LinkedIn", "Instagram", "YouTube"}),
					"email",
				},
			},
		}
	case domain.KindPlan:
		return deliverableContent{
			Title: "Plan d'action",
			Content: map[string]any{
				"milestones": []map[string]any{
					{"day": 7, "goal": "Offer page live"},
					{"day": 14, "goal": "First 10 qualified conversations"},
					{"day": 30, "goal": "First paying client"},
					{"day": 90, "goal": fmt.Sprintf("Objective on track: %s", p.Objective)},
				},
			},
		}
	}
	return deliverableContent{Title: string(kind), Content: map[string]any{}}
}

func marshalContent(c map[string]any) string {
	data, _ := json.Marshal(c)
	return string(data)
}

// renderLandingHTML produces the static page written on publish.
func renderLandingHTML(project domain.Project, content map[string]any) string {
	headline, _ := content["headline"].(string)
	sub, _ := content["subheadline"].(string)
	cta, _ := content["cta"].(string)
	var b strings.Builder
	b.WriteString("<!doctype html>\n<html lang=\"fr\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(project.Title))
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n</head>\n<body>\n")
	fmt.Fprintf(&b, "<header><h1>%s</h1><p>%s</p></header>\n", html.EscapeString(headline), html.EscapeString(sub))
	fmt.Fprintf(&b, "<main><a class=\"cta\" href=\"#contact\">%s</a></main>\n", html.EscapeString(cta))
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// renderPlanICS renders action plan milestones as a calendar file.
func renderPlanICS(project domain.Project, content map[string]any, start time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//creetonbiz//plan//FR\r\n")
	milestones, _ := content["milestones"].([]map[string]any)
	if milestones == nil {
		if raw, ok := content["milestones"].([]any); ok {
			for _, m := range raw {
				if mm, ok := m.(map[string]any); ok {
					milestones = append(milestones, mm)
				}
			}
		}
	}
	for i, m := range milestones {
		day := 0
		switch v := m["day"].(type) {
		case int:
			day = v
		case float64:
			day = int(v)
		}
		goal, _ := m["goal"].(string)
		date := start.AddDate(0, 0, day).UTC().Format("20060102")
		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "UID:%s-%d@creetonbiz\r\n", project.ID, i)
		fmt.Fprintf(&b, "DTSTART;VALUE=DATE:%s\r\n", date)
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", icsEscape(goal))
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

// renderMarkdown renders deliverable content as a readable document. Keys are
// sorted so the output is stable.
func renderMarkdown(title string, content map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	for _, k := range sortedKeys(content) {
		fmt.Fprintf(&b, "\n## %s\n\n", k)
		switch v := content[k].(type) {
		case map[string]any:
			for _, mk := range sortedKeys(v) {
				fmt.Fprintf(&b, "- %s: %s\n", mk, markdownValue(v[mk]))
			}
		case []any:
			for _, item := range v {
				fmt.Fprintf(&b, "- %s\n", markdownValue(item))
			}
		default:
			fmt.Fprintf(&b, "%s\n", markdownValue(v))
		}
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func markdownValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.Itoa(int(t))
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			parts = append(parts, fmt.Sprintf("%s: %s", k, markdownValue(t[k])))
		}
		return strings.Join(parts, "; ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, markdownValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
