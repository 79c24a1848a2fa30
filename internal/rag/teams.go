package rag

import "strings"

// TeamRef is the minimal identifier pair the disambiguator needs to
// build its alias table: the team's upstream id (the same value
// stamped onto core.DocumentMetadata.TeamID during ingestion, §4.4)
// and its human display name.
type TeamRef struct {
	ID   string
	Name string
}

// TeamDisambiguator maps common short forms ("blue 10s", "white u10")
// and full display names to the team id carried in document metadata
// (§4.6). The router applies this before filter construction so a
// query's team_id filter matches what sync.go stamped on ingestion
// rather than a display name document metadata never contains.
type TeamDisambiguator struct {
	aliases map[string]string // normalized alias -> team id
}

func NewTeamDisambiguator(teams []TeamRef) *TeamDisambiguator {
	d := &TeamDisambiguator{aliases: map[string]string{}}
	for _, team := range teams {
		d.aliases[normalizeAlias(team.Name)] = team.ID
		for _, alt := range shortForms(team.Name) {
			d.aliases[normalizeAlias(alt)] = team.ID
		}
	}
	return d
}

// Canonicalize resolves hint to the team id backing its alias, or
// returns hint unchanged if no alias matches (so a hint that is
// already a raw team id still passes through intact).
func (d *TeamDisambiguator) Canonicalize(hint string) string {
	if hint == "" {
		return ""
	}
	if id, ok := d.aliases[normalizeAlias(hint)]; ok {
		return id
	}
	return hint
}

func normalizeAlias(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// shortForms generates the common abbreviations clubs use for junior
// grade names, e.g. "Caroline Springs Blue U10" -> "blue 10s", "blue u10".
func shortForms(name string) []string {
	words := strings.Fields(strings.ToLower(name))
	if len(words) < 2 {
		return nil
	}
	last := words[len(words)-1]
	colour := words[len(words)-2]

	var forms []string
	forms = append(forms, colour+" "+last)
	if strings.HasPrefix(last, "u") {
		digits := strings.TrimPrefix(last, "u")
		forms = append(forms, colour+" "+digits+"s")
	}
	return forms
}
