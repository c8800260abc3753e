package rewrite

import "strings"

// curatedAllowlist holds generic technical abbreviations that never count as
// fabricated, regardless of the source material.
var curatedAllowlist = map[string]struct{}{
	"api": {}, "apis": {}, "ui": {}, "ux": {}, "rest": {}, "restful": {},
	"sql": {}, "nosql": {}, "aws": {}, "gcp": {}, "azure": {}, "http": {},
	"https": {}, "grpc": {}, "json": {}, "xml": {}, "yaml": {}, "html": {},
	"css": {}, "js": {}, "ts": {}, "ci": {}, "cd": {}, "cicd": {}, "ci/cd": {},
	"cli": {}, "sdk": {}, "ide": {}, "db": {}, "orm": {}, "oop": {}, "tdd": {},
	"qa": {}, "ml": {}, "ai": {}, "nlp": {}, "etl": {}, "kpi": {}, "roi": {},
	"sla": {}, "slo": {}, "saas": {}, "paas": {}, "iaas": {}, "crm": {},
	"erp": {}, "seo": {}, "agile": {}, "scrum": {}, "kanban": {}, "devops": {},
	"backend": {}, "frontend": {}, "fullstack": {}, "microservice": {},
	"microservices": {}, "web": {}, "app": {}, "apps": {}, "it": {},
}

// Vocabulary is the set of tokens a rewrite may use without being flagged as
// fabricated. Build it once per optimization run from the original document
// text and the requirements text; it must stay stable across every span of
// that run.
type Vocabulary struct {
	exact     map[string]struct{}
	substring []string
}

// BuildVocabulary tokenizes the given texts into a lowercase vocabulary.
func BuildVocabulary(texts ...string) *Vocabulary {
	v := &Vocabulary{exact: make(map[string]struct{})}
	for _, text := range texts {
		for _, token := range tokenize(text) {
			if _, seen := v.exact[token]; seen {
				continue
			}
			v.exact[token] = struct{}{}
			if len(token) >= 4 {
				v.substring = append(v.substring, token)
			}
		}
	}
	return v
}

// tokenize lowercases and splits on everything that is not part of a word,
// keeping ./+/# so tokens like node.js, c++ and c# survive intact.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r == '.' || r == '+' || r == '#' || r == '/':
			return false
		}
		return true
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "./")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Allows reports whether term is covered by the curated allowlist or the
// vocabulary, by exact or substring match.
func (v *Vocabulary) Allows(term string) bool {
	lower := strings.ToLower(strings.TrimSpace(term))
	if lower == "" {
		return true
	}
	if _, ok := curatedAllowlist[lower]; ok {
		return true
	}
	if v == nil {
		return false
	}
	if _, ok := v.exact[lower]; ok {
		return true
	}
	if len(lower) < 4 {
		return false
	}
	for _, token := range v.substring {
		if strings.Contains(token, lower) || strings.Contains(lower, token) {
			return true
		}
	}
	return false
}
