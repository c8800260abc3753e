package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Section names used for missing-section detection and user-supplied input.
const (
	SectionSummary    = "summary"
	SectionSkills     = "skills"
	SectionExperience = "experience"
	SectionProjects   = "projects"
	SectionEducation  = "education"
)

// Document is the structured resume payload the optimization pipeline
// operates on. Snapshots of it are versioned; never mutate a stored copy,
// always Clone first.
type Document struct {
	Header         Header       `json:"header"`
	Summary        []string     `json:"summary"`
	Skills         []string     `json:"skills"`
	Experience     []Experience `json:"experience"`
	Projects       []Project    `json:"projects"`
	Education      []Education  `json:"education"`
	Achievements   []string     `json:"achievements,omitempty"`
	Certifications []string     `json:"certifications,omitempty"`
}

// Header captures top-of-resume contact and identity details.
type Header struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Location string   `json:"location"`
	Links    []string `json:"links,omitempty"`
}

// Experience represents one work-history entry.
type Experience struct {
	Company  string   `json:"company"`
	Role     string   `json:"role"`
	Location string   `json:"location,omitempty"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Bullets  []string `json:"bullets"`
}

// Project represents a notable project.
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies,omitempty"`
	Bullets      []string `json:"bullets,omitempty"`
}

// Education represents an education entry.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Field       string `json:"field,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

var datePattern = regexp.MustCompile(`^\d{4}(-(0[1-9]|1[0-2]))?$`)

// Validate enforces required fields and date formatting.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Header.Name) == "" {
		return errors.New("header.name is required")
	}
	for i, exp := range d.Experience {
		if err := validateDate(exp.Start, fmt.Sprintf("experience[%d].start", i)); err != nil {
			return err
		}
		if err := validateDate(exp.End, fmt.Sprintf("experience[%d].end", i)); err != nil {
			return err
		}
	}
	for i, edu := range d.Education {
		if err := validateDate(edu.Start, fmt.Sprintf("education[%d].start", i)); err != nil {
			return err
		}
		if err := validateDate(edu.End, fmt.Sprintf("education[%d].end", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateDate(value, field string) error {
	if value == "" || strings.EqualFold(value, "Present") {
		return nil
	}
	if !datePattern.MatchString(value) {
		return fmt.Errorf("%s must be YYYY, YYYY-MM or Present", field)
	}
	return nil
}

// Clone returns a deep copy. Version snapshots rely on this; the copy shares
// no slices with the receiver.
func (d Document) Clone() Document {
	out := d
	out.Header.Links = cloneStrings(d.Header.Links)
	out.Summary = cloneStrings(d.Summary)
	out.Skills = cloneStrings(d.Skills)
	out.Achievements = cloneStrings(d.Achievements)
	out.Certifications = cloneStrings(d.Certifications)
	if d.Experience != nil {
		out.Experience = make([]Experience, len(d.Experience))
		for i, exp := range d.Experience {
			exp.Bullets = cloneStrings(exp.Bullets)
			out.Experience[i] = exp
		}
	}
	if d.Projects != nil {
		out.Projects = make([]Project, len(d.Projects))
		for i, p := range d.Projects {
			p.Technologies = cloneStrings(p.Technologies)
			p.Bullets = cloneStrings(p.Bullets)
			out.Projects[i] = p
		}
	}
	if d.Education != nil {
		out.Education = make([]Education, len(d.Education))
		copy(out.Education, d.Education)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// PlainText flattens the document into readable text, one line per field or
// bullet. Used for vocabulary building and embedding input.
func (d Document) PlainText() string {
	var b strings.Builder
	writeLine(&b, d.Header.Name)
	writeLine(&b, d.Header.Title)
	writeLine(&b, d.Header.Email)
	writeLine(&b, d.Header.Phone)
	writeLine(&b, d.Header.Location)
	for _, link := range d.Header.Links {
		writeLine(&b, link)
	}
	for _, line := range d.Summary {
		writeLine(&b, line)
	}
	writeLine(&b, strings.Join(d.Skills, ", "))
	for _, exp := range d.Experience {
		writeLine(&b, exp.Company)
		writeLine(&b, exp.Role)
		writeLine(&b, exp.Location)
		for _, bullet := range exp.Bullets {
			writeLine(&b, bullet)
		}
	}
	for _, p := range d.Projects {
		writeLine(&b, p.Name)
		writeLine(&b, p.Description)
		writeLine(&b, strings.Join(p.Technologies, ", "))
		for _, bullet := range p.Bullets {
			writeLine(&b, bullet)
		}
	}
	for _, edu := range d.Education {
		writeLine(&b, edu.Institution)
		writeLine(&b, edu.Degree)
		writeLine(&b, edu.Field)
	}
	for _, a := range d.Achievements {
		writeLine(&b, a)
	}
	for _, c := range d.Certifications {
		writeLine(&b, c)
	}
	return b.String()
}

func writeLine(b *strings.Builder, s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

// MissingSections reports expected sections that are empty, in a stable
// order. Projects are optional and never reported.
func (d Document) MissingSections() []string {
	var missing []string
	if len(d.Summary) == 0 {
		missing = append(missing, SectionSummary)
	}
	if len(d.Skills) == 0 {
		missing = append(missing, SectionSkills)
	}
	if len(d.Experience) == 0 {
		missing = append(missing, SectionExperience)
	}
	if len(d.Education) == 0 {
		missing = append(missing, SectionEducation)
	}
	return missing
}
