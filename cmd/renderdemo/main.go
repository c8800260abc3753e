package main

// Render a sample resume to DOCX for manual inspection:
//   go run ./cmd/renderdemo -out ./out/sample_resume.docx

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"resume-optimizer/resume/model"
	"resume-optimizer/resume/render"
)

func main() {
	outPath := flag.String("out", "./out/sample_resume.docx", "output path for generated DOCX")
	flag.Parse()

	doc := sampleDocument()
	if err := doc.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "sample document invalid: %v\n", err)
		os.Exit(1)
	}

	docxBytes, err := render.Build(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutputs(*outPath, doc, docxBytes); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	if err := validateRenderedDocx(*outPath, doc.Header.Name); err != nil {
		fmt.Fprintf(os.Stderr, "render validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: wrote %s\n", *outPath)
}

func writeOutputs(outPath string, doc model.Document, docxBytes []byte) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(outPath, docxBytes, 0o644); err != nil {
		return err
	}

	modelPath := filepath.Join(dir, "sample_resume_model.json")
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(modelPath, payload, 0o644)
}

func sampleDocument() model.Document {
	return model.Document{
		Header: model.Header{
			Name:     "Jordan Lee",
			Title:    "Senior Backend Engineer",
			Email:    "jordan.lee@example.com",
			Phone:    "+1-555-0102",
			Location: "Austin, TX",
			Links: []string{
				"https://www.linkedin.com/in/jordanlee",
				"https://github.com/jordanlee",
			},
		},
		Summary: []string{
			"Backend engineer with 8+ years of experience building resilient APIs and data services.",
			"Led platform modernization initiatives spanning cloud migration and observability adoption.",
		},
		Skills: []string{
			"Go", "Java", "Gin", "Spring Boot", "PostgreSQL", "Redis",
			"AWS", "Docker", "Kubernetes", "OpenTelemetry", "Terraform",
		},
		Experience: []model.Experience{
			{
				Company:  "Acme Logistics",
				Role:     "Senior Backend Engineer",
				Location: "Austin, TX",
				Start:    "2021-04",
				End:      "Present",
				Bullets: []string{
					"Designed a routing service that reduced shipment latency by 18%.",
					"Implemented distributed tracing to cut incident triage time by 35%.",
				},
			},
			{
				Company:  "Blue Harbor Systems",
				Role:     "Backend Engineer",
				Location: "Seattle, WA",
				Start:    "2018-01",
				End:      "2021-03",
				Bullets: []string{
					"Built event-driven ingestion pipelines for compliance data feeds.",
				},
			},
		},
		Projects: []model.Project{
			{
				Name:         "Shipment Tracker",
				Description:  "Real-time shipment visibility dashboard backed by event streams.",
				Technologies: []string{"Go", "NATS", "PostgreSQL"},
				Bullets: []string{
					"Processed 2M tracking events per day with sub-second fanout.",
				},
			},
		},
		Education: []model.Education{
			{
				Institution: "University of Texas at Austin",
				Degree:      "BSc",
				Field:       "Computer Science",
				Start:       "2010",
				End:         "2014",
			},
		},
	}
}

func validateRenderedDocx(path, headerName string) error {
	docxBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	reader, err := zip.NewReader(bytes.NewReader(docxBytes), int64(len(docxBytes)))
	if err != nil {
		return err
	}

	for _, file := range reader.File {
		if normalizeZipName(file.Name) != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return err
		}
		if !strings.Contains(string(content), headerName) {
			return fmt.Errorf("document.xml missing header name %q", headerName)
		}
		return nil
	}

	return fmt.Errorf("document.xml not found in docx")
}

func normalizeZipName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
