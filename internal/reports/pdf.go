// Package reports renders project status reports as PDF files.
package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/fieldwork/taskd/internal/models"
)

// Generator writes report PDFs into a directory.
type Generator struct {
	dir string
}

// NewGenerator ensures the output directory exists.
func NewGenerator(dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Generator{dir: dir}, nil
}

// Generate renders the project summary and its task table to a new PDF file
// and returns the file name (relative to the generator directory).
func (g *Generator) Generate(project models.Project, tasks []models.Task, manager models.User) (string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Project report: %s", project.Name), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, fmt.Sprintf("Project Report: %s", project.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Manager: %s", manager.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Status: %s", project.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Completion: %d%% (%d of %d tasks)",
		project.CompletionPercentage, project.CompletedTasks, project.TasksCount), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC1123)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 8, "Task", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Status", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Progress", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, "Due", "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, t := range tasks {
		due := "-"
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		pdf.CellFormat(90, 7, t.Title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, string(t.Status), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d%%", t.Progress), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, due, "1", 1, "L", false, 0, "")
	}
	if len(tasks) == 0 {
		pdf.CellFormat(190, 7, "No tasks", "1", 1, "C", false, 0, "")
	}

	name := fmt.Sprintf("report-%s-%s.pdf", project.ID.Hex(), uuid.NewString())
	if err := pdf.OutputFileAndClose(filepath.Join(g.dir, name)); err != nil {
		return "", fmt.Errorf("write report pdf: %w", err)
	}
	return name, nil
}

// Path resolves a stored file name inside the generator directory.
func (g *Generator) Path(fileName string) string {
	return filepath.Join(g.dir, filepath.Base(fileName))
}
